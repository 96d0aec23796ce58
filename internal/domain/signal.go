package domain

// SDPPayload is the opaque session-description payload carried by a
// CallRecord. Trickling is disabled, so the SDP already contains every
// gathered ICE candidate and one payload per side is enough.
type SDPPayload struct {
	Type string `bson:"type" json:"type"`
	SDP  string `bson:"sdp" json:"sdp"`
}

// TrackKind is the media kind of a remote track.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// RemoteTrack describes a media track received from the remote peer.
type RemoteTrack struct {
	Kind TrackKind
	ID   string
}
