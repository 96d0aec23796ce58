package rtc

// H264Depacketizer extracts NAL units from RTP H264 payloads so remote
// video can be written out as a raw Annex-B stream. It keeps per-instance
// FU-A reassembly state and drops a fragment chain when an RTP sequence
// gap means part of the NAL was lost.
type H264Depacketizer struct {
	frag     []byte
	fragSeq  uint16
	fragOpen bool
}

// NewH264Depacketizer creates a depacketizer with its own reassembly state.
func NewH264Depacketizer() *H264Depacketizer {
	return &H264Depacketizer{}
}

// Depacketize extracts zero or more complete NAL units from one RTP
// payload. seq is the RTP sequence number, used to detect lost fragments.
// Handles single NAL, STAP-A, and FU-A packetization.
func (d *H264Depacketizer) Depacketize(seq uint16, payload []byte) [][]byte {
	if len(payload) == 0 {
		return nil
	}

	switch naluType := payload[0] & 0x1f; {
	case naluType >= 1 && naluType <= 23:
		return [][]byte{payload}
	case naluType == 24:
		return d.splitSTAPA(payload)
	case naluType == 28:
		return d.assembleFUA(seq, payload)
	default:
		return nil
	}
}

// splitSTAPA unpacks an aggregation packet: a header byte followed by
// (16-bit size, NALU) pairs.
func (d *H264Depacketizer) splitSTAPA(payload []byte) [][]byte {
	var nalus [][]byte
	for off := 1; off+2 <= len(payload); {
		size := int(payload[off])<<8 | int(payload[off+1])
		off += 2
		if size == 0 || off+size > len(payload) {
			break
		}
		nalus = append(nalus, payload[off:off+size])
		off += size
	}
	return nalus
}

// assembleFUA accumulates fragmentation units until the end bit arrives.
// The NAL header is rebuilt from the FU indicator's F+NRI bits and the FU
// header's type bits.
func (d *H264Depacketizer) assembleFUA(seq uint16, payload []byte) [][]byte {
	if len(payload) < 2 {
		return nil
	}
	fnri := payload[0] & 0xe0
	header := payload[1]
	start := header&0x80 != 0
	end := header&0x40 != 0

	switch {
	case start:
		d.frag = append([]byte{fnri | header&0x1f}, payload[2:]...)
		d.fragSeq = seq
		d.fragOpen = true
	case !d.fragOpen || seq != d.fragSeq+1:
		// A fragment went missing; the rest of this chain is garbage.
		d.frag = nil
		d.fragOpen = false
		return nil
	default:
		d.frag = append(d.frag, payload[2:]...)
		d.fragSeq = seq
	}

	if end && d.fragOpen {
		nalu := d.frag
		d.frag = nil
		d.fragOpen = false
		return [][]byte{nalu}
	}
	return nil
}
