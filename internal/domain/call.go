package domain

import "time"

// SignalType distinguishes the two halves of the session-description exchange.
type SignalType string

const (
	SignalOffer  SignalType = "offer"
	SignalAnswer SignalType = "answer"
)

// CallStatus is the lifecycle status of an active call session.
type CallStatus string

const (
	CallPending CallStatus = "pending"
	CallEnded   CallStatus = "ended"
)

// CallRecord is one signaling message in the "calls" collection.
// Records are append-only: for a given code there is exactly one offer
// (written by the initiator) and at most one answer (written by the joiner).
type CallRecord struct {
	ID         string     `bson:"_id,omitempty" json:"id"`
	Code       string     `bson:"code" json:"code"`
	TaskID     string     `bson:"taskId" json:"taskId"`
	From       string     `bson:"from" json:"from"`
	To         string     `bson:"to,omitempty" json:"to,omitempty"`
	SignalData SDPPayload `bson:"signalData" json:"signalData"`
	Type       SignalType `bson:"type" json:"type"`
	Timestamp  time.Time  `bson:"timestamp" json:"timestamp"`
}

// ActiveCallSession is the rendezvous row in the "activeCalls" collection.
// Created once with status pending; updated at most once to status ended.
// Both parties may write the terminal status — last writer wins is safe
// because they only ever write the same value.
type ActiveCallSession struct {
	ID        string     `bson:"_id,omitempty" json:"id"`
	Code      string     `bson:"code" json:"code"`
	TaskID    string     `bson:"taskId" json:"taskId"`
	Initiator string     `bson:"initiator" json:"initiator"`
	Receiver  string     `bson:"receiver,omitempty" json:"receiver,omitempty"`
	Status    CallStatus `bson:"status" json:"status"`
	CreatedAt time.Time  `bson:"createdAt" json:"createdAt"`
	EndedAt   *time.Time `bson:"endedAt,omitempty" json:"endedAt,omitempty"`
	HasVideo  bool       `bson:"hasVideo" json:"hasVideo"`
}

// Role is which side of the exchange this client plays.
type Role string

const (
	RoleUnset     Role = ""
	RoleInitiator Role = "initiator"
	RoleJoiner    Role = "joiner"
)
