// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

// SDPType describes the type of a SessionDescription, carried in SDP
// itself only implicitly (offer vs answer is a property of which side
// called CreateOffer/CreateAnswer, not a wire field).
type SDPType int

const (
	// SDPTypeUnknown is the enum's zero-value.
	SDPTypeUnknown SDPType = iota

	// SDPTypeOffer indicates a description that proposes a session.
	SDPTypeOffer

	// SDPTypePranswer indicates a provisional answer: a final answer from
	// the remote side is still expected.
	SDPTypePranswer

	// SDPTypeAnswer indicates a final answer; the offer/answer exchange is
	// complete once it is applied.
	SDPTypeAnswer

	// SDPTypeRollback cancels the current offer/answer exchange, moving
	// signaling state back to stable.
	SDPTypeRollback
)

// NewSDPType parses the wire string form of SDPType.
func NewSDPType(raw string) SDPType {
	switch raw {
	case "offer":
		return SDPTypeOffer
	case "pranswer":
		return SDPTypePranswer
	case "answer":
		return SDPTypeAnswer
	case "rollback":
		return SDPTypeRollback
	default:
		return SDPTypeUnknown
	}
}

func (t SDPType) String() string {
	switch t {
	case SDPTypeOffer:
		return "offer"
	case SDPTypePranswer:
		return "pranswer"
	case SDPTypeAnswer:
		return "answer"
	case SDPTypeRollback:
		return "rollback"
	default:
		return ErrUnknownType.Error()
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t SDPType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *SDPType) UnmarshalText(b []byte) error {
	*t = NewSDPType(string(b))
	if *t == SDPTypeUnknown {
		return ErrUnknownType
	}
	return nil
}
