package webrtc

import "github.com/nimbusrtc/webrtc/internal/ice"

// ICEGatheringState is the SDP-facing mirror of internal/ice's candidate
// gathering lifecycle (spec §4.2).
type ICEGatheringState int

const (
	// ICEGatheringStateNew indicates that any of the ICETransports are
	// in the "new" gathering state and none of the transports are in the
	// "gathering" state.
	ICEGatheringStateNew ICEGatheringState = iota + 1

	// ICEGatheringStateGathering indicates that any of the ICETransports
	// are in the "gathering" state.
	ICEGatheringStateGathering

	// ICEGatheringStateComplete indicates that every ICETransport has
	// finished gathering.
	ICEGatheringStateComplete
)

func (s ICEGatheringState) String() string {
	switch s {
	case ICEGatheringStateNew:
		return "new"
	case ICEGatheringStateGathering:
		return "gathering"
	case ICEGatheringStateComplete:
		return "complete"
	default:
		return unknownStr
	}
}

func iceGatheringStateFromInternal(s ice.GatheringState) ICEGatheringState {
	switch s {
	case ice.GatheringStateGathering:
		return ICEGatheringStateGathering
	case ice.GatheringStateComplete:
		return ICEGatheringStateComplete
	default:
		return ICEGatheringStateNew
	}
}
