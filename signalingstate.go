package webrtc

// SignalingState tracks a PeerConnection's position in the offer/answer
// exchange. See (*PeerConnection).setLocalDescription and
// setRemoteDescription for the transitions between these values.
type SignalingState int

const (
	// SignalingStateStable means no offer/answer exchange is in progress;
	// it is both the starting state and the state after a completed
	// exchange. createOffer and setRemoteDescription(offer) are valid here.
	SignalingStateStable SignalingState = iota + 1
	// SignalingStateHaveLocalOffer means a local offer was set and an
	// answer from the remote side is awaited.
	SignalingStateHaveLocalOffer
	// SignalingStateHaveRemoteOffer means a remote offer was set and a
	// local answer is awaited. createAnswer is only valid here.
	SignalingStateHaveRemoteOffer
	// SignalingStateHaveLocalPrAnswer means a local provisional answer was
	// set in response to a remote offer.
	SignalingStateHaveLocalPrAnswer
	// SignalingStateHaveRemotePrAnswer means a remote provisional answer
	// was set in response to a local offer.
	SignalingStateHaveRemotePrAnswer
	// SignalingStateClosed means the PeerConnection has been torn down;
	// every further operation fails with ErrClosed.
	SignalingStateClosed
)

func (s SignalingState) String() string {
	switch s {
	case SignalingStateStable:
		return "stable"
	case SignalingStateHaveLocalOffer:
		return "have-local-offer"
	case SignalingStateHaveRemoteOffer:
		return "have-remote-offer"
	case SignalingStateHaveLocalPrAnswer:
		return "have-local-pranswer"
	case SignalingStateHaveRemotePrAnswer:
		return "have-remote-pranswer"
	case SignalingStateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// sdpType distinguishes an offer from an answer/provisional-answer when
// applying a description, the same distinction the SDP itself carries in
// its o= / a=... (here modeled directly rather than parsed back out).
type sdpType int

const (
	sdpTypeOffer sdpType = iota + 1
	sdpTypePranswer
	sdpTypeAnswer
)

// nextSignalingState computes the transition set out of spec §3/§4.8:
// setLocalDescription and setRemoteDescription share the same table, only
// the "local" vs "remote" role of the description differs.
func nextSignalingState(cur SignalingState, isLocal bool, typ sdpType) (SignalingState, error) {
	switch {
	case cur == SignalingStateStable && typ == sdpTypeOffer:
		if isLocal {
			return SignalingStateHaveLocalOffer, nil
		}
		return SignalingStateHaveRemoteOffer, nil

	case cur == SignalingStateHaveRemoteOffer && isLocal && (typ == sdpTypeAnswer || typ == sdpTypePranswer):
		if typ == sdpTypePranswer {
			return SignalingStateHaveLocalPrAnswer, nil
		}
		return SignalingStateStable, nil

	case cur == SignalingStateHaveLocalOffer && !isLocal && (typ == sdpTypeAnswer || typ == sdpTypePranswer):
		if typ == sdpTypePranswer {
			return SignalingStateHaveRemotePrAnswer, nil
		}
		return SignalingStateStable, nil

	case cur == SignalingStateHaveLocalPrAnswer && isLocal && typ == sdpTypeAnswer:
		return SignalingStateStable, nil

	case cur == SignalingStateHaveRemotePrAnswer && !isLocal && typ == sdpTypeAnswer:
		return SignalingStateStable, nil

	default:
		// Covers glare (offer arriving in HaveLocalOffer) and every other
		// out-of-order combination; callers surface this as InvalidState.
		return cur, &InvalidStateError{Err: errSignalingTransition(cur, isLocal, typ)}
	}
}

func errSignalingTransition(cur SignalingState, isLocal bool, typ sdpType) error {
	side := "remote"
	if isLocal {
		side = "local"
	}
	kind := "offer"
	switch typ {
	case sdpTypeAnswer:
		kind = "answer"
	case sdpTypePranswer:
		kind = "pranswer"
	}
	return &signalingTransitionError{state: cur, side: side, kind: kind}
}

type signalingTransitionError struct {
	state SignalingState
	side  string
	kind  string
}

func (e *signalingTransitionError) Error() string {
	return "cannot apply " + e.side + " " + e.kind + " while in " + e.state.String()
}
