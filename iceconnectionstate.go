// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package webrtc

import "github.com/nimbusrtc/webrtc/internal/ice"

// ICEConnectionState tracks connectivity of the underlying ICE agent,
// surfaced to the application via OnICEConnectionStateChange.
type ICEConnectionState int

const (
	// ICEConnectionStateNew indicates gathering/checking has not started.
	ICEConnectionStateNew ICEConnectionState = iota + 1

	// ICEConnectionStateChecking indicates connectivity checks are underway
	// but no usable candidate pair has been confirmed yet.
	ICEConnectionStateChecking

	// ICEConnectionStateConnected indicates a usable path has been
	// confirmed; PeerConnection reports it once the DTLS handshake over the
	// selected path has succeeded.
	ICEConnectionStateConnected

	// ICEConnectionStateCompleted indicates the connection is confirmed;
	// PeerConnection reports it once the DTLS handshake and the SCTP
	// association are up. No keepalives are sent.
	ICEConnectionStateCompleted

	// ICEConnectionStateDisconnected indicates a connection that has lost
	// its path but may recover. PeerConnection never reports it, since no
	// keepalives are sent to detect a lost path.
	ICEConnectionStateDisconnected

	// ICEConnectionStateFailed indicates connectivity could not be
	// established and will not recover without a restart.
	ICEConnectionStateFailed

	// ICEConnectionStateClosed indicates the ICE agent has been torn down.
	ICEConnectionStateClosed
)

const (
	iceConnectionStateNewStr          = "new"
	iceConnectionStateCheckingStr     = "checking"
	iceConnectionStateConnectedStr    = "connected"
	iceConnectionStateCompletedStr    = "completed"
	iceConnectionStateDisconnectedStr = "disconnected"
	iceConnectionStateFailedStr       = "failed"
	iceConnectionStateClosedStr       = "closed"
)

func (c ICEConnectionState) String() string {
	switch c {
	case ICEConnectionStateNew:
		return iceConnectionStateNewStr
	case ICEConnectionStateChecking:
		return iceConnectionStateCheckingStr
	case ICEConnectionStateConnected:
		return iceConnectionStateConnectedStr
	case ICEConnectionStateCompleted:
		return iceConnectionStateCompletedStr
	case ICEConnectionStateDisconnected:
		return iceConnectionStateDisconnectedStr
	case ICEConnectionStateFailed:
		return iceConnectionStateFailedStr
	case ICEConnectionStateClosed:
		return iceConnectionStateClosedStr
	default:
		return ErrUnknownType.Error()
	}
}

// iceConnectionStateFromGatheringAndLatch derives the coarse connection
// state this package exposes from internal/ice.Agent's own (narrower)
// gathering state plus whether a remote has latched, since internal/ice
// does not itself model the full RFC 8445 state machine.
func iceConnectionStateFromGatheringAndLatch(gathering ice.GatheringState, latched, closed, failed bool) ICEConnectionState {
	switch {
	case closed:
		return ICEConnectionStateClosed
	case failed:
		return ICEConnectionStateFailed
	case latched:
		return ICEConnectionStateCompleted
	case gathering == ice.GatheringStateComplete:
		return ICEConnectionStateChecking
	default:
		return ICEConnectionStateNew
	}
}
