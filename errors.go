// Package webrtc implements the error taxonomy of spec §7. Each kind wraps
// an underlying cause so callers can both pattern-match the kind (with
// errors.As) and recover the original reason (with errors.Unwrap/%w).
package webrtc

import (
	"errors"
	"fmt"
)

// ParseError reports a malformed SDP, STUN, RTP, or RTCP datum. Never
// fatal to the session: the offending datum is dropped and the caller
// (packet plane) continues.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string { return fmt.Sprintf("webrtc: parse error: %v", e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// InvalidStateError indicates an operation was attempted in the wrong
// signaling or ICE state (e.g. a remote offer during HaveLocalOffer).
type InvalidStateError struct {
	Err error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("webrtc: invalid state: %v", e.Err)
}
func (e *InvalidStateError) Unwrap() error { return e.Err }

// IOError wraps a socket failure; sustained IOErrors escalate the ICE
// connection state to Failed.
type IOError struct {
	Err error
}

func (e *IOError) Error() string { return fmt.Sprintf("webrtc: io: %v", e.Err) }
func (e *IOError) Unwrap() error { return e.Err }

// HandshakeFailedError comes from the secure transport and moves ICE to
// Failed.
type HandshakeFailedError struct {
	Err error
}

func (e *HandshakeFailedError) Error() string {
	return fmt.Sprintf("webrtc: handshake failed: %v", e.Err)
}
func (e *HandshakeFailedError) Unwrap() error { return e.Err }

// Sentinel errors: the leaves of the taxonomy that do not need a wrapped
// cause, matching the teacher's "typed error + plain sentinel" mix.
var (
	// ErrClosed is returned by any operation on a torn-down peer connection.
	ErrClosed = errors.New("webrtc: connection closed")

	// ErrUnknownPayload is logged and the packet dropped: no payloadMap
	// entry matches the RTP packet's payload type.
	ErrUnknownPayload = errors.New("webrtc: unknown payload type")

	// ErrUnknownExtension is logged and the element dropped: no extMap
	// entry matches the RTP extension id (ignored rather than fatal).
	ErrUnknownExtension = errors.New("webrtc: unknown extension id")

	// ErrBufferFull is returned to the caller of Send/SendData under
	// backpressure; the caller may retry.
	ErrBufferFull = errors.New("webrtc: send buffer full")

	// ErrRemoteNotSet is returned by Send before latching or SDP candidate
	// exchange has established a remote address.
	ErrRemoteNotSet = errors.New("webrtc: remote address not set")

	// ErrNoConfig indicates NewPeerConnection was called with a nil
	// configuration.
	ErrNoConfig = errors.New("webrtc: no configuration provided")

	// ErrExistingTrack indicates addTrack was called with a track already
	// bound to a sender.
	ErrExistingTrack = errors.New("webrtc: track already exists")

	// ErrMaxDataChannels indicates the per-connection data channel limit
	// was reached.
	ErrMaxDataChannels = errors.New("webrtc: maximum number of data channels reached")

	// ErrUnknownType is the fallback String() value across this package's
	// many small enum types.
	ErrUnknownType = errors.New("unknown")

	// ErrDataChannelNotOpen is returned by Send/SendText when the data
	// channel's readyState is not Open.
	ErrDataChannelNotOpen = errors.New("webrtc: data channel not open")

	// ErrStringSizeLimit indicates a data channel label exceeded the
	// 65535-byte limit imposed by the DCEP wire format.
	ErrStringSizeLimit = errors.New("webrtc: data channel string size limit exceeded")

	// ErrRetransmitsOrPacketLifeTime indicates a DataChannelInit set both
	// MaxRetransmits and MaxPacketLifeTime, which are mutually exclusive
	// reliability modes.
	ErrRetransmitsOrPacketLifeTime = errors.New("webrtc: cannot set both MaxPacketLifeTime and MaxRetransmits")

	// ErrMaxDataChannelID indicates generateDataChannelID exhausted the
	// id space for the requested parity.
	ErrMaxDataChannelID = errors.New("webrtc: no available data channel id")

	// ErrNoRemoteDescription indicates CreateAnswer was called before
	// SetRemoteDescription supplied an offer to answer.
	ErrNoRemoteDescription = errors.New("webrtc: no remote description set")
)

// Internal sentinels: implementation-detail errors below the §7 taxonomy,
// wrapped in a ParseError/InvalidStateError by their callers where that
// taxonomy applies.
var (
	// ErrCodecNotFound indicates no negotiated codec matches a payload
	// type or a TrackLocal's requested capability.
	ErrCodecNotFound = errors.New("webrtc: codec not found")

	// ErrNoPayloaderForCodec indicates mediaEngine has no RTP payloader
	// registered for a codec's MIME type.
	ErrNoPayloaderForCodec = errors.New("webrtc: no payloader for codec")

	// ErrUnsupportedCodec indicates a TrackLocal's codec was not present
	// in the remote's negotiated capabilities at Bind time.
	ErrUnsupportedCodec = errors.New("webrtc: unsupported codec")

	// ErrUnbindFailed indicates Unbind was called for a context the
	// TrackLocal never bound.
	ErrUnbindFailed = errors.New("webrtc: unbind failed: track not bound to this context")

	// ErrSDPUnmarshalling wraps a session description that failed to
	// parse as SDP.
	ErrSDPUnmarshalling = errors.New("webrtc: failed to unmarshal SDP")

	// ErrSessionDescriptionNoFingerprint indicates setRemoteDescription
	// received a secure-mode offer/answer with no a=fingerprint line.
	ErrSessionDescriptionNoFingerprint = errors.New("webrtc: session description has no fingerprint")

	// ErrSessionDescriptionInvalidFingerprint indicates an a=fingerprint
	// line that does not parse as "algorithm hex-bytes".
	ErrSessionDescriptionInvalidFingerprint = errors.New("webrtc: session description has invalid fingerprint")

	// ErrSessionDescriptionConflictingFingerprints indicates more than one
	// distinct a=fingerprint value across the session description's
	// sections.
	ErrSessionDescriptionConflictingFingerprints = errors.New("webrtc: session description has conflicting fingerprints")

	// ErrSessionDescriptionMissingIceUfrag indicates a media section with
	// no a=ice-ufrag and none inherited from the session level.
	ErrSessionDescriptionMissingIceUfrag = errors.New("webrtc: session description is missing ice-ufrag")

	// ErrSessionDescriptionMissingIcePwd indicates a media section with no
	// a=ice-pwd and none inherited from the session level.
	ErrSessionDescriptionMissingIcePwd = errors.New("webrtc: session description is missing ice-pwd")

	// ErrSessionDescriptionConflictingIceUfrag indicates more than one
	// distinct a=ice-ufrag value across media sections.
	ErrSessionDescriptionConflictingIceUfrag = errors.New("webrtc: session description has conflicting ice-ufrag values")

	// ErrSessionDescriptionConflictingIcePwd indicates more than one
	// distinct a=ice-pwd value across media sections.
	ErrSessionDescriptionConflictingIcePwd = errors.New("webrtc: session description has conflicting ice-pwd values")

	// errRTPSenderTrackNil indicates NewRTPSender was called with a nil
	// TrackLocal.
	errRTPSenderTrackNil = errors.New("webrtc: track is nil")

	// errRTPSenderDTLSTransportNil indicates NewRTPSender was called with
	// a nil DTLSTransport.
	errRTPSenderDTLSTransportNil = errors.New("webrtc: DTLSTransport must not be nil")

	// errRTPSenderSendAlreadyCalled indicates Send was called a second
	// time on the same RTPSender.
	errRTPSenderSendAlreadyCalled = errors.New("webrtc: Send has already been called")

	// errSDPZeroTransceivers indicates populateSDP was asked to serialize
	// a media section with no transceivers assigned to it.
	errSDPZeroTransceivers = errors.New("webrtc: cannot generate SDP, no transceivers assigned to media section")

	// errSDPMediaSectionMediaDataChanInvalid indicates a mediaSection was
	// marked both as the data channel section and as carrying
	// transceivers, which is never valid.
	errSDPMediaSectionMediaDataChanInvalid = errors.New("webrtc: invalid media section, data and transceivers are mutually exclusive")

	// errSDPMediaSectionMultipleTrackInvalid indicates a mediaSection
	// carries more than one transceiver outside Plan B.
	errSDPMediaSectionMultipleTrackInvalid = errors.New("webrtc: invalid media section, multiple tracks in one media section requires Plan B")

	// errSDPParseExtMap wraps a malformed a=extmap attribute.
	errSDPParseExtMap = errors.New("webrtc: failed to parse extmap")

	// errSDPRemoteDescriptionChangedExtMap indicates a remote description
	// changed the id assigned to an already-negotiated extmap URI.
	errSDPRemoteDescriptionChangedExtMap = errors.New("webrtc: remote description changed an already-negotiated extmap")
)
