package ice

import "errors"

// Sentinel errors per spec §4.2/§7. None of these are fatal to the peer
// connection individually: gathering completes on whatever candidates
// succeeded, and the agent does not retry a failed ping on its own.
var (
	// ErrBindFailed is returned when a UDP socket could not be bound to any
	// port in the configured range.
	ErrBindFailed = errors.New("ice: failed to bind socket")

	// ErrNoInterfaces is returned when no usable local interface addresses
	// were found to gather host candidates from.
	ErrNoInterfaces = errors.New("ice: no usable local interfaces")

	// ErrStunDecodeError wraps a failure to decode an inbound STUN message.
	ErrStunDecodeError = errors.New("ice: failed to decode STUN message")

	// ErrRemoteCredentialsNotSet reports that remote ufrag/pwd have not
	// been learned from SDP. No Agent method returns it.
	ErrRemoteCredentialsNotSet = errors.New("ice: remote ufrag/pwd not set")

	// ErrClosed reports an operation on an agent that has been closed. No
	// Agent method returns it.
	ErrClosed = errors.New("ice: agent closed")

	// ErrPortRange is returned when rtp_end_port is less than rtp_start_port.
	ErrPortRange = errors.New("ice: invalid port range")
)
