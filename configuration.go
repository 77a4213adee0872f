package webrtc

import "fmt"

// TransportMode names whether media and data travel over the secure
// transport (DTLS/SRTP) or in the clear. PeerConnection does not read it:
// every connection runs the DTLS handshake and SRTP whatever its value.
type TransportMode int

const (
	// TransportModeSecure runs the DTLS handshake and encrypts RTP/RTCP
	// with the negotiated SRTP keys. The default and only mode safe for a
	// public network.
	TransportModeSecure TransportMode = iota + 1
	// TransportModeRtp names plain RTP/RTCP without the secure transport.
	// Selecting it does not change behaviour: the DTLS handshake and SRTP
	// still run.
	TransportModeRtp
)

func (m TransportMode) String() string {
	switch m {
	case TransportModeSecure:
		return "secure"
	case TransportModeRtp:
		return "rtp"
	default:
		return "unknown"
	}
}

// CodecCapability describes one codec this endpoint is willing to send or
// receive, per the `media_capabilities` configuration knob.
type CodecCapability struct {
	PayloadType PayloadType
	CodecName   string
	ClockRate   uint32
	Channels    uint16
	Fmtp        string
	RTCPFeedback []RTCPFeedback
}

// MediaCapabilities splits the configured codec lists by kind, mirroring
// the audio/video split the SDP offer/answer machinery needs when it
// builds m= sections.
type MediaCapabilities struct {
	Audio []CodecCapability
	Video []CodecCapability
}

// Configuration bundles every construction-time knob a PeerConnection
// needs: codec capabilities, transport mode, ICE/latching behavior, and
// the local bind address/port range the ICE agent gathers host
// candidates from. This plays the role the teacher split across
// Configuration and SettingEngine; this project folds both into one
// value since nothing here is renegotiable after NewPeerConnection.
type Configuration struct {
	MediaCapabilities MediaCapabilities

	// TransportMode defaults to TransportModeSecure when left zero.
	TransportMode TransportMode

	// EnableLatching accepts the first inbound datagram's source address
	// as the working remote address instead of requiring a candidate from
	// SDP; see internal/ice's latching behavior.
	EnableLatching bool

	// BindIP restricts host candidate gathering to a single local
	// address; empty means gather on every non-loopback interface.
	BindIP string

	// RTPStartPort/RTPEndPort bound the UDP port range the ICE agent
	// allocates sockets from, inclusive. Zero on both means unrestricted.
	RTPStartPort uint16
	RTPEndPort   uint16
}

// resolvedTransportMode returns the effective mode, defaulting the zero
// value to Secure so a Configuration{} literal is safe to use directly.
func (c Configuration) resolvedTransportMode() TransportMode {
	if c.TransportMode == 0 {
		return TransportModeSecure
	}
	return c.TransportMode
}

// validate checks the invariants NewPeerConnection relies on: a port
// range, if given at all, must be non-empty and ordered.
func (c Configuration) validate() error {
	if c.RTPStartPort != 0 || c.RTPEndPort != 0 {
		if c.RTPStartPort == 0 || c.RTPEndPort == 0 || c.RTPStartPort > c.RTPEndPort {
			return &InvalidStateError{Err: fmt.Errorf("invalid rtp port range [%d, %d]", c.RTPStartPort, c.RTPEndPort)}
		}
	}
	return nil
}
