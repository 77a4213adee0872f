package webrtc

import "github.com/pion/rtp"

// PayloadType identifies a codec within one RTP session, as negotiated
// in SDP's a=rtpmap lines. Transceiver.payloadMap is keyed by this type.
type PayloadType uint8

// SSRC identifies one RTP synchronization source. A transceiver's
// receiver latches onto the first SSRC it sees for a given mid and
// keeps that binding until an explicit rebind (reinvite with a changed
// a=ssrc).
type SSRC uint32

// TrackLocal is a track this endpoint sends samples on. Bind is called
// once per PeerConnection the track is attached to, each time supplying
// the negotiated codec and a writer scoped to that connection; Unbind
// tears the association down.
type TrackLocal interface {
	Bind(TrackLocalContext) (RTPCodecParameters, error)
	Unbind(TrackLocalContext) error
	ID() string
	StreamID() string
	Kind() RTPCodecType
}

// TrackLocalWriter is the per-connection destination a bound TrackLocal
// writes RTP to; backed by the connection's SRTP write stream.
type TrackLocalWriter interface {
	WriteRTP(header *rtp.Header, payload []byte) (int, error)
	Write(b []byte) (int, error)
}

// TrackLocalContext is handed to a TrackLocal's Bind/Unbind: the
// negotiated SSRC/payload type for this connection, the codec
// capabilities the remote side offered, and the writer to send on.
type TrackLocalContext struct {
	id          string
	params      []RTPCodecParameters
	ssrc        SSRC
	writeStream TrackLocalWriter
}

// ID returns the per-connection binding identifier (distinct from the
// TrackLocal's own ID when a track is shared across connections).
func (t *TrackLocalContext) ID() string { return t.id }

// CodecParameters returns the remote side's negotiated codec list for
// this context's media kind, for Bind to fuzzy-match against.
func (t *TrackLocalContext) CodecParameters() []RTPCodecParameters { return t.params }

// SSRC returns the SSRC this TrackLocal must stamp onto outbound packets
// for this connection.
func (t *TrackLocalContext) SSRC() SSRC { return t.ssrc }

// WriteStream returns the writer Bind should cache for WriteRTP calls.
func (t *TrackLocalContext) WriteStream() TrackLocalWriter { return t.writeStream }
