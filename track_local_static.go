// +build !js

package webrtc

import (
	"strings"
	"sync"

	"github.com/pion/rtp"
)

// trackBinding is a single bind for a Track. Bind can be called multiple
// times (once per PeerConnection the track is attached to); this stores
// the result of a single bind call so it can be used when writing.
type trackBinding struct {
	id          string
	ssrc        SSRC
	payloadType PayloadType
	writeStream TrackLocalWriter
}

// TrackLocalStaticRTP is a TrackLocal that has a pre-set codec and
// accepts already-packetized RTP. If you wish to send a MediaSample use
// TrackLocalStaticSample instead.
type TrackLocalStaticRTP struct {
	mu           sync.RWMutex
	bindings     []trackBinding
	codec        RTPCodecCapability
	id, streamID string
}

// NewTrackLocalStaticRTP returns a TrackLocalStaticRTP.
func NewTrackLocalStaticRTP(c RTPCodecCapability, id, streamID string) (*TrackLocalStaticRTP, error) {
	return &TrackLocalStaticRTP{
		codec:    c,
		bindings: []trackBinding{},
		id:       id,
		streamID: streamID,
	}, nil
}

// Bind is called by the PeerConnection after negotiation is complete.
// This asserts that the codec requested is supported by the remote peer
// and, if so, sets up the state (SSRC and PayloadType) needed to write.
func (s *TrackLocalStaticRTP) Bind(t TrackLocalContext) (RTPCodecParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parameters := RTPCodecParameters{RTPCodecCapability: s.codec}
	codec, matchType := codecParametersFuzzySearch(parameters, t.CodecParameters())
	if matchType == codecMatchNone {
		return RTPCodecParameters{}, ErrUnsupportedCodec
	}

	s.bindings = append(s.bindings, trackBinding{
		ssrc:        t.SSRC(),
		payloadType: codec.PayloadType,
		writeStream: t.WriteStream(),
		id:          t.ID(),
	})
	return codec, nil
}

// Unbind implements the teardown logic for when the track is no longer
// needed by one connection (renegotiation removed it, or the connection
// closed).
func (s *TrackLocalStaticRTP) Unbind(t TrackLocalContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.bindings {
		if s.bindings[i].id == t.ID() {
			s.bindings[i] = s.bindings[len(s.bindings)-1]
			s.bindings = s.bindings[:len(s.bindings)-1]
			return nil
		}
	}

	return ErrUnbindFailed
}

// ID is the unique identifier for this Track, commonly "audio" or
// "video"; StreamID groups tracks that should play in sync.
func (s *TrackLocalStaticRTP) ID() string { return s.id }

// StreamID is the group this track belongs to.
func (s *TrackLocalStaticRTP) StreamID() string { return s.streamID }

// Kind reports whether this TrackLocal is audio or video, derived from
// its codec's MIME type.
func (s *TrackLocalStaticRTP) Kind() RTPCodecType {
	switch {
	case strings.HasPrefix(s.codec.MimeType, "audio/"):
		return RTPCodecTypeAudio
	case strings.HasPrefix(s.codec.MimeType, "video/"):
		return RTPCodecTypeVideo
	default:
		return RTPCodecType(0)
	}
}

// Codec returns this track's codec capability.
func (s *TrackLocalStaticRTP) Codec() RTPCodecCapability { return s.codec }

// rtpPacketPool recycles *rtp.Packet across WriteRTP calls.
// nolint:gochecknoglobals
var rtpPacketPool = sync.Pool{
	New: func() interface{} {
		return &rtp.Packet{}
	},
}

// WriteRTP writes an RTP packet to every connection this track is bound
// to. A write failure on one connection does not stop writes to others;
// the last error observed is returned.
func (s *TrackLocalStaticRTP) WriteRTP(p *rtp.Packet) error {
	ipacket := rtpPacketPool.Get()
	packet, _ := ipacket.(*rtp.Packet)
	defer func() {
		*packet = rtp.Packet{}
		rtpPacketPool.Put(ipacket)
	}()
	*packet = *p
	return s.writeRTP(packet)
}

// writeRTP is like WriteRTP, except it may modify the packet p.
func (s *TrackLocalStaticRTP) writeRTP(p *rtp.Packet) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lastErr error
	for _, b := range s.bindings {
		p.Header.SSRC = uint32(b.ssrc)
		p.Header.PayloadType = uint8(b.payloadType)
		if _, err := b.writeStream.WriteRTP(&p.Header, p.Payload); err != nil {
			lastErr = err
		}
	}

	return lastErr
}

// Write writes an RTP packet, given as a marshaled buffer, to the track.
func (s *TrackLocalStaticRTP) Write(b []byte) (n int, err error) {
	ipacket := rtpPacketPool.Get()
	packet, _ := ipacket.(*rtp.Packet)
	defer func() {
		*packet = rtp.Packet{}
		rtpPacketPool.Put(ipacket)
	}()

	if err = packet.Unmarshal(b); err != nil {
		return 0, err
	}

	return len(b), s.writeRTP(packet)
}

// TrackLocalStaticSample is a TrackLocal that has a pre-set codec and
// accepts MediaSamples, packetizing them itself. If you wish to write
// already-packetized RTP use TrackLocalStaticRTP instead.
type TrackLocalStaticSample struct {
	packetizer rtp.Packetizer
	sequencer  rtp.Sequencer
	rtpTrack   *TrackLocalStaticRTP
	clockRate  float64
}

// NewTrackLocalStaticSample returns a TrackLocalStaticSample.
func NewTrackLocalStaticSample(c RTPCodecCapability, id, streamID string) (*TrackLocalStaticSample, error) {
	rtpTrack, err := NewTrackLocalStaticRTP(c, id, streamID)
	if err != nil {
		return nil, err
	}

	return &TrackLocalStaticSample{rtpTrack: rtpTrack}, nil
}

// ID is the unique identifier for this Track.
func (s *TrackLocalStaticSample) ID() string { return s.rtpTrack.ID() }

// StreamID is the group this track belongs to.
func (s *TrackLocalStaticSample) StreamID() string { return s.rtpTrack.StreamID() }

// Kind reports whether this TrackLocal is audio or video.
func (s *TrackLocalStaticSample) Kind() RTPCodecType { return s.rtpTrack.Kind() }

// Codec returns this track's codec capability.
func (s *TrackLocalStaticSample) Codec() RTPCodecCapability { return s.rtpTrack.Codec() }

// Bind is called by the PeerConnection after negotiation is complete; it
// also lazily constructs the one packetizer this track needs (a track is
// packetized once, even if bound to several connections, since the
// payload type is carried per-packet by writeRTP, not by the
// packetizer).
func (s *TrackLocalStaticSample) Bind(t TrackLocalContext) (RTPCodecParameters, error) {
	codec, err := s.rtpTrack.Bind(t)
	if err != nil {
		return codec, err
	}

	s.rtpTrack.mu.Lock()
	defer s.rtpTrack.mu.Unlock()

	if s.packetizer != nil {
		return codec, nil
	}

	payloader, err := payloaderForCodec(codec.RTPCodecCapability)
	if err != nil {
		return codec, err
	}

	s.sequencer = rtp.NewRandomSequencer()
	s.packetizer = rtp.NewPacketizer(
		rtpOutboundMTU,
		0, // payload type is overwritten per binding in writeRTP
		0, // SSRC is overwritten per binding in writeRTP
		payloader,
		s.sequencer,
		codec.ClockRate,
	)
	s.clockRate = float64(codec.RTPCodecCapability.ClockRate)
	return codec, nil
}

// Unbind tears down the association from one connection; the shared
// packetizer is kept for any connections still bound.
func (s *TrackLocalStaticSample) Unbind(t TrackLocalContext) error {
	return s.rtpTrack.Unbind(t)
}

// WriteSample packetizes a MediaSample and writes the resulting RTP
// packets to every connection this track is bound to.
func (s *TrackLocalStaticSample) WriteSample(sample MediaSample) error {
	s.rtpTrack.mu.RLock()
	p := s.packetizer
	clockRate := s.clockRate
	s.rtpTrack.mu.RUnlock()

	if p == nil {
		return nil
	}

	for i := uint16(0); i < sample.PrevDroppedPackets; i++ {
		s.sequencer.NextSequenceNumber()
	}

	samples := uint32(sample.Duration.Seconds() * clockRate)
	packets := p.Packetize(sample.Data, samples)

	var lastErr error
	for i, pkt := range packets {
		if i == len(packets)-1 {
			pkt.Header.Marker = sample.IsLastPacket
		}
		if err := s.rtpTrack.WriteRTP(pkt); err != nil {
			lastErr = err
		}
	}

	return lastErr
}
