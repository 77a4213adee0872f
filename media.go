package webrtc

import "time"

// MediaSample is the tagged-union sample type tracks exchange with the
// application: the payload bytes of one RTP packet (or a reassembled
// frame boundary for video), annotated with enough metadata to
// re-packetize without the application touching RTP directly.
type MediaSample struct {
	Kind MediaSampleKind

	Data        []byte
	Duration    time.Duration
	RTPTimestamp uint32
	PayloadType PayloadType

	// IsLastPacket marks the final RTP packet of a video frame (mirrors
	// the RTP marker bit); always true for audio samples.
	IsLastPacket bool

	// PrevDroppedPackets lets a sender skip sequence numbers for packets
	// the caller knows were dropped upstream, keeping RTCP loss stats
	// honest without re-deriving them here.
	PrevDroppedPackets uint16
}

// MediaSampleKind distinguishes an audio sample from a video sample,
// mirroring the spec's Audio(AudioFrame) | Video(VideoFrame) union.
type MediaSampleKind int

const (
	// MediaSampleKindAudio tags a sample drawn from an audio track.
	MediaSampleKindAudio MediaSampleKind = iota + 1
	// MediaSampleKindVideo tags a sample drawn from a video track; only
	// video samples carry a meaningful IsLastPacket value across more
	// than one RTP packet per sample.
	MediaSampleKindVideo
)
