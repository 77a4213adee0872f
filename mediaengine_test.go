// +build !js

package webrtc

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaEngine_RegisterDefaultCodecs(t *testing.T) {
	m := MediaEngine{}
	assert.NoError(t, m.RegisterDefaultCodecs())

	audio := m.GetCodecsByKind(RTPCodecTypeAudio)
	assert.NotEmpty(t, audio)

	video := m.GetCodecsByKind(RTPCodecTypeVideo)
	assert.NotEmpty(t, video)
}

func TestMediaEngine_RegisterCodec_PayloadTypeLookup(t *testing.T) {
	api := NewAPI()
	assert.NoError(t, api.mediaEngine.RegisterDefaultCodecs())

	_, _, err := api.mediaEngine.getCodecByPayload(111)
	assert.NoError(t, err)

	_, _, err = api.mediaEngine.getCodecByPayload(255)
	assert.ErrorIs(t, err, ErrCodecNotFound)
}

// pion/webrtc#1078
func TestOpusCase(t *testing.T) {
	pc, err := NewPeerConnection(Configuration{})
	assert.NoError(t, err)

	_, err = pc.AddTransceiverFromKind(RTPCodecTypeAudio)
	assert.NoError(t, err)

	offer, err := pc.CreateOffer(nil)
	assert.NoError(t, err)

	assert.True(t, regexp.MustCompile(`(?m)^a=rtpmap:\d+ opus/48000/2`).MatchString(offer.SDP))
	assert.NoError(t, pc.Close())
}
