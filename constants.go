package webrtc

import "github.com/pion/dtls/v3"

// Unknown is the zero value shared by this package's enum types for an
// unrecognized string.
const Unknown = 0

// unknownStr is what Unknown stringifies to across every enum in this
// package.
const unknownStr = "unknown"

const (
	// receiveMTU is sized to the common path UDP MTU.
	receiveMTU = 1460

	rtpOutboundMTU = 1200

	rtpPayloadTypeBitmask = 0x7F

	maxDataChannels = 65535
)

func defaultSrtpProtectionProfiles() []dtls.SRTPProtectionProfile {
	return []dtls.SRTPProtectionProfile{dtls.SRTP_AEAD_AES_256_GCM, dtls.SRTP_AEAD_AES_128_GCM, dtls.SRTP_AES128_CM_HMAC_SHA1_80}
}
