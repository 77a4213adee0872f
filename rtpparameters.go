package webrtc

// RTPHeaderExtensionParameter is a negotiated header extension: the id a
// sender/receiver pair agreed on for one extmap URI.
type RTPHeaderExtensionParameter struct {
	ID  int
	URI string
}

// RTPParameters contains the RTP stack settings used by both senders and
// receivers: the negotiated codec list and header extension ids a
// transceiver's payloadMap/extMap were built from.
type RTPParameters struct {
	Codecs           []RTPCodecParameters
	HeaderExtensions []RTPHeaderExtensionParameter
}

// RTPEncodingParameters configures a single RTP encoding of a sender, as
// passed to addTransceiver via RTPTransceiverInit.
type RTPEncodingParameters struct {
	RTPCodingParameters
}

// RTPDecodingParameters configures a single RTP encoding a receiver
// expects to decode.
type RTPDecodingParameters struct {
	RTPCodingParameters
}
