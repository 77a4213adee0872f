package webrtc

// ICEParameters includes the ICE username fragment and password,
// negotiated once per session and re-advertised on every reinvite.
type ICEParameters struct {
	UsernameFragment string
	Password         string
}
