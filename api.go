// +build !js

package webrtc

import "github.com/pion/interceptor"

// API bundles the construction-time collaborators a PeerConnection needs
// beyond its Configuration: the codec registry and the interceptor chain
// senders/receivers run RTP and RTCP through. Most callers never
// construct one directly; NewPeerConnection builds a default API
// internally.
type API struct {
	mediaEngine *MediaEngine
	interceptor interceptor.Interceptor
}

// NewAPI creates an API with every option applied, defaulting any
// collaborator left unset.
func NewAPI(options ...func(*API)) *API {
	a := &API{}

	for _, o := range options {
		o(a)
	}

	if a.mediaEngine == nil {
		a.mediaEngine = &MediaEngine{}
	}

	if a.interceptor == nil {
		a.interceptor = &interceptor.NoOp{}
	}

	return a
}

// WithMediaEngine allows providing a MediaEngine to the API.
// Settings should not be changed after passing the engine to an API.
func WithMediaEngine(m MediaEngine) func(a *API) {
	return func(a *API) {
		a.mediaEngine = &m
	}
}

// WithInterceptorRegistry installs the built interceptor chain (NACK,
// stats, etc.) every sender/receiver this API constructs will run RTP
// and RTCP through.
func WithInterceptorRegistry(r *interceptor.Registry) func(a *API) {
	return func(a *API) {
		a.interceptor = r.Build("")
	}
}
