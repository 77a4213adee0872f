// +build !js

package webrtc

import (
	"fmt"

	"github.com/nimbusrtc/webrtc/internal/ice"
)

// ICEGatherer wraps the underlying internal/ice.Agent with the narrow
// surface sdp.go needs to serialize gathered candidates into an SDP
// media description: a foundation assignment per distinct base address
// and conversion to the SDP-facing ICECandidate form.
type ICEGatherer struct {
	agent *ice.Agent
}

// newICEGatherer wraps an already-constructed agent.
func newICEGatherer(agent *ice.Agent) *ICEGatherer {
	return &ICEGatherer{agent: agent}
}

// GetLocalParameters returns the ufrag/password the agent advertises to
// the remote side; every media section of a local offer or answer shares
// this one set of credentials.
func (g *ICEGatherer) GetLocalParameters() ICEParameters {
	ufrag, pwd := g.agent.LocalCredentials()
	return ICEParameters{UsernameFragment: ufrag, Password: pwd}
}

// GetLocalCandidates returns every candidate the agent has gathered so
// far, each assigned a foundation unique to its underlying base address
// (RFC 5245 §4.1.1.3: candidates sharing a base get the same foundation).
func (g *ICEGatherer) GetLocalCandidates() ([]ICECandidate, error) {
	foundations := map[string]string{}
	nextFoundation := 1

	candidates := g.agent.LocalCandidates()
	out := make([]ICECandidate, 0, len(candidates))
	for _, c := range candidates {
		base := fmt.Sprintf("%s:%d", c.IP.String(), c.Port)
		foundation, ok := foundations[base]
		if !ok {
			foundation = fmt.Sprintf("%d", nextFoundation)
			foundations[base] = foundation
			nextFoundation++
		}

		sdpCandidate, err := newICECandidateFromInternal(c, foundation)
		if err != nil {
			return nil, err
		}
		out = append(out, sdpCandidate)
	}
	return out, nil
}
