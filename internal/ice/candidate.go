// Package ice implements the minimal Interactive Connectivity
// Establishment agent of spec §4.2: host candidate gathering (no
// server-reflexive candidates), Binding Request/Response STUN, and address
// latching. It does
// not implement RFC 8445's full candidate pairing and nomination state
// machine; the core runs exactly one working remote address per
// connection, adopted either from SDP or by latching.
package ice

import (
	"fmt"
	"net"
)

// CandidateType distinguishes how a candidate's address was discovered.
type CandidateType int

const (
	// CandidateTypeHost is a candidate bound directly to a local interface.
	CandidateTypeHost CandidateType = iota + 1
	// CandidateTypeServerReflexive is a candidate learned from a STUN server.
	CandidateTypeServerReflexive
	// CandidateTypePeerReflexive is a candidate learned from an
	// authenticated inbound Binding Request from an address not already on
	// file (§4.2's peer-reflexive migration).
	CandidateTypePeerReflexive
)

func (t CandidateType) String() string {
	switch t {
	case CandidateTypeHost:
		return "host"
	case CandidateTypeServerReflexive:
		return "srflx"
	case CandidateTypePeerReflexive:
		return "prflx"
	default:
		return "unknown"
	}
}

// candidateTypePreference mirrors RFC 8445 §5.1.2.1's recommended type
// preferences, used only to order candidates within SDP; the core does not
// run a full pairing/nomination algorithm over them.
var candidateTypePreference = map[CandidateType]uint32{
	CandidateTypeHost:            126,
	CandidateTypePeerReflexive:   110,
	CandidateTypeServerReflexive: 100,
}

// Candidate is one transport address the agent can be reached at.
type Candidate struct {
	Type CandidateType
	IP   net.IP
	Port int

	// RelatedAddress/RelatedPort are set for reflexive candidates: the base
	// address they were observed relative to.
	RelatedAddress string
	RelatedPort    int

	// conn is the local socket the candidate listens on, nil for
	// peer-reflexive candidates (they are only ever remote bookkeeping).
	conn *net.UDPConn
}

// Priority computes the RFC 8445 §5.1.2.1 candidate priority, used purely
// for SDP ordering in this implementation; component is always 1 since the
// core does not split RTP/RTCP onto separate components.
func (c *Candidate) Priority() uint32 {
	typePref := candidateTypePreference[c.Type]
	const localPref = 65535
	const component = 1
	return (typePref << 24) | (localPref << 8) | (256 - component)
}

func (c *Candidate) String() string {
	return fmt.Sprintf("%s candidate %s:%d", c.Type, c.IP, c.Port)
}

// Addr returns the candidate's transport address.
func (c *Candidate) Addr() *net.UDPAddr {
	return &net.UDPAddr{IP: c.IP, Port: c.Port}
}

// SDPAttribute renders the a=candidate line body for this candidate, per
// RFC 5245 §15.1, for the priority-ordering fields the core's SDP model
// round-trips; every candidate here is a UDP candidate over component 1.
func (c *Candidate) SDPAttribute(foundation int) string {
	base := fmt.Sprintf("%d 1 udp %d %s %d typ %s", foundation, c.Priority(), c.IP, c.Port, c.Type)
	if c.Type != CandidateTypeHost && c.RelatedAddress != "" {
		base += fmt.Sprintf(" raddr %s rport %d", c.RelatedAddress, c.RelatedPort)
	}
	return base
}
