package webrtc

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/nimbusrtc/webrtc/internal/ice"
)

// ICECandidate is the SDP-facing representation of one internal/ice
// candidate: a single transport address this endpoint (or the remote
// peer) can be reached at. Every candidate the core advertises or parses
// is a UDP candidate over one component, per spec §4.2's simplified model.
type ICECandidate struct {
	Foundation     string
	Priority       uint32
	Address        string
	Protocol       string
	Port           uint16
	Typ            ICECandidateType
	RelatedAddress string
	RelatedPort    uint16
}

// newICECandidateFromInternal renders an internal/ice.Candidate as its
// SDP-facing form, assigning it the given foundation (an opaque per-base
// grouping id, unique per distinct base address in this implementation).
func newICECandidateFromInternal(c *ice.Candidate, foundation string) (ICECandidate, error) {
	typ, err := newICECandidateType(c.Type.String())
	if err != nil {
		return ICECandidate{}, err
	}

	return ICECandidate{
		Foundation:     foundation,
		Priority:       c.Priority(),
		Address:        c.IP.String(),
		Protocol:       "udp",
		Port:           uint16(c.Port), //nolint:gosec
		Typ:            typ,
		RelatedAddress: c.RelatedAddress,
		RelatedPort:    uint16(c.RelatedPort), //nolint:gosec
	}, nil
}

// Marshal renders the a=candidate line body, RFC 5245 §15.1. Component is
// always 1: the core never splits RTP/RTCP onto separate components.
func (c ICECandidate) Marshal() string {
	s := fmt.Sprintf("%s 1 %s %d %s %d typ %s", c.Foundation, c.Protocol, c.Priority, c.Address, c.Port, c.Typ)
	if c.Typ != ICECandidateTypeHost && c.RelatedAddress != "" {
		s += fmt.Sprintf(" raddr %s rport %d", c.RelatedAddress, c.RelatedPort)
	}
	return s
}

// unmarshalICECandidate parses an a=candidate line body (without the
// leading "candidate:" key) per RFC 5245 §15.1.
func unmarshalICECandidate(raw string) (ICECandidate, error) {
	fields := strings.Fields(raw)
	if len(fields) < 8 {
		return ICECandidate{}, fmt.Errorf("webrtc: malformed candidate attribute: %s", raw)
	}

	priority, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return ICECandidate{}, fmt.Errorf("webrtc: malformed candidate priority: %w", err)
	}
	port, err := strconv.ParseUint(fields[5], 10, 16)
	if err != nil {
		return ICECandidate{}, fmt.Errorf("webrtc: malformed candidate port: %w", err)
	}
	typ, err := newICECandidateType(fields[7])
	if err != nil {
		return ICECandidate{}, err
	}

	c := ICECandidate{
		Foundation: fields[0],
		Protocol:   strings.ToLower(fields[2]),
		Priority:   uint32(priority),
		Address:    fields[4],
		Port:       uint16(port),
		Typ:        typ,
	}

	for i := 8; i+1 < len(fields); i += 2 {
		switch fields[i] {
		case "raddr":
			c.RelatedAddress = fields[i+1]
		case "rport":
			if rport, rerr := strconv.ParseUint(fields[i+1], 10, 16); rerr == nil {
				c.RelatedPort = uint16(rport)
			}
		}
	}

	return c, nil
}

// toInternal converts the SDP-facing candidate back to the address form
// the ICE agent dials, for a remote candidate learned from SDP.
func (c ICECandidate) toInternal() (*ice.Candidate, error) {
	typ, err := iceCandidateTypeToInternal(c.Typ)
	if err != nil {
		return nil, err
	}

	return &ice.Candidate{
		Type:           typ,
		IP:             net.ParseIP(c.Address),
		Port:           int(c.Port),
		RelatedAddress: c.RelatedAddress,
		RelatedPort:    int(c.RelatedPort),
	}, nil
}

func iceCandidateTypeToInternal(t ICECandidateType) (ice.CandidateType, error) {
	switch t {
	case ICECandidateTypeHost:
		return ice.CandidateTypeHost, nil
	case ICECandidateTypeSrflx:
		return ice.CandidateTypeServerReflexive, nil
	case ICECandidateTypePrflx:
		return ice.CandidateTypePeerReflexive, nil
	default:
		return 0, fmt.Errorf("webrtc: unsupported ICE candidate type for dial: %s", t)
	}
}
