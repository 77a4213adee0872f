// Package sctpadapter wraps pion/sctp to provide the single SCTP
// association a session's data channels are multiplexed over. The
// association rides directly on the DTLS application-data pipe; callers
// get streams out of it via github.com/pion/datachannel, which layers
// DCEP open/ack framing on top of the raw SCTP stream this package hands
// back.
package sctpadapter

import (
	"net"

	"github.com/pion/logging"
	"github.com/pion/sctp"
)

// Association is the one SCTP association a PeerConnection's data
// channels ride on top of.
type Association struct {
	assoc *sctp.Association
}

// Client establishes the association as the active (DCEP "a=setup:active"
// equivalent on the SCTP side is moot; role here just follows the DTLS
// client/server split) side, over conn.
func Client(conn net.Conn, loggerFactory logging.LoggerFactory) (*Association, error) {
	assoc, err := sctp.Client(sctp.Config{NetConn: conn, LoggerFactory: loggerFactory})
	if err != nil {
		return nil, err
	}
	return &Association{assoc: assoc}, nil
}

// Server establishes the association as the passive side.
func Server(conn net.Conn, loggerFactory logging.LoggerFactory) (*Association, error) {
	assoc, err := sctp.Server(sctp.Config{NetConn: conn, LoggerFactory: loggerFactory})
	if err != nil {
		return nil, err
	}
	return &Association{assoc: assoc}, nil
}

// Raw exposes the underlying pion/sctp association for
// github.com/pion/datachannel's Dial/Accept, which need it directly to
// open or accept the per-channel stream and perform the DCEP handshake.
func (a *Association) Raw() *sctp.Association {
	return a.assoc
}

// MaxMessageSize reports the largest single SCTP user message this
// association will assemble, used to populate SCTPCapabilities.
func (a *Association) MaxMessageSize() uint32 {
	return uint32(a.assoc.MaxMessageSize())
}

// Close tears down the association and every stream riding on it.
func (a *Association) Close() error {
	return a.assoc.Close()
}
