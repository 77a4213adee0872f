// +build !js

package webrtc

import (
	"net"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/nimbusrtc/webrtc/sctpadapter"
)

// SCTPTransport is the data-channel transport collaborator: one SCTP
// association, established once the DTLS handshake completes, that every
// DataChannel's stream is opened on.
type SCTPTransport struct {
	mu sync.RWMutex

	dtlsTransport *DTLSTransport
	association   *sctpadapter.Association

	state SCTPTransportState

	onDataChannelHandler func(*DataChannel)

	log logging.LeveledLogger
}

// SCTPTransportState mirrors the association's lifecycle.
type SCTPTransportState int

const (
	// SCTPTransportStateConnecting is before the association handshake.
	SCTPTransportStateConnecting SCTPTransportState = iota + 1
	// SCTPTransportStateConnected is once the association is up.
	SCTPTransportStateConnected
	// SCTPTransportStateClosed is after Stop.
	SCTPTransportStateClosed
)

// newSCTPTransportState parses the wire string form of SCTPTransportState.
func newSCTPTransportState(raw string) SCTPTransportState {
	switch raw {
	case "connecting":
		return SCTPTransportStateConnecting
	case "connected":
		return SCTPTransportStateConnected
	case "closed":
		return SCTPTransportStateClosed
	default:
		return SCTPTransportState(Unknown)
	}
}

func (s SCTPTransportState) String() string {
	switch s {
	case SCTPTransportStateConnecting:
		return "connecting"
	case SCTPTransportStateConnected:
		return "connected"
	case SCTPTransportStateClosed:
		return "closed"
	default:
		return unknownStr
	}
}

func newSCTPTransport(dtlsTransport *DTLSTransport, log logging.LeveledLogger) *SCTPTransport {
	return &SCTPTransport{
		dtlsTransport: dtlsTransport,
		state:         SCTPTransportStateConnecting,
		log:           log,
	}
}

// OnDataChannel sets the handler invoked for each data channel the
// association accepts (one opened by the remote).
func (t *SCTPTransport) OnDataChannel(f func(*DataChannel)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onDataChannelHandler = f
}

// Start brings up the SCTP association in the given DTLS role (client
// initiates, server accepts, matching a=setup:active/passive) and begins
// accepting remotely-opened data channels.
func (t *SCTPTransport) Start(client bool) error {
	conn := &dtlsApplicationConn{transport: t.dtlsTransport}

	var assoc *sctpadapter.Association
	var err error
	if client {
		assoc, err = sctpadapter.Client(conn, logging.NewDefaultLoggerFactory())
	} else {
		assoc, err = sctpadapter.Server(conn, logging.NewDefaultLoggerFactory())
	}
	if err != nil {
		return &HandshakeFailedError{Err: err}
	}

	t.mu.Lock()
	t.association = assoc
	t.state = SCTPTransportStateConnected
	t.mu.Unlock()

	go t.acceptLoop()
	return nil
}

func (t *SCTPTransport) acceptLoop() {
	for {
		t.mu.RLock()
		assoc := t.association
		t.mu.RUnlock()
		if assoc == nil {
			return
		}

		d, err := acceptDataChannel(assoc)
		if err != nil {
			return
		}

		t.mu.RLock()
		hdlr := t.onDataChannelHandler
		t.mu.RUnlock()
		if hdlr != nil {
			go hdlr(d)
		}
	}
}

// State reports the association's lifecycle state.
func (t *SCTPTransport) State() SCTPTransportState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

// MaxChannels is the largest data channel id this association supports,
// bounded by the SCTP stream identifier space.
func (t *SCTPTransport) MaxChannels() uint16 {
	return maxDataChannels
}

// Stop tears down the association.
func (t *SCTPTransport) Stop() error {
	t.mu.Lock()
	assoc := t.association
	t.state = SCTPTransportStateClosed
	t.mu.Unlock()

	if assoc == nil {
		return nil
	}
	return assoc.Close()
}

// dtlsApplicationConn adapts DTLSTransport's application-data read/write
// pair to net.Conn, the shape sctpadapter.Client/Server (and so
// pion/sctp) require.
type dtlsApplicationConn struct {
	transport *DTLSTransport
}

func (c *dtlsApplicationConn) Read(b []byte) (int, error)  { return c.transport.RecvApplicationData(b) }
func (c *dtlsApplicationConn) Write(b []byte) (int, error) { return c.transport.SendApplicationData(b) }
func (c *dtlsApplicationConn) Close() error                { return nil }
func (c *dtlsApplicationConn) LocalAddr() net.Addr         { return dtlsApplicationAddr{} }
func (c *dtlsApplicationConn) RemoteAddr() net.Addr        { return dtlsApplicationAddr{} }
func (c *dtlsApplicationConn) SetDeadline(time.Time) error { return nil }
func (c *dtlsApplicationConn) SetReadDeadline(time.Time) error  { return nil }
func (c *dtlsApplicationConn) SetWriteDeadline(time.Time) error { return nil }

type dtlsApplicationAddr struct{}

func (dtlsApplicationAddr) Network() string { return "dtls-application-data" }
func (dtlsApplicationAddr) String() string  { return "dtls-application-data" }
