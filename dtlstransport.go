// +build !js

package webrtc

import (
	"net"
	"sync"
	"time"

	"github.com/pion/srtp/v3"

	"github.com/nimbusrtc/webrtc/dtlsadapter"
)

// DTLSTransport is the secure transport collaborator of the session: one
// DTLS association established over the ICE-selected candidate pair, from
// which the SRTP/SRTCP sessions RTPSender/RTPReceiver read and write
// through are derived. A PeerConnection owns exactly one.
type DTLSTransport struct {
	mu sync.RWMutex

	cert      *dtlsadapter.Certificate
	transport *dtlsadapter.Transport

	// srtpReady is closed once Handshake has completed; RTPSender and
	// RTPReceiver block their first read/write on it via srtpWriterFuture.
	srtpReady chan struct{}

	state DTLSTransportState
}

// DTLSTransportState mirrors the handshake's lifecycle, surfaced to the
// application the same way pion/webrtc's DTLSTransportState does.
type DTLSTransportState int

const (
	// DTLSTransportStateNew is before Handshake has been called.
	DTLSTransportStateNew DTLSTransportState = iota + 1
	// DTLSTransportStateConnecting is while the handshake is in flight.
	DTLSTransportStateConnecting
	// DTLSTransportStateConnected is once SRTP/SRTCP keys are derived.
	DTLSTransportStateConnected
	// DTLSTransportStateFailed is a handshake that errored out.
	DTLSTransportStateFailed
	// DTLSTransportStateClosed is after Close.
	DTLSTransportStateClosed
)

// NewDTLSTransport constructs a DTLSTransport around a freshly generated
// self-signed certificate, the same default pion/webrtc applies when the
// application supplies none of its own.
func NewDTLSTransport() (*DTLSTransport, error) {
	cert, err := dtlsadapter.GenerateCertificate()
	if err != nil {
		return nil, err
	}

	return &DTLSTransport{
		cert:      cert,
		transport: dtlsadapter.New(cert),
		srtpReady: make(chan struct{}),
		state:     DTLSTransportStateNew,
	}, nil
}

// Fingerprint renders this transport's certificate as an SDP
// a=fingerprint attribute value.
func (t *DTLSTransport) Fingerprint() (string, error) {
	return t.cert.Fingerprint()
}

// Start runs the DTLS handshake over conn in the given role and, once it
// completes, derives the SRTP/SRTCP sessions over rtpConn (the same
// underlying socket, demultiplexed from DTLS upstream) and closes
// srtpReady. It is meant to be called once the ICE transport has produced
// both conns.
func (t *DTLSTransport) Start(role dtlsadapter.Role, conn, rtpConn net.Conn, timeout time.Duration) error {
	t.mu.Lock()
	t.state = DTLSTransportStateConnecting
	t.mu.Unlock()

	if err := t.transport.Handshake(role, conn, rtpConn, timeout); err != nil {
		t.mu.Lock()
		t.state = DTLSTransportStateFailed
		t.mu.Unlock()
		return &HandshakeFailedError{Err: err}
	}

	t.mu.Lock()
	t.state = DTLSTransportStateConnected
	t.mu.Unlock()
	close(t.srtpReady)
	return nil
}

// State reports the current handshake lifecycle state.
func (t *DTLSTransport) State() DTLSTransportState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func (t *DTLSTransport) getSRTPSession() (*srtp.SessionSRTP, error) {
	return t.transport.SRTPSession()
}

func (t *DTLSTransport) getSRTCPSession() (*srtp.SessionSRTCP, error) {
	return t.transport.SRTCPSession()
}

// SendApplicationData writes bytes over the DTLS association directly;
// the SCTP association backing data channels rides here, not on SRTP.
func (t *DTLSTransport) SendApplicationData(b []byte) (int, error) {
	return t.transport.SendApplicationData(b)
}

// RecvApplicationData reads bytes from the DTLS association.
func (t *DTLSTransport) RecvApplicationData(b []byte) (int, error) {
	return t.transport.RecvApplicationData(b)
}

// Close tears down the DTLS association.
func (t *DTLSTransport) Close() error {
	t.mu.Lock()
	t.state = DTLSTransportStateClosed
	t.mu.Unlock()
	return t.transport.Close()
}
