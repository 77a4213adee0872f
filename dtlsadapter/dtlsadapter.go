// Package dtlsadapter implements the secure transport collaborator of
// spec §6 over the DTLS handshake and SRTP keying real WebRTC uses:
// a DTLS association over the ICE-established path, from which SRTP/SRTCP
// session keys are exported via DTLS-SRTP (RFC 5764). The core above this
// package never sees handshake details, only handshake/send/recv.
package dtlsadapter

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/dtls/v3/pkg/crypto/fingerprint"
	"github.com/pion/logging"
	"github.com/pion/srtp/v3"
)

func contextWithTimeout(d time.Duration) context.Context {
	if d <= 0 {
		return context.Background()
	}
	ctx, _ := context.WithTimeout(context.Background(), d) //nolint:govet // cancel intentionally not tracked; the DTLS handshake owns its own deadline lifecycle
	return ctx
}

// Role selects the DTLS handshake's client/server role, which the
// session negotiation layer assigns via a=setup (active/passive) the
// same way the original WebRTC spec ties DTLS role to ICE role.
type Role int

const (
	// RoleClient dials the handshake (a=setup:active).
	RoleClient Role = iota + 1
	// RoleServer accepts the handshake (a=setup:passive).
	RoleServer
)

// Certificate is a self-signed identity used for the DTLS handshake and
// for the SDP a=fingerprint this endpoint advertises.
type Certificate struct {
	tlsCert tls.Certificate
}

// GenerateCertificate creates a new self-signed ECDSA certificate, the
// same default pion/webrtc's own SettingEngine generates when none is
// supplied explicitly.
func GenerateCertificate() (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("dtlsadapter: generate key: %w", err)
	}

	tlsCert, err := dtls.GenerateSelfSigned(key)
	if err != nil {
		return nil, fmt.Errorf("dtlsadapter: generate certificate: %w", err)
	}

	return &Certificate{tlsCert: tlsCert}, nil
}

// Fingerprint renders the SDP a=fingerprint value ("algorithm hex-bytes")
// for this certificate using SHA-256, the algorithm every modern browser
// offers first.
func (c *Certificate) Fingerprint() (string, error) {
	if len(c.tlsCert.Certificate) == 0 {
		return "", fmt.Errorf("dtlsadapter: certificate has no leaf")
	}
	leaf, err := x509.ParseCertificate(c.tlsCert.Certificate[0])
	if err != nil {
		return "", fmt.Errorf("dtlsadapter: parse leaf: %w", err)
	}
	sum, err := fingerprint.Fingerprint(leaf, fingerprintHashSHA256{})
	if err != nil {
		return "", fmt.Errorf("dtlsadapter: fingerprint: %w", err)
	}
	return "sha-256 " + sum, nil
}

// fingerprintHashSHA256 satisfies fingerprint.Fingerprint's hash-algorithm
// argument, which only needs a name.
type fingerprintHashSHA256 struct{}

func (fingerprintHashSHA256) String() string { return "sha-256" }

// Transport is one established secure transport: the DTLS association
// plus the SRTP/SRTCP sessions keyed from it. SendApplicationData,
// RecvApplicationData, SRTPSession and SRTCPSession do not wait for the
// handshake: before it has completed they return an error. Ready reports
// completion.
type Transport struct {
	cert *Certificate

	mu       sync.Mutex
	conn     *dtls.Conn
	srtpIn   *srtp.SessionSRTP
	srtcpIn  *srtp.SessionSRTCP
	ready    chan struct{}
	closeErr error
}

// New returns a Transport ready to Handshake over conn.
func New(cert *Certificate) *Transport {
	return &Transport{cert: cert, ready: make(chan struct{})}
}

// Handshake runs the DTLS handshake over conn in the given role, then
// derives the SRTP/SRTCP sessions from the exported keying material. SRTP
// and SRTCP packets are demultiplexed from DTLS at the ICE mux (RFC 7983),
// never wrapped in a DTLS record, so the sessions read/write over rtpConn,
// a separate conn onto the same underlying socket. Handshake blocks until
// the handshake completes, fails, or ctxDeadline elapses.
func (t *Transport) Handshake(role Role, conn, rtpConn net.Conn, ctxDeadline time.Duration) error {
	cfg := &dtls.Config{
		Certificates:         []tls.Certificate{t.cert.tlsCert},
		InsecureSkipVerify:   true, // identity is verified out-of-band via the SDP fingerprint
		SRTPProtectionProfiles: []dtls.SRTPProtectionProfile{
			dtls.SRTP_AEAD_AES_128_GCM,
			dtls.SRTP_AES128_CM_HMAC_SHA1_80,
		},
		LoggerFactory:      logging.NewDefaultLoggerFactory(),
		ConnectContextMaker: nil,
	}

	var dtlsConn *dtls.Conn
	var err error
	if role == RoleClient {
		dtlsConn, err = dtls.ClientWithContext(contextWithTimeout(ctxDeadline), conn, cfg)
	} else {
		dtlsConn, err = dtls.ServerWithContext(contextWithTimeout(ctxDeadline), conn, cfg)
	}
	if err != nil {
		return fmt.Errorf("dtlsadapter: handshake: %w", err)
	}

	state := dtlsConn.ConnectionState()
	keyingMaterial, err := dtlsConn.ExportKeyingMaterial(srtpLabel, nil, srtpKeyingMaterialLength(state.SRTPProtectionProfile))
	if err != nil {
		_ = dtlsConn.Close()
		return fmt.Errorf("dtlsadapter: export keying material: %w", err)
	}

	srtpConfig, err := srtpConfigFromKeyingMaterial(state.SRTPProtectionProfile, keyingMaterial, role == RoleClient)
	if err != nil {
		_ = dtlsConn.Close()
		return err
	}

	srtpSession, err := srtp.NewSessionSRTP(rtpConn, srtpConfig)
	if err != nil {
		_ = dtlsConn.Close()
		return fmt.Errorf("dtlsadapter: new SRTP session: %w", err)
	}
	srtcpSession, err := srtp.NewSessionSRTCP(rtpConn, srtpConfig)
	if err != nil {
		_ = dtlsConn.Close()
		return fmt.Errorf("dtlsadapter: new SRTCP session: %w", err)
	}

	t.mu.Lock()
	t.conn = dtlsConn
	t.srtpIn = srtpSession
	t.srtcpIn = srtcpSession
	t.mu.Unlock()
	close(t.ready)
	return nil
}

// Ready is closed once Handshake has succeeded, for callers (like
// srtpWriterFuture in the root package) that block on it.
func (t *Transport) Ready() <-chan struct{} { return t.ready }

// SendApplicationData writes bytes on the DTLS association itself (the
// SCTP association for data channels rides here, not on SRTP).
func (t *Transport) SendApplicationData(b []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("dtlsadapter: handshake not complete")
	}
	return conn.Write(b)
}

// RecvApplicationData reads bytes from the DTLS association.
func (t *Transport) RecvApplicationData(b []byte) (int, error) {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return 0, fmt.Errorf("dtlsadapter: handshake not complete")
	}
	return conn.Read(b)
}

// SRTPSession returns the session RTP senders/receivers open per-SSRC
// read/write streams from.
func (t *Transport) SRTPSession() (*srtp.SessionSRTP, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srtpIn == nil {
		return nil, fmt.Errorf("dtlsadapter: handshake not complete")
	}
	return t.srtpIn, nil
}

// SRTCPSession returns the session RTCP readers open per-SSRC read
// streams from.
func (t *Transport) SRTCPSession() (*srtp.SessionSRTCP, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srtcpIn == nil {
		return nil, fmt.Errorf("dtlsadapter: handshake not complete")
	}
	return t.srtcpIn, nil
}

// Close tears down the DTLS association; open SRTP/SRTCP streams become
// read/write errors.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	return t.conn.Close()
}

const srtpLabel = "EXTRACTOR-dtls_srtp"

func srtpKeyingMaterialLength(profile dtls.SRTPProtectionProfile) int {
	keyLen, saltLen := srtpKeySaltLength(profile)
	return (keyLen + saltLen) * 2
}

func srtpKeySaltLength(profile dtls.SRTPProtectionProfile) (keyLen, saltLen int) {
	switch profile {
	case dtls.SRTP_AEAD_AES_128_GCM:
		return 16, 12
	default: // SRTP_AES128_CM_HMAC_SHA1_80 and similar CM/HMAC profiles
		return 16, 14
	}
}

// srtpConfigFromKeyingMaterial splits the exported keying material into
// client/server write keys per RFC 5764 §4.2 and builds the srtp/v3
// config the matching session constructors expect.
func srtpConfigFromKeyingMaterial(profile dtls.SRTPProtectionProfile, material []byte, isClient bool) (*srtp.Config, error) {
	keyLen, saltLen := srtpKeySaltLength(profile)

	offset := 0
	clientKey := material[offset : offset+keyLen]
	offset += keyLen
	serverKey := material[offset : offset+keyLen]
	offset += keyLen
	clientSalt := material[offset : offset+saltLen]
	offset += saltLen
	serverSalt := material[offset : offset+saltLen]

	var writeKey, writeSalt, readKey, readSalt []byte
	if isClient {
		writeKey, writeSalt = clientKey, clientSalt
		readKey, readSalt = serverKey, serverSalt
	} else {
		writeKey, writeSalt = serverKey, serverSalt
		readKey, readSalt = clientKey, clientSalt
	}

	protectionProfile := srtp.ProtectionProfileAes128CmHmacSha1_80
	if profile == dtls.SRTP_AEAD_AES_128_GCM {
		protectionProfile = srtp.ProtectionProfileAeadAes128Gcm
	}

	return &srtp.Config{
		Profile: protectionProfile,
		Keys: srtp.SessionKeys{
			LocalMasterKey:   writeKey,
			LocalMasterSalt:  writeSalt,
			RemoteMasterKey:  readKey,
			RemoteMasterSalt: readSalt,
		},
	}, nil
}
