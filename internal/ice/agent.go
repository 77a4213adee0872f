package ice

import (
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"
	"github.com/pion/stun/v3"

	"github.com/nimbusrtc/webrtc/internal/mux"
)

const (
	defaultKeepaliveInterval = 10 * time.Second
	defaultConnectionTimeout = 30 * time.Second
	stunTimeout              = 5 * time.Second

	ufragAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// GatheringState is the candidate gathering lifecycle of spec §4.2.
type GatheringState int

const (
	// GatheringStateNew is the state before gathering has begun.
	GatheringStateNew GatheringState = iota + 1
	// GatheringStateGathering is the state while sockets are being bound.
	GatheringStateGathering
	// GatheringStateComplete is the state once every bound socket has
	// produced its candidate(s).
	GatheringStateComplete
)

// Config collects the arguments to Agent construction.
type Config struct {
	// BindIP restricts candidate gathering to this local address. Nil
	// gathers on every non-loopback interface address.
	BindIP net.IP
	// PortMin/PortMax bound the UDP ports the agent will bind to. Zero
	// values mean "any port".
	PortMin uint16
	PortMax uint16
	// EnableLatching makes the agent's IceConn adopt the first inbound
	// datagram's source as the remote address, per spec §4.2.
	EnableLatching bool
	LoggerFactory  logging.LoggerFactory
}

// Agent implements the ICE agent of spec §4.2: it gathers host candidates
// (it does no server-reflexive gathering), answers and issues STUN Binding
// requests, and exposes a single mux.IceConn per socket for the
// demultiplexer and secure transport to use.
type Agent struct {
	log logging.LeveledLogger

	localUfrag string
	localPwd   string

	remoteMu  sync.RWMutex
	remoteUfrag string
	remotePwd   string

	portMin uint16
	portMax uint16
	bindIP  net.IP

	keepaliveInterval time.Duration
	connectionTimeout time.Duration

	mu              sync.Mutex
	localCandidates []*Candidate
	sockets         []*boundSocket
	gatheringState  GatheringState
	gatherDone      chan struct{}

	closed bool
	done   chan struct{}
}

// boundSocket pairs a listening UDP socket, its produced candidate, and the
// IceConn that demultiplexes traffic arriving on it.
type boundSocket struct {
	conn      *net.UDPConn
	candidate *Candidate
	ice       *mux.IceConn
	lastSent  time.Time
	mu        sync.Mutex
}

// NewAgent constructs an Agent and begins gathering host candidates
// immediately; callers wait on WaitGatheringComplete before exposing candidates
// to SDP.
func NewAgent(cfg Config) (*Agent, error) {
	if cfg.PortMax != 0 && cfg.PortMax < cfg.PortMin {
		return nil, ErrPortRange
	}
	loggerFactory := cfg.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	ufrag, err := randutil.GenerateCryptoRandomString(16, ufragAlphabet)
	if err != nil {
		return nil, fmt.Errorf("ice: generating ufrag: %w", err)
	}
	pwd, err := randutil.GenerateCryptoRandomString(32, ufragAlphabet)
	if err != nil {
		return nil, fmt.Errorf("ice: generating pwd: %w", err)
	}

	a := &Agent{
		log:               loggerFactory.NewLogger("ice"),
		localUfrag:        ufrag,
		localPwd:          pwd,
		portMin:           cfg.PortMin,
		portMax:           cfg.PortMax,
		bindIP:            cfg.BindIP,
		keepaliveInterval: defaultKeepaliveInterval,
		connectionTimeout: defaultConnectionTimeout,
		gatheringState:    GatheringStateNew,
		gatherDone:        make(chan struct{}),
		done:              make(chan struct{}),
	}

	go a.gatherHostCandidates(cfg.EnableLatching)

	return a, nil
}

// LocalCredentials returns the local ufrag/pwd pair for SDP.
func (a *Agent) LocalCredentials() (ufrag, pwd string) {
	return a.localUfrag, a.localPwd
}

// SetRemoteCredentials records the remote ufrag/pwd learned from SDP,
// enabling MESSAGE-INTEGRITY on outbound Binding Requests.
func (a *Agent) SetRemoteCredentials(ufrag, pwd string) {
	a.remoteMu.Lock()
	defer a.remoteMu.Unlock()
	a.remoteUfrag = ufrag
	a.remotePwd = pwd
}

func (a *Agent) remoteCredentials() (ufrag, pwd string) {
	a.remoteMu.RLock()
	defer a.remoteMu.RUnlock()
	return a.remoteUfrag, a.remotePwd
}

// listenUDP binds within [portMin, portMax], or any port if unset.
func (a *Agent) listenUDP(ip net.IP) (*net.UDPConn, error) {
	if a.portMin == 0 && a.portMax == 0 {
		return net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: 0})
	}
	lo, hi := int(a.portMin), int(a.portMax)
	if lo == 0 {
		lo = 1
	}
	if hi == 0 {
		hi = 0xFFFF
	}
	for port := lo; port <= hi; port++ {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: port})
		if err == nil {
			return conn, nil
		}
	}
	return nil, ErrBindFailed
}

// gatherHostCandidates enumerates local interface addresses (or the single
// configured BindIP) and binds one UDP socket per address, per spec §4.2.
// Failures to bind a given interface are logged and skipped; gathering
// completes on whatever succeeded, matching "none are fatal individually".
func (a *Agent) gatherHostCandidates(latchEligible bool) {
	a.mu.Lock()
	a.gatheringState = GatheringStateGathering
	a.mu.Unlock()

	ips := []net.IP{a.bindIP}
	if a.bindIP == nil {
		var err error
		ips, err = localInterfaceAddrs()
		if err != nil || len(ips) == 0 {
			a.log.Warnf("ice: no usable local interfaces: %v", err)
		}
	}

	for _, ip := range ips {
		if ip == nil {
			continue
		}
		conn, err := a.listenUDP(ip)
		if err != nil {
			a.log.Warnf("ice: failed to bind host candidate on %s: %v", ip, err)
			continue
		}

		port := conn.LocalAddr().(*net.UDPAddr).Port
		cand := &Candidate{Type: CandidateTypeHost, IP: ip, Port: port, conn: conn}

		iceConn := mux.NewIceConn(udpSender{conn}, unspecifiedAddr(), latchEligible, a.log)
		sock := &boundSocket{conn: conn, candidate: cand, ice: iceConn}

		a.mu.Lock()
		a.localCandidates = append(a.localCandidates, cand)
		a.sockets = append(a.sockets, sock)
		a.mu.Unlock()

		go a.readLoop(sock)
	}

	a.mu.Lock()
	a.gatheringState = GatheringStateComplete
	a.mu.Unlock()
	close(a.gatherDone)
}

// unspecifiedAddr is the "no candidate signaled yet" sentinel that
// mux.IceConn treats as eligible for latching.
func unspecifiedAddr() *net.UDPAddr { return &net.UDPAddr{IP: nil, Port: 0} }

// udpSender adapts *net.UDPConn to mux.Sender.
type udpSender struct{ conn *net.UDPConn }

func (s udpSender) WriteTo(b []byte, addr net.Addr) (int, error) { return s.conn.WriteTo(b, addr) }

// WaitGatheringComplete blocks until gathering reaches GatheringStateComplete.
func (a *Agent) WaitGatheringComplete() {
	<-a.gatherDone
}

// GatheringState returns the current lifecycle state.
func (a *Agent) GatheringState() GatheringState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.gatheringState
}

// LocalCandidates returns every gathered candidate so far.
func (a *Agent) LocalCandidates() []*Candidate {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*Candidate, len(a.localCandidates))
	copy(out, a.localCandidates)
	return out
}

// Conns returns the demultiplexers for every gathered socket, so the
// caller (the peer connection) can register DTLS/RTP receivers on each.
func (a *Agent) Conns() []*mux.IceConn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*mux.IceConn, len(a.sockets))
	for i, s := range a.sockets {
		out[i] = s.ice
	}
	return out
}

// SetRemoteAddr short-circuits latching when SDP carried an explicit
// candidate: it adopts addr directly as the remote endpoint on every
// gathered socket, rather than waiting for the first inbound datagram.
func (a *Agent) SetRemoteAddr(addr *net.UDPAddr) {
	for _, sock := range a.Conns() {
		sock.ReceiveFromLatched(nil, addr) // nil packet: address adoption only, dispatch is a no-op on empty input
	}
}

// readLoop is the per-socket receive task of spec §5: a long-lived task
// reading datagrams and routing STUN to the agent, everything else to the
// socket's IceConn for demultiplexing.
func (a *Agent) readLoop(sock *boundSocket) {
	buf := make([]byte, 1500)
	for {
		n, addr, err := sock.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-a.done:
			default:
				a.log.Debugf("ice: read loop for %s exiting: %v", sock.candidate, err)
			}
			return
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])

		if len(packet) > 0 && packet[0] < 20 && stun.IsMessage(packet) {
			a.handleSTUN(sock, packet, addr)
			continue
		}

		sock.ice.Receive(packet, addr)
	}
}

// handleSTUN decodes an inbound STUN message and, for Binding Requests,
// authenticates and answers it; authenticated requests from a new source
// latch/migrate the remote address (peer-reflexive promotion, spec §4.2).
func (a *Agent) handleSTUN(sock *boundSocket, packet []byte, addr *net.UDPAddr) {
	msg := &stun.Message{Raw: packet}
	if err := msg.Decode(); err != nil {
		a.log.Warnf("ice: %v: %v", ErrStunDecodeError, err)
		return
	}

	switch {
	case msg.Type == stun.BindingRequest:
		authenticated := a.verifyIntegrity(msg)
		if authenticated || sock.ice.RemoteAddr() == nil {
			sock.ice.ReceiveFromLatched(nil, addr)
		}
		a.sendBindingSuccess(sock, msg, addr)
	case msg.Type == stun.NewType(stun.MethodBinding, stun.ClassSuccessResponse):
		// Response to our own outbound ping; nothing further to do since
		// this implementation does not run candidate-pair nomination.
	default:
		a.log.Debugf("ice: ignoring STUN message of type %s", msg.Type)
	}
}

// verifyIntegrity checks MESSAGE-INTEGRITY against the local password when
// both it and the attribute are present; spec §4.2 makes integrity checking
// optional, gated on whether ice-ufrag/ice-pwd are known.
func (a *Agent) verifyIntegrity(msg *stun.Message) bool {
	if a.localPwd == "" {
		return true
	}
	integrity := stun.NewShortTermIntegrity(a.localPwd)
	return integrity.Check(msg) == nil
}

func (a *Agent) sendBindingSuccess(sock *boundSocket, request *stun.Message, addr *net.UDPAddr) {
	xorAddr := &stun.XORMappedAddress{IP: addr.IP, Port: addr.Port}
	setters := []stun.Setter{stun.BindingSuccess, xorAddr}
	if a.localPwd != "" {
		setters = append(setters, stun.NewShortTermIntegrity(a.localPwd))
	}
	setters = append(setters, stun.Fingerprint)

	msg, err := stun.Build(setters...)
	if err != nil {
		a.log.Warnf("ice: failed to build binding success: %v", err)
		return
	}
	msg.TransactionID = request.TransactionID
	msg.WriteHeader()

	if _, err := sock.conn.WriteToUDP(msg.Raw, addr); err != nil {
		a.log.Warnf("ice: failed to send binding success to %s: %v", addr, err)
	}
}

// Ping sends a Binding Request to addr on every gathered socket, used both
// for connectivity checks and keepalives.
func (a *Agent) Ping(addr *net.UDPAddr) {
	remoteUfrag, remotePwd := a.remoteCredentials()
	for _, sock := range a.socketsSnapshot() {
		msg := a.buildBindingRequest(remoteUfrag, remotePwd)
		if msg == nil {
			continue
		}
		sock.mu.Lock()
		sock.lastSent = time.Now()
		sock.mu.Unlock()
		if _, err := sock.conn.WriteToUDP(msg.Raw, addr); err != nil {
			a.log.Warnf("ice: failed to ping %s: %v", addr, err)
		}
	}
}

func (a *Agent) socketsSnapshot() []*boundSocket {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*boundSocket, len(a.sockets))
	copy(out, a.sockets)
	return out
}

func (a *Agent) buildBindingRequest(remoteUfrag, remotePwd string) *stun.Message {
	setters := []stun.Setter{stun.TransactionID, stun.BindingRequest}
	if remoteUfrag != "" {
		setters = append(setters, stun.NewUsername(remoteUfrag+":"+a.localUfrag))
	}
	if remotePwd != "" {
		setters = append(setters, stun.NewShortTermIntegrity(remotePwd))
	}
	setters = append(setters, stun.Fingerprint)

	msg, err := stun.Build(setters...)
	if err != nil {
		a.log.Warnf("ice: failed to build binding request: %v", err)
		return nil
	}
	return msg
}

// Keepalive sends a Binding Request to every socket's current remote
// address if none has been sent within keepaliveInterval. Nothing in this
// module calls it; it runs only when a caller invokes it.
func (a *Agent) Keepalive() {
	if a.keepaliveInterval == 0 {
		return
	}
	for _, sock := range a.socketsSnapshot() {
		remote := sock.ice.RemoteAddr()
		if remote == nil {
			continue
		}
		sock.mu.Lock()
		stale := time.Since(sock.lastSent) > a.keepaliveInterval
		sock.mu.Unlock()
		if !stale {
			continue
		}
		udpAddr, ok := remote.(*net.UDPAddr)
		if !ok {
			continue
		}
		a.Ping(udpAddr)
	}
}

// Close releases every gathered socket.
func (a *Agent) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	sockets := a.sockets
	a.mu.Unlock()

	close(a.done)
	for _, s := range sockets {
		_ = s.conn.Close()
	}
	return nil
}

// localInterfaceAddrs enumerates non-loopback unicast IPv4 addresses across
// every interface, the pool the agent gathers host candidates from when no
// bind_ip is configured.
func localInterfaceAddrs() ([]net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoInterfaces, err)
	}

	var ips []net.IP
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() || ip.To4() == nil {
				continue
			}
			ips = append(ips, ip)
		}
	}
	if len(ips) == 0 {
		return nil, ErrNoInterfaces
	}
	return ips, nil
}

// NTPMid32 returns the middle 32 bits of the NTP timestamp for t, used to
// tag outbound Sender Reports for the stats collector's round-trip-time
// correlation (spec §4.7's enrichment).
func NTPMid32(t time.Time) uint32 {
	const ntpEpochOffset = 2208988800 // seconds between 1900 and 1970
	secs := uint64(t.Unix()) + ntpEpochOffset
	frac := uint64(t.Nanosecond()) << 32 / 1e9
	ntp := secs<<32 | frac
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], ntp)
	return binary.BigEndian.Uint32(b[2:6])
}
