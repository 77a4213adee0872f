// Package mux implements the packet demultiplexer of spec §4.3: one
// IceConn per remote endpoint, triaging inbound datagrams by their leading
// byte to the DTLS receiver or the RTP receiver (RFC 7983 style dispatch,
// matching the teacher's internal/mux/muxfunc.go byte ranges).
package mux

import (
	"net"
	"sync"

	"github.com/pion/logging"
)

// PacketReceiver is the collaborator interface a demultiplexed stream is
// handed off to: DTLS handshake/application traffic, or RTP/RTCP.
type PacketReceiver interface {
	ReceivePacket(packet []byte, source net.Addr)
}

// PacketReceiverFunc adapts a function to a PacketReceiver.
type PacketReceiverFunc func(packet []byte, source net.Addr)

// ReceivePacket implements PacketReceiver.
func (f PacketReceiverFunc) ReceivePacket(packet []byte, source net.Addr) { f(packet, source) }

// Sender is the minimal socket write surface IceConn needs; *net.UDPConn
// satisfies it via WriteTo.
type Sender interface {
	WriteTo(b []byte, addr net.Addr) (int, error)
}

// unspecifiedPort is what an address with no signaled candidate looks like:
// SDP did not carry a candidate, so the agent has nothing to dial until the
// first inbound datagram latches one.
const unspecifiedPort = 0

// IceConn holds, per remote endpoint: the current remote address, and the
// (optional) DTLS and RTP receivers it demultiplexes to. Spec §4.3 and §3's
// demultiplex invariant are both implemented here.
type IceConn struct {
	socket Sender
	log    logging.LeveledLogger

	mu            sync.RWMutex
	remoteAddr    net.Addr
	dtlsReceiver  PacketReceiver
	rtpReceiver   PacketReceiver
	onMigrate     func(old, new net.Addr)
	latchEligible bool
}

// NewIceConn constructs an IceConn bound to socket, with an optional
// initial remote address (nil/unspecified to wait for latching).
func NewIceConn(socket Sender, remoteAddr net.Addr, latchEligible bool, logger logging.LeveledLogger) *IceConn {
	if logger == nil {
		logger = logging.NewDefaultLoggerFactory().NewLogger("mux")
	}
	return &IceConn{
		socket:        socket,
		log:           logger,
		remoteAddr:    remoteAddr,
		latchEligible: latchEligible,
	}
}

// SetDTLSReceiver registers the receiver for bytes in [20, 64).
func (c *IceConn) SetDTLSReceiver(r PacketReceiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dtlsReceiver = r
}

// SetRTPReceiver registers the receiver for bytes in [128, 192).
func (c *IceConn) SetRTPReceiver(r PacketReceiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rtpReceiver = r
}

// OnMigrate fires whenever the remote address changes after having already
// been set (peer-reflexive migration, or initial latch if old is nil).
func (c *IceConn) OnMigrate(f func(old, new net.Addr)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMigrate = f
}

// RemoteAddr returns the current remote address, or nil if unset.
func (c *IceConn) RemoteAddr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.remoteAddr
}

func isUnspecified(addr net.Addr) bool {
	if addr == nil {
		return true
	}
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.Port == unspecifiedPort
	}
	return false
}

// adoptRemote implements the latching half of §4.2/§4.3: if remoteAddr is
// unspecified, adopt source outright (first-packet latch). If it differs
// from the current value, this is a migration - the caller has already
// decided (via STUN authentication) that the migration is legitimate before
// calling this for non-latch-eligible conns; for latch-eligible conns any
// first packet counts.
func (c *IceConn) adoptRemote(source net.Addr) {
	c.mu.Lock()
	old := c.remoteAddr
	changed := isUnspecified(old) || !sameAddr(old, source)
	if changed {
		c.remoteAddr = source
	}
	hook := c.onMigrate
	c.mu.Unlock()

	if changed {
		c.log.Debugf("remote address changed from %v to %v", old, source)
		if hook != nil {
			hook(old, source)
		}
	}
}

func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// ReceiveFromLatched is the entry point for traffic the caller has already
// authenticated as eligible to (re)latch the remote address - i.e. a valid
// STUN Binding Request/Indication, or the first packet at all when
// enable_latching is set. It performs the address adoption and then
// dispatches exactly like Receive.
func (c *IceConn) ReceiveFromLatched(packet []byte, source net.Addr) {
	c.adoptRemote(source)
	c.dispatch(packet, source)
}

// Receive is the entry point for ordinary traffic that must NOT migrate the
// endpoint unless this IceConn was constructed latch-eligible and has not
// latched yet.
func (c *IceConn) Receive(packet []byte, source net.Addr) {
	c.mu.RLock()
	unset := isUnspecified(c.remoteAddr)
	eligible := c.latchEligible
	c.mu.RUnlock()

	if unset && eligible {
		c.adoptRemote(source)
	}
	c.dispatch(packet, source)
}

// dispatch implements the strict first-byte triage of spec §3/§4.3:
// [20,64) DTLS, [128,192) RTP/RTCP, [0,20) is left to the ICE agent (STUN),
// anything else is dropped.
func (c *IceConn) dispatch(packet []byte, source net.Addr) {
	if len(packet) == 0 {
		return
	}

	first := packet[0]
	c.mu.RLock()
	dtls := c.dtlsReceiver
	rtp := c.rtpReceiver
	c.mu.RUnlock()

	switch {
	case first >= 20 && first < 64:
		if dtls != nil {
			dtls.ReceivePacket(packet, source)
		} else {
			c.log.Warnf("dropping DTLS packet from %v: no receiver registered", source)
		}
	case first >= 128 && first < 192:
		if rtp != nil {
			rtp.ReceivePacket(packet, source)
		}
		// else: silently dropped per §4.3.
	default:
		// STUN ([0,20)) is handled by the ICE agent directly upstream of
		// the demultiplexer; anything else is dropped.
	}
}

// ErrRemoteNotSet is returned by Send when no remote address has been
// established yet (spec §7 RemoteNotSet).
var ErrRemoteNotSet = errRemoteNotSet{}

type errRemoteNotSet struct{}

func (errRemoteNotSet) Error() string { return "remote address not set" }

// Send writes buf to the current remote address.
func (c *IceConn) Send(buf []byte) (int, error) {
	c.mu.RLock()
	addr := c.remoteAddr
	c.mu.RUnlock()

	if isUnspecified(addr) {
		return 0, ErrRemoteNotSet
	}
	return c.socket.WriteTo(buf, addr)
}
