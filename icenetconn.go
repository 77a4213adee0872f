// +build !js

package webrtc

import (
	"net"
	"time"

	"github.com/nimbusrtc/webrtc/internal/mux"
)

// iceNetConn adapts one demultiplexed leg of an internal/mux.IceConn (the
// DTLS leg or the RTP/RTCP leg) to a net.Conn, the shape dtlsadapter.Transport
// and srtp.Session both expect. Reads are fed by the PacketReceiver callback
// the mux dispatches to; writes go straight to the underlying socket via
// IceConn.Send. Modeled on sctptransport.go's dtlsApplicationConn, which
// performs the same trick one layer up (DTLS application data instead of
// raw UDP).
type iceNetConn struct {
	conn *mux.IceConn

	received chan []byte
	closed   chan struct{}
}

func newICENetConn(conn *mux.IceConn) *iceNetConn {
	return &iceNetConn{
		conn:     conn,
		received: make(chan []byte, 128),
		closed:   make(chan struct{}),
	}
}

// newDTLSNetConn returns the net.Conn the DTLS handshake runs over,
// registering itself as the IceConn's DTLS receiver.
func newDTLSNetConn(conn *mux.IceConn) *iceNetConn {
	c := newICENetConn(conn)
	conn.SetDTLSReceiver(mux.PacketReceiverFunc(c.receivePacket))
	return c
}

// newRTPNetConn returns the net.Conn the SRTP/SRTCP sessions run over,
// registering itself as the IceConn's RTP receiver.
func newRTPNetConn(conn *mux.IceConn) *iceNetConn {
	c := newICENetConn(conn)
	conn.SetRTPReceiver(mux.PacketReceiverFunc(c.receivePacket))
	return c
}

func (c *iceNetConn) receivePacket(packet []byte, _ net.Addr) {
	cp := make([]byte, len(packet))
	copy(cp, packet)
	select {
	case c.received <- cp:
	case <-c.closed:
	default:
		// Reader isn't keeping up; drop rather than block the demux goroutine.
	}
}

func (c *iceNetConn) Read(b []byte) (int, error) {
	select {
	case packet := <-c.received:
		return copy(b, packet), nil
	case <-c.closed:
		return 0, net.ErrClosed
	}
}

func (c *iceNetConn) Write(b []byte) (int, error) {
	return c.conn.Send(b)
}

func (c *iceNetConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}
	return nil
}

func (c *iceNetConn) LocalAddr() net.Addr  { return nil }
func (c *iceNetConn) RemoteAddr() net.Addr { return c.conn.RemoteAddr() }

func (c *iceNetConn) SetDeadline(time.Time) error      { return nil }
func (c *iceNetConn) SetReadDeadline(time.Time) error  { return nil }
func (c *iceNetConn) SetWriteDeadline(time.Time) error { return nil }
