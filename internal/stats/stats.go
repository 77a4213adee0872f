// Package stats implements the Stats Collector of spec §4.7: RTP
// sender/receiver and RTCP observer methods feeding four SSRC-keyed maps,
// snapshotted into a flat list of entries. Outside this package's tests no
// code in this module constructs a Collector or calls its Observe*,
// ProcessRTCP or NoteSentSenderReport methods, so a PeerConnection
// collects no stats. Grounded in the teacher's
// interceptor wiring (pion/interceptor) and the original Rust
// StatsCollector (original_source/src/stats_collector.rs), including its
// round-trip-time enrichment this module adds per SPEC_FULL.md.
package stats

import (
	"sync"
	"time"

	"github.com/pion/rtcp"
)

// Kind tags a stats entry, matching spec §4.7's four categories.
type Kind string

const (
	KindInboundRTP        Kind = "inbound-rtp"
	KindOutboundRTP       Kind = "outbound-rtp"
	KindRemoteInboundRTP  Kind = "remote-inbound-rtp"
	KindRemoteOutboundRTP Kind = "remote-outbound-rtp"
)

// Entry is one row of a Snapshot.
type Entry struct {
	Kind   Kind
	SSRC   uint32
	Values map[string]any
}

type localInboundStats struct {
	packetsReceived uint64
	bytesReceived   uint64
}

type localOutboundStats struct {
	packetsSent uint64
	bytesSent   uint64
}

type remoteInboundStats struct {
	packetsLost     int32
	fractionLost    uint8
	jitter          uint32
	roundTripTime   *float64
	lastSRNTP       uint64 // truncated mid 32 bits of the NTP timestamp from our own sent SR, keyed by ssrc via sentSR
}

type remoteOutboundStats struct {
	packetsSent uint32
	bytesSent   uint32
}

// sentSR records when (wall clock) and with what truncated NTP timestamp we
// sent a Sender Report for a given local SSRC, so that a later Receiver
// Report's LastSenderReport/DelaySinceLastSenderReport can be turned into a
// round trip time. This is the enrichment SPEC_FULL.md adds over the
// original Rust source, which left roundTripTime permanently unset.
type sentSR struct {
	ntpMid32 uint32
	sentAt   time.Time
}

// Collector implements the RTP sender interceptor, RTP receiver
// interceptor, and RTCP observer described in spec §4.7.
type Collector struct {
	mu sync.Mutex

	localInbound   map[uint32]*localInboundStats
	localOutbound  map[uint32]*localOutboundStats
	remoteInbound  map[uint32]*remoteInboundStats
	remoteOutbound map[uint32]*remoteOutboundStats

	sentReports map[uint32]sentSR // by our own sender SSRC
}

// NewCollector constructs an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		localInbound:   make(map[uint32]*localInboundStats),
		localOutbound:  make(map[uint32]*localOutboundStats),
		remoteInbound:  make(map[uint32]*remoteInboundStats),
		remoteOutbound: make(map[uint32]*remoteOutboundStats),
		sentReports:    make(map[uint32]sentSR),
	}
}

// packetSize computes the RTP wire size per spec §4.7:
// 12 + 4*|CSRC| + (4 + |ext_data| if ext) + |payload| + padding.
func packetSize(csrcCount int, hasExtension bool, extDataLen, payloadLen, paddingLen int) int {
	size := 12 + 4*csrcCount + payloadLen + paddingLen
	if hasExtension {
		size += 4 + extDataLen
	}
	return size
}

// ObserveOutboundRTP records one outbound RTP packet of the given shape
// against ssrc.
func (c *Collector) ObserveOutboundRTP(ssrc uint32, csrcCount int, hasExtension bool, extDataLen, payloadLen, paddingLen int) {
	size := packetSize(csrcCount, hasExtension, extDataLen, payloadLen, paddingLen)

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.localOutbound[ssrc]
	if !ok {
		s = &localOutboundStats{}
		c.localOutbound[ssrc] = s
	}
	s.packetsSent++
	s.bytesSent += uint64(size)
}

// ObserveInboundRTP records one inbound RTP packet of the given shape
// against ssrc.
func (c *Collector) ObserveInboundRTP(ssrc uint32, csrcCount int, hasExtension bool, extDataLen, payloadLen, paddingLen int) {
	size := packetSize(csrcCount, hasExtension, extDataLen, payloadLen, paddingLen)

	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.localInbound[ssrc]
	if !ok {
		s = &localInboundStats{}
		c.localInbound[ssrc] = s
	}
	s.packetsReceived++
	s.bytesReceived += uint64(size)
}

// NoteSentSenderReport records that we just sent an SR for localSSRC at
// ntpMid32 (the middle 32 bits of the 64-bit NTP timestamp, as carried back
// in a future RR's LastSenderReport field).
func (c *Collector) NoteSentSenderReport(localSSRC uint32, ntpMid32 uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sentReports[localSSRC] = sentSR{ntpMid32: ntpMid32, sentAt: time.Now()}
}

// ProcessRTCP feeds one compound-decoded RTCP packet into the collector.
// Only SR and RR carry stats-relevant report blocks per spec §4.7.
func (c *Collector) ProcessRTCP(pkt rtcp.Packet) {
	switch p := pkt.(type) {
	case *rtcp.SenderReport:
		c.handleSR(p)
	case *rtcp.ReceiverReport:
		c.handleRR(p.ReceiverSSRC, p.Reports)
	}
}

func (c *Collector) handleSR(sr *rtcp.SenderReport) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, ok := c.remoteOutbound[sr.SSRC]
	if !ok {
		out = &remoteOutboundStats{}
		c.remoteOutbound[sr.SSRC] = out
	}
	out.packetsSent = sr.PacketCount
	out.bytesSent = sr.OctetCount

	c.applyReportBlocksLocked(sr.SSRC, sr.Reports)
}

func (c *Collector) handleRR(reporterSSRC uint32, blocks []rtcp.ReceptionReport) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.applyReportBlocksLocked(reporterSSRC, blocks)
}

// applyReportBlocksLocked must be called with c.mu held.
func (c *Collector) applyReportBlocksLocked(_ uint32, blocks []rtcp.ReceptionReport) {
	for _, block := range blocks {
		in, ok := c.remoteInbound[block.SSRC]
		if !ok {
			in = &remoteInboundStats{}
			c.remoteInbound[block.SSRC] = in
		}
		in.packetsLost = block.TotalLost
		in.fractionLost = block.FractionLost
		in.jitter = block.Jitter

		if block.LastSenderReport != 0 {
			if sent, ok := c.sentReports[block.SSRC]; ok && sent.ntpMid32 == block.LastSenderReport {
				// DelaySinceLastSenderReport is in units of 1/65536 seconds.
				delay := time.Duration(block.Delay) * time.Second / 65536
				rtt := time.Since(sent.sentAt).Seconds() - delay.Seconds()
				if rtt < 0 {
					rtt = 0
				}
				in.roundTripTime = &rtt
			}
		}
	}
}

// Snapshot returns a flat list of stats entries. Locks are acquired in a
// fixed order (remote_inbound, remote_outbound, local_inbound,
// local_outbound) per spec §5, to avoid deadlock with any future
// cross-map operation; in this implementation a single mutex guards all
// four maps so the ordering is enforced trivially by one critical section.
func (c *Collector) Snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []Entry

	for ssrc, s := range c.remoteInbound {
		values := map[string]any{
			"ssrc":         ssrc,
			"packetsLost":  s.packetsLost,
			"fractionLost": s.fractionLost,
			"jitter":       s.jitter,
		}
		if s.roundTripTime != nil {
			values["roundTripTime"] = *s.roundTripTime
		}
		out = append(out, Entry{Kind: KindRemoteInboundRTP, SSRC: ssrc, Values: values})
	}

	for ssrc, s := range c.remoteOutbound {
		out = append(out, Entry{Kind: KindRemoteOutboundRTP, SSRC: ssrc, Values: map[string]any{
			"ssrc":        ssrc,
			"packetsSent": s.packetsSent,
			"bytesSent":   s.bytesSent,
		}})
	}

	for ssrc, s := range c.localInbound {
		out = append(out, Entry{Kind: KindInboundRTP, SSRC: ssrc, Values: map[string]any{
			"ssrc":            ssrc,
			"packetsReceived": s.packetsReceived,
			"bytesReceived":   s.bytesReceived,
		}})
	}

	for ssrc, s := range c.localOutbound {
		out = append(out, Entry{Kind: KindOutboundRTP, SSRC: ssrc, Values: map[string]any{
			"ssrc":        ssrc,
			"packetsSent": s.packetsSent,
			"bytesSent":   s.bytesSent,
		}})
	}

	return out
}
