// +build !js

package webrtc

import (
	"io"
	"sync"

	"github.com/pion/datachannel"
	"github.com/pion/logging"

	"github.com/nimbusrtc/webrtc/sctpadapter"
)

// dataChannelBufferSize is the largest single read this package issues
// against the underlying SCTP stream; it is also the largest message
// OnMessage can deliver. DataChannel has no detached mode for larger ones.
const dataChannelBufferSize = 16384

// DataChannel implements the §4.6 data channel transport: an ordered,
// reliable byte-message stream layered with DCEP open/ack framing over
// one SCTP stream of the session's association.
type DataChannel struct {
	mu sync.RWMutex

	label             string
	ordered           bool
	maxPacketLifeTime *uint16
	maxRetransmits    *uint16
	protocol          string
	negotiated        bool
	id                *uint16
	priority          PriorityType
	readyState        DataChannelState

	bufferedAmountLowThreshold uint64
	onBufferedAmountLowHandler func()

	onMessageHandler func(DataChannelMessage)
	onOpenHandler    func()
	onCloseHandler   func()
	onErrorHandler   func(error)

	sctpTransport *SCTPTransport
	dataChannel   *datachannel.DataChannel

	api *API
	log logging.LeveledLogger
}

// newDataChannel builds the DataChannel value before the SCTP transport
// exists; open() finishes construction once it does.
func (api *API) newDataChannel(params DataChannelParameters, log logging.LeveledLogger) (*DataChannel, error) {
	if len(params.Label) > 65535 {
		return nil, ErrStringSizeLimit
	}

	id := params.ID
	return &DataChannel{
		label:             params.Label,
		id:                &id,
		ordered:           params.Ordered,
		maxPacketLifeTime: params.MaxPacketLifeTime,
		maxRetransmits:    params.MaxRetransmits,
		readyState:        DataChannelStateConnecting,
		api:               api,
		log:               log,
	}, nil
}

func (d *DataChannel) channelType() (datachannel.ChannelType, uint32) {
	switch {
	case d.maxPacketLifeTime == nil && d.maxRetransmits == nil:
		if d.ordered {
			return datachannel.ChannelTypeReliable, 0
		}
		return datachannel.ChannelTypeReliableUnordered, 0
	case d.maxRetransmits != nil:
		if d.ordered {
			return datachannel.ChannelTypePartialReliableRexmit, uint32(*d.maxRetransmits)
		}
		return datachannel.ChannelTypePartialReliableRexmitUnordered, uint32(*d.maxRetransmits)
	default:
		if d.ordered {
			return datachannel.ChannelTypePartialReliableTimed, uint32(*d.maxPacketLifeTime)
		}
		return datachannel.ChannelTypePartialReliableTimedUnordered, uint32(*d.maxPacketLifeTime)
	}
}

// open dials the channel over sctpTransport's association. For a
// negotiated channel both peers call this with the same id and neither
// side performs the DCEP open/ack handshake.
func (d *DataChannel) open(sctpTransport *SCTPTransport) error {
	d.mu.Lock()
	d.sctpTransport = sctpTransport
	assoc := sctpTransport.association
	if assoc == nil {
		d.mu.Unlock()
		return &InvalidStateError{Err: ErrRemoteNotSet}
	}

	channelType, reliability := d.channelType()
	cfg := &datachannel.Config{
		ChannelType:          channelType,
		Priority:             datachannel.ChannelPriorityNormal,
		ReliabilityParameter: reliability,
		Label:                d.label,
		Protocol:             d.protocol,
		Negotiated:           d.negotiated,
	}

	dc, err := datachannel.Dial(assoc.Raw(), *d.id, cfg)
	d.mu.Unlock()
	if err != nil {
		return err
	}

	d.handleOpen(dc)
	return nil
}

// acceptDataChannel blocks for the remote to open a channel via DCEP and
// wraps it, used by SCTPTransport's accept loop for channels the local
// side did not negotiate up front.
func acceptDataChannel(assoc *sctpadapter.Association) (*DataChannel, error) {
	dc, err := datachannel.Accept(assoc.Raw(), &datachannel.Config{})
	if err != nil {
		return nil, err
	}

	cfg := dc.Config
	id := dc.StreamIdentifier()
	d := &DataChannel{
		label:      cfg.Label,
		protocol:   cfg.Protocol,
		negotiated: cfg.Negotiated,
		ordered:    cfg.ChannelType == datachannel.ChannelTypeReliable || cfg.ChannelType == datachannel.ChannelTypePartialReliableRexmit || cfg.ChannelType == datachannel.ChannelTypePartialReliableTimed,
		id:         &id,
		readyState: DataChannelStateConnecting,
	}
	reliability := uint16(cfg.ReliabilityParameter)
	switch cfg.ChannelType {
	case datachannel.ChannelTypePartialReliableRexmit, datachannel.ChannelTypePartialReliableRexmitUnordered:
		d.maxRetransmits = &reliability
	case datachannel.ChannelTypePartialReliableTimed, datachannel.ChannelTypePartialReliableTimedUnordered:
		d.maxPacketLifeTime = &reliability
	}
	d.handleOpen(dc)
	return d, nil
}

func (d *DataChannel) handleOpen(dc *datachannel.DataChannel) {
	d.mu.Lock()
	d.dataChannel = dc
	d.readyState = DataChannelStateOpen
	if d.bufferedAmountLowThreshold > 0 {
		dc.SetBufferedAmountLowThreshold(d.bufferedAmountLowThreshold)
	}
	if d.onBufferedAmountLowHandler != nil {
		dc.OnBufferedAmountLow(d.onBufferedAmountLowHandler)
	}
	d.mu.Unlock()

	d.onOpen()
	go d.readLoop()
}

func (d *DataChannel) readLoop() {
	buffer := make([]byte, dataChannelBufferSize)
	for {
		n, isString, err := d.dataChannel.ReadDataChannel(buffer)
		if err == io.ErrShortBuffer {
			continue
		}
		if err != nil {
			d.mu.Lock()
			d.readyState = DataChannelStateClosed
			d.mu.Unlock()
			if err != io.EOF {
				d.onError(err)
			}
			d.onClose()
			return
		}

		msg := make([]byte, n)
		copy(msg, buffer[:n])
		d.onMessage(DataChannelMessage{Data: msg, IsString: isString})
	}
}

// OnOpen sets the handler invoked once the underlying transport is
// established (or re-established after a renegotiation).
func (d *DataChannel) OnOpen(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onOpenHandler = f
}

func (d *DataChannel) onOpen() {
	d.mu.RLock()
	hdlr := d.onOpenHandler
	d.mu.RUnlock()
	if hdlr != nil {
		go hdlr()
	}
}

// OnClose sets the handler invoked once the underlying transport has
// closed.
func (d *DataChannel) OnClose(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onCloseHandler = f
}

func (d *DataChannel) onClose() {
	d.mu.RLock()
	hdlr := d.onCloseHandler
	d.mu.RUnlock()
	if hdlr != nil {
		go hdlr()
	}
}

// OnError sets the handler invoked when the read loop observes an
// unrecoverable transport error (anything but a clean EOF).
func (d *DataChannel) OnError(f func(error)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onErrorHandler = f
}

func (d *DataChannel) onError(err error) {
	d.mu.RLock()
	hdlr := d.onErrorHandler
	d.mu.RUnlock()
	if hdlr != nil {
		go hdlr(err)
	}
}

// OnMessage sets the handler invoked for each inbound message.
func (d *DataChannel) OnMessage(f func(DataChannelMessage)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onMessageHandler = f
}

func (d *DataChannel) onMessage(msg DataChannelMessage) {
	d.mu.RLock()
	hdlr := d.onMessageHandler
	d.mu.RUnlock()
	if hdlr != nil {
		hdlr(msg)
	}
}

// Send sends a binary message, returning ErrBufferFull if the
// association's send buffer for this stream is over capacity rather
// than blocking for it to drain.
func (d *DataChannel) Send(data []byte) error {
	return d.send(data, false)
}

// SendText sends a UTF-8 text message.
func (d *DataChannel) SendText(s string) error {
	return d.send([]byte(s), true)
}

func (d *DataChannel) send(data []byte, isString bool) error {
	d.mu.RLock()
	dc := d.dataChannel
	open := d.readyState == DataChannelStateOpen
	d.mu.RUnlock()

	if !open || dc == nil {
		return &InvalidStateError{Err: ErrDataChannelNotOpen}
	}

	if dc.BufferedAmount() > maxDataChannelBufferedAmount {
		return ErrBufferFull
	}

	if len(data) == 0 {
		data = []byte{0}
	}
	_, err := dc.WriteDataChannel(data, isString)
	return err
}

// Write implements io.Writer over Send, so a DataChannel can be handed to
// code expecting a plain byte sink.
func (d *DataChannel) Write(p []byte) (int, error) {
	if err := d.Send(p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// maxDataChannelBufferedAmount bounds how much unacknowledged data may be
// queued before Send starts refusing writes, matching the browser's
// conventional high-water mark.
const maxDataChannelBufferedAmount = 16 * 1024 * 1024

// Close closes the data channel. Safe to call from either side,
// regardless of which side created it.
func (d *DataChannel) Close() error {
	d.mu.Lock()
	if d.readyState == DataChannelStateClosing || d.readyState == DataChannelStateClosed {
		d.mu.Unlock()
		return nil
	}
	d.readyState = DataChannelStateClosing
	dc := d.dataChannel
	d.mu.Unlock()

	if dc == nil {
		d.mu.Lock()
		d.readyState = DataChannelStateClosed
		d.mu.Unlock()
		return nil
	}
	return dc.Close()
}

// Label is the name the application gave this channel.
func (d *DataChannel) Label() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.label
}

// Ordered reports whether messages are delivered in send order.
func (d *DataChannel) Ordered() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ordered
}

// MaxPacketLifeTime is the partial-reliability time window, if set.
func (d *DataChannel) MaxPacketLifeTime() *uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxPacketLifeTime
}

// MaxRetransmits is the partial-reliability retransmit cap, if set.
func (d *DataChannel) MaxRetransmits() *uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.maxRetransmits
}

// Protocol is the subprotocol name negotiated for this channel.
func (d *DataChannel) Protocol() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.protocol
}

// Negotiated reports whether this channel was created out-of-band with a
// pre-agreed id rather than via DCEP.
func (d *DataChannel) Negotiated() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.negotiated
}

// ID is the SCTP stream id / DCEP channel id assigned to this channel.
func (d *DataChannel) ID() *uint16 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.id
}

// Priority is this channel's send priority.
func (d *DataChannel) Priority() PriorityType {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.priority
}

// ReadyState is this channel's current lifecycle state.
func (d *DataChannel) ReadyState() DataChannelState {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readyState
}

// BufferedAmount is the number of bytes queued by Send/SendText not yet
// acknowledged by the remote.
func (d *DataChannel) BufferedAmount() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.dataChannel == nil {
		return 0
	}
	return d.dataChannel.BufferedAmount()
}

// BufferedAmountLowThreshold is the threshold below which
// OnBufferedAmountLow fires as BufferedAmount drops back below it.
func (d *DataChannel) BufferedAmountLowThreshold() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.bufferedAmountLowThreshold
}

// SetBufferedAmountLowThreshold sets the threshold for OnBufferedAmountLow.
func (d *DataChannel) SetBufferedAmountLowThreshold(th uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.bufferedAmountLowThreshold = th
	if d.dataChannel != nil {
		d.dataChannel.SetBufferedAmountLowThreshold(th)
	}
}

// OnBufferedAmountLow sets the handler fired when BufferedAmount falls to
// or below BufferedAmountLowThreshold.
func (d *DataChannel) OnBufferedAmountLow(f func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onBufferedAmountLowHandler = f
	if d.dataChannel != nil {
		d.dataChannel.OnBufferedAmountLow(f)
	}
}
