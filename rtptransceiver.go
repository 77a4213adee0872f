// +build !js

package webrtc

import (
	"sync"
	"sync/atomic"
)

// PayloadMapEntry is one payloadMap value: the clock rate and channel
// count a dynamic payload type was negotiated to mean.
type PayloadMapEntry struct {
	ClockRate uint32
	Channels  uint16
}

// RTPTransceiver represents a combination of an RTPSender and an
// RTPReceiver that share a common mid, kind, direction, payload-type map,
// and header-extension map. kind and mid are fixed at construction;
// everything else may change across renegotiation.
type RTPTransceiver struct {
	mid  string
	kind RTPCodecType

	mu                         sync.RWMutex
	sender                     *RTPSender
	receiver                   *RTPReceiver
	direction, currentDirection RTPTransceiverDirection
	stopped                    bool

	// payloadMap and extMap are replaced wholesale on each update
	// (updatePayloadMap/updateExtmap) rather than mutated in place, so a
	// concurrent RTP datapath reader always observes one complete
	// generation or the next, never a partial blend.
	payloadMap atomic.Pointer[map[PayloadType]PayloadMapEntry]
	extMap     atomic.Pointer[map[int]string]

	api *API
}

func newRTPTransceiver(kind RTPCodecType, sender *RTPSender, receiver *RTPReceiver, direction RTPTransceiverDirection, api *API) *RTPTransceiver {
	t := &RTPTransceiver{
		kind:      kind,
		sender:    sender,
		receiver:  receiver,
		direction: direction,
		api:       api,
	}
	emptyPayloadMap := map[PayloadType]PayloadMapEntry{}
	emptyExtMap := map[int]string{}
	t.payloadMap.Store(&emptyPayloadMap)
	t.extMap.Store(&emptyExtMap)
	return t
}

// Mid returns this transceiver's negotiated media stream identification,
// or "" if it has not yet been assigned one.
func (t *RTPTransceiver) Mid() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.mid
}

func (t *RTPTransceiver) setMid(mid string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mid = mid
}

// Kind reports whether this transceiver carries audio or video.
func (t *RTPTransceiver) Kind() RTPCodecType { return t.kind }

// Sender returns the RTPSender half of this transceiver, or nil if one
// has not been instantiated yet (no local track has ever been set).
func (t *RTPTransceiver) Sender() *RTPSender {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sender
}

// Receiver returns the RTPReceiver half of this transceiver, or nil if
// one has not been instantiated yet (receive direction not yet active).
func (t *RTPTransceiver) Receiver() *RTPReceiver {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.receiver
}

func (t *RTPTransceiver) setReceiver(r *RTPReceiver) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.receiver = r
}

func (t *RTPTransceiver) setSender(s *RTPSender) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sender = s
}

// Direction returns the intended direction this side last expressed
// (what it offers or accepts), independent of what has actually been
// negotiated — see CurrentDirection for that.
func (t *RTPTransceiver) Direction() RTPTransceiverDirection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.direction
}

func (t *RTPTransceiver) setDirection(d RTPTransceiverDirection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.direction = d
}

// CurrentDirection returns the direction actually in effect after the
// last completed negotiation.
func (t *RTPTransceiver) CurrentDirection() RTPTransceiverDirection {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.currentDirection
}

func (t *RTPTransceiver) setCurrentDirection(d RTPTransceiverDirection) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.currentDirection = d
}

// setSendingTrack attaches a local track to this transceiver's sender,
// widening Direction to include send if it did not already.
func (t *RTPTransceiver) setSendingTrack(track TrackLocal) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sender == nil {
		return errRTPSenderTrackNil
	}
	t.sender.track = track

	switch t.direction {
	case RTPTransceiverDirectionRecvonly:
		t.direction = RTPTransceiverDirectionSendrecv
	case RTPTransceiverDirectionInactive:
		t.direction = RTPTransceiverDirectionSendonly
	}
	return nil
}

// getPayloadMap returns the payload-type map generation currently in
// effect for this transceiver's RTP datapath.
func (t *RTPTransceiver) getPayloadMap() map[PayloadType]PayloadMapEntry {
	return *t.payloadMap.Load()
}

// updatePayloadMap wholesale-replaces the payload-type map. The swap is a
// single atomic pointer store: a concurrent reader sees either the entire
// prior map or the entire new one. Calling this twice with the same
// logical contents has the same observable effect as calling it once.
func (t *RTPTransceiver) updatePayloadMap(m map[PayloadType]PayloadMapEntry) {
	cp := make(map[PayloadType]PayloadMapEntry, len(m))
	for k, v := range m {
		cp[k] = v
	}
	t.payloadMap.Store(&cp)
}

// getExtmap returns the header-extension map generation currently in
// effect for this transceiver's RTP datapath.
func (t *RTPTransceiver) getExtmap() map[int]string {
	return *t.extMap.Load()
}

// updateExtmap wholesale-replaces the header-extension id-to-URI map,
// with the same atomicity guarantee as updatePayloadMap.
func (t *RTPTransceiver) updateExtmap(m map[int]string) {
	cp := make(map[int]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	t.extMap.Store(&cp)
}

// Stop irreversibly stops the RTPTransceiver's sender and receiver.
func (t *RTPTransceiver) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	sender, receiver := t.sender, t.receiver
	t.mu.Unlock()

	if sender != nil {
		if err := sender.Stop(); err != nil {
			return err
		}
	}
	if receiver != nil {
		if err := receiver.Stop(); err != nil {
			return err
		}
	}
	return nil
}

