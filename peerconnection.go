// +build !js

package webrtc

import (
	"errors"
	"net"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/sdp/v3"

	"github.com/nimbusrtc/webrtc/dtlsadapter"
	"github.com/nimbusrtc/webrtc/internal/ice"
)

// handshakeTimeout bounds how long startTransports waits for the DTLS
// handshake before giving up and moving the connection to Failed.
const handshakeTimeout = 30 * time.Second

// PeerConnection is the orchestrator of spec §2/§4.8: it drives the
// signaling state machine over offer/answer, owns the ICE/DTLS/SCTP
// transports and the transceiver/data-channel ledgers, and fans out every
// lifecycle event the application subscribes to via On* handlers.
type PeerConnection struct {
	mu sync.RWMutex

	configuration Configuration

	currentLocalDescription  *SessionDescription
	pendingLocalDescription  *SessionDescription
	currentRemoteDescription *SessionDescription
	pendingRemoteDescription *SessionDescription

	signalingState     SignalingState
	iceGatheringState   ICEGatheringState
	iceConnectionState  ICEConnectionState
	connectionState     PeerConnectionState

	isClosed                                *atomicBool
	updateNegotiationNeededFlagOnEmptyChain *atomicBool

	lastOffer  string
	lastAnswer string
	midCounter int

	rtpTransceivers []*RTPTransceiver

	dataChannels        map[uint16]*DataChannel
	pendingDataChannels []*DataChannel
	haveDataChannel     bool

	remoteUfrag      string
	remotePwd        string
	remoteCandidates []ICECandidate

	transportsStarted bool
	dtlsRole          dtlsadapter.Role

	onSignalingStateChangeHandler     func(SignalingState)
	onICEConnectionStateChangeHandler func(ICEConnectionState)
	onConnectionStateChangeHandler    func(PeerConnectionState)
	onICEGatheringStateChangeHandler  func()
	onTrackHandler                    func(*TrackRemote, *RTPReceiver)
	onDataChannelHandler              func(*DataChannel)
	onICECandidateHandler             func(*ICECandidate)
	onNegotiationNeededHandler        func()

	ops *operations

	iceAgent      *ice.Agent
	iceGatherer   *ICEGatherer
	dtlsTransport *DTLSTransport
	sctpTransport *SCTPTransport

	api *API
	log logging.LeveledLogger
}

// NewPeerConnection creates a PeerConnection with the default codec set.
// See API.NewPeerConnection for full control over the codec/interceptor
// collaborators.
func NewPeerConnection(configuration Configuration) (*PeerConnection, error) {
	m := MediaEngine{}
	if err := m.RegisterDefaultCodecs(); err != nil {
		return nil, err
	}
	api := NewAPI(WithMediaEngine(m))
	return api.NewPeerConnection(configuration)
}

// NewPeerConnection constructs a PeerConnection against api's media engine
// and interceptor chain: it validates configuration, starts ICE candidate
// gathering immediately, and wires the SCTP transport's remotely-opened
// data channels back to OnDataChannel.
func (api *API) NewPeerConnection(configuration Configuration) (*PeerConnection, error) {
	if err := configuration.validate(); err != nil {
		return nil, err
	}

	dtlsTransport, err := NewDTLSTransport()
	if err != nil {
		return nil, err
	}

	log := logging.NewDefaultLoggerFactory().NewLogger("pc")

	iceAgent, err := ice.NewAgent(ice.Config{
		BindIP:         net.ParseIP(configuration.BindIP),
		PortMin:        configuration.RTPStartPort,
		PortMax:        configuration.RTPEndPort,
		EnableLatching: configuration.EnableLatching,
	})
	if err != nil {
		return nil, err
	}

	pc := &PeerConnection{
		configuration:                           configuration,
		signalingState:                          SignalingStateStable,
		iceGatheringState:                       ICEGatheringStateNew,
		iceConnectionState:                      ICEConnectionStateNew,
		connectionState:                         PeerConnectionStateNew,
		isClosed:                                &atomicBool{},
		updateNegotiationNeededFlagOnEmptyChain: &atomicBool{},
		dataChannels:                            map[uint16]*DataChannel{},
		iceAgent:                                iceAgent,
		iceGatherer:                             newICEGatherer(iceAgent),
		dtlsTransport:                           dtlsTransport,
		api:                                     api,
		log:                                     log,
	}
	pc.sctpTransport = newSCTPTransport(dtlsTransport, log)
	pc.sctpTransport.OnDataChannel(pc.onRemoteDataChannel)
	pc.ops = newOperations(pc.updateNegotiationNeededFlagOnEmptyChain, pc.onNegotiationNeeded)

	if len(configuration.MediaCapabilities.Audio) > 0 || len(configuration.MediaCapabilities.Video) > 0 {
		for _, c := range configuration.MediaCapabilities.Audio {
			if err := api.mediaEngine.RegisterCodec(codecParametersFromCapability(c), RTPCodecTypeAudio); err != nil {
				return nil, err
			}
		}
		for _, c := range configuration.MediaCapabilities.Video {
			if err := api.mediaEngine.RegisterCodec(codecParametersFromCapability(c), RTPCodecTypeVideo); err != nil {
				return nil, err
			}
		}
	}

	go pc.watchGathering()

	return pc, nil
}

func codecParametersFromCapability(c CodecCapability) RTPCodecParameters {
	return RTPCodecParameters{
		RTPCodecCapability: RTPCodecCapability{
			MimeType:     c.CodecName,
			ClockRate:    c.ClockRate,
			Channels:     c.Channels,
			SDPFmtpLine:  c.Fmtp,
			RTCPFeedback: c.RTCPFeedback,
		},
		PayloadType: c.PayloadType,
	}
}

// watchGathering waits for the ICE agent to finish gathering host
// candidates and reflects that into iceGatheringState, firing
// OnICEGatheringStateChange exactly once.
func (pc *PeerConnection) watchGathering() {
	pc.mu.Lock()
	pc.iceGatheringState = ICEGatheringStateGathering
	pc.mu.Unlock()
	pc.onICEGatheringStateChange()

	pc.iceAgent.WaitGatheringComplete()

	pc.mu.Lock()
	pc.iceGatheringState = ICEGatheringStateComplete
	pc.mu.Unlock()
	pc.onICEGatheringStateChange()
}

// ---- event handler setters/firers ----

// OnSignalingStateChange sets the handler invoked whenever signalingState
// advances.
func (pc *PeerConnection) OnSignalingStateChange(f func(SignalingState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onSignalingStateChangeHandler = f
}

func (pc *PeerConnection) onSignalingStateChange(state SignalingState) {
	pc.mu.RLock()
	hdlr := pc.onSignalingStateChangeHandler
	pc.mu.RUnlock()
	if hdlr != nil {
		go hdlr(state)
	}
}

// OnICEConnectionStateChange sets the handler invoked whenever the ICE
// connection state changes.
func (pc *PeerConnection) OnICEConnectionStateChange(f func(ICEConnectionState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onICEConnectionStateChangeHandler = f
}

func (pc *PeerConnection) onICEConnectionStateChange(state ICEConnectionState) {
	pc.mu.Lock()
	pc.iceConnectionState = state
	hdlr := pc.onICEConnectionStateChangeHandler
	pc.mu.Unlock()
	if hdlr != nil {
		go hdlr(state)
	}
}

// OnConnectionStateChange sets the handler invoked whenever the aggregate
// connection state changes.
func (pc *PeerConnection) OnConnectionStateChange(f func(PeerConnectionState)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onConnectionStateChangeHandler = f
}

func (pc *PeerConnection) onConnectionStateChange(state PeerConnectionState) {
	pc.mu.Lock()
	pc.connectionState = state
	hdlr := pc.onConnectionStateChangeHandler
	pc.mu.Unlock()
	if hdlr != nil {
		go hdlr(state)
	}
}

// OnICEGatheringStateChange sets the handler invoked whenever ICE
// gathering advances.
func (pc *PeerConnection) OnICEGatheringStateChange(f func()) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onICEGatheringStateChangeHandler = f
}

func (pc *PeerConnection) onICEGatheringStateChange() {
	pc.mu.RLock()
	hdlr := pc.onICEGatheringStateChangeHandler
	pc.mu.RUnlock()
	if hdlr != nil {
		go hdlr()
	}
}

// OnTrack sets the handler invoked when a remote track is surfaced via a
// negotiated recv-capable transceiver.
func (pc *PeerConnection) OnTrack(f func(*TrackRemote, *RTPReceiver)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onTrackHandler = f
}

func (pc *PeerConnection) onTrack(t *TrackRemote, r *RTPReceiver) {
	pc.mu.RLock()
	hdlr := pc.onTrackHandler
	pc.mu.RUnlock()
	if hdlr != nil {
		go hdlr(t, r)
	}
}

// OnDataChannel sets the handler invoked when the remote peer opens a data
// channel this side did not negotiate up front.
func (pc *PeerConnection) OnDataChannel(f func(*DataChannel)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onDataChannelHandler = f
}

func (pc *PeerConnection) onDataChannel(d *DataChannel) {
	pc.mu.RLock()
	hdlr := pc.onDataChannelHandler
	pc.mu.RUnlock()
	if hdlr != nil {
		go hdlr(d)
	}
}

// OnICECandidate stores a handler for locally gathered candidates. This
// implementation gathers eagerly and exhaustively before the first
// offer/answer and puts every candidate into the SDP it generates; the
// stored handler is never invoked.
func (pc *PeerConnection) OnICECandidate(f func(*ICECandidate)) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onICECandidateHandler = f
}

// OnNegotiationNeeded sets the handler invoked once the operations queue
// drains with the negotiation-needed flag set, e.g. after AddTrack or
// CreateDataChannel.
func (pc *PeerConnection) OnNegotiationNeeded(f func()) {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	pc.onNegotiationNeededHandler = f
}

func (pc *PeerConnection) onNegotiationNeeded() {
	pc.mu.RLock()
	hdlr := pc.onNegotiationNeededHandler
	pc.mu.RUnlock()
	if hdlr != nil {
		go hdlr()
	}
}

func (pc *PeerConnection) onRemoteDataChannel(d *DataChannel) {
	pc.mu.Lock()
	id := uint16(0)
	if d.ID() != nil {
		id = *d.ID()
	}
	pc.dataChannels[id] = d
	pc.mu.Unlock()

	pc.onDataChannel(d)
}

// ---- accessors ----

// SignalingState returns the current position in the offer/answer exchange.
func (pc *PeerConnection) SignalingState() SignalingState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.signalingState
}

// ICEGatheringState returns the current candidate gathering lifecycle state.
func (pc *PeerConnection) ICEGatheringState() ICEGatheringState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.iceGatheringState
}

// ICEConnectionState returns the current ICE connectivity state.
func (pc *PeerConnection) ICEConnectionState() ICEConnectionState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.iceConnectionState
}

// ConnectionState returns the current aggregate connection state.
func (pc *PeerConnection) ConnectionState() PeerConnectionState {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.connectionState
}

// LocalDescription returns the pending local description if one is set,
// else the current local description, matching the W3C accessor's
// fallback behavior.
func (pc *PeerConnection) LocalDescription() *SessionDescription {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.pendingLocalDescription != nil {
		return pc.pendingLocalDescription
	}
	return pc.currentLocalDescription
}

// CurrentLocalDescription returns the last local description applied as
// part of a completed offer/answer exchange.
func (pc *PeerConnection) CurrentLocalDescription() *SessionDescription {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.currentLocalDescription
}

// RemoteDescription returns the pending remote description if one is set,
// else the current remote description.
func (pc *PeerConnection) RemoteDescription() *SessionDescription {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	if pc.pendingRemoteDescription != nil {
		return pc.pendingRemoteDescription
	}
	return pc.currentRemoteDescription
}

// CurrentRemoteDescription returns the last remote description applied as
// part of a completed offer/answer exchange.
func (pc *PeerConnection) CurrentRemoteDescription() *SessionDescription {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	return pc.currentRemoteDescription
}

// GetTransceivers returns every transceiver this connection has created,
// in creation order.
func (pc *PeerConnection) GetTransceivers() []*RTPTransceiver {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	out := make([]*RTPTransceiver, len(pc.rtpTransceivers))
	copy(out, pc.rtpTransceivers)
	return out
}

// GetSenders returns every RTPSender across every transceiver.
func (pc *PeerConnection) GetSenders() []*RTPSender {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	out := make([]*RTPSender, 0, len(pc.rtpTransceivers))
	for _, t := range pc.rtpTransceivers {
		if s := t.Sender(); s != nil {
			out = append(out, s)
		}
	}
	return out
}

// GetReceivers returns every RTPReceiver across every transceiver.
func (pc *PeerConnection) GetReceivers() []*RTPReceiver {
	pc.mu.RLock()
	defer pc.mu.RUnlock()
	out := make([]*RTPReceiver, 0, len(pc.rtpTransceivers))
	for _, t := range pc.rtpTransceivers {
		if r := t.Receiver(); r != nil {
			out = append(out, r)
		}
	}
	return out
}

// ---- transceiver/track construction ----

func (pc *PeerConnection) nextMid() string {
	pc.midCounter++
	return strconv.Itoa(pc.midCounter)
}

// AddTransceiverFromKind creates a new RTPTransceiver for kind, using
// init's direction (default sendrecv) if provided. Sending directions get a
// sender holding a placeholder track of the kind's default codec (Opus for
// audio, VP8 for video); receiving directions get a receiver.
func (pc *PeerConnection) AddTransceiverFromKind(kind RTPCodecType, init ...RTPTransceiverInit) (*RTPTransceiver, error) {
	direction := RTPTransceiverDirectionSendrecv
	if len(init) > 0 {
		direction = init[0].Direction
	}

	var sender *RTPSender
	var err error
	if direction == RTPTransceiverDirectionSendrecv || direction == RTPTransceiverDirectionSendonly {
		track, terr := NewTrackLocalStaticSample(RTPCodecCapability{MimeType: mimeForKind(kind)}, kind.String(), kind.String())
		if terr != nil {
			return nil, terr
		}
		sender, err = pc.api.NewRTPSender(track, pc.dtlsTransport)
		if err != nil {
			return nil, err
		}
	}

	var receiver *RTPReceiver
	if direction == RTPTransceiverDirectionSendrecv || direction == RTPTransceiverDirectionRecvonly {
		receiver, err = pc.api.NewRTPReceiver(kind, pc.dtlsTransport)
		if err != nil {
			return nil, err
		}
	}

	t := newRTPTransceiver(kind, sender, receiver, direction, pc.api)

	pc.mu.Lock()
	pc.rtpTransceivers = append(pc.rtpTransceivers, t)
	pc.mu.Unlock()

	pc.updateNegotiationNeeded()
	return t, nil
}

func mimeForKind(kind RTPCodecType) string {
	if kind == RTPCodecTypeAudio {
		return mimeTypeOpus
	}
	return mimeTypeVP8
}

// AddTransceiverFromTrack creates a new RTPTransceiver around an existing
// local track, sendrecv by default. A recvonly direction is rejected, since
// the track needs a sender. A non-zero SSRC in init's first SendEncodings
// entry becomes the sender's SSRC.
func (pc *PeerConnection) AddTransceiverFromTrack(track TrackLocal, init ...RTPTransceiverInit) (*RTPTransceiver, error) {
	direction := RTPTransceiverDirectionSendrecv
	if len(init) > 0 {
		direction = init[0].Direction
	}
	if direction == RTPTransceiverDirectionRecvonly {
		return nil, errors.New("webrtc: AddTransceiverFromTrack needs a sending direction")
	}

	sender, err := pc.api.NewRTPSender(track, pc.dtlsTransport)
	if err != nil {
		return nil, err
	}
	if len(init) > 0 && len(init[0].SendEncodings) > 0 && init[0].SendEncodings[0].SSRC != 0 {
		sender.ssrc = init[0].SendEncodings[0].SSRC
	}

	var receiver *RTPReceiver
	if direction == RTPTransceiverDirectionSendrecv || direction == RTPTransceiverDirectionRecvonly {
		receiver, err = pc.api.NewRTPReceiver(track.Kind(), pc.dtlsTransport)
		if err != nil {
			return nil, err
		}
	}

	t := newRTPTransceiver(track.Kind(), sender, receiver, direction, pc.api)

	pc.mu.Lock()
	pc.rtpTransceivers = append(pc.rtpTransceivers, t)
	pc.mu.Unlock()

	pc.updateNegotiationNeeded()
	return t, nil
}

// AddTrack binds track to the first transceiver of the same kind whose
// sender has no track attached, or creates a new sendonly transceiver for
// it.
func (pc *PeerConnection) AddTrack(track TrackLocal) (*RTPSender, error) {
	pc.mu.Lock()
	for _, t := range pc.rtpTransceivers {
		if t.Kind() != track.Kind() {
			continue
		}
		if t.Sender() != nil && t.Sender().Track() != nil {
			continue
		}
		if t.Sender() == nil {
			continue
		}
		sender := t.Sender()
		pc.mu.Unlock()
		if err := t.setSendingTrack(track); err != nil {
			return nil, err
		}
		pc.updateNegotiationNeeded()
		return sender, nil
	}
	pc.mu.Unlock()

	t, err := pc.AddTransceiverFromTrack(track, RTPTransceiverInit{Direction: RTPTransceiverDirectionSendonly})
	if err != nil {
		return nil, err
	}
	return t.Sender(), nil
}

// RemoveTrack stops sender and sets its transceiver's direction so a
// future renegotiation drops it from the next offer.
func (pc *PeerConnection) RemoveTrack(sender *RTPSender) error {
	pc.mu.Lock()
	var target *RTPTransceiver
	for _, t := range pc.rtpTransceivers {
		if t.Sender() == sender {
			target = t
			break
		}
	}
	pc.mu.Unlock()

	if target == nil {
		return &InvalidStateError{Err: ErrExistingTrack}
	}

	if err := sender.Stop(); err != nil {
		return err
	}

	switch target.Direction() {
	case RTPTransceiverDirectionSendrecv:
		target.setDirection(RTPTransceiverDirectionRecvonly)
	case RTPTransceiverDirectionSendonly:
		target.setDirection(RTPTransceiverDirectionInactive)
	}

	pc.updateNegotiationNeeded()
	return nil
}

func (pc *PeerConnection) updateNegotiationNeeded() {
	pc.updateNegotiationNeededFlagOnEmptyChain.set(true)
	if pc.ops.IsEmpty() {
		pc.updateNegotiationNeededFlagOnEmptyChain.set(false)
		pc.onNegotiationNeeded()
	}
}

// ---- data channels ----

// CreateDataChannel creates a new DataChannel. If the SCTP association is
// not yet up, the channel opens once startTransports brings it up.
func (pc *PeerConnection) CreateDataChannel(label string, options *DataChannelInit) (*DataChannel, error) {
	params := DataChannelParameters{
		Label:   label,
		Ordered: true,
	}
	negotiated := false
	if options != nil {
		if options.Ordered != nil {
			params.Ordered = *options.Ordered
		}
		params.MaxPacketLifeTime = options.MaxPacketLifeTime
		params.MaxRetransmits = options.MaxRetransmits
		if options.MaxPacketLifeTime != nil && options.MaxRetransmits != nil {
			return nil, &InvalidStateError{Err: ErrRetransmitsOrPacketLifeTime}
		}
		if options.Negotiated != nil {
			negotiated = *options.Negotiated
		}
		if options.ID != nil {
			params.ID = *options.ID
		}
	}

	d, err := pc.api.newDataChannel(params, pc.log)
	if err != nil {
		return nil, err
	}

	pc.mu.Lock()
	d.negotiated = negotiated
	if options != nil && options.Protocol != nil {
		d.protocol = *options.Protocol
	}
	if !negotiated {
		id, idErr := pc.generateDataChannelID()
		if idErr != nil {
			pc.mu.Unlock()
			return nil, idErr
		}
		d.id = &id
	}
	pc.haveDataChannel = true
	started := pc.transportsStarted
	assoc := pc.sctpTransport
	if !started {
		pc.pendingDataChannels = append(pc.pendingDataChannels, d)
	}
	pc.mu.Unlock()

	if started {
		if err := d.open(assoc); err != nil {
			return nil, err
		}
	}

	pc.updateNegotiationNeeded()
	return d, nil
}

// generateDataChannelID picks the next even (locally-created, offerer
// convention) id not already in use. mu must be held by the caller.
func (pc *PeerConnection) generateDataChannelID() (uint16, error) {
	max := pc.sctpTransport.MaxChannels()
	for id := uint16(0); id < max; id += 2 {
		if _, ok := pc.dataChannels[id]; !ok {
			pc.dataChannels[id] = nil
			return id, nil
		}
	}
	return 0, ErrMaxDataChannelID
}

// SendData sends a binary message on the data channel identified by label,
// a convenience wrapper over DataChannel.Send for callers that only track
// channels by name.
func (pc *PeerConnection) SendData(label string, data []byte) error {
	pc.mu.RLock()
	var target *DataChannel
	for _, d := range pc.dataChannels {
		if d != nil && d.Label() == label {
			target = d
			break
		}
	}
	pc.mu.RUnlock()

	if target == nil {
		return &InvalidStateError{Err: ErrDataChannelNotOpen}
	}
	return target.Send(data)
}

// ---- SDP generation ----

// localExtMaps assigns sequential extmap ids to every header extension
// this engine has registered, split by audio/video, for CreateOffer to
// advertise. CreateAnswer narrows this down to what the remote offered via
// matchedAnswerExt.
func (pc *PeerConnection) localExtMaps() map[SDPSectionType][]sdp.ExtMap {
	out := map[SDPSectionType][]sdp.ExtMap{}
	id := 1
	for _, ext := range pc.api.mediaEngine.headerExtensions {
		uri, err := url.Parse(ext.uri)
		if err != nil {
			continue
		}
		em := sdp.ExtMap{Value: id, URI: uri}
		if ext.isAudio {
			out[SDPSectionAudio] = append(out[SDPSectionAudio], em)
		}
		if ext.isVideo {
			out[SDPSectionVideo] = append(out[SDPSectionVideo], em)
		}
		id++
	}
	return out
}

// generateMediaSections assigns a mid to every transceiver that lacks one
// and returns one mediaSection per transceiver, plus a data-channel section
// if CreateDataChannel has ever been called on this connection.
func (pc *PeerConnection) generateMediaSections() []mediaSection {
	sections := make([]mediaSection, 0, len(pc.rtpTransceivers)+1)
	for _, t := range pc.rtpTransceivers {
		if t.Mid() == "" {
			t.setMid(pc.nextMid())
		}
		sections = append(sections, mediaSection{id: t.Mid(), transceivers: []*RTPTransceiver{t}})
	}
	if pc.haveDataChannel {
		sections = append(sections, mediaSection{id: pc.nextMid(), data: true})
	}
	return sections
}

func (pc *PeerConnection) buildSessionDescription(typ SDPType, connectionRole sdp.ConnectionRole, extMaps map[SDPSectionType][]sdp.ExtMap) (SessionDescription, error) {
	d := sdp.NewJSEPSessionDescription(false)

	iceParams := pc.iceGatherer.GetLocalParameters()
	candidates, err := pc.iceGatherer.GetLocalCandidates()
	if err != nil {
		return SessionDescription{}, err
	}

	rawFingerprint, err := pc.dtlsTransport.Fingerprint()
	if err != nil {
		return SessionDescription{}, err
	}
	fp, err := dtlsFingerprintFromCertificate(rawFingerprint)
	if err != nil {
		return SessionDescription{}, err
	}

	mediaSections := pc.generateMediaSections()

	parsed, err := populateSDP(
		d,
		false,
		[]DTLSFingerprint{fp},
		true,
		false,
		pc.api.mediaEngine,
		connectionRole,
		candidates,
		iceParams,
		mediaSections,
		pc.iceGatheringState,
		extMaps,
	)
	if err != nil {
		return SessionDescription{}, err
	}

	raw, err := parsed.Marshal()
	if err != nil {
		return SessionDescription{}, err
	}

	return SessionDescription{Type: typ, SDP: string(raw)}, nil
}

// CreateOffer generates a local offer describing every transceiver and
// data channel this connection currently holds.
func (pc *PeerConnection) CreateOffer(options *OfferOptions) (SessionDescription, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.isClosed.get() {
		return SessionDescription{}, &InvalidStateError{Err: ErrClosed}
	}

	desc, err := pc.buildSessionDescription(SDPTypeOffer, sdp.ConnectionRoleActpass, pc.localExtMaps())
	if err != nil {
		return SessionDescription{}, err
	}

	pc.lastOffer = desc.SDP
	return desc, nil
}

// CreateAnswer generates a local answer to the pending remote offer,
// narrowing header extensions to what the remote actually offered and
// selecting the answerer's DTLS role (active, per a=setup:active).
func (pc *PeerConnection) CreateAnswer(options *AnswerOptions) (SessionDescription, error) {
	pc.mu.Lock()
	defer pc.mu.Unlock()

	if pc.isClosed.get() {
		return SessionDescription{}, &InvalidStateError{Err: ErrClosed}
	}
	if pc.signalingState != SignalingStateHaveRemoteOffer {
		return SessionDescription{}, &InvalidStateError{Err: errSignalingTransition(pc.signalingState, true, sdpTypeAnswer)}
	}
	if pc.pendingRemoteDescription == nil || pc.pendingRemoteDescription.parsed == nil {
		return SessionDescription{}, &InvalidStateError{Err: ErrNoRemoteDescription}
	}

	extMaps, err := matchedAnswerExt(pc.pendingRemoteDescription.parsed, pc.localExtMaps())
	if err != nil {
		return SessionDescription{}, err
	}

	desc, err := pc.buildSessionDescription(SDPTypeAnswer, sdp.ConnectionRoleActive, extMaps)
	if err != nil {
		return SessionDescription{}, err
	}

	pc.lastAnswer = desc.SDP
	return desc, nil
}

// ---- setting descriptions ----

func sdpTypeFor(t SDPType) (sdpType, error) {
	switch t {
	case SDPTypeOffer:
		return sdpTypeOffer, nil
	case SDPTypePranswer:
		return sdpTypePranswer, nil
	case SDPTypeAnswer:
		return sdpTypeAnswer, nil
	default:
		return 0, &InvalidStateError{Err: ErrUnknownType}
	}
}

// SetLocalDescription applies desc as this side's local description,
// advancing signalingState and, once an answer is applied, starting the
// secure transports in the client (answerer) DTLS role.
func (pc *PeerConnection) SetLocalDescription(desc SessionDescription) error {
	pc.mu.Lock()

	if pc.isClosed.get() {
		pc.mu.Unlock()
		return &InvalidStateError{Err: ErrClosed}
	}

	if desc.SDP == "" {
		switch pc.signalingState {
		case SignalingStateHaveRemoteOffer:
			desc.SDP = pc.lastAnswer
			desc.Type = SDPTypeAnswer
		default:
			desc.SDP = pc.lastOffer
			desc.Type = SDPTypeOffer
		}
	}

	if desc.Type == SDPTypeRollback {
		pc.pendingLocalDescription = nil
		pc.signalingState = SignalingStateStable
		pc.mu.Unlock()
		pc.onSignalingStateChange(SignalingStateStable)
		return nil
	}

	typ, err := sdpTypeFor(desc.Type)
	if err != nil {
		pc.mu.Unlock()
		return err
	}

	next, err := nextSignalingState(pc.signalingState, true, typ)
	if err != nil {
		pc.mu.Unlock()
		return err
	}

	if _, err := desc.Unmarshal(); err != nil {
		pc.mu.Unlock()
		return err
	}

	if desc.Type == SDPTypeOffer {
		pc.pendingLocalDescription = &desc
	} else {
		pc.currentLocalDescription = &desc
		pc.pendingLocalDescription = nil
		pc.currentRemoteDescription = pc.pendingRemoteDescription
		pc.pendingRemoteDescription = nil
	}
	pc.signalingState = next

	startAsClient := desc.Type == SDPTypeAnswer
	pc.mu.Unlock()

	pc.onSignalingStateChange(next)

	if startAsClient {
		pc.ops.Enqueue(func() { pc.startTransports(dtlsadapter.RoleClient) })
	}

	return nil
}

// SetRemoteDescription applies desc as this side's remote description,
// updates the media engine's negotiated codec/extension set, surfaces any
// tracks the remote description declares, and, once an answer is applied,
// starts the secure transports in the server (offerer) DTLS role.
func (pc *PeerConnection) SetRemoteDescription(desc SessionDescription) error {
	pc.mu.Lock()

	if pc.isClosed.get() {
		pc.mu.Unlock()
		return &InvalidStateError{Err: ErrClosed}
	}

	if desc.Type == SDPTypeRollback {
		pc.pendingRemoteDescription = nil
		pc.signalingState = SignalingStateStable
		pc.mu.Unlock()
		pc.onSignalingStateChange(SignalingStateStable)
		return nil
	}

	typ, err := sdpTypeFor(desc.Type)
	if err != nil {
		pc.mu.Unlock()
		return err
	}

	next, err := nextSignalingState(pc.signalingState, false, typ)
	if err != nil {
		pc.mu.Unlock()
		return err
	}

	parsed, err := desc.Unmarshal()
	if err != nil {
		pc.mu.Unlock()
		return err
	}

	ufrag, pwd, candidates, err := extractICEDetails(parsed)
	if err != nil {
		pc.mu.Unlock()
		return err
	}

	if err := pc.api.mediaEngine.updateFromRemoteDescription(*parsed); err != nil {
		pc.mu.Unlock()
		return err
	}

	if err := pc.applyRemoteTransceivers(parsed); err != nil {
		pc.mu.Unlock()
		return err
	}

	if haveApplicationMediaSection(parsed) {
		pc.haveDataChannel = true
	}

	pc.remoteUfrag = ufrag
	pc.remotePwd = pwd
	pc.remoteCandidates = candidates

	if desc.Type == SDPTypeOffer {
		pc.pendingRemoteDescription = &desc
	} else {
		pc.currentRemoteDescription = &desc
		pc.pendingRemoteDescription = nil
		pc.currentLocalDescription = pc.pendingLocalDescription
		pc.pendingLocalDescription = nil
	}
	pc.signalingState = next

	startAsServer := desc.Type == SDPTypeAnswer
	pc.mu.Unlock()

	pc.onSignalingStateChange(next)

	if startAsServer {
		pc.ops.Enqueue(func() { pc.startTransports(dtlsadapter.RoleServer) })
	}

	return nil
}

// applyRemoteTransceivers matches each non-application media section in
// parsed against an existing transceiver by mid, or creates a new
// recv-capable transceiver for sections this side never offered (the
// remote-initiated-track case). mu is held by the caller.
func (pc *PeerConnection) applyRemoteTransceivers(parsed *sdp.SessionDescription) error {
	for _, media := range parsed.MediaDescriptions {
		if media.MediaName.Media == mediaSectionApplication {
			continue
		}

		mid := getMidValue(media)
		kind := NewRTPCodecType(media.MediaName.Media)
		if kind == 0 {
			continue
		}
		remoteDirection := getPeerDirection(media)
		localDirection := revDirection(remoteDirection)

		var t *RTPTransceiver
		for _, existing := range pc.rtpTransceivers {
			if existing.Mid() == mid && mid != "" {
				t = existing
				break
			}
		}
		if t == nil {
			for _, existing := range pc.rtpTransceivers {
				if existing.Kind() == kind && existing.Mid() == "" {
					t = existing
					break
				}
			}
		}

		if t == nil {
			var receiver *RTPReceiver
			var err error
			if localDirection == RTPTransceiverDirectionSendrecv || localDirection == RTPTransceiverDirectionRecvonly {
				receiver, err = pc.api.NewRTPReceiver(kind, pc.dtlsTransport)
				if err != nil {
					return err
				}
			}
			t = newRTPTransceiver(kind, nil, receiver, localDirection, pc.api)
			pc.rtpTransceivers = append(pc.rtpTransceivers, t)
		}

		if mid != "" {
			t.setMid(mid)
		}
		t.setCurrentDirection(localDirection)

		if (localDirection == RTPTransceiverDirectionSendrecv || localDirection == RTPTransceiverDirectionRecvonly) && t.Receiver() != nil && !t.Receiver().haveReceived() {
			details := trackDetailsFromSDP(pc.log, parsed)
			for _, d := range details {
				if d.mid != mid || d.kind != kind {
					continue
				}
				if err := t.Receiver().Receive(RTPReceiveParameters{
					Encodings: []RTPDecodingParameters{{RTPCodingParameters: RTPCodingParameters{SSRC: SSRC(d.ssrc)}}},
				}); err != nil {
					return err
				}
				pc.onTrack(t.Receiver().Track(), t.Receiver())
				break
			}
		}
	}
	return nil
}

// ---- transport startup ----

// startTransports runs the DTLS handshake and brings up the SCTP
// association once the remote description has supplied ICE credentials
// and (if present) an explicit remote candidate. It is enqueued on pc.ops
// so it never races a concurrent SetLocalDescription/SetRemoteDescription
// call, and is idempotent: the second caller (whichever side applies the
// answer second) is a no-op.
func (pc *PeerConnection) startTransports(role dtlsadapter.Role) {
	pc.mu.Lock()
	if pc.transportsStarted {
		pc.mu.Unlock()
		return
	}
	pc.transportsStarted = true
	pc.dtlsRole = role
	ufrag, pwd := pc.remoteUfrag, pc.remotePwd
	candidates := pc.remoteCandidates
	pc.mu.Unlock()

	pc.onICEConnectionStateChange(ICEConnectionStateChecking)
	pc.onConnectionStateChange(PeerConnectionStateConnecting)

	pc.iceAgent.SetRemoteCredentials(ufrag, pwd)
	if len(candidates) > 0 {
		if internalCandidate, err := candidates[0].toInternal(); err == nil {
			pc.iceAgent.SetRemoteAddr(&net.UDPAddr{IP: internalCandidate.IP, Port: internalCandidate.Port})
		}
	}

	conns := pc.iceAgent.Conns()
	if len(conns) == 0 {
		pc.onICEConnectionStateChange(ICEConnectionStateFailed)
		pc.onConnectionStateChange(PeerConnectionStateFailed)
		return
	}
	iceConn := conns[0]

	dtlsConn := newDTLSNetConn(iceConn)
	rtpConn := newRTPNetConn(iceConn)

	if err := pc.dtlsTransport.Start(role, dtlsConn, rtpConn, handshakeTimeout); err != nil {
		pc.log.Errorf("webrtc: dtls handshake failed: %v", err)
		pc.onICEConnectionStateChange(ICEConnectionStateFailed)
		pc.onConnectionStateChange(PeerConnectionStateFailed)
		return
	}
	pc.onICEConnectionStateChange(ICEConnectionStateConnected)

	if err := pc.sctpTransport.Start(role == dtlsadapter.RoleClient); err != nil {
		pc.log.Errorf("webrtc: sctp association failed: %v", err)
		pc.onICEConnectionStateChange(ICEConnectionStateFailed)
		pc.onConnectionStateChange(PeerConnectionStateFailed)
		return
	}

	pc.mu.Lock()
	pending := pc.pendingDataChannels
	pc.pendingDataChannels = nil
	pc.mu.Unlock()

	for _, d := range pending {
		if err := d.open(pc.sctpTransport); err != nil {
			pc.log.Warnf("webrtc: opening pre-negotiated data channel %q: %v", d.Label(), err)
		}
	}

	pc.onICEConnectionStateChange(ICEConnectionStateCompleted)
	pc.onConnectionStateChange(PeerConnectionStateConnected)
}

// ---- teardown ----

// Close irreversibly tears down every transport and transceiver. Calling it
// again is a no-op that returns nil; CreateOffer, CreateAnswer,
// SetLocalDescription and SetRemoteDescription on a closed connection
// return an InvalidStateError wrapping ErrClosed.
func (pc *PeerConnection) Close() error {
	if !pc.isClosed.compareAndSwap(false, true) {
		return nil
	}

	pc.ops.GracefulClose()

	pc.mu.Lock()
	transceivers := pc.rtpTransceivers
	dataChannels := pc.dataChannels
	pc.mu.Unlock()

	for _, t := range transceivers {
		_ = t.Stop()
	}
	for _, d := range dataChannels {
		if d != nil {
			_ = d.Close()
		}
	}

	_ = pc.sctpTransport.Stop()
	_ = pc.dtlsTransport.Close()
	_ = pc.iceAgent.Close()

	pc.mu.Lock()
	pc.signalingState = SignalingStateClosed
	pc.mu.Unlock()
	pc.onSignalingStateChange(SignalingStateClosed)
	pc.onICEConnectionStateChange(ICEConnectionStateClosed)
	pc.onConnectionStateChange(PeerConnectionStateClosed)

	return nil
}
