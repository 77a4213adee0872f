// +build !js

package webrtc

import (
	"io"
	"sync"

	"github.com/pion/rtcp"
	"github.com/pion/srtp/v3"
)

// trackStreams maps one TrackRemote to the SRTP/SRTCP read streams opened
// for its SSRC.
type trackStreams struct {
	track          *TrackRemote
	rtpReadStream  *srtp.ReadStreamSRTP
	rtcpReadStream *srtp.ReadStreamSRTCP
}

// RTPReceiver allows an application to inspect the receipt of a Track.
type RTPReceiver struct {
	kind      RTPCodecType
	transport *DTLSTransport

	tracks []trackStreams

	closed, received chan struct{}
	mu                sync.RWMutex

	// A reference to the associated api object
	api *API
}

// NewRTPReceiver constructs a new RTPReceiver.
func (api *API) NewRTPReceiver(kind RTPCodecType, transport *DTLSTransport) (*RTPReceiver, error) {
	if transport == nil {
		return nil, errRTPSenderDTLSTransportNil
	}

	return &RTPReceiver{
		kind:      kind,
		transport: transport,
		api:       api,
		closed:    make(chan struct{}),
		received:  make(chan struct{}),
		tracks:    []trackStreams{},
	}, nil
}

// Transport returns the currently-configured *DTLSTransport or nil if one
// has not yet been configured.
func (r *RTPReceiver) Transport() *DTLSTransport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.transport
}

// Track returns the RTPTransceiver's remote track, or nil before Receive
// has bound one.
func (r *RTPReceiver) Track() *TrackRemote {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.tracks) != 1 {
		return nil
	}
	return r.tracks[0].track
}

// Receive initializes the TrackRemote for an SSRC and opens its SRTP/SRTCP
// read streams. It must be registered with the ICE/DTLS demultiplexer (via
// the SSRC-keyed handler) before the caller surfaces the resulting Track,
// so that the first RTP packet that triggered discovery is not lost
// between registration and this call.
func (r *RTPReceiver) Receive(parameters RTPReceiveParameters) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.received:
		return &InvalidStateError{Err: errRTPSenderSendAlreadyCalled}
	default:
	}
	defer close(r.received)

	if len(parameters.Encodings) == 1 {
		encoding := parameters.Encodings[0]
		t := trackStreams{
			track: newTrackRemote(r.kind, encoding.SSRC, "", r),
		}

		var err error
		t.rtpReadStream, t.rtcpReadStream, err = r.streamsForSSRC(uint32(encoding.SSRC))
		if err != nil {
			return err
		}

		r.tracks = append(r.tracks, t)
		return nil
	}

	for _, encoding := range parameters.Encodings {
		r.tracks = append(r.tracks, trackStreams{
			track: newTrackRemote(r.kind, encoding.SSRC, encoding.RID, r),
		})
	}

	return nil
}

// Read reads incoming RTCP for this RTPReceiver.
func (r *RTPReceiver) Read(b []byte) (n int, err error) {
	select {
	case <-r.received:
		return r.tracks[0].rtcpReadStream.Read(b)
	case <-r.closed:
		return 0, io.ErrClosedPipe
	}
}

// ReadRTCP is a convenience method that wraps Read and unmarshals for you.
func (r *RTPReceiver) ReadRTCP() ([]rtcp.Packet, error) {
	b := make([]byte, receiveMTU)
	i, err := r.Read(b)
	if err != nil {
		return nil, err
	}

	return rtcp.Unmarshal(b[:i])
}

func (r *RTPReceiver) haveReceived() bool {
	select {
	case <-r.received:
		return true
	default:
		return false
	}
}

// Stop irreversibly stops the RTPReceiver.
func (r *RTPReceiver) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	select {
	case <-r.closed:
		return nil
	default:
	}

	select {
	case <-r.received:
		for i := range r.tracks {
			if err := r.tracks[i].rtcpReadStream.Close(); err != nil {
				return err
			}
			if err := r.tracks[i].rtpReadStream.Close(); err != nil {
				return err
			}
		}
	default:
	}

	close(r.closed)
	return nil
}

func (r *RTPReceiver) streamsForTrack(t *TrackRemote) *trackStreams {
	for i := range r.tracks {
		if r.tracks[i].track == t {
			return &r.tracks[i]
		}
	}
	return nil
}

// readRTP should only be called by a TrackRemote; this exists so receive
// state lives in one place.
func (r *RTPReceiver) readRTP(b []byte, reader *TrackRemote) (n int, err error) {
	<-r.received
	if t := r.streamsForTrack(reader); t != nil {
		return t.rtpReadStream.Read(b)
	}

	return 0, &InvalidStateError{Err: ErrRemoteNotSet}
}

func (r *RTPReceiver) streamsForSSRC(ssrc uint32) (*srtp.ReadStreamSRTP, *srtp.ReadStreamSRTCP, error) {
	srtpSession, err := r.transport.getSRTPSession()
	if err != nil {
		return nil, nil, err
	}

	rtpReadStream, err := srtpSession.OpenReadStream(ssrc)
	if err != nil {
		return nil, nil, err
	}

	srtcpSession, err := r.transport.getSRTCPSession()
	if err != nil {
		return nil, nil, err
	}

	rtcpReadStream, err := srtcpSession.OpenReadStream(ssrc)
	if err != nil {
		return nil, nil, err
	}

	return rtpReadStream, rtcpReadStream, nil
}
