// +build !js

package webrtc

// newPair builds two PeerConnections with default configuration, the
// shared starting point almost every test in this package begins from.
func newPair() (pcOffer *PeerConnection, pcAnswer *PeerConnection, err error) {
	pca, err := NewPeerConnection(Configuration{})
	if err != nil {
		return nil, nil, err
	}

	pcb, err := NewPeerConnection(Configuration{})
	if err != nil {
		return nil, nil, err
	}

	return pca, pcb, nil
}

// GatheringCompletePromise returns a channel that closes once pc's ICE
// gathering state reaches Complete, so callers can wait for a
// non-trickled offer/answer to carry every host candidate.
func GatheringCompletePromise(pc *PeerConnection) chan struct{} {
	done := make(chan struct{})
	if pc.ICEGatheringState() == ICEGatheringStateComplete {
		close(done)
		return done
	}

	pc.OnICEGatheringStateChange(func() {
		if pc.ICEGatheringState() == ICEGatheringStateComplete {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	})
	return done
}

// signalPairWithModification runs a full offer/answer exchange between
// pcOffer and pcAnswer, waiting for each side's candidate gathering to
// finish before handing its description to the other side (this package
// does not trickle ICE), and applying modificationFunc to the offer's SDP
// before the answerer sees it.
func signalPairWithModification(pcOffer, pcAnswer *PeerConnection, modificationFunc func(string) string) error {
	offer, err := pcOffer.CreateOffer(nil)
	if err != nil {
		return err
	}

	offerGatheringComplete := GatheringCompletePromise(pcOffer)
	if err = pcOffer.SetLocalDescription(offer); err != nil {
		return err
	}
	<-offerGatheringComplete

	offer.SDP = modificationFunc(pcOffer.LocalDescription().SDP)
	if err = pcAnswer.SetRemoteDescription(offer); err != nil {
		return err
	}

	answer, err := pcAnswer.CreateAnswer(nil)
	if err != nil {
		return err
	}

	answerGatheringComplete := GatheringCompletePromise(pcAnswer)
	if err = pcAnswer.SetLocalDescription(answer); err != nil {
		return err
	}
	<-answerGatheringComplete

	return pcOffer.SetRemoteDescription(*pcAnswer.LocalDescription())
}

// signalPair runs a full, unmodified offer/answer exchange between
// pcOffer and pcAnswer.
func signalPair(pcOffer, pcAnswer *PeerConnection) error {
	return signalPairWithModification(pcOffer, pcAnswer, func(sdp string) string { return sdp })
}
