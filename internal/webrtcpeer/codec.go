package webrtcpeer

import (
	"fmt"

	"github.com/pion/webrtc/v4"

	"github.com/mirrorlake/rendezvous/internal/negotiation"
)

func descriptionFromPion(desc webrtc.SessionDescription) negotiation.Description {
	return negotiation.Description{
		Type: desc.Type.String(),
		SDP:  desc.SDP,
	}
}

func descriptionToPion(desc negotiation.Description) (webrtc.SessionDescription, error) {
	var t webrtc.SDPType
	switch desc.Type {
	case "offer":
		t = webrtc.SDPTypeOffer
	case "answer":
		t = webrtc.SDPTypeAnswer
	default:
		return webrtc.SessionDescription{}, fmt.Errorf("unsupported sdp type %q", desc.Type)
	}
	return webrtc.SessionDescription{Type: t, SDP: desc.SDP}, nil
}

func candidateFromPion(init webrtc.ICECandidateInit) negotiation.Candidate {
	return negotiation.Candidate{
		Candidate:        init.Candidate,
		SDPMid:           init.SDPMid,
		SDPMLineIndex:    init.SDPMLineIndex,
		UsernameFragment: init.UsernameFragment,
	}
}

func candidateToPion(cand negotiation.Candidate) webrtc.ICECandidateInit {
	return webrtc.ICECandidateInit{
		Candidate:        cand.Candidate,
		SDPMid:           cand.SDPMid,
		SDPMLineIndex:    cand.SDPMLineIndex,
		UsernameFragment: cand.UsernameFragment,
	}
}
