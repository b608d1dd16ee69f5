package webrtcpeer

import (
	"context"
	"log/slog"
	"testing"

	"github.com/mirrorlake/rendezvous/internal/config"
	"github.com/mirrorlake/rendezvous/internal/negotiation"
)

func newTestTransport(t *testing.T) *Transport {
	t.Helper()
	api := NewAPI(config.Config{LogLevel: slog.LevelError})
	return NewTransport(api, nil)
}

func TestAcquireLocalMedia_TracksMatchConstraints(t *testing.T) {
	tr := newTestTransport(t)

	tests := []struct {
		name        string
		constraints negotiation.MediaConstraints
		wantAudio   bool
		wantVideo   bool
	}{
		{name: "audio only", constraints: negotiation.MediaConstraints{Audio: true}, wantAudio: true},
		{name: "video only", constraints: negotiation.MediaConstraints{Video: true}, wantVideo: true},
		{name: "both", constraints: negotiation.MediaConstraints{Audio: true, Video: true}, wantAudio: true, wantVideo: true},
		{name: "neither", constraints: negotiation.MediaConstraints{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			media, err := tr.AcquireLocalMedia(context.Background(), tc.constraints)
			if err != nil {
				t.Fatalf("AcquireLocalMedia: %v", err)
			}
			defer media.Close()

			if _, ok := AudioTrack(media); ok != tc.wantAudio {
				t.Fatalf("audio track present=%v, want %v", ok, tc.wantAudio)
			}
			if _, ok := VideoTrack(media); ok != tc.wantVideo {
				t.Fatalf("video track present=%v, want %v", ok, tc.wantVideo)
			}
		})
	}
}

func TestConnection_OfferRoundTrip(t *testing.T) {
	tr := newTestTransport(t)

	media, err := tr.AcquireLocalMedia(context.Background(), negotiation.MediaConstraints{Audio: true})
	if err != nil {
		t.Fatalf("AcquireLocalMedia: %v", err)
	}

	conn, err := tr.NewConnection(context.Background())
	if err != nil {
		t.Fatalf("NewConnection: %v", err)
	}
	defer conn.Close()

	if err := conn.AttachLocalMedia(media); err != nil {
		t.Fatalf("AttachLocalMedia: %v", err)
	}

	offer, err := conn.CreateOffer(context.Background())
	if err != nil {
		t.Fatalf("CreateOffer: %v", err)
	}
	if offer.Type != "offer" || offer.SDP == "" {
		t.Fatalf("offer=%+v, want type=offer with sdp", offer)
	}
	if err := conn.SetLocalDescription(offer); err != nil {
		t.Fatalf("SetLocalDescription: %v", err)
	}
}

func TestDescriptionConversion(t *testing.T) {
	for _, typ := range []string{"offer", "answer"} {
		pd, err := descriptionToPion(negotiation.Description{Type: typ, SDP: "v=0"})
		if err != nil {
			t.Fatalf("descriptionToPion(%s): %v", typ, err)
		}
		back := descriptionFromPion(pd)
		if back.Type != typ || back.SDP != "v=0" {
			t.Fatalf("round trip of %s gave %+v", typ, back)
		}
	}

	if _, err := descriptionToPion(negotiation.Description{Type: "rollback"}); err == nil {
		t.Fatal("descriptionToPion accepted an unsupported type")
	}
}

func TestCandidateConversion(t *testing.T) {
	mid := "0"
	idx := uint16(1)
	cand := negotiation.Candidate{
		Candidate:     "candidate:1 1 udp 2130706431 203.0.113.7 54321 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &idx,
	}

	init := candidateToPion(cand)
	back := candidateFromPion(init)
	if back.Candidate != cand.Candidate || *back.SDPMid != mid || *back.SDPMLineIndex != idx {
		t.Fatalf("round trip gave %+v", back)
	}
	if back.UsernameFragment != nil {
		t.Fatalf("usernameFragment=%v, want nil", back.UsernameFragment)
	}
}
