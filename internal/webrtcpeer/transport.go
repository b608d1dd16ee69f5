package webrtcpeer

import (
	"context"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/mirrorlake/rendezvous/internal/negotiation"
)

// Transport implements negotiation.Transport on top of pion.
type Transport struct {
	api        *webrtc.API
	iceServers []webrtc.ICEServer

	// OnConnectionState, when set before connections are opened, is applied
	// to every new peer connection.
	OnConnectionState func(webrtc.PeerConnectionState)

	// OnRemoteTrack, when set before connections are opened, is invoked with
	// the codec MIME type of each inbound track.
	OnRemoteTrack func(mimeType string)
}

func NewTransport(api *webrtc.API, iceServers []webrtc.ICEServer) *Transport {
	return &Transport{api: api, iceServers: iceServers}
}

// localMedia is a set of sample tracks created up front and attached to each
// connection. There is no capture device behind them; whoever drives the
// call writes samples into the tracks.
type localMedia struct {
	tracks []webrtc.TrackLocal
}

func (m *localMedia) Close() error { return nil }

// AudioTrack returns the local audio track, if one was acquired.
func AudioTrack(media negotiation.LocalMedia) (*webrtc.TrackLocalStaticSample, bool) {
	return trackOfKind(media, webrtc.RTPCodecTypeAudio)
}

// VideoTrack returns the local video track, if one was acquired.
func VideoTrack(media negotiation.LocalMedia) (*webrtc.TrackLocalStaticSample, bool) {
	return trackOfKind(media, webrtc.RTPCodecTypeVideo)
}

func trackOfKind(media negotiation.LocalMedia, kind webrtc.RTPCodecType) (*webrtc.TrackLocalStaticSample, bool) {
	lm, ok := media.(*localMedia)
	if !ok {
		return nil, false
	}
	for _, tr := range lm.tracks {
		sample, ok := tr.(*webrtc.TrackLocalStaticSample)
		if ok && sample.Kind() == kind {
			return sample, true
		}
	}
	return nil, false
}

func (t *Transport) AcquireLocalMedia(_ context.Context, c negotiation.MediaConstraints) (negotiation.LocalMedia, error) {
	media := &localMedia{}

	if c.Audio {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio", "rendezvous",
		)
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		media.tracks = append(media.tracks, track)
	}
	if c.Video {
		track, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", "rendezvous",
		)
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
		media.tracks = append(media.tracks, track)
	}

	return media, nil
}

func (t *Transport) NewConnection(_ context.Context) (negotiation.Connection, error) {
	pc, err := t.api.NewPeerConnection(webrtc.Configuration{ICEServers: t.iceServers})
	if err != nil {
		return nil, fmt.Errorf("new peer connection: %w", err)
	}

	conn := &Conn{pc: pc}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		conn.mu.Lock()
		fn := conn.onCand
		conn.mu.Unlock()
		if fn != nil {
			fn(candidateFromPion(c.ToJSON()))
		}
	})

	if t.OnConnectionState != nil {
		pc.OnConnectionStateChange(t.OnConnectionState)
	}
	if t.OnRemoteTrack != nil {
		onTrack := t.OnRemoteTrack
		pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
			onTrack(track.Codec().MimeType)
		})
	}

	return conn, nil
}

// Conn adapts a pion peer connection to negotiation.Connection.
type Conn struct {
	pc *webrtc.PeerConnection

	mu     sync.Mutex
	onCand func(negotiation.Candidate)
}

func (c *Conn) AttachLocalMedia(media negotiation.LocalMedia) error {
	lm, ok := media.(*localMedia)
	if !ok {
		return fmt.Errorf("unexpected local media type %T", media)
	}
	for _, tr := range lm.tracks {
		if _, err := c.pc.AddTrack(tr); err != nil {
			return fmt.Errorf("add track: %w", err)
		}
	}
	return nil
}

func (c *Conn) CreateOffer(context.Context) (negotiation.Description, error) {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return negotiation.Description{}, err
	}
	return descriptionFromPion(offer), nil
}

func (c *Conn) CreateAnswer(context.Context) (negotiation.Description, error) {
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		return negotiation.Description{}, err
	}
	return descriptionFromPion(answer), nil
}

func (c *Conn) SetLocalDescription(desc negotiation.Description) error {
	pd, err := descriptionToPion(desc)
	if err != nil {
		return err
	}
	return c.pc.SetLocalDescription(pd)
}

func (c *Conn) SetRemoteDescription(desc negotiation.Description) error {
	pd, err := descriptionToPion(desc)
	if err != nil {
		return err
	}
	return c.pc.SetRemoteDescription(pd)
}

func (c *Conn) AddICECandidate(cand negotiation.Candidate) error {
	return c.pc.AddICECandidate(candidateToPion(cand))
}

func (c *Conn) OnLocalCandidate(fn func(negotiation.Candidate)) {
	c.mu.Lock()
	c.onCand = fn
	c.mu.Unlock()
}

func (c *Conn) Close() error {
	return c.pc.Close()
}
