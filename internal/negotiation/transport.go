package negotiation

import "context"

// MediaConstraints selects which local media kinds to acquire before a call.
type MediaConstraints struct {
	Audio bool
	Video bool
}

// LocalMedia is an acquired set of local tracks. The engine holds it from
// acquisition until Close and attaches it to each connection it opens.
type LocalMedia interface {
	Close() error
}

// Connection is one peer connection attempt. Implementations wrap a real
// WebRTC peer connection; tests substitute fakes.
type Connection interface {
	AttachLocalMedia(media LocalMedia) error

	CreateOffer(ctx context.Context) (Description, error)
	CreateAnswer(ctx context.Context) (Description, error)
	SetLocalDescription(desc Description) error
	SetRemoteDescription(desc Description) error
	AddICECandidate(cand Candidate) error

	// OnLocalCandidate registers the callback invoked for each locally
	// gathered ICE candidate. It must be set before descriptions are
	// exchanged. The callback may be invoked from arbitrary goroutines.
	OnLocalCandidate(fn func(Candidate))

	Close() error
}

// Transport abstracts the WebRTC stack the engine drives.
type Transport interface {
	AcquireLocalMedia(ctx context.Context, c MediaConstraints) (LocalMedia, error)
	NewConnection(ctx context.Context) (Connection, error)
}

// Sender delivers outbound signals to the room peer, typically over the
// signaling relay.
type Sender interface {
	SendSignal(sig Signal) error
}

// Description is a session description in transit.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Candidate is an ICE candidate in transit.
type Candidate struct {
	Candidate        string  `json:"candidate"`
	SDPMid           *string `json:"sdpMid,omitempty"`
	SDPMLineIndex    *uint16 `json:"sdpMLineIndex,omitempty"`
	UsernameFragment *string `json:"usernameFragment,omitempty"`
}

// SignalKind discriminates the handshake payloads peers exchange through the
// relay. The relay never inspects them.
type SignalKind string

const (
	// SignalMediaReady announces that the sender has acquired its local
	// media and is ready to negotiate.
	SignalMediaReady SignalKind = "media-ready"
	SignalOffer      SignalKind = "offer"
	SignalAnswer     SignalKind = "answer"
	SignalCandidate  SignalKind = "candidate"
	// SignalBye announces that the sender is hanging up.
	SignalBye SignalKind = "bye"
)

// Signal is one handshake payload.
type Signal struct {
	Kind      SignalKind   `json:"kind"`
	SDP       *Description `json:"sdp,omitempty"`
	Candidate *Candidate   `json:"candidate,omitempty"`
}
