package metrics

import "sync"

// Event counter names used by the signaling service.
const (
	EventRoomCreated        = "room_created"
	EventRoomJoined         = "room_joined"
	EventRoomDeleted        = "room_deleted"
	EventJoinRejectedFull   = "join_rejected_full"
	EventRelayForwarded     = "relay_forwarded"
	EventRelayDroppedNoPeer = "relay_dropped_no_peer"
	EventMalformedMessage   = "malformed_message"
	EventRateLimited        = "rate_limited"
	EventSessionOpened      = "session_opened"
	EventSessionClosed      = "session_closed"
)

// Metrics is a minimal, concurrency-safe counter registry.
//
// A production deployment is expected to plug into a real metrics backend;
// this type keeps the protocol logic testable and feeds the Prometheus text
// handler.
type Metrics struct {
	mu sync.Mutex
	m  map[string]uint64
}

func New() *Metrics {
	return &Metrics{
		m: make(map[string]uint64),
	}
}

func (m *Metrics) Inc(name string) {
	m.Add(name, 1)
}

func (m *Metrics) Add(name string, delta uint64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.m[name] += delta
	m.mu.Unlock()
}

func (m *Metrics) Get(name string) uint64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.m[name]
}

// Snapshot returns a copy of all counters.
func (m *Metrics) Snapshot() map[string]uint64 {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]uint64, len(m.m))
	for k, v := range m.m {
		out[k] = v
	}
	return out
}
