// Package signaling implements the WebSocket rendezvous endpoint: it pairs
// exactly two participants into a named room and relays their opaque
// handshake payloads between them.
package signaling

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mirrorlake/rendezvous/internal/metrics"
	"github.com/mirrorlake/rendezvous/internal/ratelimit"
	"github.com/mirrorlake/rendezvous/internal/rooms"
)

const (
	wsWriteWait = 10 * time.Second

	// sendQueueSize bounds the per-session outbound queue. A session that
	// cannot drain this many messages is dropped rather than allowed to
	// stall its peer.
	sendQueueSize = 32
)

// Config carries the server's collaborators and hardening knobs.
type Config struct {
	Rooms   *rooms.Registry
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Clock drives the per-connection rate limiter. Nil means wall clock.
	Clock ratelimit.Clock

	IdleTimeout          time.Duration
	PingInterval         time.Duration
	MaxMessageBytes      int64
	MaxMessagesPerSecond int
	MaxRoomNameBytes     int
}

// Server is the HTTP handler for the signaling WebSocket endpoint.
type Server struct {
	cfg      Config
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*session
}

func New(cfg Config) *Server {
	if cfg.Clock == nil {
		cfg.Clock = ratelimit.RealClock{}
	}
	return &Server{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
}

// session is one connected participant. All writes to the connection go
// through the send queue so the write pump is the only writer.
type session struct {
	id   string
	conn *websocket.Conn
	send chan []byte

	// sendMu guards closed so no goroutine enqueues into a closed channel.
	sendMu sync.Mutex
	closed bool

	// room is the name of the room this session occupies, empty until a
	// create-or-join succeeds. Only the session's own read loop touches it.
	room string
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	sess := &session{
		id:   newSessionID(),
		conn: conn,
		send: make(chan []byte, sendQueueSize),
	}

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.cfg.Metrics.Inc(metrics.EventSessionOpened)
	s.cfg.Logger.Info("session opened", "client_id", sess.id, "remote_addr", conn.RemoteAddr().String())

	go s.writePump(sess)
	s.readLoop(sess)
	s.dropSession(sess)
}

func (s *Server) readLoop(sess *session) {
	conn := sess.conn
	_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	})

	limiter := ratelimit.NewTokenBucket(s.cfg.Clock, int64(s.cfg.MaxMessagesPerSecond), int64(s.cfg.MaxMessagesPerSecond))

	for {
		msgType, msgReader, err := conn.NextReader()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			s.writeClose(sess, websocket.CloseUnsupportedData, "expected text message")
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))

		if !limiter.Allow(1) {
			s.cfg.Metrics.Inc(metrics.EventRateLimited)
			s.writeClose(sess, websocket.ClosePolicyViolation, "rate limit exceeded")
			return
		}

		data, err := readLimited(msgReader, s.cfg.MaxMessageBytes)
		if err != nil {
			if errors.Is(err, errMessageTooLarge) {
				s.writeClose(sess, websocket.CloseMessageTooBig, "message too large")
				return
			}
			return
		}

		msg, err := ParseMessage(data)
		if err != nil {
			// Malformed traffic is counted and skipped. Closing here would
			// tear down a room over a single bad frame.
			s.cfg.Metrics.Inc(metrics.EventMalformedMessage)
			s.cfg.Logger.Warn("malformed message ignored", "client_id", sess.id, "err", err)
			continue
		}

		switch msg.Type {
		case MessageTypeCreateOrJoin:
			s.handleCreateOrJoin(sess, msg.Room)
		case MessageTypeSignal:
			s.handleSignal(sess, msg.Payload)
		case MessageTypeBye:
			s.handleBye(sess)
		}
	}
}

func (s *Server) handleCreateOrJoin(sess *session, roomName string) {
	if len(roomName) > s.cfg.MaxRoomNameBytes {
		s.cfg.Metrics.Inc(metrics.EventMalformedMessage)
		s.cfg.Logger.Warn("room name too long", "client_id", sess.id, "bytes", len(roomName))
		return
	}
	if sess.room != "" && sess.room != roomName {
		s.cfg.Metrics.Inc(metrics.EventMalformedMessage)
		s.cfg.Logger.Warn("create-or-join while already in a room", "client_id", sess.id, "room", sess.room)
		return
	}

	switch s.cfg.Rooms.JoinOrCreate(roomName, sess.id) {
	case rooms.OutcomeCreated:
		sess.room = roomName
		s.cfg.Metrics.Inc(metrics.EventRoomCreated)
		s.cfg.Logger.Info("room created", "room", roomName, "client_id", sess.id)
		s.enqueue(sess, Message{Type: MessageTypeCreated, Room: roomName, ClientID: sess.id})

	case rooms.OutcomeJoined:
		sess.room = roomName
		s.cfg.Metrics.Inc(metrics.EventRoomJoined)
		s.cfg.Logger.Info("room joined", "room", roomName, "client_id", sess.id)

		s.enqueue(sess, Message{Type: MessageTypeJoined, Room: roomName, ClientID: sess.id})
		if peerID, ok := s.cfg.Rooms.OtherMember(roomName, sess.id); ok {
			if peer := s.lookup(peerID); peer != nil {
				s.enqueue(peer, Message{Type: MessageTypePeerJoined, Room: roomName, ClientID: sess.id})
				s.enqueue(peer, Message{Type: MessageTypeChannelReady, Room: roomName})
			}
		}
		s.enqueue(sess, Message{Type: MessageTypeChannelReady, Room: roomName})

	case rooms.OutcomeFull:
		s.cfg.Metrics.Inc(metrics.EventJoinRejectedFull)
		s.cfg.Logger.Info("join rejected, room full", "room", roomName, "client_id", sess.id)
		s.enqueue(sess, Message{Type: MessageTypeFull, Room: roomName})
	}
}

func (s *Server) handleSignal(sess *session, payload json.RawMessage) {
	if sess.room == "" {
		s.cfg.Metrics.Inc(metrics.EventRelayDroppedNoPeer)
		return
	}
	peerID, ok := s.cfg.Rooms.OtherMember(sess.room, sess.id)
	if !ok {
		s.cfg.Metrics.Inc(metrics.EventRelayDroppedNoPeer)
		return
	}
	peer := s.lookup(peerID)
	if peer == nil {
		s.cfg.Metrics.Inc(metrics.EventRelayDroppedNoPeer)
		return
	}

	s.enqueue(peer, Message{Type: MessageTypeSignal, ClientID: sess.id, Payload: payload})
	s.cfg.Metrics.Inc(metrics.EventRelayForwarded)
}

func (s *Server) handleBye(sess *session) {
	s.leaveRoom(sess)
}

// leaveRoom removes the session from its room, tells the remaining member
// and counts the room's deletion when the last slot empties. Safe to call
// for a session that never joined a room.
func (s *Server) leaveRoom(sess *session) {
	if sess.room == "" {
		return
	}
	roomName := sess.room
	sess.room = ""

	other, ok := s.cfg.Rooms.Leave(roomName, sess.id)
	if !ok {
		return
	}
	if other == "" {
		s.cfg.Metrics.Inc(metrics.EventRoomDeleted)
		s.cfg.Logger.Info("room deleted", "room", roomName)
		return
	}
	if peer := s.lookup(other); peer != nil {
		s.enqueue(peer, Message{Type: MessageTypeBye})
	}
}

func (s *Server) dropSession(sess *session) {
	s.mu.Lock()
	delete(s.sessions, sess.id)
	s.mu.Unlock()

	s.leaveRoom(sess)

	sess.sendMu.Lock()
	sess.closed = true
	sess.sendMu.Unlock()
	close(sess.send)

	s.cfg.Metrics.Inc(metrics.EventSessionClosed)
	s.cfg.Logger.Info("session closed", "client_id", sess.id)
}

func (s *Server) lookup(id string) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[id]
}

func (s *Server) enqueue(sess *session, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}

	sess.sendMu.Lock()
	defer sess.sendMu.Unlock()
	if sess.closed {
		return
	}
	select {
	case sess.send <- data:
	default:
		s.cfg.Logger.Warn("send queue full, dropping message", "client_id", sess.id, "type", msg.Type)
	}
}

func (s *Server) writePump(sess *session) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		sess.conn.Close()
	}()

	for {
		select {
		case data, ok := <-sess.send:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = sess.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := sess.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = sess.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := sess.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (s *Server) writeClose(sess *session, code int, reason string) {
	_ = sess.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(wsWriteWait))
}

func newSessionID() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "unknown"
	}
	return hex.EncodeToString(buf[:])
}

var errMessageTooLarge = errors.New("message too large")

func readLimited(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return nil, errMessageTooLarge
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, errMessageTooLarge
	}
	return b, nil
}
