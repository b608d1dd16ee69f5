// Package negotiation drives one participant's side of the pairwise
// offer/answer exchange.
//
// The engine is a single-consumer state machine: every external input is
// posted onto an internal event queue and handled by one goroutine, so no
// ordering of concurrent callers can observe or create a torn state. The
// start of a call is guarded: a connection is opened exactly once, and only
// when a start has been requested, local media is ready and the room's
// channel is ready.
package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// State is the engine's externally visible phase.
type State string

const (
	// StateIdle means no start has been requested, or a hangup returned the
	// engine to rest without local media.
	StateIdle State = "idle"
	// StateAwaitingMedia means local media acquisition is in flight.
	StateAwaitingMedia State = "awaiting-media"
	// StateAwaitingPeer means local media is ready and the engine is waiting
	// for the room channel or the peer's offer.
	StateAwaitingPeer State = "awaiting-peer"
	// StateOffering means this side sent an offer and awaits the answer.
	StateOffering State = "offering"
	// StateAnswering means this side received an offer and is producing the
	// answer.
	StateAnswering State = "answering"
	// StateConnected means descriptions have been exchanged both ways.
	StateConnected State = "connected"
	// StateClosed is terminal.
	StateClosed State = "closed"
)

// Config wires an engine to its collaborators. Transport, Sender and Logger
// are required.
type Config struct {
	Transport   Transport
	Sender      Sender
	Logger      *slog.Logger
	Constraints MediaConstraints

	// OnStateChange, when set, is invoked from the engine goroutine after
	// every state transition. It must not call back into the engine.
	OnStateChange func(State)

	// OnError, when set, receives negotiation failures the engine survives,
	// such as a rejected description or a failed media acquisition.
	OnError func(error)
}

// Engine is one participant's negotiation state machine.
type Engine struct {
	cfg Config

	ctx    context.Context
	cancel context.CancelFunc

	events    chan func()
	done      chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the run goroutine.
	state           State
	started         bool
	localMediaReady bool
	channelReady    bool
	isInitiator     bool
	acquiring       bool
	media           LocalMedia
	conn            Connection
}

func New(cfg Config) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		events: make(chan func(), 16),
		done:   make(chan struct{}),
		state:  StateIdle,
	}
	go e.run()
	return e
}

func (e *Engine) run() {
	for {
		select {
		case fn := <-e.events:
			fn()
		case <-e.done:
			return
		}
	}
}

// post hands fn to the run goroutine. Events posted after Close are dropped.
func (e *Engine) post(fn func()) {
	select {
	case e.events <- fn:
	case <-e.done:
	}
}

// RequestStart asks the engine to begin a call. It is idempotent: repeated
// requests while media is being acquired, or once a call is underway, do
// nothing. Media acquisition runs off the engine goroutine and its result is
// posted back as an event.
func (e *Engine) RequestStart() {
	e.post(func() {
		if e.localMediaReady {
			e.maybeStart()
			return
		}
		if e.acquiring {
			return
		}
		e.acquiring = true
		e.setState(StateAwaitingMedia)

		go func() {
			media, err := e.cfg.Transport.AcquireLocalMedia(e.ctx, e.cfg.Constraints)
			e.post(func() {
				e.acquiring = false
				if err != nil {
					e.setState(StateIdle)
					e.reportError(fmt.Errorf("%w: %v", ErrMediaUnavailable, err))
					return
				}
				e.media = media
				e.localMediaReady = true
				e.setState(StateAwaitingPeer)
				e.sendSignal(Signal{Kind: SignalMediaReady})
				e.maybeStart()
			})
		}()
	})
}

// SetInitiator records whether this side opens the exchange with an offer.
// The room creator is the initiator.
func (e *Engine) SetInitiator(initiator bool) {
	e.post(func() {
		e.isInitiator = initiator
	})
}

// PeerChannelReady records that the room is paired. Safe to call more than
// once.
func (e *Engine) PeerChannelReady() {
	e.post(func() {
		e.channelReady = true
		e.maybeStart()
	})
}

// HandleSignal feeds one relayed handshake payload into the engine.
func (e *Engine) HandleSignal(sig Signal) {
	e.post(func() {
		switch sig.Kind {
		case SignalMediaReady:
			// The peer is ready. If we are too, this is the nudge that
			// opens the connection.
			e.maybeStart()
		case SignalOffer:
			e.handleOffer(sig)
		case SignalAnswer:
			e.handleAnswer(sig)
		case SignalCandidate:
			e.handleCandidate(sig)
		case SignalBye:
			e.handleRemoteBye()
		default:
			e.cfg.Logger.Warn("unknown signal ignored", "kind", sig.Kind)
		}
	})
}

// Hangup ends the current call, tells the peer and leaves the engine ready
// for another start on the same room channel.
func (e *Engine) Hangup() {
	e.post(func() {
		if !e.started {
			return
		}
		e.sendSignal(Signal{Kind: SignalBye})
		e.stopCall()
	})
}

// Close releases the connection and local media and stops the engine.
func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		stopped := make(chan struct{})
		e.post(func() {
			e.stopCall()
			if e.media != nil {
				_ = e.media.Close()
				e.media = nil
			}
			e.setState(StateClosed)
			close(stopped)
		})
		select {
		case <-stopped:
		case <-e.done:
		}
		e.cancel()
		close(e.done)
	})
	return nil
}

// State reports the engine's current phase. The read is serialized through
// the event queue, so it also acts as a barrier: all inputs posted before the
// call have been handled once it returns.
func (e *Engine) State() State {
	ch := make(chan State, 1)
	select {
	case e.events <- func() { ch <- e.state }:
	case <-e.done:
		return StateClosed
	}
	select {
	case s := <-ch:
		return s
	case <-e.done:
		return StateClosed
	}
}

// Started reports whether a connection attempt is underway.
func (e *Engine) Started() bool {
	ch := make(chan bool, 1)
	select {
	case e.events <- func() { ch <- e.started }:
	case <-e.done:
		return false
	}
	select {
	case s := <-ch:
		return s
	case <-e.done:
		return false
	}
}

// maybeStart opens the peer connection once all three of its conditions
// hold. Callers may invoke it on every input; at most one connection is
// opened per call attempt.
func (e *Engine) maybeStart() {
	if e.started || !e.localMediaReady || !e.channelReady {
		return
	}
	if e.state == StateClosed {
		return
	}

	conn, err := e.cfg.Transport.NewConnection(e.ctx)
	if err != nil {
		e.reportError(&DescriptionError{Step: "open connection", Err: err})
		return
	}
	e.conn = conn
	e.started = true

	conn.OnLocalCandidate(func(c Candidate) {
		cand := c
		e.post(func() {
			if !e.started {
				return
			}
			e.sendSignal(Signal{Kind: SignalCandidate, Candidate: &cand})
		})
	})

	if err := conn.AttachLocalMedia(e.media); err != nil {
		e.reportError(&DescriptionError{Step: "attach media", Err: err})
		e.stopCall()
		return
	}

	e.cfg.Logger.Info("call started", "initiator", e.isInitiator)

	if e.isInitiator {
		e.sendOffer()
	}
}

func (e *Engine) sendOffer() {
	offer, err := e.conn.CreateOffer(e.ctx)
	if err != nil {
		e.reportError(&DescriptionError{Step: "create offer", Err: err})
		return
	}
	if err := e.conn.SetLocalDescription(offer); err != nil {
		e.reportError(&DescriptionError{Step: "set local offer", Err: err})
		return
	}
	e.setState(StateOffering)
	e.sendSignal(Signal{Kind: SignalOffer, SDP: &offer})
}

func (e *Engine) handleOffer(sig Signal) {
	if sig.SDP == nil {
		e.cfg.Logger.Warn("offer signal missing sdp")
		return
	}
	// An offer from the peer implies the channel is live even if the
	// channel-ready notification has not arrived yet.
	e.channelReady = true
	e.maybeStart()
	if !e.started {
		e.cfg.Logger.Warn("offer dropped, not ready to start")
		return
	}
	if e.isInitiator {
		e.cfg.Logger.Warn("offer dropped, this side is the initiator")
		return
	}

	if err := e.conn.SetRemoteDescription(*sig.SDP); err != nil {
		e.reportError(&DescriptionError{Step: "set remote offer", Err: err})
		return
	}
	e.setState(StateAnswering)

	answer, err := e.conn.CreateAnswer(e.ctx)
	if err != nil {
		e.reportError(&DescriptionError{Step: "create answer", Err: err})
		return
	}
	if err := e.conn.SetLocalDescription(answer); err != nil {
		e.reportError(&DescriptionError{Step: "set local answer", Err: err})
		return
	}
	e.sendSignal(Signal{Kind: SignalAnswer, SDP: &answer})
	e.setState(StateConnected)
}

func (e *Engine) handleAnswer(sig Signal) {
	if sig.SDP == nil {
		e.cfg.Logger.Warn("answer signal missing sdp")
		return
	}
	if e.state != StateOffering {
		e.cfg.Logger.Warn("answer dropped", "state", e.state)
		return
	}
	if err := e.conn.SetRemoteDescription(*sig.SDP); err != nil {
		e.reportError(&DescriptionError{Step: "set remote answer", Err: err})
		return
	}
	e.setState(StateConnected)
}

func (e *Engine) handleCandidate(sig Signal) {
	if sig.Candidate == nil {
		e.cfg.Logger.Warn("candidate signal missing candidate")
		return
	}
	// Candidates that race ahead of the call are dropped, never buffered.
	// The peer's stack retransmits candidates within its own offer cycle.
	if !e.started {
		e.cfg.Logger.Debug("candidate dropped, call not started")
		return
	}
	if err := e.conn.AddICECandidate(*sig.Candidate); err != nil {
		e.reportError(&DescriptionError{Step: "add candidate", Err: err})
	}
}

// handleRemoteBye tears down the call and demotes this side: the peer that
// stays becomes the creator of the next pairing, so it must wait for a new
// offer rather than send one.
func (e *Engine) handleRemoteBye() {
	if !e.started {
		return
	}
	e.cfg.Logger.Info("peer hung up")
	e.stopCall()
	e.isInitiator = false
}

// stopCall closes the connection and resets the start guard. Local media and
// channel readiness survive so the next start skips straight to the offer.
func (e *Engine) stopCall() {
	if e.conn != nil {
		_ = e.conn.Close()
		e.conn = nil
	}
	e.started = false
	if e.state == StateClosed {
		return
	}
	if e.localMediaReady {
		e.setState(StateAwaitingPeer)
	} else {
		e.setState(StateIdle)
	}
}

func (e *Engine) setState(s State) {
	if e.state == s {
		return
	}
	e.state = s
	if e.cfg.OnStateChange != nil {
		e.cfg.OnStateChange(s)
	}
}

func (e *Engine) sendSignal(sig Signal) {
	if err := e.cfg.Sender.SendSignal(sig); err != nil {
		e.cfg.Logger.Warn("failed to send signal", "kind", sig.Kind, "err", err)
	}
}

func (e *Engine) reportError(err error) {
	e.cfg.Logger.Error("negotiation error", "err", err)
	if e.cfg.OnError != nil {
		e.cfg.OnError(err)
	}
}
