package negotiation

import (
	"errors"
	"fmt"
)

var (
	// ErrMediaUnavailable wraps local media acquisition failures. The engine
	// returns to idle so a later start request can retry.
	ErrMediaUnavailable = errors.New("local media unavailable")

	// ErrEngineClosed is reported for operations posted after Close.
	ErrEngineClosed = errors.New("negotiation engine closed")
)

// DescriptionError reports a failed step of the offer/answer exchange. The
// engine's flags and state are left as they were so the peer can retry or
// hang up.
type DescriptionError struct {
	Step string
	Err  error
}

func (e *DescriptionError) Error() string {
	return fmt.Sprintf("negotiation %s: %v", e.Step, e.Err)
}

func (e *DescriptionError) Unwrap() error { return e.Err }
