// Package webrtcpeer backs the negotiation engine with pion.
package webrtcpeer

import (
	"log/slog"

	"github.com/pion/logging"
	"github.com/pion/webrtc/v4"

	"github.com/mirrorlake/rendezvous/internal/config"
)

// NewAPI builds the shared pion API object. Pion's own logging is routed
// through its default factory at a level derived from ours.
func NewAPI(cfg config.Config) *webrtc.API {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = pionLogLevel(cfg.LogLevel)

	se := webrtc.SettingEngine{LoggerFactory: lf}
	return webrtc.NewAPI(webrtc.WithSettingEngine(se))
}

// pionLogLevel maps our slog level onto pion's. Pion is chatty at info, so
// anything below debug is clamped to warn.
func pionLogLevel(l slog.Level) logging.LogLevel {
	switch {
	case l <= slog.LevelDebug:
		return logging.LogLevelDebug
	case l >= slog.LevelError:
		return logging.LogLevelError
	default:
		return logging.LogLevelWarn
	}
}
