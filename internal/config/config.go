package config

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

const (
	envVarListenAddr      = "RENDEZVOUS_LISTEN_ADDR"
	envVarMode            = "RENDEZVOUS_MODE"
	envVarLogFormat       = "RENDEZVOUS_LOG_FORMAT"
	envVarLogLevel        = "RENDEZVOUS_LOG_LEVEL"
	envVarShutdownTimeout = "RENDEZVOUS_SHUTDOWN_TIMEOUT"

	// Signaling WebSocket hardening.
	envVarWSIdleTimeout                 = "RENDEZVOUS_WS_IDLE_TIMEOUT"
	envVarWSPingInterval                = "RENDEZVOUS_WS_PING_INTERVAL"
	envVarMaxSignalingMessageBytes      = "RENDEZVOUS_MAX_SIGNALING_MESSAGE_BYTES"
	envVarMaxSignalingMessagesPerSecond = "RENDEZVOUS_MAX_SIGNALING_MESSAGES_PER_SECOND"
	envVarMaxRoomNameBytes              = "RENDEZVOUS_MAX_ROOM_NAME_BYTES"
)

const (
	DefaultListenAddr           = ":9000"
	DefaultMode                 = ModeDev
	DefaultShutdown             = 15 * time.Second
	DefaultWSIdleTimeout        = 60 * time.Second
	DefaultWSPingInterval       = 25 * time.Second
	DefaultMaxMessageBytes      = int64(64 * 1024)
	DefaultMaxMessagesPerSecond = 50
	DefaultMaxRoomNameBytes     = 256
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type Config struct {
	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	// Signaling WebSocket hardening.
	WSIdleTimeout                 time.Duration
	WSPingInterval                time.Duration
	MaxSignalingMessageBytes      int64
	MaxSignalingMessagesPerSecond int
	MaxRoomNameBytes              int

	// ICEServers is handed to peers via /webrtc/ice so both sides of a room use
	// the same STUN/TURN set. The server itself never opens ICE sockets.
	ICEServers []webrtc.ICEServer
}

func Load(args []string) (Config, error) {
	return load(os.LookupEnv, args)
}

func load(lookup func(string) (string, bool), args []string) (Config, error) {
	envMode, _ := lookup(envVarMode)
	modeDefault := string(DefaultMode)
	if envMode != "" {
		modeDefault = envMode
	}

	envLogFormat, envLogFormatOK := lookup(envVarLogFormat)
	envLogFormatSet := envLogFormatOK && envLogFormat != ""
	logFormatDefault := envLogFormat
	if !envLogFormatSet {
		logFormatDefault = defaultLogFormatForMode(modeDefault)
	}

	envLogLevel, envLogLevelOK := lookup(envVarLogLevel)
	envLogLevelSet := envLogLevelOK && envLogLevel != ""
	logLevelDefault := envLogLevel
	if !envLogLevelSet {
		logLevelDefault = defaultLogLevelForMode(modeDefault)
	}

	listenAddr := envOrDefault(lookup, envVarListenAddr, DefaultListenAddr)
	iceServersJSON := envOrDefault(lookup, envICEServersJSON, "")
	stunURLs := envOrDefault(lookup, envStunURLs, "")
	turnURLs := envOrDefault(lookup, envTurnURLs, "")
	turnUsername := envOrDefault(lookup, envTurnUsername, "")
	turnCredential := envOrDefault(lookup, envTurnCredential, "")

	shutdownTimeout := DefaultShutdown
	if raw, ok := lookup(envVarShutdownTimeout); ok && raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s %q: %w", envVarShutdownTimeout, raw, err)
		}
		shutdownTimeout = d
	}

	wsIdleTimeout, err := envDurationOrDefault(lookup, envVarWSIdleTimeout, DefaultWSIdleTimeout)
	if err != nil {
		return Config{}, err
	}
	wsPingInterval, err := envDurationOrDefault(lookup, envVarWSPingInterval, DefaultWSPingInterval)
	if err != nil {
		return Config{}, err
	}
	maxMessageBytes, err := envInt64OrDefault(lookup, envVarMaxSignalingMessageBytes, DefaultMaxMessageBytes)
	if err != nil {
		return Config{}, err
	}
	maxMessagesPerSecond, err := envIntOrDefault(lookup, envVarMaxSignalingMessagesPerSecond, DefaultMaxMessagesPerSecond)
	if err != nil {
		return Config{}, err
	}
	maxRoomNameBytes, err := envIntOrDefault(lookup, envVarMaxRoomNameBytes, DefaultMaxRoomNameBytes)
	if err != nil {
		return Config{}, err
	}

	fs := flag.NewFlagSet("rendezvousd", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var (
		modeStr      string
		logFormatStr string
		logLevelStr  string
	)

	fs.StringVar(&listenAddr, "listen-addr", listenAddr, "HTTP listen address (host:port; env "+envVarListenAddr+")")
	fs.StringVar(&modeStr, "mode", modeDefault, "Run mode: dev or prod (env "+envVarMode+")")
	fs.StringVar(&logFormatStr, "log-format", logFormatDefault, "Log format: text or json (env "+envVarLogFormat+")")
	fs.StringVar(&logLevelStr, "log-level", logLevelDefault, "Log level: debug, info, warn, error (env "+envVarLogLevel+")")
	fs.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "Graceful shutdown timeout (e.g. 15s; env "+envVarShutdownTimeout+")")
	fs.DurationVar(&wsIdleTimeout, "ws-idle-timeout", wsIdleTimeout, "Close idle signaling WebSocket connections after this duration (env "+envVarWSIdleTimeout+")")
	fs.DurationVar(&wsPingInterval, "ws-ping-interval", wsPingInterval, "Send ping frames on signaling WebSocket connections at this interval (must be < --ws-idle-timeout; env "+envVarWSPingInterval+")")
	fs.Int64Var(&maxMessageBytes, "max-signaling-message-bytes", maxMessageBytes, "Max inbound signaling WS message size in bytes (env "+envVarMaxSignalingMessageBytes+")")
	fs.IntVar(&maxMessagesPerSecond, "max-signaling-messages-per-second", maxMessagesPerSecond, "Max inbound signaling WS messages per second per connection (env "+envVarMaxSignalingMessagesPerSecond+")")
	fs.IntVar(&maxRoomNameBytes, "max-room-name-bytes", maxRoomNameBytes, "Max room name length in bytes (env "+envVarMaxRoomNameBytes+")")
	fs.StringVar(&iceServersJSON, "ice-servers-json", iceServersJSON, "ICE server JSON config (env "+envICEServersJSON+")")
	fs.StringVar(&stunURLs, "stun-urls", stunURLs, "Comma-separated STUN URLs (env "+envStunURLs+")")
	fs.StringVar(&turnURLs, "turn-urls", turnURLs, "Comma-separated TURN URLs (env "+envTurnURLs+")")
	fs.StringVar(&turnUsername, "turn-username", turnUsername, "TURN username (env "+envTurnUsername+")")
	fs.StringVar(&turnCredential, "turn-credential", turnCredential, "TURN credential (env "+envTurnCredential+")")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	setFlags := map[string]bool{}
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	mode, err := parseMode(modeStr)
	if err != nil {
		return Config{}, err
	}

	if !envLogFormatSet && !setFlags["log-format"] {
		logFormatStr = defaultLogFormatForMode(string(mode))
	}
	if !envLogLevelSet && !setFlags["log-level"] {
		logLevelStr = defaultLogLevelForMode(string(mode))
	}

	logFormat, err := parseLogFormat(logFormatStr)
	if err != nil {
		return Config{}, err
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	if shutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid shutdown timeout %s (must be > 0)", shutdownTimeout)
	}
	if wsIdleTimeout <= 0 {
		return Config{}, fmt.Errorf("invalid ws idle timeout %s (must be > 0)", wsIdleTimeout)
	}
	if wsPingInterval <= 0 || wsPingInterval >= wsIdleTimeout {
		return Config{}, fmt.Errorf("invalid ws ping interval %s (must be > 0 and < idle timeout %s)", wsPingInterval, wsIdleTimeout)
	}
	if maxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("invalid max signaling message bytes %d (must be > 0)", maxMessageBytes)
	}
	if maxMessagesPerSecond <= 0 {
		return Config{}, fmt.Errorf("invalid max signaling messages per second %d (must be > 0)", maxMessagesPerSecond)
	}
	if maxRoomNameBytes <= 0 {
		return Config{}, fmt.Errorf("invalid max room name bytes %d (must be > 0)", maxRoomNameBytes)
	}

	iceServers, err := parseICEServersFromValues(iceServersJSON, stunURLs, turnURLs, turnUsername, turnCredential)
	if err != nil {
		return Config{}, err
	}

	return Config{
		ListenAddr:      listenAddr,
		Mode:            mode,
		LogFormat:       logFormat,
		LogLevel:        level,
		ShutdownTimeout: shutdownTimeout,

		WSIdleTimeout:                 wsIdleTimeout,
		WSPingInterval:                wsPingInterval,
		MaxSignalingMessageBytes:      maxMessageBytes,
		MaxSignalingMessagesPerSecond: maxMessagesPerSecond,
		MaxRoomNameBytes:              maxRoomNameBytes,

		ICEServers: iceServers,
	}, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func envOrDefault(lookup func(string) (string, bool), key, fallback string) string {
	if v, ok := lookup(key); ok && v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(lookup func(string) (string, bool), key string, fallback int) (int, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envInt64OrDefault(lookup func(string) (string, bool), key string, fallback int64) (int64, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return n, nil
}

func envDurationOrDefault(lookup func(string) (string, bool), key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	return d, nil
}

func defaultLogFormatForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return string(LogFormatJSON)
	default:
		return string(LogFormatText)
	}
}

func defaultLogLevelForMode(mode string) string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case string(ModeProd), "production":
		return "info"
	default:
		return "debug"
	}
}

func parseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(ModeDev), "development":
		return ModeDev, nil
	case string(ModeProd), "production":
		return ModeProd, nil
	default:
		return "", fmt.Errorf("invalid mode %q (expected dev or prod)", raw)
	}
}

func parseLogFormat(raw string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogFormatText):
		return LogFormatText, nil
	case string(LogFormatJSON):
		return LogFormatJSON, nil
	default:
		return "", fmt.Errorf("invalid log format %q (expected text or json)", raw)
	}
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", raw)
	}
}
