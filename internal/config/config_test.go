package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func lookupMap(m map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func noEnv() func(string) (string, bool) {
	return func(string) (string, bool) { return "", false }
}

func TestDefaultsDev(t *testing.T) {
	cfg, err := load(noEnv(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeDev {
		t.Fatalf("mode=%q, want %q", cfg.Mode, ModeDev)
	}
	if cfg.LogFormat != LogFormatText {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatText)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelDebug)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.ShutdownTimeout != DefaultShutdown {
		t.Fatalf("ShutdownTimeout=%v, want %v", cfg.ShutdownTimeout, DefaultShutdown)
	}
	if cfg.WSIdleTimeout != DefaultWSIdleTimeout {
		t.Fatalf("WSIdleTimeout=%v, want %v", cfg.WSIdleTimeout, DefaultWSIdleTimeout)
	}
	if cfg.WSPingInterval != DefaultWSPingInterval {
		t.Fatalf("WSPingInterval=%v, want %v", cfg.WSPingInterval, DefaultWSPingInterval)
	}
	if cfg.MaxSignalingMessageBytes != DefaultMaxMessageBytes {
		t.Fatalf("MaxSignalingMessageBytes=%d, want %d", cfg.MaxSignalingMessageBytes, DefaultMaxMessageBytes)
	}
	if cfg.MaxSignalingMessagesPerSecond != DefaultMaxMessagesPerSecond {
		t.Fatalf("MaxSignalingMessagesPerSecond=%d, want %d", cfg.MaxSignalingMessagesPerSecond, DefaultMaxMessagesPerSecond)
	}
	if cfg.MaxRoomNameBytes != DefaultMaxRoomNameBytes {
		t.Fatalf("MaxRoomNameBytes=%d, want %d", cfg.MaxRoomNameBytes, DefaultMaxRoomNameBytes)
	}
	if len(cfg.ICEServers) != 0 {
		t.Fatalf("expected no ICE servers by default, got %v", cfg.ICEServers)
	}
}

func TestProdModeDefaultsToJSONInfo(t *testing.T) {
	cfg, err := load(lookupMap(map[string]string{envVarMode: "prod"}), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Fatalf("logFormat=%q, want %q", cfg.LogFormat, LogFormatJSON)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Fatalf("logLevel=%v, want %v", cfg.LogLevel, slog.LevelInfo)
	}
}

func TestFlagsOverrideEnv(t *testing.T) {
	env := lookupMap(map[string]string{
		envVarListenAddr:    ":7777",
		envVarWSIdleTimeout: "90s",
	})
	cfg, err := load(env, []string{"--listen-addr", ":8888", "--ws-idle-timeout", "2m"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ListenAddr != ":8888" {
		t.Fatalf("listenAddr=%q, want %q", cfg.ListenAddr, ":8888")
	}
	if cfg.WSIdleTimeout != 2*time.Minute {
		t.Fatalf("WSIdleTimeout=%v, want %v", cfg.WSIdleTimeout, 2*time.Minute)
	}
}

func TestRejectsPingIntervalNotBelowIdleTimeout(t *testing.T) {
	_, err := load(noEnv(), []string{"--ws-ping-interval", "60s", "--ws-idle-timeout", "60s"})
	if err == nil {
		t.Fatalf("expected error for ping interval >= idle timeout")
	}
	if !strings.Contains(err.Error(), "ping interval") {
		t.Fatalf("err=%v, want mention of ping interval", err)
	}
}

func TestRejectsInvalidDurationEnv(t *testing.T) {
	_, err := load(lookupMap(map[string]string{envVarWSIdleTimeout: "soon"}), nil)
	if err == nil {
		t.Fatalf("expected error for invalid %s", envVarWSIdleTimeout)
	}
}

func TestRejectsInvalidMode(t *testing.T) {
	_, err := load(noEnv(), []string{"--mode", "staging"})
	if err == nil {
		t.Fatalf("expected error for invalid mode")
	}
}

func TestICEServersFromConvenienceEnv(t *testing.T) {
	env := lookupMap(map[string]string{
		envStunURLs:       "stun:stun.l.google.com:19302",
		envTurnURLs:       "turn:turn.example.com:3478",
		envTurnUsername:   "user",
		envTurnCredential: "pass",
	})
	cfg, err := load(env, nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.ICEServers) != 2 {
		t.Fatalf("len(ICEServers)=%d, want 2", len(cfg.ICEServers))
	}
	if cfg.ICEServers[1].Username != "user" {
		t.Fatalf("turn username=%q, want %q", cfg.ICEServers[1].Username, "user")
	}
}

func TestICEServersTurnWithoutCredentialsRejected(t *testing.T) {
	env := lookupMap(map[string]string{
		envTurnURLs: "turn:turn.example.com:3478",
	})
	if _, err := load(env, nil); err == nil {
		t.Fatalf("expected error for TURN urls without credentials")
	}
}
