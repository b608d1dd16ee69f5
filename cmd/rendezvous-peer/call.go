package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/spf13/cobra"

	"github.com/mirrorlake/rendezvous/internal/client"
	"github.com/mirrorlake/rendezvous/internal/config"
	"github.com/mirrorlake/rendezvous/internal/negotiation"
	"github.com/mirrorlake/rendezvous/internal/signaling"
	"github.com/mirrorlake/rendezvous/internal/webrtcpeer"
)

var (
	flagServer  string
	flagAudio   bool
	flagVideo   bool
	flagVerbose bool
)

var callCmd = &cobra.Command{
	Use:   "call <room>",
	Short: "Join a room and negotiate a call with its other member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCall(args[0])
	},
}

func init() {
	callCmd.Flags().StringVar(&flagServer, "server", "ws://localhost:9000/ws", "rendezvousd WebSocket URL")
	callCmd.Flags().BoolVar(&flagAudio, "audio", true, "negotiate an audio track")
	callCmd.Flags().BoolVar(&flagVideo, "video", false, "negotiate a video track")
	callCmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	rootCmd.AddCommand(callCmd)
}

func runCall(room string) error {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	iceServers, err := fetchICEServers(flagServer)
	if err != nil {
		logger.Warn("could not fetch ice servers, continuing without", "err", err)
	}

	c := client.New(flagServer)
	if err := c.Connect(); err != nil {
		return err
	}
	defer c.Close()

	transport := webrtcpeer.NewTransport(webrtcpeer.NewAPI(config.Config{LogLevel: level}), iceServers)
	transport.OnConnectionState = func(state webrtc.PeerConnectionState) {
		logger.Info("connection state", "state", state.String())
	}
	transport.OnRemoteTrack = func(mimeType string) {
		logger.Info("remote track", "codec", mimeType)
	}

	engine := negotiation.New(negotiation.Config{
		Transport:   transport,
		Sender:      payloadSender{c},
		Logger:      logger,
		Constraints: negotiation.MediaConstraints{Audio: flagAudio, Video: flagVideo},
		OnStateChange: func(s negotiation.State) {
			logger.Info("negotiation state", "state", s)
		},
	})
	defer engine.Close()

	if err := c.Join(room); err != nil {
		return err
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	for {
		select {
		case msg, ok := <-c.Incoming():
			if !ok {
				return fmt.Errorf("connection to server lost")
			}
			if err := dispatch(logger, engine, msg); err != nil {
				return err
			}
		case <-sigCh:
			logger.Info("hanging up")
			engine.Hangup()
			_ = c.Bye()
			// Let the bye drain before tearing the socket down.
			time.Sleep(100 * time.Millisecond)
			return nil
		}
	}
}

func dispatch(logger *slog.Logger, engine *negotiation.Engine, msg signaling.Message) error {
	switch msg.Type {
	case signaling.MessageTypeCreated:
		logger.Info("room created, waiting for peer", "room", msg.Room, "client_id", msg.ClientID)
		engine.SetInitiator(true)
		engine.RequestStart()
	case signaling.MessageTypeJoined:
		logger.Info("joined room", "room", msg.Room, "client_id", msg.ClientID)
		engine.SetInitiator(false)
		engine.RequestStart()
	case signaling.MessageTypePeerJoined:
		logger.Info("peer joined", "client_id", msg.ClientID)
		engine.PeerChannelReady()
	case signaling.MessageTypeChannelReady:
		engine.PeerChannelReady()
	case signaling.MessageTypeSignal:
		var sig negotiation.Signal
		if err := json.Unmarshal(msg.Payload, &sig); err != nil {
			logger.Warn("undecodable payload from peer", "err", err)
			return nil
		}
		engine.HandleSignal(sig)
	case signaling.MessageTypeBye:
		logger.Info("peer left the room")
		engine.HandleSignal(negotiation.Signal{Kind: negotiation.SignalBye})
	case signaling.MessageTypeFull:
		return fmt.Errorf("room %q is full", msg.Room)
	default:
		logger.Warn("unexpected message from server", "type", msg.Type)
	}
	return nil
}

// payloadSender adapts the signaling client to the engine's Sender.
type payloadSender struct {
	c *client.Client
}

func (s payloadSender) SendSignal(sig negotiation.Signal) error {
	return s.c.SendPayload(sig)
}

// fetchICEServers asks the server for its STUN/TURN set over the HTTP side
// of the same endpoint.
func fetchICEServers(wsURL string) ([]webrtc.ICEServer, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/ws") + "/webrtc/ice"

	httpClient := &http.Client{Timeout: 5 * time.Second}
	resp, err := httpClient.Get(u.String())
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body struct {
		ICEServers []webrtc.ICEServer `json:"iceServers"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	return body.ICEServers, nil
}
