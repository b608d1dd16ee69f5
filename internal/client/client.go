// Package client is the participant side of the signaling socket.
package client

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mirrorlake/rendezvous/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the WebSocket connection to the rendezvous server. Incoming
// envelopes are delivered on Incoming; the channel closes when the
// connection drops.
type Client struct {
	serverURL string

	conn     *websocket.Conn
	incoming chan signaling.Message
	outgoing chan signaling.Message
	done     chan struct{}
}

func New(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan signaling.Message, 8),
		outgoing:  make(chan signaling.Message, 8),
		done:      make(chan struct{}),
	}
}

// Connect dials the server and starts the read and write pumps.
func (c *Client) Connect() error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect %s: %w", u.String(), err)
	}
	c.conn = conn

	conn.SetReadLimit(maxMessageSize)
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// Incoming returns the channel of server envelopes.
func (c *Client) Incoming() <-chan signaling.Message {
	return c.incoming
}

// Join asks the server to place this client in the named room.
func (c *Client) Join(room string) error {
	return c.send(signaling.Message{Type: signaling.MessageTypeCreateOrJoin, Room: room})
}

// SendPayload relays an opaque handshake payload to the room peer.
func (c *Client) SendPayload(payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return c.send(signaling.Message{Type: signaling.MessageTypeSignal, Payload: raw})
}

// Bye tells the server this client is leaving its room.
func (c *Client) Bye() error {
	return c.send(signaling.Message{Type: signaling.MessageTypeBye})
}

func (c *Client) send(msg signaling.Message) error {
	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return fmt.Errorf("client closed")
	}
}

// Close stops the pumps and closes the connection.
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
		close(c.done)
	}
	return nil
}

func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var msg signaling.Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))

		select {
		case c.incoming <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
