package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// MessageType discriminates the JSON envelopes exchanged over the signaling
// socket. Clients send CreateOrJoin, Signal and Bye; the remaining types are
// server-originated notifications.
type MessageType string

const (
	// MessageTypeCreateOrJoin asks the server to place the sender in a named
	// room, creating it if necessary.
	MessageTypeCreateOrJoin MessageType = "create-or-join"
	// MessageTypeSignal carries an opaque handshake payload to be relayed to
	// the sender's room peer.
	MessageTypeSignal MessageType = "message"
	// MessageTypeBye announces that the sender is leaving its room.
	MessageTypeBye MessageType = "bye"

	// MessageTypeCreated tells a participant it opened a new room.
	MessageTypeCreated MessageType = "created"
	// MessageTypeJoined tells a participant it took the second slot.
	MessageTypeJoined MessageType = "joined"
	// MessageTypePeerJoined tells the creator its peer has arrived.
	MessageTypePeerJoined MessageType = "peer-joined"
	// MessageTypeChannelReady tells both members the room is paired and
	// handshake payloads may flow.
	MessageTypeChannelReady MessageType = "channel-ready"
	// MessageTypeFull rejects a join attempt on an occupied room.
	MessageTypeFull MessageType = "full"
)

// Message is the wire envelope. Payload is opaque to the server: it is
// relayed byte for byte and only ever interpreted by the peers themselves.
type Message struct {
	Type     MessageType     `json:"type"`
	Room     string          `json:"room,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// ParseMessage decodes and validates a single client-originated envelope.
func ParseMessage(data []byte) (Message, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var msg Message
	if err := dec.Decode(&msg); err != nil {
		return Message{}, err
	}
	if err := msg.Validate(); err != nil {
		return Message{}, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Message{}, fmt.Errorf("unexpected trailing data")
	}
	return msg, nil
}

// Validate checks that a client-originated message carries exactly the
// fields its type requires. Server-originated types are rejected outright.
func (m Message) Validate() error {
	switch m.Type {
	case MessageTypeCreateOrJoin:
		if m.Room == "" {
			return fmt.Errorf("create-or-join message missing room")
		}
		if m.ClientID != "" || len(m.Payload) != 0 {
			return fmt.Errorf("create-or-join message has unexpected fields")
		}
	case MessageTypeSignal:
		if len(m.Payload) == 0 {
			return fmt.Errorf("signal message missing payload")
		}
		if m.Room != "" || m.ClientID != "" {
			return fmt.Errorf("signal message has unexpected fields")
		}
	case MessageTypeBye:
		if m.Room != "" || m.ClientID != "" || len(m.Payload) != 0 {
			return fmt.Errorf("bye message has unexpected fields")
		}
	case MessageTypeCreated, MessageTypeJoined, MessageTypePeerJoined, MessageTypeChannelReady, MessageTypeFull:
		return fmt.Errorf("message type %q is server-originated", m.Type)
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}
