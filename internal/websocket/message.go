package websocket

import (
	"encoding/json"

	"github.com/rs/zerolog/log"
)

// Message defines the structure for websocket messages.
type Message struct {
	Action  string      `json:"action"`
	Payload interface{} `json:"payload,omitempty"`
}

// Actions exchanged over the socket.
const (
	ActionEvent = "event"
	ActionPing  = "ping"
	ActionPong  = "pong"
	ActionError = "error"
)

func encode(msg Message) []byte {
	b, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("action", msg.Action).Msg("Failed to encode websocket message")
		return nil
	}
	return b
}

// NewErrorMessage builds an error frame.
func NewErrorMessage(text string) []byte {
	return encode(Message{Action: ActionError, Payload: map[string]string{"message": text}})
}

// NewPongMessage builds the reply to a client ping.
func NewPongMessage() []byte {
	return encode(Message{Action: ActionPong})
}
