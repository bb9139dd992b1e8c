package gateway

import (
	"encoding/json"
	"fmt"

	"chat-presence/domain"

	"github.com/go-playground/validator/v10"
)

// frame is the inbound counterpart of Envelope; the payload stays raw
// until the event name selects a command type.
type frame struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Decoder turns wire frames into the typed command union. Unknown event
// names and invalid payloads are rejected before any engine call.
type Decoder struct {
	validate *validator.Validate
}

func NewDecoder() *Decoder {
	return &Decoder{validate: validator.New()}
}

func (d *Decoder) Decode(raw []byte) (domain.Command, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}

	var cmd domain.Command
	switch f.Event {
	case "authenticate":
		cmd = &domain.AuthenticateCommand{}
	case "heartbeat":
		cmd = &domain.HeartbeatCommand{}
	case "app_state_change":
		cmd = &domain.AppStateCommand{}
	case "typing:start":
		cmd = &domain.TypingStartCommand{}
	case "typing:stop":
		cmd = &domain.TypingStopCommand{}
	case "message:send":
		cmd = &domain.SendMessageCommand{}
	case "message:read":
		cmd = &domain.MarkReadCommand{}
	case "conversation_opened":
		cmd = &domain.ConversationOpenedCommand{}
	default:
		return nil, fmt.Errorf("unknown event %q", f.Event)
	}

	if len(f.Payload) > 0 {
		if err := json.Unmarshal(f.Payload, cmd); err != nil {
			return nil, fmt.Errorf("malformed %s payload: %w", f.Event, err)
		}
	}
	if err := d.validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", f.Event, err)
	}
	return cmd, nil
}
