package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Message types pushed by the execution backend.
const (
	TypeOutput            = "output"
	TypeComplete          = "complete"
	TypeAgentStatus       = "agent-status"
	TypeScreenshot        = "screenshot"
	TypeBusinessEval      = "business-eval"
	TypeExecutionStart    = "execution-start"
	TypeExecutionSnapshot = "execution-snapshot"
	TypeClarification     = "clarification"
	TypeAgentSpawn        = "agent-spawn"
	TypeAgentOutput       = "agent-output"
	TypeAgentComplete     = "agent-complete"
	TypeAgentConnection   = "agent-connection"
	TypePhase             = "phase"
	TypeFileActivity      = "file-activity"

	TypeClarificationResponse = "clarification-response"
)

var ErrMissingType = errors.New("message has no type")

// Message is one frame received from the live channel. Raw keeps the full
// JSON object so unknown types survive unchanged.
type Message struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"raw"`
}

// Decode parses a wire frame. The frame must be a JSON object with a
// string "type" field.
func Decode(data []byte) (Message, error) {
	var head struct {
		Type *string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Message{}, fmt.Errorf("decode message: %w", err)
	}
	if head.Type == nil || *head.Type == "" {
		return Message{}, ErrMissingType
	}
	raw := make(json.RawMessage, len(data))
	copy(raw, data)
	return Message{Type: *head.Type, Raw: raw}, nil
}

// New builds a message of the given type from a payload struct. Used by
// tests and by components that synthesize frames.
func New(msgType string, payload any) (Message, error) {
	fields := map[string]any{}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshal payload: %w", err)
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return Message{}, fmt.Errorf("payload is not an object: %w", err)
		}
	}
	fields["type"] = msgType
	data, err := json.Marshal(fields)
	if err != nil {
		return Message{}, fmt.Errorf("marshal message: %w", err)
	}
	return Message{Type: msgType, Raw: data}, nil
}

// Payload decodes the message body into v.
func (m Message) Payload(v any) error {
	if len(m.Raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Raw, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", m.Type, err)
	}
	return nil
}
