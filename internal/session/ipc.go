package session

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/natsbus"
	"github.com/nats-io/nats.go"
)

// IPCCommand is a control request received on natsbus.TopicIPC.
type IPCCommand struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServeIPC answers control requests from octl until the subscription is
// drained.
func (s *Session) ServeIPC(client *natsbus.Client) (*nats.Subscription, error) {
	sub, err := client.Subscribe(natsbus.TopicIPC, s.handleIPC)
	if err != nil {
		return nil, fmt.Errorf("subscribe ipc: %w", err)
	}
	return sub, nil
}

func (s *Session) handleIPC(msg *nats.Msg) {
	var cmd IPCCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		slog.Warn("invalid IPC command", "error", err)
		respondIPC(msg, map[string]any{"error": "invalid command"})
		return
	}

	slog.Info("IPC command received", "type", cmd.Type)

	switch cmd.Type {
	case "set_scope":
		s.ipcSetScope(msg, cmd.Payload)
	case "answer":
		s.ipcAnswer(msg, cmd.Payload)
	case "get_state":
		respondIPC(msg, s.View())
	default:
		slog.Warn("unknown IPC command", "type", cmd.Type)
		respondIPC(msg, map[string]any{"error": "unknown command: " + cmd.Type})
	}
}

func respondIPC(msg *nats.Msg, data any) {
	resp, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to marshal IPC response", "error", err)
		return
	}
	if err := msg.Respond(resp); err != nil {
		slog.Error("failed to respond to IPC", "error", err)
	}
}

func (s *Session) ipcSetScope(msg *nats.Msg, payload json.RawMessage) {
	var req struct {
		ExecutionID string `json:"executionId"`
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			respondIPC(msg, map[string]any{"error": "invalid payload"})
			return
		}
	}
	s.SetScope(req.ExecutionID)
	respondIPC(msg, map[string]any{"ok": true, "executionId": req.ExecutionID})
}

func (s *Session) ipcAnswer(msg *nats.Msg, payload json.RawMessage) {
	var req struct {
		QuestionID string `json:"questionId"`
		Answer     string `json:"answer"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		respondIPC(msg, map[string]any{"error": "invalid payload"})
		return
	}
	if req.QuestionID == "" {
		respondIPC(msg, map[string]any{"error": "questionId is required"})
		return
	}
	if err := s.Answer(req.QuestionID, req.Answer); err != nil {
		respondIPC(msg, map[string]any{"error": err.Error()})
		return
	}
	respondIPC(msg, map[string]any{"ok": true})
}
