package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

type Message struct {
	Seq         int64           `json:"seq"`
	ExecutionID string          `json:"execution_id"`
	Type        string          `json:"type"`
	Payload     json.RawMessage `json:"payload"`
	ReceivedAt  time.Time       `json:"received_at"`
}

// Protocol returns the journaled frame as a live message.
func (m Message) Protocol() protocol.Message {
	return protocol.Message{Type: m.Type, Raw: m.Payload}
}

func (s *Store) Append(executionID string, msg protocol.Message) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO messages (execution_id, type, payload)
		VALUES (?, ?, ?)`,
		executionID, msg.Type, string(msg.Raw))
	if err != nil {
		return 0, fmt.Errorf("append message: %w", err)
	}
	seq, _ := result.LastInsertId()
	return seq, nil
}

// List returns messages of an execution with seq > after, oldest first.
// A limit <= 0 returns everything.
func (s *Store) List(executionID string, after int64, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`
		SELECT seq, execution_id, type, payload, received_at
		FROM messages
		WHERE execution_id = ? AND seq > ?
		ORDER BY seq
		LIMIT ?`, executionID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []Message
	for rows.Next() {
		var m Message
		var payload string
		if err := rows.Scan(&m.Seq, &m.ExecutionID, &m.Type, &payload, &m.ReceivedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Payload = json.RawMessage(payload)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *Store) Count(executionID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE execution_id = ?`, executionID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return n, nil
}

// Reset empties the journal. Nothing is kept across scopes.
func (s *Store) Reset() error {
	if _, err := s.db.Exec(`DELETE FROM messages`); err != nil {
		return fmt.Errorf("reset journal: %w", err)
	}
	return nil
}
