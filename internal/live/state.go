package live

import (
	"encoding/json"
	"log/slog"
	"maps"
	"slices"

	"github.com/google/uuid"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

// ExecStatus is the terminal status of the execution as seen by the channel.
type ExecStatus string

const (
	StatusUnknown   ExecStatus = ""
	StatusRunning   ExecStatus = "running"
	StatusCompleted ExecStatus = "completed"
	StatusFailed    ExecStatus = "failed"
)

// Entry is one item of the message log. Output lines are normalized into
// Line/Phase with a fresh ID; every other retained frame keeps Raw verbatim.
type Entry struct {
	ID    string          `json:"id,omitempty"`
	Type  string          `json:"type"`
	Line  string          `json:"line,omitempty"`
	Phase string          `json:"phase,omitempty"`
	Raw   json.RawMessage `json:"raw,omitempty"`
}

type RoleStatus struct {
	VisualStatus string `json:"visualStatus"`
	CurrentTask  string `json:"currentTask,omitempty"`
}

// State is everything the channel derives on its own. BusinessEval and
// Pending are single slots: a new frame replaces the previous value.
type State struct {
	Messages      []Entry                 `json:"messages"`
	Connected     bool                    `json:"connected"`
	CurrentPhase  string                  `json:"currentPhase,omitempty"`
	AgentStatuses map[string]RoleStatus   `json:"agentStatuses"`
	Screenshots   []string                `json:"screenshots"`
	BusinessEval  *protocol.BusinessEval  `json:"businessEval,omitempty"`
	Pending       *protocol.Clarification `json:"pendingQuestion,omitempty"`
	Status        ExecStatus              `json:"status,omitempty"`
}

var newID = uuid.NewString

// Initial returns the empty state used for the null scope and after teardown.
func Initial() State {
	return State{
		Messages:      []Entry{},
		AgentStatuses: map[string]RoleStatus{},
		Screenshots:   []string{},
	}
}

// Reduce applies one message to the channel state and returns the new state.
// The input state is never modified.
func Reduce(st State, msg protocol.Message) State {
	switch msg.Type {
	case protocol.TypeOutput:
		var out protocol.Output
		if !decode(msg, &out) {
			return st
		}
		st.Messages = appendEntry(st.Messages, Entry{
			ID:    newID(),
			Type:  msg.Type,
			Line:  out.Line,
			Phase: out.Phase,
		})

	case protocol.TypeComplete:
		var done protocol.Complete
		if !decode(msg, &done) {
			return st
		}
		st.Status = StatusFailed
		if done.Status == string(StatusCompleted) {
			st.Status = StatusCompleted
		}
		st.Messages = retain(st.Messages, msg)

	case protocol.TypeAgentStatus:
		var as protocol.AgentStatus
		if !decode(msg, &as) {
			return st
		}
		statuses := maps.Clone(st.AgentStatuses)
		if statuses == nil {
			statuses = map[string]RoleStatus{}
		}
		statuses[as.AgentRole] = RoleStatus{VisualStatus: as.VisualStatus, CurrentTask: as.CurrentTask}
		st.AgentStatuses = statuses
		st.Messages = retain(st.Messages, msg)

	case protocol.TypeScreenshot:
		var shot protocol.Screenshot
		if !decode(msg, &shot) {
			return st
		}
		st.Screenshots = append(st.Screenshots[:len(st.Screenshots):len(st.Screenshots)], shot.Screenshot)
		st.Messages = retain(st.Messages, msg)

	case protocol.TypeBusinessEval:
		var eval protocol.BusinessEval
		if !decode(msg, &eval) {
			return st
		}
		st.BusinessEval = &eval
		st.Messages = retain(st.Messages, msg)

	case protocol.TypeExecutionStart:
		st.CurrentPhase = protocol.FirstPhase
		st.Status = StatusRunning

	case protocol.TypeExecutionSnapshot:
		var snap protocol.ExecutionSnapshot
		if !decode(msg, &snap) || snap.Execution == nil {
			return st
		}
		if snap.Execution.Status != "" {
			st.Status = ExecStatus(snap.Execution.Status)
		}
		if step, ok := snap.Execution.RunningStep(); ok {
			st.CurrentPhase = step.Phase
		}

	case protocol.TypeClarification:
		var q protocol.Clarification
		if !decode(msg, &q) {
			return st
		}
		st.Pending = &q
		st.Messages = retain(st.Messages, msg)

	default:
		// Agent lifecycle, file activity, phase and unknown types are kept
		// for downstream aggregation.
		st.Messages = retain(st.Messages, msg)
	}
	return st
}

// Answer clears the pending question when it matches questionID.
func Answer(st State, questionID string) (State, bool) {
	if st.Pending == nil || st.Pending.QuestionID != questionID {
		return st, false
	}
	st.Pending = nil
	return st, true
}

// SetConnected records the connection flag.
func SetConnected(st State, connected bool) State {
	st.Connected = connected
	return st
}

// Clone returns a deep copy safe to hand to another goroutine.
func (st State) Clone() State {
	out := st
	out.Messages = slices.Clone(st.Messages)
	out.Screenshots = slices.Clone(st.Screenshots)
	out.AgentStatuses = maps.Clone(st.AgentStatuses)
	if st.BusinessEval != nil {
		eval := *st.BusinessEval
		out.BusinessEval = &eval
	}
	if st.Pending != nil {
		q := *st.Pending
		q.Options = slices.Clone(st.Pending.Options)
		out.Pending = &q
	}
	return out
}

func decode(msg protocol.Message, v any) bool {
	if err := msg.Payload(v); err != nil {
		slog.Warn("dropping undecodable message", "type", msg.Type, "error", err)
		return false
	}
	return true
}

func retain(log []Entry, msg protocol.Message) []Entry {
	return appendEntry(log, Entry{Type: msg.Type, Raw: msg.Raw})
}

// appendEntry never writes into a backing array shared with the caller's state.
func appendEntry(log []Entry, e Entry) []Entry {
	return append(log[:len(log):len(log)], e)
}
