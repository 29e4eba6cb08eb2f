package protocol

import "encoding/json"

type Output struct {
	Line  string `json:"line"`
	Phase string `json:"phase,omitempty"`
}

type Complete struct {
	Status string `json:"status"`
}

// AgentStatus is the legacy per-role status update.
type AgentStatus struct {
	AgentRole    string `json:"agentRole"`
	VisualStatus string `json:"visualStatus"`
	CurrentTask  string `json:"currentTask"`
}

type Screenshot struct {
	Screenshot string `json:"screenshot"`
}

type BusinessEval struct {
	Section string          `json:"section"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// FirstPhase is the phase an execution enters on execution-start.
const FirstPhase = "plan"

type PipelineStep struct {
	Phase     string `json:"phase"`
	Status    string `json:"status"`
	AgentRole string `json:"agentRole,omitempty"`
}

// Pipeline step statuses.
const (
	StepPending   = "pending"
	StepRunning   = "running"
	StepCompleted = "completed"
	StepFailed    = "failed"
	StepSkipped   = "skipped"
)

// Execution is the persisted state of an execution, as embedded in
// execution-snapshot frames and returned by the snapshot endpoint.
type Execution struct {
	ID        string         `json:"id,omitempty"`
	Status    string         `json:"status,omitempty"`
	Pipeline  []PipelineStep `json:"pipeline"`
	StartedAt string         `json:"startedAt,omitempty"`
}

// RunningStep returns the first running step, if any.
func (e *Execution) RunningStep() (PipelineStep, bool) {
	for _, s := range e.Pipeline {
		if s.Status == StepRunning {
			return s, true
		}
	}
	return PipelineStep{}, false
}

type ExecutionSnapshot struct {
	Execution *Execution `json:"execution"`
}

type Clarification struct {
	QuestionID string   `json:"questionId"`
	Question   string   `json:"question"`
	Options    []string `json:"options,omitempty"`
	Required   bool     `json:"required,omitempty"`
}

type SpawnedAgent struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color,omitempty"`
	Icon   string `json:"icon,omitempty"`
	Status string `json:"status,omitempty"`
	Task   string `json:"task,omitempty"`
}

type AgentSpawn struct {
	Agent SpawnedAgent `json:"agent"`
}

type AgentOutput struct {
	AgentID       string   `json:"agentId"`
	Line          string   `json:"line,omitempty"`
	Lines         []string `json:"lines,omitempty"`
	FilesModified []string `json:"filesModified,omitempty"`
	FilesRead     []string `json:"filesRead,omitempty"`
}

// AllLines returns Line followed by Lines, skipping an empty Line.
func (o AgentOutput) AllLines() []string {
	out := make([]string, 0, len(o.Lines)+1)
	if o.Line != "" {
		out = append(out, o.Line)
	}
	return append(out, o.Lines...)
}

type AgentComplete struct {
	AgentID string `json:"agentId"`
	Status  string `json:"status"`
}

type AgentConnection struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Label    string `json:"label"`
	Active   bool   `json:"active"`
	DataFlow string `json:"dataFlow"`
}

// Connection data flow kinds.
const (
	FlowHandoff   = "handoff"
	FlowBroadcast = "broadcast"
)

type Phase struct {
	Phase  string `json:"phase"`
	Status string `json:"status"`
}

type FileActivity struct {
	AgentID string `json:"agentId"`
	Path    string `json:"path"`
	Action  string `json:"action"`
}

// IsRead reports whether the activity only read the file.
func (f FileActivity) IsRead() bool {
	return f.Action == "read"
}

// ClarificationResponse is the only frame the client sends upstream.
type ClarificationResponse struct {
	Type       string `json:"type"`
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
}

func NewClarificationResponse(questionID, answer string) ClarificationResponse {
	return ClarificationResponse{
		Type:       TypeClarificationResponse,
		QuestionID: questionID,
		Answer:     answer,
	}
}
