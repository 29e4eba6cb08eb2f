package office

import (
	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

type VisualStatus string

const (
	Idle    VisualStatus = "idle"
	Working VisualStatus = "working"
	Done    VisualStatus = "done"
	Error   VisualStatus = "error"
)

// AgentNode is one participant in the office view. Role is the identity key:
// a fixed role name for legacy agents, the spawned id for dynamic ones.
type AgentNode struct {
	Role         string       `json:"role"`
	Name         string       `json:"name"`
	Color        string       `json:"color"`
	Icon         string       `json:"icon"`
	VisualStatus VisualStatus `json:"visualStatus"`
	CurrentTask  string       `json:"currentTask,omitempty"`
}

// Connection is a directed edge between two roles. At most one is stored per
// (From, To) pair.
type Connection struct {
	From     string `json:"from"`
	To       string `json:"to"`
	Label    string `json:"label"`
	Active   bool   `json:"active"`
	DataFlow string `json:"dataFlow"`
}

type State struct {
	Agents       []AgentNode  `json:"agents"`
	Connections  []Connection `json:"connections"`
	CurrentPhase *string      `json:"currentPhase"`
	ExecutionID  *string      `json:"executionId"`
}

func emptyState() State {
	return State{Agents: []AgentNode{}, Connections: []Connection{}}
}

// Clone returns a deep copy.
func (s State) Clone() State {
	out := State{
		Agents:      append([]AgentNode{}, s.Agents...),
		Connections: append([]Connection{}, s.Connections...),
	}
	if s.CurrentPhase != nil {
		p := *s.CurrentPhase
		out.CurrentPhase = &p
	}
	if s.ExecutionID != nil {
		id := *s.ExecutionID
		out.ExecutionID = &id
	}
	return out
}

// Agent returns the node for role.
func (s State) Agent(role string) (AgentNode, bool) {
	for _, a := range s.Agents {
		if a.Role == role {
			return a, true
		}
	}
	return AgentNode{}, false
}

// Connection returns the edge for (from, to).
func (s State) Connection(from, to string) (Connection, bool) {
	for _, c := range s.Connections {
		if c.From == from && c.To == to {
			return c, true
		}
	}
	return Connection{}, false
}

// Style is the presentation hint for a role.
type Style struct {
	Name  string
	Color string
	Icon  string
}

var roleStyles = map[string]Style{
	"orchestrator": {Name: "Orchestrator", Color: "#8b5cf6", Icon: "brain"},
	"developer":    {Name: "Developer", Color: "#3b82f6", Icon: "code"},
	"tester":       {Name: "Tester", Color: "#22c55e", Icon: "flask"},
	"devsecops":    {Name: "Security", Color: "#ef4444", Icon: "shield"},
	"business-dev": {Name: "Business Analyst", Color: "#f59e0b", Icon: "chart"},
}

// LegacyRoles is the fixed roster of the single-phase-agent protocol.
var LegacyRoles = []string{"orchestrator", "developer", "tester", "devsecops", "business-dev"}

// DefaultRole owns pipeline steps whose role cannot be resolved.
const DefaultRole = "developer"

var phaseRoles = map[string]string{
	"plan":          "orchestrator",
	"planning":      "orchestrator",
	"develop":       "developer",
	"development":   "developer",
	"implement":     "developer",
	"test":          "tester",
	"testing":       "tester",
	"security":      "devsecops",
	"security-scan": "devsecops",
	"business-eval": "business-dev",
	"review":        "orchestrator",
	"report":        "orchestrator",
}

// StyleFor returns the style of a known role, or a neutral style named
// after the role.
func StyleFor(role string) Style {
	if s, ok := roleStyles[role]; ok {
		return s
	}
	return Style{Name: role, Color: "#64748b", Icon: "bot"}
}

// ResolveRole picks the agent responsible for a pipeline step: the explicit
// agentRole, else the phase table, else DefaultRole.
func ResolveRole(step protocol.PipelineStep) string {
	if step.AgentRole != "" {
		return step.AgentRole
	}
	if role, ok := phaseRoles[step.Phase]; ok {
		return role
	}
	return DefaultRole
}

func newNode(role string) AgentNode {
	style := StyleFor(role)
	return AgentNode{
		Role:         role,
		Name:         style.Name,
		Color:        style.Color,
		Icon:         style.Icon,
		VisualStatus: Idle,
	}
}
