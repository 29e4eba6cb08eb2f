package office

import (
	"log/slog"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

// RosterPolicy decides what happens to status and connection updates for
// roles that are not on the roster yet.
type RosterPolicy int

const (
	// Discover synthesizes a node for every unknown role.
	Discover RosterPolicy = iota
	// Legacy seeds LegacyRoles on first use and drops unknown roles.
	Legacy
)

// Layout is primed with the agent count whenever the roster grows.
type Layout interface {
	Prime(n int)
}

const processingTask = "Processing..."

// Synchronizer derives the office State of one execution. It is not safe for
// concurrent use; callers serialize access.
type Synchronizer struct {
	policy RosterPolicy
	layout Layout

	version string
	state   State
}

func NewSynchronizer(policy RosterPolicy, layout Layout) *Synchronizer {
	return &Synchronizer{
		policy: policy,
		layout: layout,
		state:  emptyState(),
	}
}

// SetExecution switches scope. A different id clears the state before any
// event for the new execution is applied; an empty id discards it. Returns
// true when the state was reset.
func (s *Synchronizer) SetExecution(id string) bool {
	if id == s.version {
		return false
	}
	s.version = id
	s.state = emptyState()
	if id != "" {
		s.state.ExecutionID = &id
	}
	return true
}

// State returns a copy of the current office state.
func (s *Synchronizer) State() State {
	return s.state.Clone()
}

// Apply folds one live message into the state. Messages for other components
// are ignored. Returns true when the state changed.
func (s *Synchronizer) Apply(msg protocol.Message) bool {
	if s.version == "" {
		return false
	}

	switch msg.Type {
	case protocol.TypeAgentStatus:
		var p protocol.AgentStatus
		if !decode(msg, &p) || p.AgentRole == "" {
			return false
		}
		return s.applyStatus(p)

	case protocol.TypeAgentConnection:
		var p protocol.AgentConnection
		if !decode(msg, &p) || p.From == "" || p.To == "" {
			return false
		}
		if s.policy == Discover {
			s.ensureNode(p.From)
			s.ensureNode(p.To)
		}
		s.putConnection(Connection{
			From:     p.From,
			To:       p.To,
			Label:    p.Label,
			Active:   p.Active,
			DataFlow: p.DataFlow,
		})
		return true

	case protocol.TypeAgentSpawn:
		var p protocol.AgentSpawn
		if !decode(msg, &p) || p.Agent.ID == "" {
			return false
		}
		return s.applySpawn(p.Agent)

	case protocol.TypeAgentOutput:
		var p protocol.AgentOutput
		if !decode(msg, &p) {
			return false
		}
		i := s.indexOf(p.AgentID)
		if i < 0 {
			return false
		}
		a := &s.state.Agents[i]
		a.VisualStatus = Working
		if a.CurrentTask == "" {
			a.CurrentTask = processingTask
		}
		return true

	case protocol.TypeAgentComplete:
		var p protocol.AgentComplete
		if !decode(msg, &p) {
			return false
		}
		i := s.indexOf(p.AgentID)
		if i < 0 {
			return false
		}
		a := &s.state.Agents[i]
		a.VisualStatus = Error
		if isSuccess(p.Status) {
			a.VisualStatus = Done
		}
		a.CurrentTask = ""
		return true

	case protocol.TypePhase:
		var p protocol.Phase
		if !decode(msg, &p) {
			return false
		}
		if p.Status != protocol.StepRunning || p.Phase == "" {
			return false
		}
		s.setPhase(p.Phase)
		return true

	case protocol.TypeExecutionStart:
		s.setPhase(protocol.FirstPhase)
		return true
	}
	return false
}

func (s *Synchronizer) applyStatus(p protocol.AgentStatus) bool {
	if s.policy == Legacy && len(s.state.Agents) == 0 {
		for _, role := range LegacyRoles {
			s.state.Agents = append(s.state.Agents, newNode(role))
		}
		s.primeLayout()
	}

	i := s.indexOf(p.AgentRole)
	if i < 0 {
		if s.policy == Legacy {
			slog.Debug("dropping status for role outside legacy roster", "role", p.AgentRole)
			return false
		}
		s.ensureNode(p.AgentRole)
		i = len(s.state.Agents) - 1
	}

	a := &s.state.Agents[i]
	if vs, ok := parseVisualStatus(p.VisualStatus); ok {
		a.VisualStatus = vs
	}
	a.CurrentTask = p.CurrentTask
	return true
}

func (s *Synchronizer) applySpawn(agent protocol.SpawnedAgent) bool {
	if s.indexOf(agent.ID) >= 0 {
		return false
	}

	node := newNode(agent.ID)
	if agent.Name != "" {
		node.Name = agent.Name
	}
	if agent.Color != "" {
		node.Color = agent.Color
	}
	if agent.Icon != "" {
		node.Icon = agent.Icon
	}
	if agent.Status == "running" {
		node.VisualStatus = Working
	}
	node.CurrentTask = agent.Task

	s.state.Agents = append(s.state.Agents, node)
	s.primeLayout()
	return true
}

// ensureNode adds an idle node for role unless it is already on the roster.
func (s *Synchronizer) ensureNode(role string) {
	if s.indexOf(role) >= 0 {
		return
	}
	s.state.Agents = append(s.state.Agents, newNode(role))
	s.primeLayout()
}

func (s *Synchronizer) putConnection(c Connection) {
	for i := range s.state.Connections {
		if s.state.Connections[i].From == c.From && s.state.Connections[i].To == c.To {
			s.state.Connections[i] = c
			return
		}
	}
	s.state.Connections = append(s.state.Connections, c)
}

func (s *Synchronizer) setPhase(phase string) {
	s.state.CurrentPhase = &phase
}

func (s *Synchronizer) indexOf(role string) int {
	for i := range s.state.Agents {
		if s.state.Agents[i].Role == role {
			return i
		}
	}
	return -1
}

func (s *Synchronizer) primeLayout() {
	if s.layout != nil {
		s.layout.Prime(len(s.state.Agents))
	}
}

func parseVisualStatus(v string) (VisualStatus, bool) {
	switch vs := VisualStatus(v); vs {
	case Idle, Working, Done, Error:
		return vs, true
	}
	return "", false
}

func isSuccess(status string) bool {
	return status == "completed" || status == "success"
}

func decode(msg protocol.Message, v any) bool {
	if err := msg.Payload(v); err != nil {
		slog.Warn("office: dropping undecodable message", "type", msg.Type, "error", err)
		return false
	}
	return true
}
