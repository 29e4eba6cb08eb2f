package office

import (
	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

// Seed catches the roster up from a fetched execution snapshot. Live events
// stay authoritative: seeding only creates nodes the stream has not created,
// only promotes idle nodes, never replaces a stored connection and never
// overrides a phase that live events already set. Returns true when the
// state changed.
func (s *Synchronizer) Seed(exec *protocol.Execution) bool {
	if s.version == "" || exec == nil || len(exec.Pipeline) == 0 {
		return false
	}

	changed := false
	if s.policy == Legacy && len(s.state.Agents) == 0 {
		for _, role := range LegacyRoles {
			s.state.Agents = append(s.state.Agents, newNode(role))
		}
		changed = true
	}

	roles := make([]string, len(exec.Pipeline))
	for i, step := range exec.Pipeline {
		roles[i] = ResolveRole(step)
		if s.indexOf(roles[i]) >= 0 {
			continue
		}
		if s.policy == Legacy {
			roles[i] = ""
			continue
		}
		s.state.Agents = append(s.state.Agents, newNode(roles[i]))
		changed = true
	}

	// Running first so a role that owns both a completed and the running
	// step ends up working.
	for i, step := range exec.Pipeline {
		if step.Status != protocol.StepRunning || roles[i] == "" {
			continue
		}
		a := &s.state.Agents[s.indexOf(roles[i])]
		if a.VisualStatus == Idle {
			a.VisualStatus = Working
			a.CurrentTask = step.Phase
			changed = true
		}
	}
	for i, step := range exec.Pipeline {
		if step.Status != protocol.StepCompleted || roles[i] == "" {
			continue
		}
		a := &s.state.Agents[s.indexOf(roles[i])]
		if a.VisualStatus == Idle {
			a.VisualStatus = Done
			changed = true
		}
	}

	for i := 0; i+1 < len(exec.Pipeline); i++ {
		cur, next := exec.Pipeline[i], exec.Pipeline[i+1]
		if cur.Status != protocol.StepCompleted || roles[i] == "" || roles[i+1] == "" {
			continue
		}
		if _, exists := s.state.Connection(roles[i], roles[i+1]); exists {
			continue
		}
		s.state.Connections = append(s.state.Connections, Connection{
			From:     roles[i],
			To:       roles[i+1],
			Label:    next.Phase,
			Active:   next.Status == protocol.StepRunning,
			DataFlow: protocol.FlowHandoff,
		})
		changed = true
	}

	if s.state.CurrentPhase == nil {
		if phase, ok := seedPhase(exec.Pipeline); ok {
			s.setPhase(phase)
			changed = true
		}
	}

	if changed {
		s.primeLayout()
	}
	return changed
}

// seedPhase is the running step's phase, else the latest completed one.
func seedPhase(pipeline []protocol.PipelineStep) (string, bool) {
	for _, step := range pipeline {
		if step.Status == protocol.StepRunning {
			return step.Phase, true
		}
	}
	for i := len(pipeline) - 1; i >= 0; i-- {
		if pipeline[i].Status == protocol.StepCompleted {
			return pipeline[i].Phase, true
		}
	}
	return "", false
}
