package office

import (
	"testing"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

func TestSeedFromSnapshot(t *testing.T) {
	s, _ := newSync(t, Discover)
	changed := s.Seed(&protocol.Execution{Pipeline: []protocol.PipelineStep{
		{Phase: "plan", Status: protocol.StepCompleted, AgentRole: "developer"},
		{Phase: "develop", Status: protocol.StepRunning, AgentRole: "developer"},
	}})
	if !changed {
		t.Fatal("expected seed to change state")
	}

	st := s.State()
	if len(st.Agents) != 1 {
		t.Fatalf("expected one agent, got %d", len(st.Agents))
	}
	if a := st.Agents[0]; a.Role != "developer" || a.VisualStatus != Working {
		t.Errorf("expected developer working, got %+v", a)
	}
	if st.CurrentPhase == nil || *st.CurrentPhase != "develop" {
		t.Errorf("expected phase develop, got %v", st.CurrentPhase)
	}
	c, ok := st.Connection("developer", "developer")
	if !ok || !c.Active || c.DataFlow != protocol.FlowHandoff {
		t.Errorf("expected active handoff developer→developer, got %+v (found=%v)", c, ok)
	}
}

func TestSeedResolvesRoles(t *testing.T) {
	s, _ := newSync(t, Discover)
	s.Seed(&protocol.Execution{Pipeline: []protocol.PipelineStep{
		{Phase: "plan", Status: protocol.StepCompleted},
		{Phase: "develop", Status: protocol.StepCompleted},
		{Phase: "test", Status: protocol.StepFailed},
		{Phase: "deploy", Status: protocol.StepPending},
	}})

	st := s.State()
	want := []string{"orchestrator", "developer", "tester"}
	if len(st.Agents) != len(want) {
		t.Fatalf("expected %d agents, got %+v", len(want), st.Agents)
	}
	for i, role := range want {
		if st.Agents[i].Role != role {
			t.Errorf("agent %d: expected %s, got %s", i, role, st.Agents[i].Role)
		}
	}
	if a, _ := st.Agent("orchestrator"); a.VisualStatus != Done {
		t.Errorf("expected orchestrator done, got %s", a.VisualStatus)
	}
	if a, _ := st.Agent("tester"); a.VisualStatus != Idle {
		t.Errorf("failed step must not mark done, got %s", a.VisualStatus)
	}
	if *st.CurrentPhase != "develop" {
		t.Errorf("expected latest completed phase, got %s", *st.CurrentPhase)
	}
	if c, ok := st.Connection("developer", "tester"); !ok || c.Active {
		t.Errorf("expected inactive developer→tester handoff, got %+v", c)
	}
	if _, ok := st.Connection("tester", "developer"); ok {
		t.Error("no edge expected after a failed step")
	}
	if len(st.Connections) != 2 {
		t.Errorf("expected 2 handoffs, got %d", len(st.Connections))
	}
}

func TestSeedKeepsLiveState(t *testing.T) {
	s, _ := newSync(t, Discover)
	s.Apply(msg(t, protocol.TypeAgentStatus, protocol.AgentStatus{AgentRole: "developer", VisualStatus: "error", CurrentTask: "crashed"}))
	s.Apply(msg(t, protocol.TypeAgentConnection, protocol.AgentConnection{From: "orchestrator", To: "developer", Label: "live", Active: false, DataFlow: protocol.FlowBroadcast}))
	s.Apply(msg(t, protocol.TypePhase, protocol.Phase{Phase: "security", Status: "running"}))

	s.Seed(&protocol.Execution{Pipeline: []protocol.PipelineStep{
		{Phase: "plan", Status: protocol.StepCompleted, AgentRole: "orchestrator"},
		{Phase: "develop", Status: protocol.StepRunning, AgentRole: "developer"},
	}})

	st := s.State()
	if a, _ := st.Agent("developer"); a.VisualStatus != Error || a.CurrentTask != "crashed" {
		t.Errorf("seed must not overwrite live status, got %+v", a)
	}
	if c, _ := st.Connection("orchestrator", "developer"); c.Label != "live" || c.Active {
		t.Errorf("seed must not replace a live connection, got %+v", c)
	}
	if *st.CurrentPhase != "security" {
		t.Errorf("seed must not override live phase, got %s", *st.CurrentPhase)
	}
	if a, _ := st.Agent("orchestrator"); a.VisualStatus != Done {
		t.Errorf("expected new orchestrator node to be done, got %s", a.VisualStatus)
	}
	if len(st.Agents) != 2 {
		t.Errorf("expected 2 agents, got %d", len(st.Agents))
	}
}

func TestSeedDoesNotDemoteWorking(t *testing.T) {
	s, _ := newSync(t, Discover)
	s.Apply(spawn(t, "tester", "running"))
	s.Seed(&protocol.Execution{Pipeline: []protocol.PipelineStep{
		{Phase: "test", Status: protocol.StepCompleted, AgentRole: "tester"},
	}})
	if a, _ := s.State().Agent("tester"); a.VisualStatus != Working {
		t.Errorf("working agent must stay working, got %s", a.VisualStatus)
	}
}

func TestSeedWithoutPipeline(t *testing.T) {
	s, _ := newSync(t, Discover)
	if s.Seed(nil) || s.Seed(&protocol.Execution{Status: "running"}) {
		t.Error("missing pipeline must be a no-op")
	}
	if len(s.State().Agents) != 0 {
		t.Error("expected empty roster")
	}

	idle := NewSynchronizer(Discover, nil)
	if idle.Seed(&protocol.Execution{Pipeline: []protocol.PipelineStep{{Phase: "plan", Status: "running"}}}) {
		t.Error("seed without a scope must be a no-op")
	}
}

func TestSeedLegacyRoster(t *testing.T) {
	s, _ := newSync(t, Legacy)
	s.Seed(&protocol.Execution{Pipeline: []protocol.PipelineStep{
		{Phase: "plan", Status: protocol.StepCompleted},
		{Phase: "design", Status: protocol.StepRunning, AgentRole: "designer"},
	}})

	st := s.State()
	if len(st.Agents) != len(LegacyRoles) {
		t.Fatalf("expected legacy roster only, got %d agents", len(st.Agents))
	}
	if a, _ := st.Agent("orchestrator"); a.VisualStatus != Done {
		t.Errorf("expected orchestrator done, got %s", a.VisualStatus)
	}
	if len(st.Connections) != 0 {
		t.Errorf("edges to roles outside the roster must be skipped, got %+v", st.Connections)
	}
}

func TestResolveRole(t *testing.T) {
	tests := []struct {
		step protocol.PipelineStep
		want string
	}{
		{protocol.PipelineStep{Phase: "test", AgentRole: "qa-bot"}, "qa-bot"},
		{protocol.PipelineStep{Phase: "security"}, "devsecops"},
		{protocol.PipelineStep{Phase: "business-eval"}, "business-dev"},
		{protocol.PipelineStep{Phase: "mystery"}, DefaultRole},
	}
	for _, tt := range tests {
		if got := ResolveRole(tt.step); got != tt.want {
			t.Errorf("ResolveRole(%+v) = %s, want %s", tt.step, got, tt.want)
		}
	}
}
