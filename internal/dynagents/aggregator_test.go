package dynagents

import (
	"reflect"
	"testing"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

func msg(t *testing.T, msgType string, payload any) protocol.Message {
	t.Helper()
	m, err := protocol.New(msgType, payload)
	if err != nil {
		t.Fatalf("build %s: %v", msgType, err)
	}
	return m
}

func spawnMsg(t *testing.T, id string) protocol.Message {
	return msg(t, protocol.TypeAgentSpawn, protocol.AgentSpawn{Agent: protocol.SpawnedAgent{
		ID: id, Name: "Agent " + id, Color: "#0af", Icon: "bot", Status: "running", Task: "work on " + id,
	}})
}

func sampleLog(t *testing.T) []protocol.Message {
	return []protocol.Message{
		spawnMsg(t, "a"),
		msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{AgentID: "a", Line: "reading", FilesRead: []string{"README.md"}}),
		// b's output overtakes its spawn.
		msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{AgentID: "b", Lines: []string{"one", "two"}}),
		spawnMsg(t, "b"),
		msg(t, protocol.TypeFileActivity, protocol.FileActivity{AgentID: "a", Path: "src/main.go", Action: "write"}),
		msg(t, protocol.TypeFileActivity, protocol.FileActivity{AgentID: "b", Path: "src/main.go", Action: "read"}),
		msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{AgentID: "a", FilesModified: []string{"src/main.go", "src/util/strings.go"}}),
		spawnMsg(t, "a"),
		msg(t, protocol.TypeAgentComplete, protocol.AgentComplete{AgentID: "a", Status: "completed"}),
		msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{AgentID: "a", Line: "late line"}),
		msg(t, protocol.TypePhase, protocol.Phase{Phase: "test", Status: "running"}),
	}
}

func TestReplayMatchesIncremental(t *testing.T) {
	log := sampleLog(t)

	inc := New()
	for _, m := range log {
		inc.Apply(m)
	}
	replayA := Replay(log)
	replayB := Replay(log)

	if !reflect.DeepEqual(inc.View(), replayA.View()) {
		t.Fatal("incremental and replayed views differ")
	}
	if !reflect.DeepEqual(replayA.View(), replayB.View()) {
		t.Fatal("replays differ")
	}
}

func TestDirectory(t *testing.T) {
	agg := Replay(sampleLog(t))
	agents := agg.Agents()

	if len(agents) != 2 {
		t.Fatalf("expected 2 agents, got %d", len(agents))
	}
	a, b := agents[0], agents[1]
	if a.ID != "a" || b.ID != "b" {
		t.Fatalf("expected first-seen order a,b, got %s,%s", a.ID, b.ID)
	}

	if a.Status != Completed {
		t.Errorf("expected a completed, got %s", a.Status)
	}
	if want := []string{"reading", "late line"}; !reflect.DeepEqual(a.Output, want) {
		t.Errorf("a output = %v, want %v", a.Output, want)
	}
	if want := []string{"src/main.go", "src/util/strings.go"}; !reflect.DeepEqual(a.FilesModified, want) {
		t.Errorf("a modified = %v, want %v", a.FilesModified, want)
	}

	if b.Name != "Agent b" || b.Color != "#0af" || b.Task != "work on b" {
		t.Errorf("late spawn must fill in placeholder, got %+v", b)
	}
	if want := []string{"one", "two"}; !reflect.DeepEqual(b.Output, want) {
		t.Errorf("placeholder output lost: %v", b.Output)
	}
	if b.Status != Running {
		t.Errorf("expected b running, got %s", b.Status)
	}
}

func TestDuplicateSpawnIgnored(t *testing.T) {
	agg := New()
	if !agg.Apply(spawnMsg(t, "x")) {
		t.Fatal("first spawn must change the directory")
	}
	if agg.Apply(spawnMsg(t, "x")) {
		t.Error("duplicate spawn must be ignored")
	}
	if agg.Len() != 1 {
		t.Errorf("expected 1 agent, got %d", agg.Len())
	}
}

func TestCompleteKeepsOutput(t *testing.T) {
	agg := New()
	agg.Apply(spawnMsg(t, "x"))
	agg.Apply(msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{AgentID: "x", Line: "hello"}))
	agg.Apply(msg(t, protocol.TypeAgentComplete, protocol.AgentComplete{AgentID: "x", Status: "failed"}))

	x := agg.Agents()[0]
	if x.Status != Failed {
		t.Errorf("expected failed, got %s", x.Status)
	}
	if len(x.Output) != 1 || x.Output[0] != "hello" {
		t.Errorf("output must survive completion, got %v", x.Output)
	}
}

func TestFilePathsDeduplicated(t *testing.T) {
	agg := New()
	agg.Apply(spawnMsg(t, "x"))
	for range 3 {
		agg.Apply(msg(t, protocol.TypeFileActivity, protocol.FileActivity{AgentID: "x", Path: "a.go", Action: "edit"}))
		agg.Apply(msg(t, protocol.TypeFileActivity, protocol.FileActivity{AgentID: "x", Path: "a.go", Action: "read"}))
	}
	x := agg.Agents()[0]
	if len(x.FilesModified) != 1 || len(x.FilesRead) != 1 {
		t.Errorf("expected one path per list, got modified=%v read=%v", x.FilesModified, x.FilesRead)
	}
	if agg.Apply(msg(t, protocol.TypeFileActivity, protocol.FileActivity{AgentID: "x", Path: "a.go", Action: "edit"})) {
		t.Error("repeated path must not report a change")
	}
}

func TestSeedKeepsLiveAgents(t *testing.T) {
	agg := New()
	agg.Apply(spawnMsg(t, "live"))
	agg.Apply(msg(t, protocol.TypeAgentComplete, protocol.AgentComplete{AgentID: "live", Status: "completed"}))
	agg.Apply(msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{AgentID: "early", Line: "x"}))

	changed := agg.Seed([]Agent{
		{ID: "live", Name: "Stale", Status: Running},
		{ID: "early", Name: "Early Bird", Color: "#123"},
		{ID: "fetched", Name: "Fetched", Status: Completed, Output: []string{"done"}},
		{Name: "no id"},
	})
	if !changed {
		t.Fatal("expected seed to change the directory")
	}

	agents := agg.Agents()
	if len(agents) != 3 {
		t.Fatalf("expected 3 agents, got %d", len(agents))
	}
	if agents[0].Name != "Agent live" || agents[0].Status != Completed {
		t.Errorf("live agent overwritten: %+v", agents[0])
	}
	if agents[1].Name != "Early Bird" || agents[1].Color != "#123" || agents[1].Output[0] != "x" {
		t.Errorf("placeholder not filled in: %+v", agents[1])
	}
	if agents[2].ID != "fetched" || agents[2].Status != Completed || agents[2].Output[0] != "done" {
		t.Errorf("fetched agent not added: %+v", agents[2])
	}

	if agg.Seed([]Agent{{ID: "fetched"}}) {
		t.Error("seeding a known agent must be a no-op")
	}
}

func TestAgentsReturnsCopy(t *testing.T) {
	agg := New()
	agg.Apply(spawnMsg(t, "x"))
	agg.Apply(msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{AgentID: "x", Line: "keep"}))

	agents := agg.Agents()
	agents[0].Output[0] = "mutated"
	if agg.Agents()[0].Output[0] != "keep" {
		t.Error("Agents must return a deep copy")
	}
}

func TestIgnoresForeignMessages(t *testing.T) {
	agg := New()
	for _, typ := range []string{protocol.TypeOutput, protocol.TypeAgentStatus, protocol.TypePhase, "unknown"} {
		if agg.Apply(msg(t, typ, map[string]string{"agentId": "x"})) {
			t.Errorf("%s must not touch the directory", typ)
		}
	}
	if agg.Apply(msg(t, protocol.TypeAgentOutput, protocol.AgentOutput{})) {
		t.Error("output without agent id must be ignored")
	}
	if agg.Len() != 0 {
		t.Errorf("expected empty directory, got %d", agg.Len())
	}
}

func TestReset(t *testing.T) {
	agg := Replay(sampleLog(t))
	agg.Reset()
	v := agg.View()
	if len(v.Agents) != 0 || len(v.FileTree) != 0 || len(v.ActiveFiles) != 0 {
		t.Errorf("expected empty view after reset, got %+v", v)
	}
}
