package dynagents

import (
	"log/slog"
	"slices"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
)

type Status string

const (
	Running   Status = "running"
	Completed Status = "completed"
	Failed    Status = "failed"
)

// Agent is a dynamically spawned agent. Agents are never removed within a
// scope; completion is a terminal status.
type Agent struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Color         string   `json:"color,omitempty"`
	Icon          string   `json:"icon,omitempty"`
	Status        Status   `json:"status"`
	Task          string   `json:"task,omitempty"`
	Output        []string `json:"output"`
	FilesModified []string `json:"filesModified"`
	FilesRead     []string `json:"filesRead"`

	// placeholder is set for agents first seen through output or file
	// events; the spawn that arrives later fills in the presentation.
	placeholder bool
}

func (a Agent) clone() Agent {
	a.Output = slices.Clone(a.Output)
	a.FilesModified = slices.Clone(a.FilesModified)
	a.FilesRead = slices.Clone(a.FilesRead)
	return a
}

// Aggregator folds the message log of one scope into the agent directory.
// It is not safe for concurrent use.
type Aggregator struct {
	agents []Agent
	index  map[string]int
}

func New() *Aggregator {
	return &Aggregator{index: map[string]int{}}
}

// Replay rebuilds the directory from a full message log. The result equals
// applying the same messages one by one.
func Replay(msgs []protocol.Message) *Aggregator {
	a := New()
	for _, m := range msgs {
		a.Apply(m)
	}
	return a
}

// Reset drops every agent.
func (a *Aggregator) Reset() {
	a.agents = nil
	a.index = map[string]int{}
}

func (a *Aggregator) Len() int {
	return len(a.agents)
}

// Apply folds one message. Returns true when the directory changed.
func (a *Aggregator) Apply(msg protocol.Message) bool {
	switch msg.Type {
	case protocol.TypeAgentSpawn:
		var p protocol.AgentSpawn
		if !decode(msg, &p) || p.Agent.ID == "" {
			return false
		}
		return a.spawn(p.Agent)

	case protocol.TypeAgentOutput:
		var p protocol.AgentOutput
		if !decode(msg, &p) || p.AgentID == "" {
			return false
		}
		ag, created := a.agent(p.AgentID)
		lines := p.AllLines()
		ag.Output = append(ag.Output, lines...)
		changed := created || len(lines) > 0
		for _, path := range p.FilesModified {
			changed = addPath(&ag.FilesModified, path) || changed
		}
		for _, path := range p.FilesRead {
			changed = addPath(&ag.FilesRead, path) || changed
		}
		return changed

	case protocol.TypeAgentComplete:
		var p protocol.AgentComplete
		if !decode(msg, &p) || p.AgentID == "" {
			return false
		}
		ag, _ := a.agent(p.AgentID)
		ag.Status = terminalStatus(p.Status)
		return true

	case protocol.TypeFileActivity:
		var p protocol.FileActivity
		if !decode(msg, &p) || p.AgentID == "" || p.Path == "" {
			return false
		}
		ag, created := a.agent(p.AgentID)
		list := &ag.FilesModified
		if p.IsRead() {
			list = &ag.FilesRead
		}
		return addPath(list, p.Path) || created
	}
	return false
}

// Seed merges agents fetched from the backend. Agents the live stream
// already knows are kept as they are, except that placeholders pick up the
// fetched presentation fields.
func (a *Aggregator) Seed(agents []Agent) bool {
	changed := false
	for _, in := range agents {
		if in.ID == "" {
			continue
		}
		if i, ok := a.index[in.ID]; ok {
			cur := &a.agents[i]
			if cur.placeholder {
				fillPresentation(cur, in.Name, in.Color, in.Icon, in.Task)
				changed = true
			}
			continue
		}
		ag := in.clone()
		ag.placeholder = false
		if ag.Status == "" {
			ag.Status = Running
		}
		if ag.Name == "" {
			ag.Name = ag.ID
		}
		a.put(ag)
		changed = true
	}
	return changed
}

// Agents returns a copy of the directory in first-seen order.
func (a *Aggregator) Agents() []Agent {
	out := make([]Agent, len(a.agents))
	for i, ag := range a.agents {
		out[i] = ag.clone()
	}
	return out
}

func (a *Aggregator) spawn(s protocol.SpawnedAgent) bool {
	if i, ok := a.index[s.ID]; ok {
		cur := &a.agents[i]
		if !cur.placeholder {
			return false
		}
		fillPresentation(cur, s.Name, s.Color, s.Icon, s.Task)
		return true
	}

	status := Running
	switch Status(s.Status) {
	case Completed, Failed:
		status = Status(s.Status)
	}
	name := s.Name
	if name == "" {
		name = s.ID
	}
	a.put(Agent{
		ID:     s.ID,
		Name:   name,
		Color:  s.Color,
		Icon:   s.Icon,
		Status: status,
		Task:   s.Task,
	})
	return true
}

// agent returns the entry for id, creating a placeholder for events that
// overtook their spawn.
func (a *Aggregator) agent(id string) (*Agent, bool) {
	if i, ok := a.index[id]; ok {
		return &a.agents[i], false
	}
	a.put(Agent{ID: id, Name: id, Status: Running, placeholder: true})
	return &a.agents[len(a.agents)-1], true
}

func (a *Aggregator) put(ag Agent) {
	if ag.Output == nil {
		ag.Output = []string{}
	}
	if ag.FilesModified == nil {
		ag.FilesModified = []string{}
	}
	if ag.FilesRead == nil {
		ag.FilesRead = []string{}
	}
	a.index[ag.ID] = len(a.agents)
	a.agents = append(a.agents, ag)
}

func fillPresentation(ag *Agent, name, color, icon, task string) {
	if name != "" {
		ag.Name = name
	}
	if color != "" {
		ag.Color = color
	}
	if icon != "" {
		ag.Icon = icon
	}
	if task != "" {
		ag.Task = task
	}
	ag.placeholder = false
}

func addPath(list *[]string, path string) bool {
	if path == "" || slices.Contains(*list, path) {
		return false
	}
	*list = append(*list, path)
	return true
}

func terminalStatus(s string) Status {
	if s == "completed" || s == "success" {
		return Completed
	}
	return Failed
}

func decode(msg protocol.Message, v any) bool {
	if err := msg.Payload(v); err != nil {
		slog.Warn("dynagents: dropping undecodable message", "type", msg.Type, "error", err)
		return false
	}
	return true
}
