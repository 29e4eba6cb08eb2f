package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/live"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/office"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/schedule"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/session"
)

type sent struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu   sync.Mutex
	msgs []sent
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, sent{chatID, text})
	return f.err
}

func (f *fakeSender) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.msgs...)
}

func view(execID string, status live.ExecStatus, pending *protocol.Clarification) session.View {
	st := live.Initial()
	st.Status = status
	st.Pending = pending
	return session.View{ExecutionID: execID, Live: st, Office: office.State{
		Agents: []office.AgentNode{{Role: "developer", Name: "Developer", VisualStatus: office.Done}},
	}}
}

func TestNotifierTerminalStatus(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, []int64{1, 2})

	n.Observe(view("exec-1", live.StatusUnknown, nil))
	n.Observe(view("exec-1", live.StatusRunning, nil))
	n.Observe(view("exec-1", live.StatusCompleted, nil))
	n.Observe(view("exec-1", live.StatusCompleted, nil))
	n.Wait()

	msgs := sender.all()
	if len(msgs) != 2 {
		t.Fatalf("expected one message per chat, got %d", len(msgs))
	}
	for _, m := range msgs {
		if !strings.Contains(m.text, "exec-1 completed") || !strings.Contains(m.text, "Developer: done") {
			t.Errorf("unexpected text: %q", m.text)
		}
	}
}

func TestNotifierQuestion(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, []int64{7})
	q := &protocol.Clarification{QuestionID: "q1", Question: "Which DB?", Options: []string{"sqlite", "postgres"}}

	n.Observe(view("exec-1", live.StatusRunning, nil))
	n.Observe(view("exec-1", live.StatusRunning, q))
	n.Observe(view("exec-1", live.StatusRunning, q))
	n.Wait()

	msgs := sender.all()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if !strings.Contains(msgs[0].text, "Which DB?") || !strings.Contains(msgs[0].text, "2. postgres") {
		t.Errorf("unexpected text: %q", msgs[0].text)
	}
}

func TestNotifierIgnoresScopeChange(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, []int64{7})

	n.Observe(view("exec-1", live.StatusRunning, nil))
	// Switching to an already finished execution is not a transition
	n.Observe(view("exec-2", live.StatusFailed, &protocol.Clarification{QuestionID: "q"}))
	n.Wait()

	if msgs := sender.all(); len(msgs) != 0 {
		t.Fatalf("expected no messages, got %v", msgs)
	}
}

func TestNotifierSendError(t *testing.T) {
	sender := &fakeSender{err: errors.New("boom")}
	n := NewNotifier(sender, []int64{7})

	n.Observe(view("exec-1", live.StatusRunning, nil))
	n.Observe(view("exec-1", live.StatusFailed, nil))
	n.Wait()

	if len(sender.all()) != 1 {
		t.Fatal("expected the send to be attempted once")
	}
}

func TestNotifierRemind(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, []int64{7})

	if n.remind() {
		t.Fatal("nothing to remind before a question")
	}

	n.Observe(view("exec-1", live.StatusRunning, nil))
	n.Observe(view("exec-1", live.StatusRunning, &protocol.Clarification{QuestionID: "q1", Question: "Which DB?"}))
	if !n.remind() {
		t.Fatal("expected a reminder for the pending question")
	}
	n.Wait()

	msgs := sender.all()
	if len(msgs) != 2 || !strings.HasPrefix(msgs[1].text, "Reminder: ") || !strings.Contains(msgs[1].text, "Which DB?") {
		t.Fatalf("unexpected messages: %v", msgs)
	}

	// Answered questions are not repeated
	n.Observe(view("exec-1", live.StatusRunning, nil))
	if n.remind() {
		t.Error("answered question must not be repeated")
	}
}

func TestRunReminders(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, []int64{7})
	n.Observe(view("exec-1", live.StatusRunning, &protocol.Clarification{QuestionID: "q1", Question: "Ship?"}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		n.RunReminders(ctx, schedule.Schedule{Interval: 10 * time.Millisecond})
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for len(sender.all()) < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done
	n.Wait()

	if len(sender.all()) < 2 {
		t.Fatalf("expected repeated reminders, got %d", len(sender.all()))
	}

	// A zero schedule returns at once
	n.RunReminders(context.Background(), schedule.Schedule{})
}
