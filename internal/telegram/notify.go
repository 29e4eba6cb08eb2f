package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/live"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/office"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/schedule"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/session"
)

// Sender delivers one text message to a chat. *Bot implements it.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Notifier watches session views and tells the configured chats when the
// execution finishes or asks a question.
type Notifier struct {
	sender  Sender
	chatIDs []int64
	timeout time.Duration

	mu         sync.Mutex
	scope      string
	status     live.ExecStatus
	questionID string
	reminder   string
	wg         sync.WaitGroup
}

func NewNotifier(sender Sender, chatIDs []int64) *Notifier {
	return &Notifier{
		sender:  sender,
		chatIDs: chatIDs,
		timeout: 15 * time.Second,
	}
}

// Observe is registered with session.OnChange.
func (n *Notifier) Observe(v session.View) {
	n.mu.Lock()
	if v.ExecutionID != n.scope {
		n.scope = v.ExecutionID
		n.status = v.Live.Status
		n.questionID = ""
		n.reminder = ""
		if v.Live.Pending != nil {
			n.questionID = v.Live.Pending.QuestionID
			n.reminder = formatQuestion(v)
		}
		n.mu.Unlock()
		return
	}

	var texts []string
	if v.Live.Status != n.status {
		n.status = v.Live.Status
		if v.Live.Status == live.StatusCompleted || v.Live.Status == live.StatusFailed {
			texts = append(texts, formatFinished(v))
		}
	}
	if q := v.Live.Pending; q != nil && q.QuestionID != n.questionID {
		n.questionID = q.QuestionID
		n.reminder = formatQuestion(v)
		texts = append(texts, n.reminder)
	} else if q == nil {
		n.questionID = ""
		n.reminder = ""
	}
	n.mu.Unlock()

	for _, text := range texts {
		n.broadcast(text)
	}
}

// RunReminders repeats the pending question on sched until ctx is done.
// A zero schedule returns immediately.
func (n *Notifier) RunReminders(ctx context.Context, sched schedule.Schedule) {
	if sched.IsZero() {
		return
	}
	slog.Info("question reminders enabled", "schedule", sched.String())
	for {
		next, ok := sched.Next(time.Now())
		if !ok {
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			n.remind()
		}
	}
}

// remind resends the pending question, if any.
func (n *Notifier) remind() bool {
	n.mu.Lock()
	text := n.reminder
	n.mu.Unlock()
	if text == "" {
		return false
	}
	n.broadcast("Reminder: " + text)
	return true
}

// Wait blocks until every queued notification was attempted.
func (n *Notifier) Wait() {
	n.wg.Wait()
}

// broadcast sends asynchronously so a slow Telegram API never stalls the
// session's event loop.
func (n *Notifier) broadcast(text string) {
	for _, chatID := range n.chatIDs {
		n.wg.Add(1)
		go func(chatID int64) {
			defer n.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
			defer cancel()
			if err := n.sender.SendMessage(ctx, chatID, text); err != nil {
				slog.Error("failed to send telegram notification", "chat", chatID, "error", err)
			}
		}(chatID)
	}
}

func formatFinished(v session.View) string {
	return fmt.Sprintf("Execution %s %s\n\n%s", v.ExecutionID, v.Live.Status, formatRoster(v.Office))
}

func formatQuestion(v session.View) string {
	q := v.Live.Pending
	var sb strings.Builder
	fmt.Fprintf(&sb, "Execution %s asks:\n%s", v.ExecutionID, q.Question)
	for i, opt := range q.Options {
		fmt.Fprintf(&sb, "\n%d. %s", i+1, opt)
	}
	sb.WriteString("\n\nReply with /answer <text>")
	return sb.String()
}

func formatStatus(v session.View) string {
	if v.ExecutionID == "" {
		return "Not watching any execution"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Execution %s", v.ExecutionID)
	if v.Live.Status != live.StatusUnknown {
		fmt.Fprintf(&sb, " (%s)", v.Live.Status)
	}
	if !v.Live.Connected {
		sb.WriteString(" [disconnected]")
	}
	if v.Office.CurrentPhase != nil {
		fmt.Fprintf(&sb, "\nPhase: %s", *v.Office.CurrentPhase)
	}
	if roster := formatRoster(v.Office); roster != "" {
		sb.WriteString("\n\n" + roster)
	}
	if q := v.Live.Pending; q != nil {
		fmt.Fprintf(&sb, "\n\nPending question: %s", q.Question)
	}
	return sb.String()
}

func formatRoster(st office.State) string {
	lines := make([]string, 0, len(st.Agents))
	for _, a := range st.Agents {
		line := fmt.Sprintf("%s: %s", a.Name, a.VisualStatus)
		if a.CurrentTask != "" {
			line += " - " + a.CurrentTask
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
