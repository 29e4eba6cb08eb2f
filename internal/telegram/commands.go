package telegram

import (
	"fmt"
	"strings"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/session"
)

// Controller is the part of the session the bot drives.
type Controller interface {
	View() session.View
	SetScope(executionID string)
	Answer(questionID, answer string) error
}

const usage = "Commands:\n/status\n/watch <execution-id>\n/unwatch\n/answer <text>"

// handleCommand runs one chat command and returns the reply. Plain text
// that is not a command gets no reply.
func handleCommand(ctl Controller, text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return ""
	}
	cmd, arg, _ := strings.Cut(text, " ")
	// Commands sent in groups carry the bot name: /status@orchestra_bot
	cmd, _, _ = strings.Cut(cmd, "@")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/status":
		return formatStatus(ctl.View())
	case "/watch":
		if arg == "" {
			return "Usage: /watch <execution-id>"
		}
		ctl.SetScope(arg)
		return fmt.Sprintf("Watching %s", arg)
	case "/unwatch":
		ctl.SetScope("")
		return "Stopped watching"
	case "/answer":
		v := ctl.View()
		if v.Live.Pending == nil {
			return "No pending question"
		}
		if arg == "" {
			return "Usage: /answer <text>"
		}
		if err := ctl.Answer(v.Live.Pending.QuestionID, arg); err != nil {
			return fmt.Sprintf("Answer failed: %v", err)
		}
		return "Answer sent"
	case "/start", "/help":
		return usage
	}
	return "Unknown command\n" + usage
}
