package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/natsbus"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/session"
)

const requestTimeout = 10 * time.Second

type ipcRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload,omitempty"`
}

type ipcResponse struct {
	OK          bool   `json:"ok,omitempty"`
	Error       string `json:"error,omitempty"`
	ExecutionID string `json:"executionId,omitempty"`
}

// stateResponse is a get_state reply; Error is set only on failure.
type stateResponse struct {
	Error string `json:"error,omitempty"`
	session.View
}

func sendIPC(natsURL, reqType string, payload map[string]any, resp any) error {
	client, err := natsbus.NewClientFromURL(natsURL)
	if err != nil {
		return fmt.Errorf("connect to nats: %w", err)
	}
	defer client.Close()

	if err := client.RequestJSON(natsbus.TopicIPC, ipcRequest{Type: reqType, Payload: payload}, resp, requestTimeout); err != nil {
		return fmt.Errorf("ipc request: %w", err)
	}
	return nil
}

func parseArgs(args []string) map[string]string {
	result := make(map[string]string)
	for i := 0; i < len(args); i++ {
		if len(args[i]) > 2 && args[i][:2] == "--" && i+1 < len(args) {
			result[args[i][2:]] = args[i+1]
			i++
		}
	}
	return result
}

const usageText = `Usage:
  octl watch --id "..."
  octl unwatch
  octl answer --question "..." --answer "..."
  octl state`

func run(natsURL string, args []string, out io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command\n%s", usageText)
	}

	command := args[0]
	flags := parseArgs(args[1:])

	switch command {
	case "watch", "unwatch":
		id := flags["id"]
		if command == "watch" && id == "" {
			return fmt.Errorf("--id is required")
		}
		var resp ipcResponse
		if err := sendIPC(natsURL, "set_scope", map[string]any{"executionId": id}, &resp); err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}
		if id == "" {
			fmt.Fprintln(out, "Not watching any execution.")
		} else {
			fmt.Fprintf(out, "Watching %s\n", id)
		}

	case "answer":
		if flags["question"] == "" {
			return fmt.Errorf("--question is required")
		}
		var resp ipcResponse
		err := sendIPC(natsURL, "answer", map[string]any{
			"questionId": flags["question"],
			"answer":     flags["answer"],
		}, &resp)
		if err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}
		fmt.Fprintln(out, "Answer sent.")

	case "state":
		var resp stateResponse
		if err := sendIPC(natsURL, "get_state", nil, &resp); err != nil {
			return err
		}
		if resp.Error != "" {
			return fmt.Errorf("%s", resp.Error)
		}
		printState(out, resp.View)

	default:
		return fmt.Errorf("unknown command: %s\n%s", command, usageText)
	}
	return nil
}

func printState(out io.Writer, v session.View) {
	if v.ExecutionID == "" {
		fmt.Fprintln(out, "Not watching any execution.")
		return
	}
	connected := "disconnected"
	if v.Live.Connected {
		connected = "connected"
	}
	fmt.Fprintf(out, "Execution %s (%s)\n", v.ExecutionID, connected)
	if v.Live.Status != "" {
		fmt.Fprintf(out, "  status: %s\n", v.Live.Status)
	}
	if v.Office.CurrentPhase != nil {
		fmt.Fprintf(out, "  phase:  %s\n", *v.Office.CurrentPhase)
	}
	for _, a := range v.Office.Agents {
		fmt.Fprintf(out, "  %-20s %-8s %s\n", a.Name, a.VisualStatus, a.CurrentTask)
	}
	if q := v.Live.Pending; q != nil {
		fmt.Fprintf(out, "  question %s: %s\n", q.QuestionID, q.Question)
	}
}

func main() {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}

	if err := run(natsURL, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
