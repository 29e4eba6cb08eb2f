package natsbus

import (
	"fmt"
	"strings"
)

// Topic patterns for NATS pub/sub communication.

func TopicEventsLive(executionID string) string {
	return fmt.Sprintf("events.live.%s", Token(executionID))
}

func TopicEventsOffice(executionID string) string {
	return fmt.Sprintf("events.office.%s", Token(executionID))
}

func TopicEventsAgents(executionID string) string {
	return fmt.Sprintf("events.agents.%s", Token(executionID))
}

const (
	TopicEventsAll   = "events.>"
	TopicEventsScope = "events.scope"
	TopicIPC         = "dashboard.ipc"
)

var tokenReplacer = strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_", "\t", "_")

// Token makes an execution id usable as a single subject token. An empty id
// becomes "none".
func Token(id string) string {
	if id == "" {
		return "none"
	}
	return tokenReplacer.Replace(id)
}
