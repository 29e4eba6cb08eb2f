package natsbus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	bus, err := New(config.NATSConfig{
		Port: 0, // Random port
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(bus.Close)
	return bus
}

func newTestClient(t *testing.T, bus *Bus) *Client {
	t.Helper()
	client, err := NewClient(bus)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestBusStartStop(t *testing.T) {
	bus := newTestBus(t)

	if bus.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
	if bus.Port() == 0 {
		t.Error("expected bound port")
	}
}

func TestPubSub(t *testing.T) {
	client := newTestClient(t, newTestBus(t))

	received := make(chan string, 1)
	_, err := client.Subscribe("test.topic", func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish("test.topic", []byte("hello")); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != "hello" {
			t.Errorf("expected 'hello', got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishJSONWildcard(t *testing.T) {
	client := newTestClient(t, newTestBus(t))

	received := make(chan *nats.Msg, 1)
	_, err := client.Subscribe(TopicEventsAll, func(msg *nats.Msg) {
		received <- msg
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	payload := map[string]string{"key": "value"}
	if err := client.PublishJSON(TopicEventsOffice("exec.1"), payload); err != nil {
		t.Fatalf("publish json error: %v", err)
	}
	client.Flush()

	select {
	case msg := <-received:
		if string(msg.Data) != `{"key":"value"}` {
			t.Errorf("expected json, got '%s'", msg.Data)
		}
		if msg.Subject != "events.office.exec_1" {
			t.Errorf("unexpected subject %s", msg.Subject)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestRequestJSON(t *testing.T) {
	bus := newTestBus(t)
	server := newTestClient(t, bus)
	client := newTestClient(t, bus)

	_, err := server.Subscribe(TopicIPC, func(msg *nats.Msg) {
		var req map[string]string
		_ = json.Unmarshal(msg.Data, &req)
		data, _ := json.Marshal(map[string]string{"echo": req["ping"]})
		_ = msg.Respond(data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}
	server.Flush()

	var resp map[string]string
	if err := client.RequestJSON(TopicIPC, map[string]string{"ping": "pong"}, &resp, 2*time.Second); err != nil {
		t.Fatalf("request: %v", err)
	}
	if resp["echo"] != "pong" {
		t.Errorf("expected echo pong, got %v", resp)
	}
}

func TestTopicNames(t *testing.T) {
	if got := TopicEventsLive("e1"); got != "events.live.e1" {
		t.Errorf("expected events.live.e1, got %s", got)
	}
	if got := TopicEventsAgents("a b"); got != "events.agents.a_b" {
		t.Errorf("expected events.agents.a_b, got %s", got)
	}
	if got := TopicEventsOffice(""); got != "events.office.none" {
		t.Errorf("expected events.office.none, got %s", got)
	}
	if got := Token("x.*>"); got != "x___" {
		t.Errorf("expected x___, got %s", got)
	}
}
