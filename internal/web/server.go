package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/config"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/layout"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/natsbus"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/session"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/store"
	"github.com/nats-io/nats.go"
)

// Controller is the session surface the API exposes.
type Controller interface {
	View() session.View
	SetScope(executionID string)
	Answer(questionID, answer string) error
}

// Positioner places the i-th office agent on the canvas.
type Positioner interface {
	Position(i int) layout.Point
}

// Transcript reads the message journal.
type Transcript interface {
	List(executionID string, after int64, limit int) ([]store.Message, error)
	Count(executionID string) (int, error)
}

type Server struct {
	sess      Controller
	journal   Transcript
	layout    Positioner
	bus       *natsbus.Bus
	nats      *natsbus.Client
	hub       *Hub
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(sess Controller, journal Transcript, bus *natsbus.Bus, cfg config.WebConfig, version string) *Server {
	return &Server{
		sess:      sess,
		journal:   journal,
		bus:       bus,
		hub:       NewHub(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

// SetLayout enables GET /api/layout.
func (s *Server) SetLayout(p Positioner) {
	s.layout = p
}

// Handler returns the routed API with middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return s.withMiddleware(mux)
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)

	// Subscribe to NATS events and broadcast to WebSocket
	if err := s.subscribeEvents(); err != nil {
		return err
	}
	defer s.nats.Close()

	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// CORS
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) subscribeEvents() error {
	if s.bus == nil {
		return fmt.Errorf("web server needs a bus")
	}
	client, err := natsbus.NewClient(s.bus)
	if err != nil {
		return fmt.Errorf("web server nats client: %w", err)
	}
	s.nats = client

	_, err = client.Subscribe(natsbus.TopicEventsAll, func(msg *nats.Msg) {
		event, ok := eventFromSubject(msg.Subject, msg.Data)
		if !ok {
			slog.Warn("unexpected event subject", "subject", msg.Subject)
			return
		}
		s.hub.Broadcast(event)
	})
	if err != nil {
		client.Close()
		return fmt.Errorf("subscribe events: %w", err)
	}
	return nil
}

// eventFromSubject wraps a bus payload for websocket clients. The kind and
// execution token come from the subject: events.<kind>[.<execution>].
func eventFromSubject(subject string, data []byte) (Event, bool) {
	parts := strings.SplitN(subject, ".", 3)
	if len(parts) < 2 || parts[0] != "events" {
		return Event{}, false
	}
	if !json.Valid(data) {
		return Event{}, false
	}
	ev := Event{Type: parts[1], Payload: json.RawMessage(data)}
	if len(parts) == 3 {
		ev.Execution = parts[2]
	}
	return ev, true
}
