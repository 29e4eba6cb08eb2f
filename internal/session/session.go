package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/morbidsteve/agent-orchestra-sub001/internal/dynagents"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/live"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/natsbus"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/office"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/protocol"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/snapshot"
)

var (
	ErrNoScope         = errors.New("no execution selected")
	ErrUnknownQuestion = errors.New("no pending question with that id")
)

// Channel is the live connection a session drives. *live.Channel
// implements it.
type Channel interface {
	Events() <-chan live.Event
	SetScope(scope string) uint64
	Send(v any) error
}

// Journal records every message received for the current scope.
type Journal interface {
	Append(executionID string, msg protocol.Message) (int64, error)
	Reset() error
}

// Publisher fans derived state out to renderers. *natsbus.Client
// implements it.
type Publisher interface {
	Publish(topic string, data []byte) error
	PublishJSON(topic string, v any) error
}

type Options struct {
	Channel      Channel
	Fetcher      snapshot.Fetcher
	Policy       office.RosterPolicy
	Layout       office.Layout
	Journal      Journal
	Publisher    Publisher
	FetchTimeout time.Duration
}

// View is the combined derived state of the current scope.
type View struct {
	ExecutionID string         `json:"executionId"`
	Live        live.State     `json:"live"`
	Office      office.State   `json:"office"`
	Agents      dynagents.View `json:"agents"`
}

type ChangeListener func(View)

// ConnectionEvent is published when the live connection opens or closes.
type ConnectionEvent struct {
	Type      string `json:"type"`
	Connected bool   `json:"connected"`
}

type ScopeEvent struct {
	ExecutionID string `json:"executionId"`
}

// Session owns the derived state of one execution at a time. Every mutation
// happens under mu, so channel events and snapshot results are applied one
// at a time in arrival order.
type Session struct {
	opts Options

	mu          sync.Mutex
	scope       string
	gen         uint64
	fetchCancel context.CancelFunc
	live        live.State
	office      *office.Synchronizer
	agents      *dynagents.Aggregator

	// deliverMu is taken before mu is released; never the other way round.
	deliverMu sync.Mutex

	listeners  []ChangeListener
	listenerMu sync.RWMutex
}

func New(opts Options) *Session {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Session{
		opts:   opts,
		live:   live.Initial(),
		office: office.NewSynchronizer(opts.Policy, opts.Layout),
		agents: dynagents.New(),
	}
}

// OnChange registers a listener called with a fresh view after every
// mutation. Listeners see views in mutation order and run on the goroutine
// that caused the change; they must not call back into the Session.
func (s *Session) OnChange(listener ChangeListener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, listener)
}

func (s *Session) Scope() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scope
}

// SetScope follows a different execution. Derived state is cleared first,
// then the old connection is closed and the new one opened, then a single
// snapshot fetch is started. An empty id leaves everything at its initial
// state with no connection.
func (s *Session) SetScope(executionID string) {
	s.mu.Lock()
	if executionID == s.scope {
		s.mu.Unlock()
		return
	}

	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
	s.scope = executionID
	s.live = live.Initial()
	s.office.SetExecution(executionID)
	s.agents.Reset()
	if s.opts.Journal != nil {
		if err := s.opts.Journal.Reset(); err != nil {
			slog.Error("reset journal failed", "error", err)
		}
	}

	s.gen = s.opts.Channel.SetScope(executionID)

	if executionID != "" && s.opts.Fetcher != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.FetchTimeout)
		s.fetchCancel = cancel
		go s.catchUp(ctx, s.gen, executionID)
	}
	view := s.viewLocked()
	s.deliver(func() {
		slog.Info("execution scope changed", "execution", executionID)
		s.publish(natsbus.TopicEventsScope, ScopeEvent{ExecutionID: executionID})
		s.publish(natsbus.TopicEventsOffice(executionID), view.Office)
		s.publish(natsbus.TopicEventsAgents(executionID), view.Agents)
		s.notify(view)
	})
}

// catchUp fetches the persisted snapshot once. A result that arrives after
// the scope moved on is discarded.
func (s *Session) catchUp(ctx context.Context, gen uint64, executionID string) {
	exec, err := s.opts.Fetcher.FetchExecution(ctx, executionID)
	if err != nil {
		slog.Debug("snapshot fetch skipped", "execution", executionID, "error", err)
		exec = nil
	}
	agents, err := s.opts.Fetcher.FetchDynamicAgents(ctx, executionID)
	if err != nil {
		slog.Debug("dynamic agents fetch skipped", "execution", executionID, "error", err)
		agents = nil
	}

	s.mu.Lock()
	if gen != s.gen || errors.Is(ctx.Err(), context.Canceled) {
		s.mu.Unlock()
		return
	}
	if s.fetchCancel != nil {
		s.fetchCancel()
		s.fetchCancel = nil
	}
	officeChanged := s.office.Seed(exec)
	agentsChanged := s.agents.Seed(agents)
	if !officeChanged && !agentsChanged {
		s.mu.Unlock()
		return
	}
	view := s.viewLocked()
	s.deliver(func() {
		if officeChanged {
			s.publish(natsbus.TopicEventsOffice(executionID), view.Office)
		}
		if agentsChanged {
			s.publish(natsbus.TopicEventsAgents(executionID), view.Agents)
		}
		s.notify(view)
	})
}

// Run consumes channel events until ctx is done or the channel's event
// stream ends.
func (s *Session) Run(ctx context.Context) error {
	events := s.opts.Channel.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			s.handle(ev)
		}
	}
}

func (s *Session) handle(ev live.Event) {
	s.mu.Lock()
	if ev.Gen != s.gen {
		s.mu.Unlock()
		slog.Debug("dropping event from previous scope", "scope", ev.Scope)
		return
	}

	scope := s.scope
	var officeChanged, agentsChanged bool
	switch ev.Kind {
	case live.EventOpened:
		s.live = live.SetConnected(s.live, true)
	case live.EventClosed:
		s.live = live.SetConnected(s.live, false)
	case live.EventMessage:
		s.live = live.Reduce(s.live, ev.Message)
		officeChanged = s.office.Apply(ev.Message)
		agentsChanged = s.agents.Apply(ev.Message)
		if s.opts.Journal != nil {
			if _, err := s.opts.Journal.Append(scope, ev.Message); err != nil {
				slog.Error("journal append failed", "execution", scope, "error", err)
			}
		}
	}
	view := s.viewLocked()
	s.deliver(func() {
		switch ev.Kind {
		case live.EventOpened, live.EventClosed:
			s.publish(natsbus.TopicEventsLive(scope), ConnectionEvent{Type: "connection", Connected: ev.Kind == live.EventOpened})
		case live.EventMessage:
			s.publishRaw(natsbus.TopicEventsLive(scope), ev.Message)
		}
		if officeChanged {
			s.publish(natsbus.TopicEventsOffice(scope), view.Office)
		}
		if agentsChanged {
			s.publish(natsbus.TopicEventsAgents(scope), view.Agents)
		}
		s.notify(view)
	})
}

// Answer sends the clarification response upstream and clears the pending
// question. The question stays pending when the send fails.
func (s *Session) Answer(questionID, answer string) error {
	s.mu.Lock()
	if s.scope == "" {
		s.mu.Unlock()
		return ErrNoScope
	}
	if s.live.Pending == nil || s.live.Pending.QuestionID != questionID {
		s.mu.Unlock()
		return ErrUnknownQuestion
	}
	gen := s.gen
	s.mu.Unlock()

	if err := s.opts.Channel.Send(protocol.NewClarificationResponse(questionID, answer)); err != nil {
		return fmt.Errorf("answer question %s: %w", questionID, err)
	}

	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	st, ok := live.Answer(s.live, questionID)
	if !ok {
		s.mu.Unlock()
		return nil
	}
	s.live = st
	view := s.viewLocked()
	s.deliver(func() { s.notify(view) })
	return nil
}

// View returns a deep copy of the current derived state.
func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Close drops the scope, which closes the connection and cancels any
// outstanding fetch.
func (s *Session) Close() {
	s.SetScope("")
}

func (s *Session) viewLocked() View {
	return View{
		ExecutionID: s.scope,
		Live:        s.live.Clone(),
		Office:      s.office.State(),
		Agents:      s.agents.View(),
	}
}

// deliver releases s.mu only after taking deliverMu, so views reach the bus
// and listeners in the order they were built. The caller holds s.mu.
func (s *Session) deliver(fn func()) {
	s.deliverMu.Lock()
	s.mu.Unlock()
	defer s.deliverMu.Unlock()
	fn()
}

func (s *Session) notify(view View) {
	s.listenerMu.RLock()
	defer s.listenerMu.RUnlock()
	for _, l := range s.listeners {
		l(view)
	}
}

func (s *Session) publish(topic string, v any) {
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.PublishJSON(topic, v); err != nil {
		slog.Warn("publish failed", "topic", topic, "error", err)
	}
}

// publishRaw forwards a received frame without re-encoding it.
func (s *Session) publishRaw(topic string, msg protocol.Message) {
	if s.opts.Publisher == nil {
		return
	}
	if err := s.opts.Publisher.Publish(topic, msg.Raw); err != nil {
		slog.Warn("publish failed", "topic", topic, "error", err)
	}
}
