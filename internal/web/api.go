package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/live"
	"github.com/morbidsteve/agent-orchestra-sub001/internal/session"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	// Derived state
	mux.HandleFunc("GET /api/state", s.getState)
	mux.HandleFunc("GET /api/office", s.getOffice)
	mux.HandleFunc("GET /api/agents", s.getAgents)
	mux.HandleFunc("GET /api/layout", s.getLayout)

	// Control
	mux.HandleFunc("PUT /api/scope", s.setScope)
	mux.HandleFunc("POST /api/clarification", s.answerClarification)

	// Journal
	mux.HandleFunc("GET /api/transcript", s.getTranscript)
	mux.HandleFunc("GET /api/transcript/export", s.exportTranscript)
	mux.HandleFunc("GET /api/transcript/replay", s.replayTranscript)

	// System
	mux.HandleFunc("GET /api/status", s.getStatus)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.sess.View())
}

func (s *Server) getOffice(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.sess.View().Office)
}

func (s *Server) getAgents(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, s.sess.View().Agents)
}

type placement struct {
	Role string  `json:"role"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
}

// getLayout places office agents by their roster order.
func (s *Server) getLayout(w http.ResponseWriter, r *http.Request) {
	if s.layout == nil {
		jsonError(w, "layout not configured", http.StatusNotFound)
		return
	}
	agents := s.sess.View().Office.Agents
	out := make([]placement, len(agents))
	for i, a := range agents {
		p := s.layout.Position(i)
		out[i] = placement{Role: a.Role, X: p.X, Y: p.Y}
	}
	jsonResponse(w, out)
}

func (s *Server) setScope(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ExecutionID *string `json:"executionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	// An explicit null selects no execution
	id := ""
	if body.ExecutionID != nil {
		id = *body.ExecutionID
	}
	s.sess.SetScope(id)
	jsonResponse(w, map[string]string{"status": "ok", "executionId": id})
}

func (s *Server) answerClarification(w http.ResponseWriter, r *http.Request) {
	var body struct {
		QuestionID string `json:"questionId"`
		Answer     string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.QuestionID == "" {
		jsonError(w, "questionId is required", http.StatusBadRequest)
		return
	}

	err := s.sess.Answer(body.QuestionID, body.Answer)
	switch {
	case err == nil:
		jsonResponse(w, map[string]string{"status": "ok"})
	case errors.Is(err, session.ErrNoScope), errors.Is(err, session.ErrUnknownQuestion):
		jsonError(w, err.Error(), http.StatusConflict)
	default:
		jsonError(w, err.Error(), http.StatusBadGateway)
	}
}

func (s *Server) getTranscript(w http.ResponseWriter, r *http.Request) {
	execID := s.sess.View().ExecutionID
	if execID == "" {
		jsonError(w, session.ErrNoScope.Error(), http.StatusConflict)
		return
	}

	after, err := queryInt(r, "after")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit, err := queryInt(r, "limit")
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	msgs, err := s.journal.List(execID, int64(after), limit)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	total, err := s.journal.Count(execID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{
		"executionId": execID,
		"messages":    msgs,
		"total":       total,
	})
}

// replayTranscript rebuilds the channel state of the current execution from
// the journal alone.
func (s *Server) replayTranscript(w http.ResponseWriter, r *http.Request) {
	execID := s.sess.View().ExecutionID
	if execID == "" {
		jsonError(w, session.ErrNoScope.Error(), http.StatusConflict)
		return
	}

	msgs, err := s.journal.List(execID, 0, 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	st := live.Initial()
	for _, m := range msgs {
		st = live.Reduce(st, m.Protocol())
	}
	jsonResponse(w, map[string]any{
		"executionId": execID,
		"replayed":    len(msgs),
		"live":        st,
	})
}

// exportTranscript streams the whole journal of the current execution as
// zstd-compressed JSON lines.
func (s *Server) exportTranscript(w http.ResponseWriter, r *http.Request) {
	execID := s.sess.View().ExecutionID
	if execID == "" {
		jsonError(w, session.ErrNoScope.Error(), http.StatusConflict)
		return
	}

	msgs, err := s.journal.List(execID, 0, 0)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/zstd")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", execID+".jsonl.zst"))

	zw, err := zstd.NewWriter(w)
	if err != nil {
		jsonError(w, "create zstd writer: "+err.Error(), http.StatusInternalServerError)
		return
	}
	enc := json.NewEncoder(zw)
	for _, m := range msgs {
		if err := enc.Encode(m); err != nil {
			zw.Close()
			return
		}
	}
	zw.Close()
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	v := s.sess.View()
	jsonResponse(w, map[string]any{
		"status":      "ok",
		"executionId": v.ExecutionID,
		"connected":   v.Live.Connected,
		"execStatus":  v.Live.Status,
		"agents":      len(v.Office.Agents),
		"clients":     s.hub.Len(),
		"uptime":      formatUptime(time.Since(s.startedAt)),
		"timestamp":   time.Now().UTC(),
		"version":     s.version,
	})
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return n, nil
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	mins := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, mins)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dm", mins)
}

func jsonResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
