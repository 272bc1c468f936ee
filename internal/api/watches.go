package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"git.home.luguber.info/inful/sassc/internal/foundation/errors"
	"git.home.luguber.info/inful/sassc/internal/history"
	"git.home.luguber.info/inful/sassc/internal/logfields"
)

// Watch describes one active watch.
type Watch struct {
	ID        string    `json:"id"`
	Config    string    `json:"config"`
	Root      string    `json:"root"`
	OutDir    string    `json:"out_dir,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// StartRequest is the body of POST /api/watches.
type StartRequest struct {
	Config string `json:"config"`
}

// StartResponse reports whether a new watch was created. Started is false
// when the configuration was already watched.
type StartResponse struct {
	Started bool  `json:"started"`
	Watch   Watch `json:"watch"`
}

// StopResponse reports whether a watch was removed.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// HistoryEntry is one compile record.
type HistoryEntry struct {
	RunID      string    `json:"run_id"`
	Trigger    string    `json:"trigger"`
	Source     string    `json:"source"`
	Output     string    `json:"output"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
}

// WatchService is what the API needs from the watch host.
type WatchService interface {
	StartWatch(ctx context.Context, configPath string) (StartResponse, error)
	StopWatch(configPath string) bool
	Watches() []Watch
}

// HistoryService lists recent compile records.
type HistoryService interface {
	Recent(ctx context.Context, limit int) ([]history.Record, error)
}

const defaultHistoryLimit = 50

func (s *Server) handleListWatches(w http.ResponseWriter, _ *http.Request) {
	watches := s.watches.Watches()
	if watches == nil {
		watches = []Watch{}
	}
	s.Success(w, http.StatusOK, watches)
}

func (s *Server) handleStartWatch(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Config == "" {
		s.Error(w, http.StatusBadRequest, "config is required")
		return
	}

	resp, err := s.watches.StartWatch(r.Context(), req.Config)
	if err != nil {
		s.logger.Warn("Start watch failed", logfields.ConfigPath(req.Config), logfields.Error(err))
		s.Error(w, errors.StatusCodeFor(err), errors.FormatErrorResponse(err).Error)
		return
	}
	code := http.StatusOK
	if resp.Started {
		code = http.StatusCreated
	}
	s.Success(w, code, resp)
}

func (s *Server) handleStopWatch(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("config")
	if path == "" {
		s.Error(w, http.StatusBadRequest, "config query parameter is required")
		return
	}
	s.Success(w, http.StatusOK, StopResponse{Stopped: s.watches.StopWatch(path)})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			s.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		s.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]HistoryEntry, 0, len(records))
	for _, rec := range records {
		out = append(out, HistoryEntry{
			RunID:      rec.RunID,
			Trigger:    rec.Trigger,
			Source:     rec.Source,
			Output:     rec.Output,
			Success:    rec.Success,
			Message:    rec.Message,
			DurationMS: rec.Duration.Milliseconds(),
			At:         rec.At,
		})
	}
	s.Success(w, http.StatusOK, out)
}
