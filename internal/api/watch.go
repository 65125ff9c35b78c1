package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prath-devops/sfdx-core/internal/model"
	"github.com/prath-devops/sfdx-core/internal/store"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// createWatchRequest is the JSON body for POST /v1/watches.
type createWatchRequest struct {
	Mode        string `json:"mode"`
	Target      string `json:"target"`
	Channel     string `json:"channel"`
	FrequencyMS *int64 `json:"frequency_ms"`
	TimeoutMS   *int64 `json:"timeout_ms"`
}

// listWatchesResponse wraps the paginated list response.
type listWatchesResponse struct {
	Watches []*model.Watch `json:"watches"`
	Total   int            `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

func (s *Server) handleCreateWatch(w http.ResponseWriter, r *http.Request) {
	var req createWatchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Mode == "" {
		req.Mode = model.ModePoll
	}
	if req.Mode != model.ModePoll && req.Mode != model.ModeSubscribe {
		s.writeError(w, http.StatusBadRequest, "mode must be poll or subscribe")
		return
	}
	if req.Target == "" {
		s.writeError(w, http.StatusBadRequest, "target is required")
		return
	}
	if req.Mode == model.ModeSubscribe && req.Channel == "" {
		s.writeError(w, http.StatusBadRequest, "channel is required for subscribe mode")
		return
	}

	wt := &model.Watch{
		ID:          model.NewID(),
		Mode:        req.Mode,
		Status:      model.StatusPending,
		Target:      req.Target,
		Channel:     req.Channel,
		FrequencyMS: req.FrequencyMS,
		TimeoutMS:   req.TimeoutMS,
		CreatedAt:   time.Now().UTC(),
	}

	if err := s.monitor.Submit(r.Context(), wt); err != nil {
		s.logger.Error("submit watch", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to submit watch")
		return
	}

	s.writeJSON(w, http.StatusAccepted, wt)
}

func (s *Server) handleGetWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wt, err := s.store.GetWatch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "watch not found")
		return
	}
	if err != nil {
		s.logger.Error("get watch", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get watch")
		return
	}

	s.writeJSON(w, http.StatusOK, wt)
}

func (s *Server) handleListWatches(w http.ResponseWriter, r *http.Request) {
	limit := parseIntQuery(r, "limit", defaultListLimit)
	offset := parseIntQuery(r, "offset", 0)

	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	if offset < 0 {
		offset = 0
	}

	watches, total, err := s.store.ListWatches(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list watches", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list watches")
		return
	}

	if watches == nil {
		watches = []*model.Watch{}
	}

	s.writeJSON(w, http.StatusOK, listWatchesResponse{
		Watches: watches,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}

// handleCancelWatch stops a running observation. The watch settles to
// "canceled" asynchronously, so the response may still show it running.
func (s *Server) handleCancelWatch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	wt, err := s.store.GetWatch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "watch not found")
		return
	}
	if err != nil {
		s.logger.Error("get watch for cancel", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get watch")
		return
	}

	if model.TerminalStatus(wt.Status) {
		s.writeError(w, http.StatusConflict, "watch already finished")
		return
	}

	if !s.monitor.Cancel(id) {
		// Not running yet (or settled between the read above and here); try
		// the direct transition for pending watches.
		if err := s.store.UpdateWatchStatus(r.Context(), id, model.StatusCanceled); err != nil {
			if errors.Is(err, store.ErrInvalidTransition) {
				s.writeError(w, http.StatusConflict, "watch already finished")
				return
			}
			s.logger.Error("cancel watch", "error", err)
			s.writeError(w, http.StatusInternalServerError, "failed to cancel watch")
			return
		}
	}

	wt, err = s.store.GetWatch(r.Context(), id)
	if err != nil {
		s.logger.Error("get canceled watch", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to retrieve watch")
		return
	}

	s.writeJSON(w, http.StatusAccepted, wt)
}

// writeJSON writes a JSON response with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// parseIntQuery parses an integer query parameter with a default value.
func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
