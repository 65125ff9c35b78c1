package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/prath-devops/sfdx-core/internal/model"
	"github.com/prath-devops/sfdx-core/internal/store"
)

func (s *Server) handleStreamMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the watch exists.
	wt, err := s.store.GetWatch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "watch not found")
		return
	}
	if err != nil {
		s.logger.Error("get watch for stream", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get watch")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// If already in a terminal state, return empty stream immediately.
	if model.TerminalStatus(wt.Status) {
		w.WriteHeader(http.StatusOK)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe to the message stream. This is safe even if the watch settled
	// between the status check above and this call — Subscribe on a closed
	// topic returns a closed channel, causing the loop below to exit
	// immediately.
	ch, unsub := s.monitor.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	for {
		select {
		case body, ok := <-ch:
			if !ok {
				// Watch settled; send explicit done event before closing.
				_ = writeSSEEvent(w, "done", "stream complete")
				if canFlush {
					flusher.Flush()
				}
				return
			}
			if err := writeSSEData(w, body); err != nil {
				return // Write failed (e.g. client gone).
			}
			if canFlush {
				flusher.Flush()
			}
		case <-r.Context().Done():
			return // Client disconnected.
		}
	}
}

// messageHistoryLine is a single message in the history response.
type messageHistoryLine struct {
	Seq       int    `json:"seq"`
	Body      string `json:"body"`
	CreatedAt string `json:"created_at"`
}

// messageHistoryResponse is the JSON response for GET /v1/watches/:id/messages.
type messageHistoryResponse struct {
	WatchID  string               `json:"watch_id"`
	Messages []messageHistoryLine `json:"messages"`
}

func (s *Server) handleGetMessageHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// Verify the watch exists.
	_, err := s.store.GetWatch(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "watch not found")
		return
	}
	if err != nil {
		s.logger.Error("get watch for message history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get watch")
		return
	}

	stored, err := s.store.GetMessages(r.Context(), id)
	if err != nil {
		s.logger.Error("get messages", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get messages")
		return
	}

	messages := make([]messageHistoryLine, len(stored))
	for i, m := range stored {
		messages[i] = messageHistoryLine{
			Seq:       m.Seq,
			Body:      m.Body,
			CreatedAt: m.CreatedAt.Format(time.RFC3339),
		}
	}

	s.writeJSON(w, http.StatusOK, messageHistoryResponse{
		WatchID:  id,
		Messages: messages,
	})
}

// writeSSEData writes a message body as an SSE data event. Multi-line strings
// are split so that each segment gets its own "data:" prefix, per the SSE spec.
func writeSSEData(w http.ResponseWriter, body string) error {
	for _, seg := range strings.Split(body, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
