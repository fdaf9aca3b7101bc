package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/roach88/listsync/internal/item"
)

// handleEvents streams a list's events. Events after Last-Event-ID (or
// the after query parameter) are replayed from the log first; live events
// already covered by the replay are skipped.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	listID := r.PathValue("list")
	after, err := resumePoint(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, fmt.Errorf("streaming unsupported"))
		return
	}

	ctx := r.Context()
	// Subscribe before replaying so nothing written in between is lost.
	ch, err := s.backend.Subscribe(ctx, listID)
	if err != nil {
		writeBackendError(w, err)
		return
	}
	var backlog []item.Event
	if after > 0 {
		if backlog, err = s.backend.EventsSince(ctx, listID, after, 0); err != nil {
			writeBackendError(w, err)
			return
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(":\n\n"))
	flusher.Flush()

	last := after
	count := 0
	send := func(ev item.Event) bool {
		if ev.Seq <= last {
			return true
		}
		if err := writeEvent(w, ev); err != nil {
			return false
		}
		flusher.Flush()
		last = ev.Seq
		count++
		return true
	}

	reason := "ctx_done"
	defer func() {
		s.logger.Debug("event stream closed",
			"list", listID,
			"after", after,
			"sent", count,
			"reason", reason,
		)
	}()

	for _, ev := range backlog {
		if !send(ev) {
			reason = "write_failed"
			return
		}
	}

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Write([]byte(": ping\n\n")); err != nil {
				reason = "write_failed"
				return
			}
			flusher.Flush()
		case ev, ok := <-ch:
			if !ok {
				// The backend dropped a slow subscriber; the client resumes.
				reason = "channel_closed"
				return
			}
			if !send(ev) {
				reason = "write_failed"
				return
			}
		}
	}
}

func resumePoint(r *http.Request) (int64, error) {
	s := r.Header.Get("Last-Event-ID")
	if s == "" {
		s = r.URL.Query().Get("after")
	}
	if s == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid resume point %q", s)
	}
	return n, nil
}

func writeEvent(w http.ResponseWriter, ev item.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", ev.Seq, ev.Kind, data)
	return err
}
