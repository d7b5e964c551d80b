package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/aretw0/automata/pkg/domain"
)

// SubscribeEvents handles the GET /sessions/{id}/events request (SSE).
// The first event carries the whole simulation; later ones carry diffs.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var watch []string
	if err := bindQuery(r, "watch", false, &watch); err != nil {
		s.writeError(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	// Subscribe before loading so no diff falls between the two.
	ch, cancel := s.streams.Subscribe(sessionID)
	defer cancel()

	sess, err := s.sessions.Load(r.Context(), sessionID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	s.logger.InfoContext(r.Context(), "SSE: Subscribing to Session Updates", "session_id", sessionID)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	s.sendDiff(w, domain.Diff(sessionID, nil, &sess.Simulation))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.InfoContext(r.Context(), "SSE Client Disconnected", "session_id", sessionID)
			return
		case diff, ok := <-ch:
			if !ok {
				return
			}
			if !watches(diff, watch) {
				continue
			}
			s.sendDiff(w, diff)
			flusher.Flush()
		}
	}
}

func (s *Server) sendDiff(w http.ResponseWriter, diff *domain.SimulationDiff) {
	data, err := json.Marshal(diff)
	if err != nil {
		s.logger.Error("SSE: diff encode failed", "err", err)
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}

// watches reports whether diff touches any of the watched fields.
// An empty list watches everything.
func watches(diff *domain.SimulationDiff, watch []string) bool {
	if len(watch) == 0 {
		return true
	}
	for _, field := range watch {
		switch strings.TrimSpace(field) {
		case "run":
			if diff.RunID != nil {
				return true
			}
		case "position":
			if diff.Position != nil {
				return true
			}
		case "current":
			if diff.Current != nil {
				return true
			}
		case "status":
			if diff.Status != nil || diff.Finished != nil || diff.Accepted != nil || diff.DeadEnd != nil {
				return true
			}
		case "trace":
			if diff.Trace != nil {
				return true
			}
		}
	}
	return false
}
