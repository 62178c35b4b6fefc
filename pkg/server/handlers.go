package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// createRunRequest is the POST /v1/runs body.
type createRunRequest struct {
	Goal     string `json:"goal"`
	MaxSteps int    `json:"max_steps,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if s.runner.Draining() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "draining"})
		return
	}
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.Goal == "" {
		writeError(w, http.StatusBadRequest, "goal is required")
		return
	}
	if req.MaxSteps < 0 {
		writeError(w, http.StatusBadRequest, "max_steps must be non-negative")
		return
	}

	run, err := s.runner.Submit(req.Goal, req.MaxSteps)
	switch {
	case errors.Is(err, ErrRunnerBusy):
		writeError(w, http.StatusTooManyRequests, err.Error())
		return
	case errors.Is(err, ErrRunnerClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Location", "/v1/runs/"+run.ID)
	writeJSON(w, http.StatusAccepted, run.View())
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	runs := s.runner.List()
	views := make([]RunView, len(runs))
	for i, run := range runs {
		views[i] = run.View()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  views,
		"total": len(views),
	})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run := s.runner.Get(chi.URLParam(r, "id"))
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.runner.Cancel(chi.URLParam(r, "id"))
	switch {
	case errors.Is(err, ErrRunNotFound):
		writeError(w, http.StatusNotFound, "run not found")
		return
	case errors.Is(err, ErrRunFinished):
		writeError(w, http.StatusConflict, "run already finished")
		return
	}
	writeJSON(w, http.StatusAccepted, run.View())
}

// handleRunEvents streams a run's steps as server-sent events. Recorded
// events replay first, then the stream follows live until the terminal
// result or error frame.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	run := s.runner.Get(chi.URLParam(r, "id"))
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	past, live, detach := run.Subscribe()
	defer detach()

	for _, ev := range past {
		if err := writeSSE(w, ev); err != nil {
			return
		}
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, open := <-live:
			if !open {
				return
			}
			if err := writeSSE(w, ev); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data)
	return err
}
