package web

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/processing"
	"github.com/JonMunkholm/enricher/internal/wizard"
)

// StartResponse is returned by POST /api/processing/start.
type StartResponse struct {
	RunID string       `json:"runId"`
	State wizard.State `json:"state"`
}

// handleStartProcessing starts a run for the session. The wizard must be
// on the processing step with nothing running, e.g. after a failed run.
func (s *Server) handleStartProcessing(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	runID, err := s.runner.Start(r.Context(), sess.ID, sess.Wizard, s.provider)
	if err != nil {
		fail(w, r, err)
		return
	}

	if !wantsJSON(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusAccepted, StartResponse{RunID: runID, State: sess.Wizard.State()})
}

// handleCancelProcessing stops the session's run. The wizard stays on the
// processing step with its progress cleared.
func (s *Server) handleCancelProcessing(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	if !sess.Wizard.Running() {
		fail(w, r, processing.ErrRunNotFound)
		return
	}
	sess.Wizard.CancelProcessing()
	logging.FromContext(r.Context()).Info("processing cancelled by user")
	respondState(w, r, sess.Wizard)
}

// handleProcessingEvents streams run progress as server-sent events.
//
// Each update is a "progress" event whose id is the whole percentage, so a
// reconnecting client can pass Last-Event-ID (or ?lastEventId=) to skip what
// it has seen. A final "complete" event carries the wizard state once the
// run has ended, whatever the outcome.
func (s *Server) handleProcessingEvents(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	lastEventID := -1
	raw := r.Header.Get("Last-Event-ID")
	if raw == "" {
		raw = r.URL.Query().Get("lastEventId")
	}
	if raw != "" {
		if id, err := strconv.Atoi(raw); err == nil {
			lastEventID = id
		}
	}

	progressCh, err := s.runner.Subscribe(sess.ID)
	if err != nil {
		fail(w, r, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, r, fmt.Errorf("streaming not supported"), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	logger := logging.FromContext(r.Context())

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				data, err := json.Marshal(sess.Wizard.State())
				if err != nil {
					logger.Error("encode complete event", "error", err)
					return
				}
				fmt.Fprintf(w, "event: complete\ndata: %s\n\n", data)
				flusher.Flush()
				return
			}

			eventID := int(math.Floor(progress.Percent))
			if eventID <= lastEventID && !progress.Done {
				continue
			}
			lastEventID = eventID

			data, err := json.Marshal(progress)
			if err != nil {
				logger.Error("encode progress event", "error", err)
				return
			}
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", eventID, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}
