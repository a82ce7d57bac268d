package web

import (
	"net/http"

	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/web/views"
	"github.com/JonMunkholm/enricher/internal/wizard"
)

// handleIndex renders the current wizard step.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	data := pageData(sess.Wizard)
	data.MaxUploadSize = s.cfg.Upload.MaxFileSize

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.Page(data).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "error", err)
	}
}

// handleState returns the wizard snapshot.
func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Wizard.State())
}

// handleAdvance moves to the next step. Entering processing starts the run,
// the way the processing view expects.
func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	from := sess.Wizard.Step()
	if err := sess.Wizard.Advance(); err != nil {
		fail(w, r, err)
		return
	}

	to := sess.Wizard.Step()
	logging.FromContext(r.Context()).Info("step advanced", "from", from, "to", to)

	if to == wizard.StepProcessing {
		if _, err := s.runner.Start(r.Context(), sess.ID, sess.Wizard, s.provider); err != nil {
			fail(w, r, err)
			return
		}
	}
	respondState(w, r, sess.Wizard)
}

// handleBack moves to the previous step.
func (s *Server) handleBack(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	from := sess.Wizard.Step()
	if err := sess.Wizard.Back(); err != nil {
		fail(w, r, err)
		return
	}
	logging.FromContext(r.Context()).Info("step back", "from", from, "to", sess.Wizard.Step())
	respondState(w, r, sess.Wizard)
}

// handleReset discards the session's wizard state.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}
	sess.Wizard.Reset()
	logging.FromContext(r.Context()).Info("wizard reset")
	respondState(w, r, sess.Wizard)
}
