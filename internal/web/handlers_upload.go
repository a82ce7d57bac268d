package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/logging"
)

// handleUpload replaces the session's dataset with an uploaded CSV file.
// A rejected or unreadable file leaves the wizard untouched.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		if isTooLarge(err) {
			fail(w, r, err)
			return
		}
		fail(w, r, errNoFile)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		fail(w, r, errNoFile)
		return
	}
	defer file.Close()

	if err := csvdata.CheckUpload(header.Filename, header.Header.Get("Content-Type")); err != nil {
		fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Upload.Timeout)
	defer cancel()

	d, err := csvdata.Read(ctx, file, header.Size, header.Filename)
	if err != nil {
		fail(w, r, err)
		return
	}

	sess.Wizard.UpdateDataset(d)
	logging.FromContext(r.Context()).Info("dataset loaded",
		"file", d.FileName,
		"columns", len(d.Headers),
		"rows", len(d.Rows),
		"bytes", header.Size,
	)
	respondState(w, r, sess.Wizard)
}

// handlePreview returns the first n rows of the dataset (default 5).
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	sess, ok := mustSession(w, r)
	if !ok {
		return
	}

	n := parseIntParam(r, "n", csvdata.DefaultPreviewRows)
	st := sess.Wizard.State()
	writeJSON(w, http.StatusOK, csvdata.Preview(st.Dataset, n))
}
