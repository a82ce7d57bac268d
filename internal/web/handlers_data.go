package web

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/history"
	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/wizard"
)

// errNoResults is returned when a download is requested before a run completed.
var errNoResults = &wizard.GuardError{From: wizard.StepProcessing, Reason: "finish processing before downloading"}

// enrichedDataset returns the session's enriched dataset, or writes an error.
func enrichedDataset(w http.ResponseWriter, r *http.Request) (csvdata.Dataset, bool) {
	sess, ok := mustSession(w, r)
	if !ok {
		return csvdata.Dataset{}, false
	}
	d := sess.Wizard.State().Enriched
	if d.Empty() {
		fail(w, r, errNoResults)
		return csvdata.Dataset{}, false
	}
	return d, true
}

// handleDownloadCSV sends the enriched dataset as enriched_<name>.
func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	d, ok := enrichedDataset(w, r)
	if !ok {
		return
	}

	filename := csvdata.EnrichedFileName(d.FileName)
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write([]byte(csvdata.Serialize(d))); err != nil {
		logging.FromContext(r.Context()).Warn("csv download interrupted", "error", err)
	}
}

// handleDownloadXLSX sends the enriched dataset as a workbook.
func (s *Server) handleDownloadXLSX(w http.ResponseWriter, r *http.Request) {
	d, ok := enrichedDataset(w, r)
	if !ok {
		return
	}

	// Build in memory so a failure can still become an error response.
	var buf bytes.Buffer
	if err := csvdata.WriteXLSX(&buf, d); err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}

	filename := csvdata.XLSXFileName(csvdata.EnrichedFileName(d.FileName))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := buf.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("xlsx download interrupted", "error", err)
	}
}

// handleHistory lists recent runs across all sessions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", history.DefaultLimit)

	records, err := s.history.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
