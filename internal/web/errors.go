package web

// errors.go turns handler errors into responses.
//
// Every error is logged server-side with the technical detail and the request
// and session ids, then rendered for the client as the mapped user message:
// JSON for API callers, an HTML page for browsers.

import (
	"errors"
	"net/http"
	"strings"

	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/processing"
	"github.com/JonMunkholm/enricher/internal/web/views"
	"github.com/JonMunkholm/enricher/internal/wizard"
)

var (
	errNoFile      = errors.New("no file provided")
	errRateLimited = errors.New("rate limit exceeded")
	errBadRequest  = errors.New("invalid request")
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the wizard stack.
func statusFor(err error) int {
	var ge *wizard.GuardError
	switch {
	case errors.As(err, &ge):
		return http.StatusConflict
	case isTooLarge(err):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, wizard.ErrInvalidFileFormat),
		errors.Is(err, wizard.ErrFileReadFailure),
		errors.Is(err, wizard.ErrInvalidSite),
		errors.Is(err, errNoFile),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, wizard.ErrSiteNotFound),
		errors.Is(err, processing.ErrRunNotFound):
		return http.StatusNotFound
	case errors.Is(err, wizard.ErrProcessingBusy),
		errors.Is(err, wizard.ErrNotProcessing):
		return http.StatusConflict
	case errors.Is(err, processing.ErrTooManyRuns):
		return http.StatusServiceUnavailable
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

func isTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large")
}

// fail responds with the status statusFor picks.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	respondError(w, r, err, statusFor(err))
}

// respondError logs err and writes the mapped user message in the format
// the client asked for.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := wizard.MapError(err)

	logger := logging.FromContext(r.Context())
	args := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
	}
	if statusCode >= http.StatusInternalServerError {
		logger.Error("request error", args...)
	} else {
		logger.Warn("request rejected", args...)
	}

	if wantsJSON(r) {
		respondErrorJSON(w, userMsg, statusCode)
		return
	}
	respondErrorHTML(w, r, userMsg, statusCode)
}

// respondErrorJSON writes a JSON error response.
func respondErrorJSON(w http.ResponseWriter, msg wizard.UserMessage, statusCode int) {
	writeJSON(w, statusCode, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// respondErrorHTML renders the error above the current wizard page when a
// session is known, or as a standalone alert otherwise.
func respondErrorHTML(w http.ResponseWriter, r *http.Request, msg wizard.UserMessage, statusCode int) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)

	component := views.ErrorAlert(msg)
	if sess, ok := currentSession(r); ok {
		data := pageData(sess.Wizard)
		data.Error = &msg
		component = views.Page(data)
	}
	if err := component.Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render error page", "error", err)
	}
}

// wantsJSON reports whether the client should get JSON. Browsers posting
// forms ask for text/html; everything else under /api gets JSON.
func wantsJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	if strings.Contains(accept, "application/json") {
		return true
	}
	if strings.Contains(accept, "text/html") {
		return false
	}
	if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/api/")
}
