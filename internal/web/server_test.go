package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/JonMunkholm/enricher/internal/config"
	"github.com/JonMunkholm/enricher/internal/enrich"
	"github.com/JonMunkholm/enricher/internal/history"
	"github.com/JonMunkholm/enricher/internal/processing"
	"github.com/JonMunkholm/enricher/internal/session"
	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leadsCSV = "Name,Website\nAcme,\nBeta,"

var fastRun = processing.Options{
	Interval:  time.Millisecond,
	StepSize:  25,
	Companies: []string{"Acme Corp", "Globex"},
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080, RequestTimeout: 10 * time.Second},
		Upload: config.UploadConfig{MaxFileSize: 4096, Timeout: 5 * time.Second},
		Security: config.SecurityConfig{
			EnableCSP: true,
		},
	}
}

type testEnv struct {
	t       *testing.T
	server  *Server
	history *history.MemoryRecorder
	cookie  *http.Cookie
}

func newTestEnv(t *testing.T, cfg *config.Config, opts processing.Options) *testEnv {
	t.Helper()

	rec := history.NewMemoryRecorder(10)
	runner := processing.NewRunner(processing.RunnerConfig{
		Options:      opts,
		Recorder:     rec,
		CleanupDelay: time.Hour,
	})
	t.Cleanup(func() {
		runner.CancelAll()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = runner.Wait(ctx)
	})

	store := session.NewStore(wizard.Options{
		DefaultSites: []wizard.Site{
			{Name: "Google", URL: "https://google.com", Selected: true},
			{Name: "Crunchbase", URL: "https://crunchbase.com"},
		},
		DefaultPrompt: "Extract the company name.",
	})

	srv := NewServer(cfg, Deps{
		Sessions: store,
		Runner:   runner,
		Provider: enrich.NewMockProvider([]string{"Initech"}, rand.NewSource(1)),
		History:  rec,
	})
	return &testEnv{t: t, server: srv, history: rec}
}

// do sends req through the router, carrying the session cookie across calls.
func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	e.t.Helper()
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == session.CookieName {
			e.cookie = c
		}
	}
	return rec
}

func (e *testEnv) json(method, path string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	return e.do(req)
}

func (e *testEnv) upload(fileName, contentType, content string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, fileName))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(e.t, err)
	_, err = io.WriteString(part, content)
	require.NoError(e.t, err)
	require.NoError(e.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.do(req)
}

func (e *testEnv) state() wizard.State {
	e.t.Helper()
	rec := e.json(http.MethodGet, "/api/state", nil)
	require.Equal(e.t, http.StatusOK, rec.Code)
	var st wizard.State
	require.NoError(e.t, json.Unmarshal(rec.Body.Bytes(), &st))
	return st
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

// advanceTo posts advance until the wizard reaches step.
func (e *testEnv) advanceTo(step wizard.Step) {
	e.t.Helper()
	for e.state().Step != step {
		rec := e.json(http.MethodPost, "/api/advance", nil)
		require.Equal(e.t, http.StatusOK, rec.Code, rec.Body.String())
	}
}

func TestSessionCookieIssuedOnce(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.json(http.MethodGet, "/api/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, env.cookie)
	assert.True(t, env.cookie.HttpOnly)
	first := env.cookie.Value

	rec = env.json(http.MethodGet, "/api/state", nil)
	assert.Empty(t, rec.Result().Cookies(), "known session must not get a new cookie")
	assert.Equal(t, first, env.cookie.Value)
}

func TestUploadRejectsNonCSV(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.upload("notes.txt", "text/plain", "hello")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE001", decodeError(t, rec).Code)

	st := env.state()
	assert.Equal(t, wizard.StepUpload, st.Step)
	assert.True(t, st.Dataset.Empty())
}

func TestUploadTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxFileSize = 64
	env := newTestEnv(t, cfg, fastRun)

	rec := env.upload("big.csv", "text/csv", "Name\n"+strings.Repeat("Acme\n", 200))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "FILE003", decodeError(t, rec).Code)
}

func TestUploadWithoutFile(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("other", "value"))
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "FILE004", decodeError(t, rec).Code)
}

func TestAdvanceGuardViolation(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.json(http.MethodPost, "/api/advance", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeError(t, rec)
	assert.Equal(t, "WIZ001", resp.Code)
	assert.Equal(t, "Upload a CSV file first", resp.Action)
	assert.Equal(t, wizard.StepUpload, env.state().Step)
}

func TestPreviewAndTemplate(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)
	require.Equal(t, http.StatusOK, env.upload("leads.csv", "text/csv", leadsCSV).Code)

	rec := env.json(http.MethodGet, "/api/preview?n=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rows":[["Acme",""]]`)

	rec = env.json(http.MethodPost, "/api/columns/select", map[string]string{"name": "Website"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.json(http.MethodPatch, "/api/config", map[string]any{
		"selectedColumns": []string{"Name", "Website"},
		"customTemplate":  "Find {Name} at {Website}",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.json(http.MethodGet, "/api/template/preview", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var got map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Find Acme at [empty]", got["preview"])

	rec = env.json(http.MethodDelete, "/api/columns/Website", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Name"}, env.state().Config.SelectedColumns)
}

func TestSiteEndpoints(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.json(http.MethodPut, "/api/sites", []wizard.Site{
		{Name: "Docs", URL: "docs.example.com"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://docs.example.com", env.state().Sites[0].URL)

	rec = env.json(http.MethodPost, "/api/sites", map[string]string{"name": "Wiki", "url": "wiki.example.com"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.json(http.MethodPost, "/api/sites/1/up", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.json(http.MethodPost, "/api/sites/0/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := env.state()
	require.Len(t, st.Sites, 2)
	assert.True(t, st.Sites[0].Selected)
	assert.Equal(t, 1, st.Sites[1].Rank)

	rec = env.json(http.MethodDelete, "/api/sites/0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Wiki", env.state().Sites[0].Name)

	rec = env.json(http.MethodPost, "/api/sites/9/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "WIZ002", decodeError(t, rec).Code)

	rec = env.json(http.MethodPost, "/api/sites", map[string]string{"name": " ", "url": "x.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "WIZ004", decodeError(t, rec).Code)
}

func TestFullWizardFlow(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.upload("leads.csv", "text/csv", leadsCSV)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	st := env.state()
	require.Len(t, st.Dataset.Rows, 2)

	env.advanceTo(wizard.StepConfigure)
	require.Equal(t, http.StatusOK, env.json(http.MethodPost, "/api/columns", map[string]string{"name": "Notes"}).Code)
	env.advanceTo(wizard.StepSearchTerms)
	require.Equal(t, http.StatusOK, env.json(http.MethodPatch, "/api/config", map[string]string{"customTemplate": "{Name}"}).Code)
	env.advanceTo(wizard.StepSites)
	require.NotEmpty(t, env.state().Sites, "entering sites seeds the defaults")

	rec = env.json(http.MethodPost, "/api/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Eventually(t, func() bool {
		return env.state().Step == wizard.StepResults
	}, 5*time.Second, 5*time.Millisecond)

	st = env.state()
	assert.Equal(t, float64(100), st.Progress)
	assert.Equal(t, []string{"Name", "Website", "Notes"}, st.Enriched.Headers)

	rec = env.json(http.MethodGet, "/api/download", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="enriched_leads.csv"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "Name,Website,Notes\nAcme,,Initech\nBeta,,Initech", rec.Body.String())

	rec = env.json(http.MethodGet, "/api/download.xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, `attachment; filename="enriched_leads.xlsx"`, rec.Header().Get("Content-Disposition"))
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")), "xlsx is a zip archive")

	require.Eventually(t, func() bool {
		recs, err := env.history.Recent(context.Background(), 10)
		return err == nil && len(recs) == 1
	}, 5*time.Second, 5*time.Millisecond)

	rec = env.json(http.MethodGet, "/api/history?limit=5", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []history.Record
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, history.StatusCompleted, runs[0].Status)
	assert.Equal(t, "leads.csv", runs[0].FileName)
	assert.Equal(t, []string{"Google"}, runs[0].Sites)
}

func TestDownloadBeforeResults(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.json(http.MethodGet, "/api/download", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "WIZ001", decodeError(t, rec).Code)
}

// toProcessing drives a fresh session up to the sites step, ready to advance.
func (e *testEnv) toSites() {
	e.t.Helper()
	require.Equal(e.t, http.StatusOK, e.upload("leads.csv", "text/csv", leadsCSV).Code)
	e.advanceTo(wizard.StepConfigure)
	require.Equal(e.t, http.StatusOK, e.json(http.MethodPost, "/api/columns", map[string]string{"name": "Notes"}).Code)
	e.advanceTo(wizard.StepSearchTerms)
	require.Equal(e.t, http.StatusOK, e.json(http.MethodPatch, "/api/config", map[string]string{"customTemplate": "{Name}"}).Code)
	e.advanceTo(wizard.StepSites)
}

func TestProcessingEventsStream(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)
	env.toSites()
	require.Equal(t, http.StatusOK, env.json(http.MethodPost, "/api/advance", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/api/processing/events", nil)
	rec := env.do(req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	assert.Contains(t, body, "event: progress\n")
	assert.Contains(t, body, "event: complete\n")
	assert.Contains(t, body, `"step":"results"`)
	assert.Less(t, strings.Index(body, "event: progress"), strings.Index(body, "event: complete"))
}

func TestProcessingEventsWithoutRun(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/processing/events", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "WIZ007", decodeError(t, rec).Code)
}

func TestCancelProcessing(t *testing.T) {
	slow := fastRun
	slow.StartDelay = time.Hour
	env := newTestEnv(t, testConfig(), slow)
	env.toSites()
	require.Equal(t, http.StatusOK, env.json(http.MethodPost, "/api/advance", nil).Code)
	require.True(t, env.state().Running)

	rec := env.json(http.MethodPost, "/api/processing/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "WIZ003", decodeError(t, rec).Code)

	rec = env.json(http.MethodPost, "/api/processing/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	st := env.state()
	assert.Equal(t, wizard.StepProcessing, st.Step)
	assert.False(t, st.Running)
	assert.Zero(t, st.Progress)

	rec = env.json(http.MethodPost, "/api/processing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStartOutsideProcessing(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.json(http.MethodPost, "/api/processing/start", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "WIZ005", decodeError(t, rec).Code)
}

func TestFormPostRedirects(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	req := httptest.NewRequest(http.MethodPost, "/api/config", strings.NewReader("prompt=Find+the+CEO"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec := env.do(req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	assert.Equal(t, "Find the CEO", env.state().Config.Prompt)
}

func TestHTMLErrorPage(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	req := httptest.NewRequest(http.MethodPost, "/api/advance", nil)
	req.Header.Set("Accept", "text/html")
	rec := env.do(req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, "WIZ001")
	assert.Contains(t, body, "Upload a CSV file")
}

func TestIndexRendersCurrentStep(t *testing.T) {
	env := newTestEnv(t, testConfig(), fastRun)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Upload a CSV file")
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))

	require.Equal(t, http.StatusOK, env.upload("leads.csv", "text/csv", "Name\n<b>Acme</b>").Code)
	require.Equal(t, http.StatusOK, env.json(http.MethodPost, "/api/advance", nil).Code)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Showing 1 of 1 rows.")
	assert.Contains(t, body, "&lt;b&gt;Acme&lt;/b&gt;")
	assert.NotContains(t, body, "<b>Acme</b>")
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	rl := newRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"), "limits are per IP")

	now = now.Add(61 * time.Second)
	assert.True(t, rl.allow("10.0.0.1"), "window reset")

	now = now.Add(5 * time.Minute)
	rl.sweep()
	assert.Empty(t, rl.visitors)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 1, UploadLimit: 1}
	env := newTestEnv(t, cfg, fastRun)

	require.Equal(t, http.StatusOK, env.json(http.MethodGet, "/api/state", nil).Code)
	rec := env.json(http.MethodGet, "/api/state", nil)

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "RATE001", decodeError(t, rec).Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&wizard.GuardError{From: wizard.StepUpload, Reason: "x"}, http.StatusConflict},
		{wizard.ErrInvalidFileFormat, http.StatusBadRequest},
		{&http.MaxBytesError{Limit: 1}, http.StatusRequestEntityTooLarge},
		{fmt.Errorf("wrap: %w", wizard.ErrSiteNotFound), http.StatusNotFound},
		{processing.ErrTooManyRuns, http.StatusServiceUnavailable},
		{wizard.ErrProcessingBusy, http.StatusConflict},
		{io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
