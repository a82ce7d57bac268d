package processing

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/enrich"
	"github.com/JonMunkholm/enricher/internal/history"
	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

// processingWizard returns a wizard sitting on the processing step.
func processingWizard(t *testing.T) *wizard.Wizard {
	t.Helper()
	w := wizard.New(wizard.Options{
		DefaultSites: []wizard.Site{{Name: "Google", URL: "https://google.com", Selected: true}},
	})
	w.LoadDataset("Name,Website\nAcme,\nBeta,", "leads.csv")
	w.AddColumn("Notes")
	w.UpdateConfig(wizard.ConfigPatch{CustomTemplate: ptr("{Name}")})
	for w.Step() != wizard.StepProcessing {
		require.NoError(t, w.Advance())
	}
	return w
}

func ptr(s string) *string { return &s }

func newTestRunner(rec history.Recorder, opts Options) *Runner {
	return NewRunner(RunnerConfig{
		Options:      opts,
		Recorder:     rec,
		CleanupDelay: time.Hour,
	})
}

func waitDone(t *testing.T, r *Runner, key string) {
	t.Helper()
	done, err := r.Done(key)
	require.NoError(t, err)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

type failingProvider struct{ err error }

func (p failingProvider) Enrich(context.Context, csvdata.Dataset, string) (csvdata.Dataset, error) {
	return csvdata.Dataset{}, p.err
}

func TestRunner_CompletesAndRecords(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := history.NewMemoryRecorder(10)
	r := newTestRunner(rec, fastOptions())
	w := processingWizard(t)
	provider := enrich.NewMockProvider([]string{"filled"}, rand.NewSource(1))

	runID, err := r.Start(context.Background(), "sess-1", w, provider)
	require.NoError(t, err)
	assert.NotEmpty(t, runID)

	ch, err := r.Subscribe("sess-1")
	require.NoError(t, err)

	var last Progress
	for p := range ch {
		last = p
	}
	waitDone(t, r, "sess-1")

	s := w.State()
	assert.Equal(t, wizard.StepResults, s.Step)
	assert.False(t, s.Running)
	assert.Equal(t, float64(100), s.Progress)
	for _, row := range s.Enriched.Rows {
		assert.Equal(t, "filled", row[2])
	}
	assert.True(t, last.Done, "final progress not delivered")

	records, err := rec.Recent(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, runID, records[0].ID)
	assert.Equal(t, history.StatusCompleted, records[0].Status)
	assert.Equal(t, "leads.csv", records[0].FileName)
	assert.Equal(t, 2, records[0].Rows)
	assert.Equal(t, "Notes", records[0].Column)
	assert.Equal(t, []string{"Google"}, records[0].Sites)

	require.NoError(t, r.Wait(context.Background()))
}

func TestRunner_StartRejectsBusyWizard(t *testing.T) {
	defer goleak.VerifyNone(t)

	opts := fastOptions()
	opts.StartDelay = time.Hour
	r := newTestRunner(nil, opts)
	w := processingWizard(t)
	provider := enrich.NewMockProvider([]string{"x"}, nil)

	_, err := r.Start(context.Background(), "k", w, provider)
	require.NoError(t, err)

	_, err = r.Start(context.Background(), "k", w, provider)
	assert.ErrorIs(t, err, wizard.ErrProcessingBusy)

	require.NoError(t, r.Cancel("k"))
	waitDone(t, r, "k")
	require.NoError(t, r.Wait(context.Background()))
}

func TestRunner_StartRequiresProcessingStep(t *testing.T) {
	r := newTestRunner(nil, fastOptions())
	w := wizard.New(wizard.Options{})

	_, err := r.Start(context.Background(), "k", w, enrich.NewMockProvider([]string{"x"}, nil))
	assert.ErrorIs(t, err, wizard.ErrNotProcessing)

	_, err = r.Subscribe("k")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, r.Cancel("k"), ErrRunNotFound)
}

func TestRunner_CancelStopsGoroutine(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := history.NewMemoryRecorder(10)
	opts := fastOptions()
	opts.StartDelay = time.Hour
	r := newTestRunner(rec, opts)
	w := processingWizard(t)

	_, err := r.Start(context.Background(), "k", w, enrich.NewMockProvider([]string{"x"}, nil))
	require.NoError(t, err)
	require.True(t, w.Running())

	require.NoError(t, r.Cancel("k"))
	waitDone(t, r, "k")

	s := w.State()
	assert.Equal(t, wizard.StepProcessing, s.Step)
	assert.False(t, s.Running, "cancelled run still registered with the wizard")
	assert.Empty(t, s.ProcessingError)

	records, _ := rec.Recent(context.Background(), 1)
	require.Len(t, records, 1)
	assert.Equal(t, history.StatusCancelled, records[0].Status)
}

func TestRunner_ResetStopsRun(t *testing.T) {
	defer goleak.VerifyNone(t)

	opts := fastOptions()
	opts.StartDelay = time.Hour
	r := newTestRunner(nil, opts)
	w := processingWizard(t)

	_, err := r.Start(context.Background(), "k", w, enrich.NewMockProvider([]string{"x"}, nil))
	require.NoError(t, err)

	w.Reset()
	waitDone(t, r, "k")

	s := w.State()
	assert.Equal(t, wizard.StepUpload, s.Step)
	assert.True(t, s.Enriched.Empty())
}

func TestRunner_ProviderFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	rec := history.NewMemoryRecorder(10)
	r := newTestRunner(rec, fastOptions())
	w := processingWizard(t)

	_, err := r.Start(context.Background(), "k", w, failingProvider{err: errors.New("provider exploded")})
	require.NoError(t, err)
	waitDone(t, r, "k")

	s := w.State()
	assert.Equal(t, wizard.StepProcessing, s.Step)
	assert.False(t, s.Running)
	assert.NotEmpty(t, s.ProcessingError)

	records, _ := rec.Recent(context.Background(), 1)
	require.Len(t, records, 1)
	assert.Equal(t, history.StatusFailed, records[0].Status)
	assert.Equal(t, "provider exploded", records[0].Error)
}

func TestRunner_LateSubscriberGetsClosedChannel(t *testing.T) {
	defer goleak.VerifyNone(t)

	r := newTestRunner(nil, fastOptions())
	w := processingWizard(t)

	_, err := r.Start(context.Background(), "k", w, enrich.NewMockProvider([]string{"x"}, nil))
	require.NoError(t, err)
	waitDone(t, r, "k")

	ch, err := r.Subscribe("k")
	require.NoError(t, err)

	p, ok := <-ch
	require.True(t, ok)
	assert.True(t, p.Done)
	_, ok = <-ch
	assert.False(t, ok, "channel should be closed after the final progress")

	last, ok := r.Progress("k")
	assert.True(t, ok)
	assert.Equal(t, float64(100), last.Percent)
}

func TestRunner_LimiterTimeout(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewLimiter(1, 20*time.Millisecond)
	require.True(t, limiter.TryAcquire())
	defer limiter.Release()

	r := NewRunner(RunnerConfig{Options: fastOptions(), Limiter: limiter, CleanupDelay: time.Hour})
	w := processingWizard(t)

	_, err := r.Start(context.Background(), "k", w, enrich.NewMockProvider([]string{"x"}, nil))
	require.NoError(t, err)
	waitDone(t, r, "k")

	s := w.State()
	assert.False(t, s.Running)
	assert.Contains(t, s.ProcessingError, "WIZ006")
}
