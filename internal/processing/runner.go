package processing

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JonMunkholm/enricher/internal/enrich"
	"github.com/JonMunkholm/enricher/internal/history"
	"github.com/JonMunkholm/enricher/internal/logging"
	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/google/uuid"
)

// ErrRunNotFound is returned for a key with no tracked run.
var ErrRunNotFound = errors.New("run not found")

const (
	// DefaultRunTimeout bounds a single run, enrichment included.
	DefaultRunTimeout = 5 * time.Minute
	// DefaultCleanupDelay keeps a finished run around for late subscribers.
	DefaultCleanupDelay = time.Minute

	recordTimeout    = 5 * time.Second
	listenerBuffered = 10
)

// RunnerConfig configures NewRunner. Zero values select defaults.
type RunnerConfig struct {
	Options      Options
	Limiter      *Limiter
	Recorder     history.Recorder
	Timeout      time.Duration
	CleanupDelay time.Duration
}

// Runner starts processing tasks for wizards, keyed by session id, and
// broadcasts their progress to subscribers.
type Runner struct {
	opts         Options
	limiter      *Limiter
	recorder     history.Recorder
	timeout      time.Duration
	cleanupDelay time.Duration

	mu   sync.RWMutex
	runs map[string]*activeRun

	wg sync.WaitGroup
}

type activeRun struct {
	ID     string
	Key    string
	cancel context.CancelFunc
	done   chan struct{}

	listenerMu sync.Mutex
	progress   Progress
	listeners  []chan Progress
	closed     bool
}

// NewRunner returns a Runner with no active runs.
func NewRunner(cfg RunnerConfig) *Runner {
	if cfg.Limiter == nil {
		cfg.Limiter = NewLimiter(0, 0)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRunTimeout
	}
	if cfg.CleanupDelay <= 0 {
		cfg.CleanupDelay = DefaultCleanupDelay
	}
	return &Runner{
		opts:         cfg.Options.withDefaults(),
		limiter:      cfg.Limiter,
		recorder:     cfg.Recorder,
		timeout:      cfg.Timeout,
		cleanupDelay: cfg.CleanupDelay,
		runs:         make(map[string]*activeRun),
	}
}

// Start begins a run for the wizard stored under key and returns the run
// id. The wizard must be on the processing step with no task registered.
// The run outlives ctx; ctx only contributes its values, such as the
// request id used in log lines.
func (r *Runner) Start(ctx context.Context, key string, w *wizard.Wizard, provider enrich.Provider) (string, error) {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)

	gen, err := w.BeginProcessing(cancel)
	if err != nil {
		cancel()
		return "", err
	}

	run := &activeRun{
		ID:     uuid.NewString(),
		Key:    key,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	r.mu.Lock()
	r.runs[key] = run
	r.mu.Unlock()

	r.wg.Add(1)
	go r.process(runCtx, run, w, gen, w.State(), provider)

	return run.ID, nil
}

func (r *Runner) process(ctx context.Context, run *activeRun, w *wizard.Wizard, gen uint64, state wizard.State, provider enrich.Provider) {
	defer r.wg.Done()
	defer r.cleanup(run)
	defer close(run.done)
	defer run.closeListeners()
	defer run.cancel()

	logger := logging.WithFields(ctx,
		"run_id", run.ID,
		"file", state.Dataset.FileName,
		"rows", len(state.Dataset.Rows),
	)
	logger.Info("processing started")

	started := time.Now()
	status, err := r.execute(ctx, run, w, gen, state, provider)

	switch status {
	case history.StatusCompleted:
		logger.Info("processing completed", "duration", time.Since(started))
	case history.StatusCancelled:
		logger.Info("processing cancelled", "duration", time.Since(started))
	default:
		logger.Error("processing failed", "error", err)
	}

	r.record(ctx, run, state, started, status, err)
}

func (r *Runner) execute(ctx context.Context, run *activeRun, w *wizard.Wizard, gen uint64, state wizard.State, provider enrich.Provider) (history.Status, error) {
	if err := r.limiter.Acquire(ctx); err != nil {
		return r.abort(ctx, w, gen, err)
	}
	defer r.limiter.Release()

	err := Run(ctx, r.opts, func(p Progress) {
		if !w.ReportProgress(gen, p.Percent, p.Processed) {
			// The wizard moved on; stop ticking for it.
			run.cancel()
			return
		}
		run.publish(p)
	})
	if err != nil {
		return r.abort(ctx, w, gen, err)
	}

	enriched, err := wizard.Enrich(ctx, provider, state.Dataset, state.Config)
	if err != nil {
		return r.abort(ctx, w, gen, err)
	}

	if !w.CompleteProcessing(gen, enriched) {
		return history.StatusCancelled, nil
	}
	return history.StatusCompleted, nil
}

// abort releases the wizard's task slot. A plain cancellation ends the run
// quietly; anything else is reported on the processing step.
func (r *Runner) abort(ctx context.Context, w *wizard.Wizard, gen uint64, err error) (history.Status, error) {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		w.FailProcessing(gen, nil)
		return history.StatusCancelled, err
	}
	w.FailProcessing(gen, err)
	return history.StatusFailed, err
}

func (r *Runner) record(ctx context.Context, run *activeRun, state wizard.State, started time.Time, status history.Status, runErr error) {
	if r.recorder == nil {
		return
	}

	var sites []string
	for _, s := range wizard.SortSites(state.Sites) {
		if s.Selected {
			sites = append(sites, s.Name)
		}
	}

	rec := history.Record{
		ID:        run.ID,
		SessionID: run.Key,
		FileName:  state.Dataset.FileName,
		Rows:      len(state.Dataset.Rows),
		Column:    state.Config.ColumnToEnrich,
		Sites:     sites,
		StartedAt: started,
		Duration:  time.Since(started),
		Status:    status,
	}
	if status == history.StatusFailed && runErr != nil {
		rec.Error = runErr.Error()
	}

	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := r.recorder.Record(recCtx, rec); err != nil {
		logging.FromContext(ctx).Warn("failed to record run", "run_id", run.ID, "error", err)
	}
}

// Subscribe returns a channel of progress updates for the run under key.
// The current progress is sent first. The channel is closed when the run ends.
func (r *Runner) Subscribe(key string) (<-chan Progress, error) {
	run, ok := r.get(key)
	if !ok {
		return nil, ErrRunNotFound
	}

	ch := make(chan Progress, listenerBuffered)

	run.listenerMu.Lock()
	defer run.listenerMu.Unlock()

	ch <- run.progress
	if run.closed {
		close(ch)
		return ch, nil
	}
	run.listeners = append(run.listeners, ch)
	return ch, nil
}

// Progress returns the last progress of the run under key.
func (r *Runner) Progress(key string) (Progress, bool) {
	run, ok := r.get(key)
	if !ok {
		return Progress{}, false
	}
	run.listenerMu.Lock()
	defer run.listenerMu.Unlock()
	return run.progress, true
}

// Cancel stops the run under key.
func (r *Runner) Cancel(key string) error {
	run, ok := r.get(key)
	if !ok {
		return ErrRunNotFound
	}
	run.cancel()
	return nil
}

// Done returns a channel closed when the run under key has finished.
func (r *Runner) Done(key string) (<-chan struct{}, error) {
	run, ok := r.get(key)
	if !ok {
		return nil, ErrRunNotFound
	}
	return run.done, nil
}

// CancelAll stops every tracked run.
func (r *Runner) CancelAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, run := range r.runs {
		run.cancel()
	}
}

// Wait blocks until every started run has returned or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LimiterStatus reports slot usage across all sessions.
func (r *Runner) LimiterStatus() LimiterStatus {
	return r.limiter.Status()
}

func (r *Runner) get(key string) (*activeRun, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	run, ok := r.runs[key]
	return run, ok
}

// cleanup forgets the run after the cleanup delay unless a newer run has
// taken its key.
func (r *Runner) cleanup(run *activeRun) {
	time.AfterFunc(r.cleanupDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.runs[run.Key] == run {
			delete(r.runs, run.Key)
		}
	})
}

// publish stores p and sends it to every listener. Slow listeners miss it.
func (run *activeRun) publish(p Progress) {
	run.listenerMu.Lock()
	defer run.listenerMu.Unlock()

	run.progress = p
	for _, ch := range run.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

func (run *activeRun) closeListeners() {
	run.listenerMu.Lock()
	defer run.listenerMu.Unlock()

	for _, ch := range run.listeners {
		close(ch)
	}
	run.listeners = nil
	run.closed = true
}
