package wizard

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/JonMunkholm/enricher/internal/csvdata"
)

// Config is the enrichment configuration collected across steps.
type Config struct {
	ColumnToEnrich  string   `json:"columnToEnrich"`
	SelectedColumns []string `json:"selectedColumns"`
	CustomTemplate  string   `json:"customTemplate"`
	Prompt          string   `json:"prompt"`
}

// ConfigPatch is a partial Config. Nil fields are left unchanged by UpdateConfig.
type ConfigPatch struct {
	ColumnToEnrich  *string   `json:"columnToEnrich,omitempty"`
	SelectedColumns *[]string `json:"selectedColumns,omitempty"`
	CustomTemplate  *string   `json:"customTemplate,omitempty"`
	Prompt          *string   `json:"prompt,omitempty"`
}

// ItemStatus is the display state of one company during processing.
type ItemStatus string

const (
	ItemLoading ItemStatus = "loading"
	ItemSuccess ItemStatus = "success"
)

// ProcessedItem is one line of the processing activity list.
type ProcessedItem struct {
	Name   string     `json:"name"`
	Status ItemStatus `json:"status"`
}

// Options are the defaults a wizard falls back to.
type Options struct {
	// DefaultSites seed the site list on first entry to the sites step.
	DefaultSites []Site
	// DefaultPrompt is used while Config.Prompt is empty.
	DefaultPrompt string
}

// State is a deep copy of the wizard at one moment.
type State struct {
	Step            Step            `json:"step"`
	Dataset         csvdata.Dataset `json:"dataset"`
	Config          Config          `json:"config"`
	Sites           []Site          `json:"sites"`
	Enriched        csvdata.Dataset `json:"enriched"`
	Progress        float64         `json:"progress"`
	Processed       []ProcessedItem `json:"processed"`
	Running         bool            `json:"running"`
	ProcessingError string          `json:"processingError,omitempty"`
	CanAdvance      bool            `json:"canAdvance"`
	EffectivePrompt string          `json:"effectivePrompt"`
}

// Wizard owns the state of one enrichment session. All writes go through
// its methods; it is safe for concurrent use.
type Wizard struct {
	opts Options

	mu        sync.RWMutex
	step      Step
	dataset   csvdata.Dataset
	config    Config
	sites     []Site
	enriched  csvdata.Dataset
	progress  float64
	processed []ProcessedItem
	procErr   string

	generation uint64
	cancel     context.CancelFunc
}

// New returns a wizard on the upload step.
func New(opts Options) *Wizard {
	return &Wizard{
		opts: Options{
			DefaultSites:  slices.Clone(opts.DefaultSites),
			DefaultPrompt: opts.DefaultPrompt,
		},
	}
}

// LoadDataset parses text and replaces the active dataset. The step does not change.
func (w *Wizard) LoadDataset(text, fileName string) {
	w.UpdateDataset(csvdata.Parse(text, fileName))
}

// UpdateDataset replaces the active dataset.
func (w *Wizard) UpdateDataset(d csvdata.Dataset) {
	d = csvdata.Clone(d)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataset = d
}

// AddColumn appends an empty column to the dataset and selects it. The
// first column added this way also becomes the enrichment target unless one
// is already set. A blank name is ignored.
func (w *Wizard) AddColumn(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.dataset = csvdata.AddColumn(w.dataset, name)
	w.selectLocked(name)
	if w.config.ColumnToEnrich == "" {
		w.config.ColumnToEnrich = name
	}
}

// UpdateConfig merges patch into the configuration. Column names are not
// checked against the dataset headers.
func (w *Wizard) UpdateConfig(patch ConfigPatch) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if patch.ColumnToEnrich != nil {
		w.config.ColumnToEnrich = *patch.ColumnToEnrich
	}
	if patch.SelectedColumns != nil {
		w.config.SelectedColumns = nil
		for _, c := range *patch.SelectedColumns {
			w.selectLocked(c)
		}
	}
	if patch.CustomTemplate != nil {
		w.config.CustomTemplate = *patch.CustomTemplate
	}
	if patch.Prompt != nil {
		w.config.Prompt = *patch.Prompt
	}
}

// SelectColumn adds name to the selected columns if it is not there yet.
func (w *Wizard) SelectColumn(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.selectLocked(name)
}

// DeselectColumn removes name from the selected columns.
func (w *Wizard) DeselectColumn(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.config.SelectedColumns = slices.DeleteFunc(w.config.SelectedColumns, func(c string) bool {
		return c == name
	})
}

func (w *Wizard) selectLocked(name string) {
	if !slices.Contains(w.config.SelectedColumns, name) {
		w.config.SelectedColumns = append(w.config.SelectedColumns, name)
	}
}

// UpdateSites replaces the site list.
func (w *Wizard) UpdateSites(sites []Site) {
	sites = slices.Clone(sites)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.sites = sites
}

// EditSites applies fn to the current site list and stores the result.
// fn's error is returned and the list is left unchanged.
func (w *Wizard) EditSites(fn func([]Site) ([]Site, error)) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	sites, err := fn(slices.Clone(w.sites))
	if err != nil {
		return err
	}
	w.sites = sites
	return nil
}

// CanAdvance reports whether Advance would succeed.
func (w *Wizard) CanAdvance() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.guardLocked() == nil
}

// Advance moves to the next step when the current step's guard holds.
// Otherwise it returns a *GuardError and the step is unchanged.
func (w *Wizard) Advance() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.guardLocked(); err != nil {
		return err
	}
	w.enterLocked(w.step + 1)
	return nil
}

func (w *Wizard) guardLocked() error {
	reason := ""
	switch w.step {
	case StepUpload:
		if w.dataset.FileName == "" || w.dataset.Empty() {
			reason = "upload a CSV file first"
		}
	case StepConfigure:
		if len(w.config.SelectedColumns) == 0 {
			reason = "select at least one column"
		}
	case StepSearchTerms:
		if strings.TrimSpace(w.config.CustomTemplate) == "" {
			reason = "enter a search query template"
		}
	case StepSites:
		if !HasSelectedSite(w.sites) {
			reason = "select at least one search site"
		}
	case StepProcessing:
		if w.progress < 100 || w.enriched.Empty() {
			reason = "wait for processing to finish"
		}
	case StepResults:
		reason = "already on the last step"
	}

	if reason != "" {
		return &GuardError{From: w.step, Reason: reason}
	}
	return nil
}

func (w *Wizard) enterLocked(s Step) {
	w.step = s
	switch s {
	case StepSites:
		if len(w.sites) == 0 {
			w.sites = slices.Clone(w.opts.DefaultSites)
		}
	case StepProcessing:
		w.clearProcessingLocked()
	}
}

// Back moves to the previous step. On the upload step it does nothing.
// Leaving processing cancels the running task.
func (w *Wizard) Back() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step == StepUpload {
		return nil
	}
	if w.step == StepProcessing {
		w.clearProcessingLocked()
	}
	w.step--
	return nil
}

// Reset returns the wizard to its initial empty state on the upload step.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.clearProcessingLocked()
	w.step = StepUpload
	w.dataset = csvdata.Dataset{}
	w.config = Config{}
	w.sites = nil
}

// clearProcessingLocked cancels any running task and invalidates its generation.
func (w *Wizard) clearProcessingLocked() {
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	w.generation++
	w.enriched = csvdata.Dataset{}
	w.progress = 0
	w.processed = nil
	w.procErr = ""
}

// BeginProcessing registers the cancel func of a newly started task and
// returns the generation the task must report with.
func (w *Wizard) BeginProcessing(cancel context.CancelFunc) (uint64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.step != StepProcessing {
		return 0, ErrNotProcessing
	}
	if w.cancel != nil {
		return 0, ErrProcessingBusy
	}
	w.clearProcessingLocked()
	w.cancel = cancel
	return w.generation, nil
}

// ReportProgress records task progress. Reports from a stale generation,
// or after the wizard left processing, are dropped and false is returned.
func (w *Wizard) ReportProgress(gen uint64, percent float64, processed []ProcessedItem) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.currentLocked(gen) {
		return false
	}
	w.progress = min(max(percent, 0), 100)
	w.processed = slices.Clone(processed)
	return true
}

// CompleteProcessing stores the enriched dataset and moves to results.
func (w *Wizard) CompleteProcessing(gen uint64, enriched csvdata.Dataset) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.currentLocked(gen) {
		return false
	}
	w.cancel = nil
	w.enriched = csvdata.Clone(enriched)
	w.progress = 100
	for i := range w.processed {
		w.processed[i].Status = ItemSuccess
	}
	w.step = StepResults
	return true
}

// FailProcessing ends the task without results so it can be started again.
func (w *Wizard) FailProcessing(gen uint64, err error) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.currentLocked(gen) {
		return false
	}
	w.cancel = nil
	if err != nil {
		w.procErr = FormatUserError(err)
	}
	return true
}

// CancelProcessing stops the running task and leaves the wizard on the
// processing step with progress cleared.
func (w *Wizard) CancelProcessing() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.step == StepProcessing {
		w.clearProcessingLocked()
	}
}

func (w *Wizard) currentLocked(gen uint64) bool {
	return gen == w.generation && w.step == StepProcessing && w.cancel != nil
}

// Running reports whether a processing task is registered.
func (w *Wizard) Running() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.cancel != nil
}

// Step returns the current step.
func (w *Wizard) Step() Step {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.step
}

// EffectivePrompt returns the configured prompt, or the default when none is set.
func (w *Wizard) EffectivePrompt() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.effectivePromptLocked()
}

func (w *Wizard) effectivePromptLocked() string {
	if strings.TrimSpace(w.config.Prompt) != "" {
		return w.config.Prompt
	}
	return w.opts.DefaultPrompt
}

// TemplatePreview renders the search template against the first row.
func (w *Wizard) TemplatePreview() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return RenderTemplate(w.config.CustomTemplate, w.config.SelectedColumns, w.dataset)
}

// State returns a snapshot that shares no memory with the wizard.
func (w *Wizard) State() State {
	w.mu.RLock()
	defer w.mu.RUnlock()

	return State{
		Step:    w.step,
		Dataset: csvdata.Clone(w.dataset),
		Config: Config{
			ColumnToEnrich:  w.config.ColumnToEnrich,
			SelectedColumns: slices.Clone(w.config.SelectedColumns),
			CustomTemplate:  w.config.CustomTemplate,
			Prompt:          w.config.Prompt,
		},
		Sites:           slices.Clone(w.sites),
		Enriched:        csvdata.Clone(w.enriched),
		Progress:        w.progress,
		Processed:       slices.Clone(w.processed),
		Running:         w.cancel != nil,
		ProcessingError: w.procErr,
		CanAdvance:      w.guardLocked() == nil,
		EffectivePrompt: w.effectivePromptLocked(),
	}
}
