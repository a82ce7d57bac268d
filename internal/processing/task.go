package processing

import (
	"context"
	"slices"
	"time"

	"github.com/JonMunkholm/enricher/internal/wizard"
)

const (
	// DefaultStartDelay lets the processing view render before the first tick.
	DefaultStartDelay = 500 * time.Millisecond

	minInterval   = 50 * time.Millisecond
	totalDuration = 2 * time.Second
	stepDivisor   = 1.2
)

// Options controls the pacing of a simulated run.
type Options struct {
	StartDelay time.Duration
	Interval   time.Duration
	StepSize   float64
	Companies  []string
}

// DefaultOptions paces a run so it finishes in roughly two seconds,
// whatever the number of companies.
func DefaultOptions(companies []string) Options {
	n := max(len(companies), 1)
	return Options{
		StartDelay: DefaultStartDelay,
		Interval:   max(minInterval, totalDuration/time.Duration(n)),
		StepSize:   100 / (float64(n) * stepDivisor),
		Companies:  slices.Clone(companies),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions(o.Companies)
	if o.StartDelay < 0 {
		o.StartDelay = 0
	}
	if o.Interval <= 0 {
		o.Interval = d.Interval
	}
	if o.StepSize <= 0 {
		o.StepSize = d.StepSize
	}
	if len(o.Companies) == 0 {
		o.Companies = []string{"Company"}
	}
	return o
}

// Progress is one update emitted by Run.
type Progress struct {
	Percent   float64                `json:"percent"`
	Processed []wizard.ProcessedItem `json:"processed"`
	Done      bool                   `json:"done"`
}

// Sink receives progress updates. It is called from the Run goroutine.
type Sink func(Progress)

// Run advances a simulated progress bar until it reaches 100 or ctx is
// done. Each tick adds opts.StepSize, starts the next company and marks the
// oldest company still loading as finished. Cancellation is checked before
// every tick, so nothing is emitted after ctx is done. Run returns ctx.Err()
// when cancelled.
func Run(ctx context.Context, opts Options, sink Sink) error {
	opts = opts.withDefaults()

	if err := sleep(ctx, opts.StartDelay); err != nil {
		return err
	}

	var (
		percent   float64
		processed []wizard.ProcessedItem
		next      int
	)

	ticker := time.NewTicker(opts.Interval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		percent = min(percent+opts.StepSize, 100)

		if i := slices.IndexFunc(processed, func(p wizard.ProcessedItem) bool {
			return p.Status == wizard.ItemLoading
		}); i != -1 {
			processed[i].Status = wizard.ItemSuccess
		}
		processed = append(processed, wizard.ProcessedItem{
			Name:   opts.Companies[next],
			Status: wizard.ItemLoading,
		})
		next = (next + 1) % len(opts.Companies)

		if percent >= 100 {
			for i := range processed {
				processed[i].Status = wizard.ItemSuccess
			}
			sink(Progress{Percent: 100, Processed: slices.Clone(processed), Done: true})
			return nil
		}
		sink(Progress{Percent: percent, Processed: slices.Clone(processed)})

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
