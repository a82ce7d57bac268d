package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/enrich"
	"github.com/JonMunkholm/enricher/internal/presets"
	"github.com/JonMunkholm/enricher/internal/processing"
	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/spf13/cobra"
)

// cliSession keys the single run enrichctl starts.
const cliSession = "enrichctl"

type enrichOptions struct {
	column     string
	columns    []string
	template   string
	sites      []string
	out        string
	xlsx       bool
	seed       int64
	startDelay time.Duration
	interval   time.Duration
	quiet      bool
}

func newEnrichCmd(root *rootOptions) *cobra.Command {
	opts := &enrichOptions{}

	cmd := &cobra.Command{
		Use:   "enrich FILE",
		Short: "Run a CSV file through every wizard step and write the result",
		Long: `Run a CSV file through the wizard: the enrichment column is added when it
is missing, the template and sites are configured, processing runs to
completion and the enriched file is written to --out (default
enriched_<name> next to the input).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := presets.Load(root.presetsFile)
			if err != nil {
				return err
			}
			d, err := readDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if opts.out == "" {
				name := csvdata.EnrichedFileName(d.FileName)
				if opts.xlsx {
					name = csvdata.XLSXFileName(name)
				}
				opts.out = filepath.Join(filepath.Dir(args[0]), name)
			}
			return runEnrich(cmd, p, d, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.column, "column", "c", "Enriched", "column to fill; added when missing")
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "columns the template may use (default all)")
	cmd.Flags().StringVarP(&opts.template, "template", "t", "", "search template (default \"{<first column>}\")")
	cmd.Flags().StringSliceVar(&opts.sites, "site", nil, "search site as name=url; replaces the preset sites")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output path")
	cmd.Flags().BoolVar(&opts.xlsx, "xlsx", false, "write an Excel workbook instead of CSV")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "seed for the mock enrichment (0 is random)")
	cmd.Flags().DurationVar(&opts.startDelay, "start-delay", processing.DefaultStartDelay, "pause before processing starts")
	cmd.Flags().DurationVar(&opts.interval, "interval", 0, "progress tick interval (default derived from the company list)")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "do not print progress")
	return cmd
}

func runEnrich(cmd *cobra.Command, p *presets.Presets, d csvdata.Dataset, opts *enrichOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	w, err := configureWizard(p, d, opts)
	if err != nil {
		return err
	}

	runOpts := processing.DefaultOptions(p.Companies)
	runOpts.StartDelay = opts.startDelay
	if opts.interval > 0 {
		runOpts.Interval = opts.interval
	}
	runner := processing.NewRunner(processing.RunnerConfig{Options: runOpts})

	var src rand.Source
	if opts.seed != 0 {
		src = rand.NewSource(opts.seed)
	}
	provider := enrich.NewMockProvider(p.Candidates, src)

	if err := w.Advance(); err != nil {
		return err
	}
	if _, err := runner.Start(ctx, cliSession, w, provider); err != nil {
		return err
	}

	updates, err := runner.Subscribe(cliSession)
	if err != nil {
		return err
	}
	for {
		select {
		case prog, ok := <-updates:
			if !ok {
				return finish(out, w, opts)
			}
			if !opts.quiet {
				printProgress(out, prog)
			}
		case <-ctx.Done():
			w.CancelProcessing()
			return ctx.Err()
		}
	}
}

// configureWizard walks a fresh wizard from upload to the sites step.
func configureWizard(p *presets.Presets, d csvdata.Dataset, opts *enrichOptions) (*wizard.Wizard, error) {
	w := wizard.New(p.WizardOptions())
	w.UpdateDataset(d)

	column := strings.TrimSpace(opts.column)
	if column == "" {
		return nil, fmt.Errorf("--column must not be empty")
	}
	if csvdata.ColumnIndex(d, column) == -1 {
		w.AddColumn(column)
	}

	columns := opts.columns
	if len(columns) == 0 {
		columns = d.Headers
	}
	template := opts.template
	if template == "" && len(d.Headers) > 0 {
		template = wizard.Placeholder(d.Headers[0])
	}
	w.UpdateConfig(wizard.ConfigPatch{
		ColumnToEnrich:  &column,
		SelectedColumns: &columns,
		CustomTemplate:  &template,
	})

	for w.Step() != wizard.StepSites {
		if err := w.Advance(); err != nil {
			return nil, err
		}
	}

	if len(opts.sites) > 0 {
		var sites []wizard.Site
		for _, raw := range opts.sites {
			name, url, ok := strings.Cut(raw, "=")
			if !ok {
				return nil, fmt.Errorf("--site %q: want name=url", raw)
			}
			var err error
			if sites, err = wizard.AddSite(sites, name, url); err != nil {
				return nil, fmt.Errorf("--site %q: %w", raw, err)
			}
		}
		w.UpdateSites(sites)
	}
	return w, nil
}

func printProgress(out io.Writer, prog processing.Progress) {
	current := ""
	if n := len(prog.Processed); n > 0 {
		current = prog.Processed[n-1].Name
	}
	fmt.Fprintf(out, "[%3.0f%%] %s\n", prog.Percent, current)
}

// finish writes the enriched dataset once the run has ended.
func finish(out io.Writer, w *wizard.Wizard, opts *enrichOptions) error {
	st := w.State()
	if st.Step != wizard.StepResults {
		if st.ProcessingError != "" {
			return fmt.Errorf("processing failed: %s", st.ProcessingError)
		}
		return fmt.Errorf("processing did not complete")
	}

	f, err := os.Create(opts.out)
	if err != nil {
		return err
	}
	defer f.Close()

	if opts.xlsx {
		err = csvdata.WriteXLSX(f, st.Enriched)
	} else {
		_, err = io.WriteString(f, csvdata.Serialize(st.Enriched))
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", opts.out, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Wrote %d rows to %s\n", len(st.Enriched.Rows), opts.out)
	return nil
}
