package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/spf13/cobra"
)

type previewOptions struct {
	rows     int
	template string
	columns  []string
}

func newPreviewCmd() *cobra.Command {
	opts := &previewOptions{}

	cmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Show the first rows of a CSV file",
		Long: `Show the headers and first rows of a CSV file as the preview step would.
With --template, also render the search template against the first row.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDataset(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return runPreview(cmd.OutOrStdout(), d, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.rows, "rows", "n", csvdata.DefaultPreviewRows, "number of rows to show")
	cmd.Flags().StringVar(&opts.template, "template", "", "search template to render, e.g. \"Find {Name}\"")
	cmd.Flags().StringSliceVar(&opts.columns, "columns", nil, "columns available to the template (default all)")
	return cmd
}

func runPreview(out io.Writer, d csvdata.Dataset, opts *previewOptions) error {
	preview := csvdata.Preview(d, opts.rows)

	fmt.Fprintf(out, "%s: %d columns, %d rows\n\n", d.FileName, len(d.Headers), len(d.Rows))

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(d.Headers, "\t"))
	for _, row := range preview.Rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if opts.template != "" {
		columns := opts.columns
		if len(columns) == 0 {
			columns = d.Headers
		}
		fmt.Fprintf(out, "\nSearch: %s\n", wizard.RenderTemplate(opts.template, columns, d))
	}
	return nil
}

// readDataset reads a CSV file through the same checks as an upload.
func readDataset(ctx context.Context, path string) (csvdata.Dataset, error) {
	name := filepath.Base(path)
	if err := csvdata.CheckUpload(name, ""); err != nil {
		return csvdata.Dataset{}, err
	}

	f, err := os.Open(path)
	if err != nil {
		return csvdata.Dataset{}, fmt.Errorf("%w: %w", csvdata.ErrFileReadFailure, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return csvdata.Dataset{}, fmt.Errorf("%w: %w", csvdata.ErrFileReadFailure, err)
	}
	return csvdata.Read(ctx, f, info.Size(), name)
}
