// Package views renders the wizard's HTML pages as templ components.
package views

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"

	"github.com/JonMunkholm/enricher/internal/csvdata"
	"github.com/JonMunkholm/enricher/internal/wizard"
	"github.com/a-h/templ"
)

// IndexedSite is a site in display order together with its index in the
// stored list, which the site routes address.
type IndexedSite struct {
	Index int
	Site  wizard.Site
}

// PageData is everything Page renders.
type PageData struct {
	State           wizard.State
	Preview         csvdata.Dataset
	TemplatePreview string
	SortedSites     []IndexedSite
	MaxUploadSize   int64
	Error           *wizard.UserMessage
}

// resultRows caps the rows shown on the results step; the download has all.
const resultRows = 20

// Page renders the wizard chrome around the current step.
func Page(data PageData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		st := data.State

		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw(`<title>CSV Enrichment - `)
		h.text(st.Step.Title())
		h.raw(`</title><style>` + styles + `</style></head><body><main>`)
		h.raw(`<h1>CSV Enrichment</h1>`)

		stepHeader(h, st.Step)
		if data.Error != nil {
			errorAlert(h, *data.Error)
		}

		h.raw(`<section class="step">`)
		switch st.Step {
		case wizard.StepUpload:
			uploadStep(h, data)
		case wizard.StepPreview:
			previewStep(h, data)
		case wizard.StepConfigure:
			configureStep(h, data)
		case wizard.StepSearchTerms:
			searchTermsStep(h, data)
		case wizard.StepPrompt:
			promptStep(h, data)
		case wizard.StepSites:
			sitesStep(h, data)
		case wizard.StepProcessing:
			processingStep(h, data)
		case wizard.StepResults:
			resultsStep(h, data)
		}
		h.raw(`</section>`)

		navigation(h, st)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// ErrorAlert renders a standalone error message.
func ErrorAlert(msg wizard.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		errorAlert(h, msg)
		return h.err
	})
}

func errorAlert(h *html, msg wizard.UserMessage) {
	h.raw(`<div class="alert" role="alert"><strong>`)
	h.text(msg.Message)
	h.raw(`</strong>`)
	if msg.Action != "" {
		h.raw(` <span>`)
		h.text(msg.Action)
		h.raw(`</span>`)
	}
	h.raw(` <code>`)
	h.text(msg.Code)
	h.raw(`</code></div>`)
}

func stepHeader(h *html, current wizard.Step) {
	h.raw(`<ol class="steps">`)
	for _, s := range wizard.Steps {
		class := ""
		switch {
		case s == current:
			class = "current"
		case s < current:
			class = "done"
		}
		h.printf(`<li class="%s">`, class)
		h.text(s.Title())
		h.raw(`</li>`)
	}
	h.raw(`</ol>`)
}

func navigation(h *html, st wizard.State) {
	h.raw(`<nav>`)
	if st.Step != wizard.StepUpload {
		postButton(h, "/api/back", "Back", "")
	}
	if st.Step != wizard.StepResults && st.Step != wizard.StepProcessing {
		disabled := ""
		if !st.CanAdvance {
			disabled = " disabled"
		}
		h.printf(`<form method="post" action="/api/advance"><button type="submit" class="primary"%s>Next</button></form>`, disabled)
	}
	postButton(h, "/api/reset", "Start over", "secondary")
	h.raw(`</nav>`)
}

func uploadStep(h *html, data PageData) {
	h.raw(`<h2>Upload a CSV file</h2>`)
	h.raw(`<form method="post" action="/api/upload" enctype="multipart/form-data">`)
	h.raw(`<input type="file" name="file" accept=".csv,text/csv" required> `)
	h.raw(`<button type="submit">Upload</button></form>`)
	if data.MaxUploadSize > 0 {
		h.printf(`<p class="hint">Maximum size %s.</p>`, formatBytes(data.MaxUploadSize))
	}

	d := data.State.Dataset
	if d.FileName != "" {
		h.raw(`<p>Loaded <strong>`)
		h.text(d.FileName)
		h.printf(`</strong>: %d columns, %d rows.</p>`, len(d.Headers), len(d.Rows))
	}
}

func previewStep(h *html, data PageData) {
	h.raw(`<h2>Preview</h2>`)
	h.printf(`<p>Showing %d of %d rows.</p>`, len(data.Preview.Rows), len(data.State.Dataset.Rows))
	table(h, data.Preview)
}

func configureStep(h *html, data PageData) {
	st := data.State
	h.raw(`<h2>Choose columns</h2><p>Selected columns can be used in the search template.</p><ul class="columns">`)
	for _, col := range st.Dataset.Headers {
		h.raw(`<li>`)
		h.text(col)
		if slices.Contains(st.Config.SelectedColumns, col) {
			h.raw(` <span class="tag">selected</span> `)
			postButton(h, "/api/columns/"+url.PathEscape(col)+"/deselect", "Deselect", "secondary")
		} else {
			h.raw(` <form method="post" action="/api/columns/select"><input type="hidden" name="name" value="`)
			h.text(col)
			h.raw(`"><button type="submit">Select</button></form>`)
		}
		h.raw(`</li>`)
	}
	h.raw(`</ul>`)

	h.raw(`<h3>Add a column to enrich</h3><form method="post" action="/api/columns">`)
	h.raw(`<input type="text" name="name" placeholder="Column name" required> <button type="submit">Add column</button></form>`)

	h.raw(`<h3>Column to enrich</h3><form method="post" action="/api/config"><select name="columnToEnrich">`)
	h.raw(`<option value="">None</option>`)
	for _, col := range st.Dataset.Headers {
		selected := ""
		if col == st.Config.ColumnToEnrich {
			selected = " selected"
		}
		h.raw(`<option value="`)
		h.text(col)
		h.printf(`"%s>`, selected)
		h.text(col)
		h.raw(`</option>`)
	}
	h.raw(`</select> <button type="submit">Save</button></form>`)
}

func searchTermsStep(h *html, data PageData) {
	st := data.State
	h.raw(`<h2>Search terms</h2><p>Available placeholders: `)
	for i, col := range st.Config.SelectedColumns {
		if i > 0 {
			h.raw(`, `)
		}
		h.raw(`<code>`)
		h.text(wizard.Placeholder(col))
		h.raw(`</code>`)
	}
	h.raw(`</p><form method="post" action="/api/config">`)
	h.raw(`<textarea name="customTemplate" rows="3" placeholder="e.g. Find {Name} website">`)
	h.text(st.Config.CustomTemplate)
	h.raw(`</textarea><button type="submit">Save template</button></form>`)
	if st.Config.CustomTemplate != "" {
		h.raw(`<p>Preview with the first row: <q>`)
		h.text(data.TemplatePreview)
		h.raw(`</q></p>`)
	}
}

func promptStep(h *html, data PageData) {
	h.raw(`<h2>Extraction prompt</h2><form method="post" action="/api/config">`)
	h.raw(`<textarea name="prompt" rows="8">`)
	h.text(data.State.EffectivePrompt)
	h.raw(`</textarea><button type="submit">Save prompt</button></form>`)
}

func sitesStep(h *html, data PageData) {
	h.raw(`<h2>Search sites</h2><table><thead><tr><th>Site</th><th>Rank</th><th></th></tr></thead><tbody>`)
	for _, is := range data.SortedSites {
		s := is.Site
		base := "/api/sites/" + strconv.Itoa(is.Index)
		h.raw(`<tr><td>`)
		if s.Selected {
			h.raw(`&#10003; `)
		}
		h.text(s.Name)
		h.raw(` <small>`)
		h.text(s.URL)
		h.printf(`</small></td><td>%d</td><td class="actions">`, s.Rank)
		label := "Select"
		if s.Selected {
			label = "Unselect"
		}
		postButton(h, base+"/toggle", label, "")
		postButton(h, base+"/up", "Up", "secondary")
		postButton(h, base+"/down", "Down", "secondary")
		postButton(h, base+"/remove", "Remove", "secondary")
		h.raw(`</td></tr>`)
	}
	h.raw(`</tbody></table>`)

	h.raw(`<h3>Add a site</h3><form method="post" action="/api/sites">`)
	h.raw(`<input type="text" name="name" placeholder="Name" required> `)
	h.raw(`<input type="text" name="url" placeholder="example.com" required> `)
	h.raw(`<button type="submit">Add site</button></form>`)
}

func processingStep(h *html, data PageData) {
	st := data.State
	h.raw(`<h2>Processing</h2>`)
	h.printf(`<div class="bar"><div id="bar" style="width:%.0f%%"></div></div>`, st.Progress)
	h.printf(`<p id="percent">%.0f%%</p>`, st.Progress)

	if st.ProcessingError != "" {
		h.raw(`<div class="alert" role="alert">`)
		h.text(st.ProcessingError)
		h.raw(`</div>`)
	}

	h.raw(`<ul id="processed" class="processed">`)
	for _, item := range st.Processed {
		h.printf(`<li class="%s">`, item.Status)
		h.text(item.Name)
		h.raw(`</li>`)
	}
	h.raw(`</ul>`)

	if st.Running {
		postButton(h, "/api/processing/cancel", "Cancel", "secondary")
		h.raw(`<script>` + progressScript + `</script>`)
	} else {
		postButton(h, "/api/processing/start", "Start", "primary")
	}
}

func resultsStep(h *html, data PageData) {
	d := data.State.Enriched
	h.raw(`<h2>Results</h2>`)
	h.printf(`<p>%d rows enriched.</p>`, len(d.Rows))
	table(h, csvdata.Preview(d, resultRows))
	h.raw(`<p class="downloads"><a class="button primary" href="/api/download">Download CSV</a> `)
	h.raw(`<a class="button" href="/api/download.xlsx">Download Excel</a></p>`)
}

func table(h *html, d csvdata.Dataset) {
	h.raw(`<div class="table"><table><thead><tr>`)
	for _, col := range d.Headers {
		h.raw(`<th>`)
		h.text(col)
		h.raw(`</th>`)
	}
	h.raw(`</tr></thead><tbody>`)
	for _, row := range d.Rows {
		h.raw(`<tr>`)
		for _, cell := range row {
			h.raw(`<td>`)
			h.text(cell)
			h.raw(`</td>`)
		}
		h.raw(`</tr>`)
	}
	h.raw(`</tbody></table></div>`)
}

func postButton(h *html, action, label, class string) {
	h.raw(`<form method="post" action="`)
	h.text(action)
	h.raw(`"><button type="submit"`)
	if class != "" {
		h.raw(` class="`)
		h.text(class)
		h.raw(`"`)
	}
	h.raw(`>`)
	h.text(label)
	h.raw(`</button></form>`)
}

func formatBytes(n int64) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.0f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	}
	return fmt.Sprintf("%d bytes", n)
}

// html writes markup and remembers the first write error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, s)
}

func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) printf(format string, args ...any) {
	if h.err != nil {
		return
	}
	_, h.err = fmt.Fprintf(h.w, format, args...)
}
