// Package csvdata holds the tabular dataset used by the enrichment wizard and
// the pure transforms applied to it: parse, add column, preview, serialize.
//
// Every transform returns a new Dataset and leaves its input untouched, so a
// dataset handed to a view can never be changed underneath it.
//
// Parsing is deliberately naive. Lines are split on '\n' and cells on ','
// with no support for quoting, so values containing commas or newlines do not
// survive a Parse/Serialize round trip.
package csvdata

import "strings"

// DefaultPreviewRows is the number of rows shown on the preview step.
const DefaultPreviewRows = 5

// Dataset is a parsed CSV table. Every row has exactly len(Headers) cells.
type Dataset struct {
	Headers  []string   `json:"headers"`
	Rows     [][]string `json:"rows"`
	FileName string     `json:"fileName"`
}

// Empty reports whether the dataset has no header row.
func (d Dataset) Empty() bool {
	return len(d.Headers) == 0
}

// Clone returns a deep copy of d.
func Clone(d Dataset) Dataset {
	out := Dataset{FileName: d.FileName}
	if d.Headers != nil {
		out.Headers = append([]string(nil), d.Headers...)
	}
	if d.Rows != nil {
		out.Rows = make([][]string, len(d.Rows))
		for i, row := range d.Rows {
			out.Rows[i] = append([]string(nil), row...)
		}
	}
	return out
}

// ColumnIndex returns the index of the first header equal to name, or -1.
func ColumnIndex(d Dataset, name string) int {
	for i, h := range d.Headers {
		if h == name {
			return i
		}
	}
	return -1
}

// Parse splits text into lines and cells. The first line is the header row.
// A data row is kept only when its cell count matches the header count and at
// least one of its cells is non-empty; every other row is dropped silently.
// Empty input yields a dataset with no headers.
func Parse(text, fileName string) Dataset {
	if strings.TrimSpace(text) == "" {
		return Dataset{FileName: fileName}
	}

	lines := strings.Split(text, "\n")
	headers := splitLine(lines[0])

	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := splitLine(line)
		if len(cells) != len(headers) || allEmpty(cells) {
			continue
		}
		rows = append(rows, cells)
	}

	return Dataset{
		Headers:  headers,
		Rows:     rows,
		FileName: fileName,
	}
}

func splitLine(line string) []string {
	cells := strings.Split(line, ",")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// AddColumn returns a copy of d with name appended to the headers and an
// empty cell appended to every row. Duplicate names are not rejected.
func AddColumn(d Dataset, name string) Dataset {
	out := Clone(d)
	out.Headers = append(out.Headers, name)
	for i := range out.Rows {
		out.Rows[i] = append(out.Rows[i], "")
	}
	return out
}

// Preview returns a copy of d limited to its first n rows.
func Preview(d Dataset, n int) Dataset {
	if n < 0 {
		n = 0
	}
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	out := Clone(Dataset{Headers: d.Headers, Rows: d.Rows[:n], FileName: d.FileName})
	if out.Rows == nil {
		out.Rows = [][]string{}
	}
	return out
}

// Serialize joins headers and rows back into CSV text. Cells are written as
// is: no quoting or escaping is applied.
func Serialize(d Dataset) string {
	lines := make([]string, 0, len(d.Rows)+1)
	lines = append(lines, strings.Join(d.Headers, ","))
	for _, row := range d.Rows {
		lines = append(lines, strings.Join(row, ","))
	}
	return strings.Join(lines, "\n")
}

// EnrichedFileName is the download name for an enriched copy of fileName.
func EnrichedFileName(fileName string) string {
	return "enriched_" + fileName
}
