package wizard

import (
	"strings"

	"github.com/JonMunkholm/enricher/internal/csvdata"
)

// EmptyCellPlaceholder stands in for an empty sample cell in a rendered template.
const EmptyCellPlaceholder = "[empty]"

// RenderTemplate substitutes every {Column} placeholder for the selected
// columns with that column's value in the first row of d. Columns missing
// from the headers are left as written. With no rows the template is
// returned unchanged.
func RenderTemplate(template string, selected []string, d csvdata.Dataset) string {
	if len(d.Rows) == 0 {
		return template
	}
	sample := d.Rows[0]

	out := template
	for _, col := range selected {
		idx := csvdata.ColumnIndex(d, col)
		if idx == -1 {
			continue
		}
		value := sample[idx]
		if value == "" {
			value = EmptyCellPlaceholder
		}
		out = strings.ReplaceAll(out, Placeholder(col), value)
	}
	return out
}

// Placeholder returns the template token for a column name.
func Placeholder(column string) string {
	return "{" + column + "}"
}
