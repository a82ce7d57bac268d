package csvdata

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		headers []string
		rows    [][]string
	}{
		{
			name:    "header and rows",
			input:   "Name,City\nAcme,NY\nBeta,LA",
			headers: []string{"Name", "City"},
			rows:    [][]string{{"Acme", "NY"}, {"Beta", "LA"}},
		},
		{
			name:    "cells are trimmed",
			input:   " Name , City \r\n Acme ,  NY \r\n",
			headers: []string{"Name", "City"},
			rows:    [][]string{{"Acme", "NY"}},
		},
		{
			name:    "row with partial values kept, all empty dropped",
			input:   "Name,City\nAcme,NY\nBeta,\n,\n",
			headers: []string{"Name", "City"},
			rows:    [][]string{{"Acme", "NY"}, {"Beta", ""}},
		},
		{
			name:    "mismatched cell count dropped",
			input:   "a,b,c\n1,2\n1,2,3\n1,2,3,4",
			headers: []string{"a", "b", "c"},
			rows:    [][]string{{"1", "2", "3"}},
		},
		{
			name:    "header only",
			input:   "a,b",
			headers: []string{"a", "b"},
			rows:    [][]string{},
		},
		{
			name:    "quoted commas are split naively",
			input:   "name,city\n\"Acme, Inc\",NY",
			headers: []string{"name", "city"},
			rows:    [][]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.input, "in.csv")
			if !reflect.DeepEqual(got.Headers, tt.headers) {
				t.Errorf("Headers = %q, want %q", got.Headers, tt.headers)
			}
			if !reflect.DeepEqual(got.Rows, tt.rows) {
				t.Errorf("Rows = %q, want %q", got.Rows, tt.rows)
			}
			if got.FileName != "in.csv" {
				t.Errorf("FileName = %q, want %q", got.FileName, "in.csv")
			}
		})
	}
}

func TestParse_EmptyInput(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\n"} {
		got := Parse(input, "empty.csv")
		if !got.Empty() {
			t.Errorf("Parse(%q) headers = %q, want none", input, got.Headers)
		}
		if len(got.Rows) != 0 {
			t.Errorf("Parse(%q) rows = %d, want 0", input, len(got.Rows))
		}
		if got.FileName != "empty.csv" {
			t.Errorf("Parse(%q) FileName = %q", input, got.FileName)
		}
	}
}

func TestParseSerialize_RoundTrip(t *testing.T) {
	input := "Company,City,Phone\nAcme,NY,123\nBeta,LA,\nGamma,,999"
	d := Parse(input, "x.csv")
	assert.Equal(t, input, Serialize(d))

	// Dropped rows are not restored by the round trip.
	lossy := "a,b\n1,2\n,\n3\n4,5"
	assert.Equal(t, "a,b\n1,2\n4,5", Serialize(Parse(lossy, "x.csv")))
}

func TestAddColumn(t *testing.T) {
	d := Parse("Name,City\nAcme,NY\nBeta,LA", "x.csv")

	got := AddColumn(d, "Website")

	require.Len(t, got.Headers, len(d.Headers)+1)
	assert.Equal(t, "Website", got.Headers[len(got.Headers)-1])
	for i, row := range got.Rows {
		assert.Len(t, row, len(d.Rows[i])+1)
		assert.Equal(t, "", row[len(row)-1])
	}

	// Input is untouched.
	assert.Equal(t, []string{"Name", "City"}, d.Headers)
	assert.Len(t, d.Rows[0], 2)
}

func TestAddColumn_Duplicate(t *testing.T) {
	d := Parse("Name\nAcme", "x.csv")
	got := AddColumn(d, "Name")
	assert.Equal(t, []string{"Name", "Name"}, got.Headers)
	assert.Equal(t, 0, ColumnIndex(got, "Name"))
}

func TestPreview(t *testing.T) {
	d := Parse("n\n1\n2\n3\n4\n5\n6\n7", "x.csv")

	tests := []struct {
		n    int
		want int
	}{
		{DefaultPreviewRows, 5},
		{0, 0},
		{-3, 0},
		{100, 7},
	}
	for _, tt := range tests {
		got := Preview(d, tt.n)
		if len(got.Rows) != tt.want {
			t.Errorf("Preview(n=%d) rows = %d, want %d", tt.n, len(got.Rows), tt.want)
		}
		if !reflect.DeepEqual(got.Headers, d.Headers) || got.FileName != d.FileName {
			t.Errorf("Preview(n=%d) changed headers or file name", tt.n)
		}
	}

	p := Preview(d, 2)
	p.Rows[0][0] = "changed"
	if d.Rows[0][0] != "1" {
		t.Error("Preview shares row storage with its input")
	}
}

func TestSerialize_NoQuoting(t *testing.T) {
	d := Dataset{Headers: []string{"a", "b"}, Rows: [][]string{{"x,y", "z"}}}
	if got := Serialize(d); got != "a,b\nx,y,z" {
		t.Errorf("Serialize = %q", got)
	}
}

func TestEnrichedFileName(t *testing.T) {
	if got := EnrichedFileName("leads.csv"); got != "enriched_leads.csv" {
		t.Errorf("EnrichedFileName = %q, want %q", got, "enriched_leads.csv")
	}
}

func TestClone_Independent(t *testing.T) {
	d := Parse("a,b\n1,2", "x.csv")
	c := Clone(d)
	c.Headers[0] = "z"
	c.Rows[0][1] = "9"
	assert.Equal(t, "a", d.Headers[0])
	assert.Equal(t, "2", d.Rows[0][1])
}
