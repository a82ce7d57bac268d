// Package enrich defines the capability that fills the enrichment column of a
// dataset. The only implementation today is MockProvider, which writes
// plausible company names picked at random; a provider backed by real search
// and extraction can replace it without touching the wizard.
package enrich

import (
	"context"
	"errors"
	"math/rand"
	"sync"

	"github.com/JonMunkholm/enricher/internal/csvdata"
)

// ErrNoCandidates is returned by a MockProvider built with no values to draw from.
var ErrNoCandidates = errors.New("mock provider has no candidate values")

// Provider fills column in every row of d and returns the result. If column
// is not one of d's headers the dataset is returned unchanged.
type Provider interface {
	Enrich(ctx context.Context, d csvdata.Dataset, column string) (csvdata.Dataset, error)
}

// MockProvider replaces each cell of the enrichment column with a value drawn
// uniformly from Candidates.
type MockProvider struct {
	candidates []string

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockProvider returns a provider drawing from candidates using src.
// A nil src is seeded from the global generator.
func NewMockProvider(candidates []string, src rand.Source) *MockProvider {
	if src == nil {
		src = rand.NewSource(rand.Int63())
	}
	return &MockProvider{
		candidates: append([]string(nil), candidates...),
		rng:        rand.New(src),
	}
}

// Candidates returns the values the provider draws from.
func (p *MockProvider) Candidates() []string {
	return append([]string(nil), p.candidates...)
}

// Enrich implements Provider.
func (p *MockProvider) Enrich(ctx context.Context, d csvdata.Dataset, column string) (csvdata.Dataset, error) {
	idx := csvdata.ColumnIndex(d, column)
	if idx == -1 {
		return d, nil
	}
	if len(p.candidates) == 0 {
		return d, ErrNoCandidates
	}

	out := csvdata.Clone(d)
	for _, row := range out.Rows {
		if err := ctx.Err(); err != nil {
			return d, err
		}
		row[idx] = p.pick()
	}
	return out, nil
}

func (p *MockProvider) pick() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.candidates[p.rng.Intn(len(p.candidates))]
}
