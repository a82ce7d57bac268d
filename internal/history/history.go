// Package history keeps a log of enrichment runs: which file, how many rows,
// which sites and how each run ended. Only run metadata is stored; wizard
// state itself is never persisted.
package history

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DefaultLimit is the number of runs Recent returns when limit <= 0.
const DefaultLimit = 20

// Status is how a run ended.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Record describes one finished run.
type Record struct {
	ID        string        `json:"id"`
	SessionID string        `json:"sessionId"`
	FileName  string        `json:"fileName"`
	Rows      int           `json:"rows"`
	Column    string        `json:"column"`
	Sites     []string      `json:"sites"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// Recorder stores run records.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// prepare fills in the ID when the caller left it empty.
func prepare(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Sites == nil {
		rec.Sites = []string{}
	}
	return rec
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
