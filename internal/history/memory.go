package history

import (
	"context"
	"slices"
	"sync"
)

// DefaultCapacity bounds a MemoryRecorder created with capacity <= 0.
const DefaultCapacity = 100

// MemoryRecorder keeps the most recent runs in a fixed-size ring.
type MemoryRecorder struct {
	mu   sync.RWMutex
	buf  []Record
	next int
	full bool
}

// NewMemoryRecorder returns a recorder holding at most capacity runs.
func NewMemoryRecorder(capacity int) *MemoryRecorder {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryRecorder{buf: make([]Record, capacity)}
}

func (m *MemoryRecorder) Record(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = prepare(rec)
	rec.Sites = slices.Clone(rec.Sites)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.buf[m.next] = rec
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *MemoryRecorder) Recent(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit = normalizeLimit(limit)

	m.mu.RLock()
	defer m.mu.RUnlock()

	n := m.next
	if m.full {
		n = len(m.buf)
	}
	limit = min(limit, n)

	out := make([]Record, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		rec := m.buf[idx]
		rec.Sites = slices.Clone(rec.Sites)
		out = append(out, rec)
	}
	return out, nil
}
