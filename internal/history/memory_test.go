package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryRecorder_RecentNewestFirst(t *testing.T) {
	m := NewMemoryRecorder(3)
	ctx := context.Background()

	for i := range 5 {
		require.NoError(t, m.Record(ctx, Record{
			FileName:  fmt.Sprintf("f%d.csv", i),
			StartedAt: time.Unix(int64(i), 0),
			Status:    StatusCompleted,
		}))
	}

	got, err := m.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "f4.csv", got[0].FileName)
	assert.Equal(t, "f3.csv", got[1].FileName)
	assert.Equal(t, "f2.csv", got[2].FileName)

	got, err = m.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "f4.csv", got[0].FileName)
}

func TestMemoryRecorder_AssignsID(t *testing.T) {
	m := NewMemoryRecorder(0)
	ctx := context.Background()

	require.NoError(t, m.Record(ctx, Record{FileName: "a.csv"}))
	require.NoError(t, m.Record(ctx, Record{ID: "fixed", FileName: "b.csv"}))

	got, err := m.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "fixed", got[0].ID)
	assert.NotEmpty(t, got[1].ID)
	assert.NotNil(t, got[1].Sites)
}

func TestMemoryRecorder_Empty(t *testing.T) {
	got, err := NewMemoryRecorder(5).Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryRecorder_CopiesSites(t *testing.T) {
	m := NewMemoryRecorder(2)
	ctx := context.Background()
	sites := []string{"Google"}

	require.NoError(t, m.Record(ctx, Record{Sites: sites}))
	sites[0] = "changed"

	got, _ := m.Recent(ctx, 1)
	assert.Equal(t, []string{"Google"}, got[0].Sites)
}

func TestMemoryRecorder_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m := NewMemoryRecorder(2)
	assert.ErrorIs(t, m.Record(ctx, Record{}), context.Canceled)
	_, err := m.Recent(ctx, 1)
	assert.ErrorIs(t, err, context.Canceled)
}
