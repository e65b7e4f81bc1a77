package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/aretw0/tapestry/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunLogSinkContract runs a suite of tests to verify that a LogSink implementation
// adheres to the defined interface contract. newSink must return an empty sink
// capped at the given limit.
func RunLogSinkContract(t *testing.T, newSink func(t *testing.T, limit int) LogSink) {
	ctx := context.Background()
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	entry := func(i int) domain.LogEntry {
		return domain.LogEntry{Type: "INFO", Data: fmt.Sprintf("msg-%d", i), ID: fmt.Sprint(i), Time: at.Add(time.Duration(i) * time.Second)}
	}

	t.Run("Empty", func(t *testing.T) {
		sink := newSink(t, 5)
		entries, err := sink.Entries(ctx)
		require.NoError(t, err)
		assert.Empty(t, entries)
		assert.Equal(t, 5, sink.Limit())
	})

	t.Run("Append Keeps Order", func(t *testing.T) {
		sink := newSink(t, 5)
		require.NoError(t, sink.Append(ctx, entry(1), entry(2)))
		require.NoError(t, sink.Append(ctx, entry(3)))

		entries, err := sink.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "1", entries[0].ID)
		assert.Equal(t, "3", entries[2].ID)
		assert.Equal(t, "msg-2", entries[1].Data)
		assert.True(t, entries[2].Time.Equal(entry(3).Time))
	})

	t.Run("Evicts Oldest", func(t *testing.T) {
		sink := newSink(t, 3)
		for i := 1; i <= 7; i++ {
			require.NoError(t, sink.Append(ctx, entry(i)))
		}

		entries, err := sink.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, []string{"5", "6", "7"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})
	})

	t.Run("Batch Larger Than Limit", func(t *testing.T) {
		sink := newSink(t, 2)
		require.NoError(t, sink.Append(ctx, entry(1), entry(2), entry(3), entry(4)))

		entries, err := sink.Entries(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "3", entries[0].ID)
		assert.Equal(t, "4", entries[1].ID)
	})
}
