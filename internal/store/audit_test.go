// ABOUTME: Tests for tool-call audit store operations and scheduled pruning
// ABOUTME: Covers RecordCall, ListToolCalls filtering, and retention cutoffs

package store

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivsinghin/Voice-Assistant/internal/capability"
	"github.com/shivsinghin/Voice-Assistant/internal/dispatch"
)

func TestRecordCall_AndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

	records := []dispatch.Record{
		{CallID: "c1", SessionID: "s1", Capability: "get_weather", Status: capability.StatusSuccess, Duration: 3 * time.Millisecond, CreatedAt: base},
		{CallID: "c2", SessionID: "s1", Capability: "create_calendar_event", Status: capability.StatusError, Kind: capability.KindValidation, Error: "Sorry, I cannot schedule events in the past.", CreatedAt: base.Add(time.Second)},
		{CallID: "c3", SessionID: "s2", Capability: "get_weather", Status: capability.StatusSuccess, CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range records {
		require.NoError(t, store.RecordCall(ctx, r))
	}

	t.Run("newest first", func(t *testing.T) {
		calls, err := store.ListToolCalls(ctx, ToolCallFilter{})
		require.NoError(t, err)
		require.Len(t, calls, 3)
		assert.Equal(t, "c3", calls[0].CallID)
		assert.Equal(t, "c1", calls[2].CallID)
		assert.Equal(t, int64(3), calls[2].DurationMS)
	})

	t.Run("by session", func(t *testing.T) {
		calls, err := store.ListToolCalls(ctx, ToolCallFilter{SessionID: "s1"})
		require.NoError(t, err)
		require.Len(t, calls, 2)
		assert.Equal(t, "validation", calls[0].ErrorKind)
		assert.Equal(t, "Sorry, I cannot schedule events in the past.", calls[0].Error)
	})

	t.Run("by capability and since", func(t *testing.T) {
		since := base.Add(time.Second)
		calls, err := store.ListToolCalls(ctx, ToolCallFilter{Capability: "get_weather", Since: &since})
		require.NoError(t, err)
		require.Len(t, calls, 1)
		assert.Equal(t, "c3", calls[0].CallID)
	})

	t.Run("limit", func(t *testing.T) {
		calls, err := store.ListToolCalls(ctx, ToolCallFilter{Limit: 1})
		require.NoError(t, err)
		assert.Len(t, calls, 1)
	})
}

func TestPruneToolCalls(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, store.RecordCall(ctx, dispatch.Record{CallID: "old", Capability: "x", Status: capability.StatusSuccess, CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.RecordCall(ctx, dispatch.Record{CallID: "new", Capability: "x", Status: capability.StatusSuccess, CreatedAt: now}))

	p, err := NewPruner(store, 24*time.Hour, "@daily", slog.Default())
	require.NoError(t, err)
	p.now = func() time.Time { return now }

	n, err := p.PruneOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	calls, err := store.ListToolCalls(ctx, ToolCallFilter{})
	require.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, "new", calls[0].CallID)
}

func TestNewPruner_Validation(t *testing.T) {
	store := newTestStore(t)

	_, err := NewPruner(store, 0, "", nil)
	assert.Error(t, err)

	_, err = NewPruner(store, time.Hour, "not a schedule", nil)
	assert.Error(t, err)

	p, err := NewPruner(store, time.Hour, "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultPruneSchedule, p.cronExpr)
}

func TestPruner_RunStopsOnCancel(t *testing.T) {
	store := newTestStore(t)
	p, err := NewPruner(store, time.Hour, "@every 1h", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("pruner did not stop")
	}
}

func TestSQLiteStore_IsRecorder(t *testing.T) {
	var _ dispatch.Recorder = newTestStore(t)
}
