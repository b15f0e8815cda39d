package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/planlineage/internal/testutil"
	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store := NewSQLiteStore(testutil.NewTestLogger(t))
	require.NoError(t, store.Open(":memory:"))
	require.NoError(t, store.Migrate())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func sampleLineage() *lineage.Lineage {
	return &lineage.Lineage{
		InputTables:  []string{"db.users", "db.tags"},
		OutputTables: []string{"db.sink"},
		ColumnLineage: []lineage.ColumnLineage{
			{Column: "db.sink.id", OriginalColumns: []string{"db.users.id"}},
			{Column: "db.sink.label", OriginalColumns: []string{"db.tags.tag", "db.users.name"}},
			{Column: "db.sink.const", OriginalColumns: []string{}},
		},
	}
}

func TestSQLiteStore_Migrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	// Running again is a no-op.
	require.NoError(t, store.Migrate())

	for _, table := range []string{"lineage_events", "lineage_tables", "lineage_columns"} {
		rows, err := store.db.Query("SELECT 1 FROM " + table + " LIMIT 1")
		require.NoError(t, err, "table %s should exist", table)
		require.NoError(t, rows.Close())
	}
}

func TestSQLiteStore_NotOpened(t *testing.T) {
	store := NewSQLiteStore(nil)
	ctx := context.Background()

	require.Error(t, store.Migrate())
	require.Error(t, store.SaveEvent(ctx, &Event{}))
	_, err := store.GetEvent(ctx, "x")
	require.Error(t, err)
	_, err = store.ListEvents(ctx, 10)
	require.Error(t, err)
	require.NoError(t, store.Close())
}

func TestSQLiteStore_EventRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 30, 0, 0, time.UTC)

	tests := []struct {
		name  string
		event *Event
	}{
		{
			name: "with lineage",
			event: &Event{
				OperationID:  "op-1",
				Statement:    "INSERT INTO db.sink SELECT ...",
				State:        "FINISHED",
				SessionID:    "session-1",
				SessionUser:  "alice",
				SessionType:  "SQL",
				Instance:     "kyuubi-0:10009",
				CreateTime:   at.Add(-3 * time.Second).UnixMilli(),
				StartTime:    at.Add(-2 * time.Second).UnixMilli(),
				CompleteTime: at.UnixMilli(),
				EventTime:    at,
				Lineage:      sampleLineage(),
			},
		},
		{
			name: "failed statement",
			event: &Event{
				OperationID: "op-2",
				Statement:   "SELECT broken",
				State:       "ERROR",
				SessionUser: "bob",
				EventTime:   at.Add(time.Minute),
				Exception:   "AnalysisException: column not found",
			},
		},
		{
			name: "empty lineage",
			event: &Event{
				OperationID: "op-3",
				State:       "FINISHED",
				EventTime:   at.Add(2 * time.Minute),
				Lineage:     &lineage.Lineage{InputTables: []string{}, OutputTables: []string{}, ColumnLineage: []lineage.ColumnLineage{}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, store.SaveEvent(ctx, tt.event))
			require.NotEmpty(t, tt.event.ID, "SaveEvent should assign an ID")

			got, err := store.GetEvent(ctx, tt.event.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.event, got)
		})
	}
}

func TestSQLiteStore_GetEventNotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetEvent(context.Background(), "missing")
	require.ErrorIs(t, err, ErrEventNotFound)
	assert.Contains(t, err.Error(), "missing")
}

func TestSQLiteStore_ListAndLookup(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	first := &Event{OperationID: "op-1", EventTime: base, Lineage: sampleLineage()}
	second := &Event{OperationID: "op-2", EventTime: base.Add(time.Hour), Lineage: &lineage.Lineage{
		InputTables:  []string{"db.sink"},
		OutputTables: []string{"db.report"},
		ColumnLineage: []lineage.ColumnLineage{
			{Column: "db.report.id", OriginalColumns: []string{"db.sink.id"}},
		},
	}}
	failed := &Event{OperationID: "op-3", EventTime: base.Add(2 * time.Hour), Exception: "boom"}
	for _, e := range []*Event{first, second, failed} {
		require.NoError(t, store.SaveEvent(ctx, e))
	}

	all, err := store.ListEvents(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"op-3", "op-2", "op-1"}, operationIDs(all))
	assert.False(t, all[0].HasLineage)
	assert.Equal(t, "boom", all[0].Exception)
	assert.True(t, all[1].HasLineage)

	limited, err := store.ListEvents(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"op-3", "op-2"}, operationIDs(limited))

	sink, err := store.EventsForTable(ctx, "db.sink")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-2", "op-1"}, operationIDs(sink), "db.sink is written by op-1 and read by op-2")

	users, err := store.EventsForTable(ctx, "db.users")
	require.NoError(t, err)
	assert.Equal(t, []string{"op-1"}, operationIDs(users))

	none, err := store.EventsForTable(ctx, "db.unknown")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSQLiteStore_FileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	store := NewSQLiteStore(nil)
	require.NoError(t, store.Open(path))
	require.NoError(t, store.Migrate())
	event := &Event{OperationID: "op-1", Lineage: sampleLineage()}
	require.NoError(t, store.SaveEvent(ctx, event))
	require.NoError(t, store.Close())

	reopened := NewSQLiteStore(nil)
	require.NoError(t, reopened.Open(path))
	defer reopened.Close()
	require.NoError(t, reopened.Migrate())

	got, err := reopened.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleLineage(), got.Lineage)
	assert.WithinDuration(t, event.EventTime, got.EventTime, time.Millisecond)
}

func operationIDs(events []EventSummary) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.OperationID
	}
	return out
}
