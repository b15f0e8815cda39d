package listener

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/planlineage/internal/state"
	"github.com/leapstack-labs/planlineage/internal/testutil"
	"github.com/leapstack-labs/planlineage/pkg/lineage"
	"github.com/leapstack-labs/planlineage/pkg/plan"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*Event
	err    error
}

func (s *recordingSink) Send(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func selectPlan() plan.Node {
	a := plan.NewAttribute(1, "a")
	return &plan.Project{
		List:  []plan.NamedExpr{plan.Ref(a)},
		Child: &plan.Relation{Table: plan.ParseTableIdentifier("db.t"), Out: []plan.Attribute{a}},
	}
}

func newTestListener(t *testing.T, sinks ...Sink) *Listener {
	t.Helper()
	logger := testutil.NewTestLogger(t)
	l := New(lineage.NewAnalyzer(lineage.Options{Logger: logger}), logger, sinks...)
	l.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return l
}

func TestListener_OnSuccess(t *testing.T) {
	sink := &recordingSink{}
	l := newTestListener(t, sink)
	op := Operation{Identifier: "op-1", Statement: "SELECT a FROM db.t", State: "FINISHED"}

	e := l.OnSuccess(context.Background(), op, selectPlan())

	require.NotNil(t, e.Lineage)
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, op, e.Operation)
	assert.Equal(t, []string{"db.t"}, e.Lineage.InputTables)
	assert.Empty(t, e.Exception)
	require.Len(t, sink.events, 1)
	assert.Same(t, e, sink.events[0])
}

func TestListener_OnSuccessWithBrokenPlan(t *testing.T) {
	sink := &recordingSink{}
	l := newTestListener(t, sink)

	e := l.OnSuccess(context.Background(), Operation{Identifier: "op-2"}, &plan.Project{})

	assert.Nil(t, e.Lineage, "a failed extraction is published without lineage")
	require.Len(t, sink.events, 1)
}

func TestListener_OnFailure(t *testing.T) {
	tests := []struct {
		name  string
		op    Operation
		cause error
		want  string
	}{
		{name: "cause", op: Operation{State: "ERROR"}, cause: errors.New("table not found"), want: "table not found"},
		{name: "operation exception", op: Operation{State: "ERROR", Exception: "boom"}, want: "boom"},
		{name: "state only", op: Operation{State: "CANCELED"}, want: "statement ended in state CANCELED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			e := newTestListener(t, sink).OnFailure(context.Background(), tt.op, tt.cause)
			assert.Equal(t, tt.want, e.Exception)
			assert.Nil(t, e.Lineage)
			require.Len(t, sink.events, 1)
		})
	}
}

func TestListener_SinkErrorsAreContained(t *testing.T) {
	failing := &recordingSink{err: errors.New("disk full")}
	healthy := &recordingSink{}
	logger, logs := testutil.NewCaptureLogger()
	l := New(lineage.NewAnalyzer(lineage.Options{}), logger, failing, healthy)

	e := l.OnSuccess(context.Background(), Operation{Identifier: "op-3"}, selectPlan())

	require.NotNil(t, e)
	assert.Len(t, healthy.events, 1)
	lines := logs.Lines("failed to publish lineage event")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "disk full")
	assert.Contains(t, lines[0], "operation=op-3")
}

func TestJSONSink(t *testing.T) {
	var buf bytes.Buffer
	l := newTestListener(t, NewJSONSink(&buf))

	l.OnSuccess(context.Background(), Operation{Identifier: "op-1", State: "FINISHED"}, selectPlan())
	l.OnFailure(context.Background(), Operation{Identifier: "op-2"}, errors.New("boom"))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first Event
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "op-1", first.Operation.Identifier)
	require.NotNil(t, first.Lineage)
	assert.Equal(t, []lineage.ColumnLineage{{Column: "a", OriginalColumns: []string{"db.t.a"}}}, first.Lineage.ColumnLineage)

	assert.Contains(t, lines[1], `"exception":"boom"`)
	assert.NotContains(t, lines[1], `"lineage"`)
}

func TestStoreSink(t *testing.T) {
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(":memory:"))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate())

	l := newTestListener(t, NewStoreSink(store))
	op := Operation{
		Identifier:   "op-1",
		Statement:    "SELECT a FROM db.t",
		State:        "FINISHED",
		CreateTime:   1709283600000,
		StartTime:    1709283600100,
		CompleteTime: 1709283601500,
		SessionUser:  "alice",
		SessionType:  "SQL",
		Instance:     "kyuubi-0:10009",
	}
	e := l.OnSuccess(context.Background(), op, selectPlan())

	got, err := store.GetEvent(context.Background(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, "op-1", got.OperationID)
	assert.Equal(t, "alice", got.SessionUser)
	assert.Equal(t, "SQL", got.SessionType)
	assert.Equal(t, "kyuubi-0:10009", got.Instance)
	assert.Equal(t, int64(1709283600000), got.CreateTime)
	assert.Equal(t, int64(1709283600100), got.StartTime)
	assert.Equal(t, int64(1709283601500), got.CompleteTime)
	assert.Equal(t, e.EventTime, got.EventTime)
	assert.Equal(t, e.Lineage, got.Lineage)
}

func TestOperation_DecodesEngineFields(t *testing.T) {
	doc := `{
		"identifier": "op-7",
		"statement": "SELECT 1",
		"state": "FINISHED",
		"createTime": 1000,
		"startTime": 1100,
		"completeTime": 1500,
		"sessionId": "s-1",
		"sessionUser": "alice",
		"sessionType": "SQL",
		"kyuubiInstance": "kyuubi-0:10009"
	}`

	var op Operation
	require.NoError(t, json.Unmarshal([]byte(doc), &op))
	assert.Equal(t, Operation{
		Identifier:   "op-7",
		Statement:    "SELECT 1",
		State:        "FINISHED",
		CreateTime:   1000,
		StartTime:    1100,
		CompleteTime: 1500,
		SessionID:    "s-1",
		SessionUser:  "alice",
		SessionType:  "SQL",
		Instance:     "kyuubi-0:10009",
	}, op)

	out, err := json.Marshal(op)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"kyuubiInstance":"kyuubi-0:10009"`)
}
