package listener

import (
	"context"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/leapstack-labs/planlineage/internal/state"
)

// Sink receives lineage events. Implementations must be safe for
// concurrent use.
type Sink interface {
	Send(ctx context.Context, e *Event) error
}

// JSONSink writes one JSON document per line.
type JSONSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

// NewJSONSink creates a sink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{enc: json.NewEncoder(w)}
}

func (s *JSONSink) Send(_ context.Context, e *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(e)
}

// EventStore is the part of the state store a StoreSink needs.
type EventStore interface {
	SaveEvent(ctx context.Context, e *state.Event) error
}

// StoreSink persists events in the state database.
type StoreSink struct {
	store EventStore
}

// NewStoreSink creates a sink saving into store.
func NewStoreSink(store EventStore) *StoreSink {
	return &StoreSink{store: store}
}

func (s *StoreSink) Send(ctx context.Context, e *Event) error {
	return s.store.SaveEvent(ctx, &state.Event{
		ID:           e.ID,
		OperationID:  e.Operation.Identifier,
		Statement:    e.Operation.Statement,
		State:        e.Operation.State,
		SessionID:    e.Operation.SessionID,
		SessionUser:  e.Operation.SessionUser,
		SessionType:  e.Operation.SessionType,
		Instance:     e.Operation.Instance,
		CreateTime:   e.Operation.CreateTime,
		StartTime:    e.Operation.StartTime,
		CompleteTime: e.Operation.CompleteTime,
		EventTime:    e.EventTime,
		Exception:    e.Exception,
		Lineage:      e.Lineage,
	})
}
