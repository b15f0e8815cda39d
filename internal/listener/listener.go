package listener

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/planlineage/pkg/lineage"
	"github.com/leapstack-labs/planlineage/pkg/plan"
)

// Listener analyzes finished statements and publishes their lineage.
type Listener struct {
	analyzer *lineage.Analyzer
	sinks    []Sink
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a listener publishing to sinks.
// The logger parameter is optional (nil uses discard logger).
func New(analyzer *lineage.Analyzer, logger *slog.Logger, sinks ...Sink) *Listener {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Listener{
		analyzer: analyzer,
		sinks:    sinks,
		logger:   logger,
		now:      time.Now,
	}
}

// OnSuccess handles a statement that completed. Lineage failures never
// reach the caller: the event is still published, without lineage.
func (l *Listener) OnSuccess(ctx context.Context, op Operation, root plan.Node) *Event {
	e := newEvent(op, l.now())
	if lin, ok := l.analyzer.TryAnalyze(op.Identifier, root); ok {
		e.Lineage = lin
	}
	l.publish(ctx, e)
	return e
}

// OnFailure handles a statement that failed.
func (l *Listener) OnFailure(ctx context.Context, op Operation, cause error) *Event {
	e := newEvent(op, l.now())
	switch {
	case cause != nil:
		e.Exception = cause.Error()
	case op.Exception != "":
		e.Exception = op.Exception
	default:
		e.Exception = fmt.Sprintf("statement ended in state %s", op.State)
	}
	l.publish(ctx, e)
	return e
}

// publish fans e out to every sink. Sink errors are logged.
func (l *Listener) publish(ctx context.Context, e *Event) {
	g, gctx := errgroup.WithContext(ctx)
	for _, s := range l.sinks {
		g.Go(func() error {
			if err := s.Send(gctx, e); err != nil {
				l.logger.Error("failed to publish lineage event",
					"event", e.ID,
					"operation", e.Operation.Identifier,
					"sink", fmt.Sprintf("%T", s),
					"error", err,
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}
