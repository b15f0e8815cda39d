// Package listener turns finished statements into lineage events and hands
// them to sinks.
package listener

import (
	"time"

	"github.com/google/uuid"

	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

// Operation describes a statement as reported by the query engine. Times
// are milliseconds since the epoch; zero means unknown.
type Operation struct {
	Identifier   string `json:"identifier" yaml:"identifier"`
	Statement    string `json:"statement" yaml:"statement"`
	State        string `json:"state" yaml:"state"`
	CreateTime   int64  `json:"createTime,omitempty" yaml:"createTime,omitempty"`
	StartTime    int64  `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	CompleteTime int64  `json:"completeTime,omitempty" yaml:"completeTime,omitempty"`
	Exception    string `json:"exception,omitempty" yaml:"exception,omitempty"`
	SessionID    string `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	SessionUser  string `json:"sessionUser,omitempty" yaml:"sessionUser,omitempty"`
	SessionType  string `json:"sessionType,omitempty" yaml:"sessionType,omitempty"`
	Instance     string `json:"kyuubiInstance,omitempty" yaml:"kyuubiInstance,omitempty"`
}

// Event is emitted once per finished statement.
type Event struct {
	ID        string           `json:"id" yaml:"id"`
	Operation Operation        `json:"operation" yaml:"operation"`
	EventTime time.Time        `json:"eventTime" yaml:"eventTime"`
	Lineage   *lineage.Lineage `json:"lineage,omitempty" yaml:"lineage,omitempty"`
	Exception string           `json:"exception,omitempty" yaml:"exception,omitempty"`
}

func newEvent(op Operation, now time.Time) *Event {
	return &Event{
		ID:        uuid.New().String(),
		Operation: op,
		EventTime: now.UTC(),
	}
}
