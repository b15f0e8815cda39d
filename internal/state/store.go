// Package state persists lineage events in SQLite.
//
// Each event is stored with its operation metadata, its input and output
// tables, and one row per (column, source) pair so that events can be
// looked up by the tables they touch.
package state

import (
	"time"

	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

// Event is a persisted lineage event.
type Event struct {
	ID          string `json:"id" yaml:"id"`
	OperationID string `json:"operationId" yaml:"operationId"`
	Statement   string `json:"statement,omitempty" yaml:"statement,omitempty"`
	State       string `json:"state" yaml:"state"`
	SessionID   string `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`
	SessionUser string `json:"sessionUser,omitempty" yaml:"sessionUser,omitempty"`
	SessionType string `json:"sessionType,omitempty" yaml:"sessionType,omitempty"`
	Instance    string `json:"kyuubiInstance,omitempty" yaml:"kyuubiInstance,omitempty"`

	// Operation timings in milliseconds since the epoch; zero means unknown.
	CreateTime   int64 `json:"createTime,omitempty" yaml:"createTime,omitempty"`
	StartTime    int64 `json:"startTime,omitempty" yaml:"startTime,omitempty"`
	CompleteTime int64 `json:"completeTime,omitempty" yaml:"completeTime,omitempty"`

	EventTime time.Time `json:"eventTime" yaml:"eventTime"`

	// Exception is set for failed statements.
	Exception string `json:"exception,omitempty" yaml:"exception,omitempty"`

	// Lineage is nil when the statement failed or lineage could not be
	// extracted.
	Lineage *lineage.Lineage `json:"lineage,omitempty" yaml:"lineage,omitempty"`
}

// EventSummary is one row of an event listing.
type EventSummary struct {
	ID          string    `json:"id" yaml:"id"`
	OperationID string    `json:"operationId" yaml:"operationId"`
	Statement   string    `json:"statement,omitempty" yaml:"statement,omitempty"`
	State       string    `json:"state" yaml:"state"`
	SessionUser string    `json:"sessionUser,omitempty" yaml:"sessionUser,omitempty"`
	EventTime   time.Time `json:"eventTime" yaml:"eventTime"`
	HasLineage  bool      `json:"hasLineage" yaml:"hasLineage"`
	Exception   string    `json:"exception,omitempty" yaml:"exception,omitempty"`
}

// Direction tells whether a table was read or written.
type Direction string

// Table directions.
const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)
