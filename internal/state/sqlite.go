package state

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/leapstack-labs/planlineage/pkg/lineage"
)

var errNotOpened = errors.New("database not opened")

// ErrEventNotFound is returned when no event has the requested ID.
var ErrEventNotFound = errors.New("event not found")

// SQLiteStore stores lineage events in a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite state store instance.
// The logger parameter is optional (nil uses discard logger).
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	dsn := path + "?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = ":memory:?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	s.logger.Debug("opened state database", "path", path)
	return nil
}

// Close closes the SQLite database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveEvent stores e. An empty ID is replaced by a new UUID.
func (s *SQLiteStore) SaveEvent(ctx context.Context, e *Event) error {
	if s.db == nil {
		return errNotOpened
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.EventTime.IsZero() {
		e.EventTime = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO lineage_events
			(id, operation_id, statement, state, session_id, session_user, session_type, engine_instance,
			 create_time_ms, start_time_ms, complete_time_ms, event_time_ms, exception, has_lineage)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OperationID, e.Statement, e.State, e.SessionID, e.SessionUser, e.SessionType, e.Instance,
		e.CreateTime, e.StartTime, e.CompleteTime, e.EventTime.UnixMilli(), nullableString(e.Exception), e.Lineage != nil,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", e.ID, err)
	}

	if e.Lineage != nil {
		if err := insertTables(ctx, tx, e.ID, DirectionInput, e.Lineage.InputTables); err != nil {
			return err
		}
		if err := insertTables(ctx, tx, e.ID, DirectionOutput, e.Lineage.OutputTables); err != nil {
			return err
		}
		if err := insertColumns(ctx, tx, e.ID, e.Lineage.ColumnLineage); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit event %s: %w", e.ID, err)
	}
	s.logger.Debug("saved lineage event", "id", e.ID, "operation", e.OperationID)
	return nil
}

func insertTables(ctx context.Context, tx *sql.Tx, eventID string, dir Direction, tables []string) error {
	for i, t := range tables {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO lineage_tables (event_id, direction, position, table_name) VALUES (?, ?, ?, ?)`,
			eventID, string(dir), i, t,
		); err != nil {
			return fmt.Errorf("failed to insert %s table %s: %w", dir, t, err)
		}
	}
	return nil
}

func insertColumns(ctx context.Context, tx *sql.Tx, eventID string, columns []lineage.ColumnLineage) error {
	for i, c := range columns {
		if len(c.OriginalColumns) == 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lineage_columns (event_id, position, column_name, source_position, source) VALUES (?, ?, ?, 0, NULL)`,
				eventID, i, c.Column,
			); err != nil {
				return fmt.Errorf("failed to insert column %s: %w", c.Column, err)
			}
			continue
		}
		for j, src := range c.OriginalColumns {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO lineage_columns (event_id, position, column_name, source_position, source) VALUES (?, ?, ?, ?, ?)`,
				eventID, i, c.Column, j, src,
			); err != nil {
				return fmt.Errorf("failed to insert lineage for column %s: %w", c.Column, err)
			}
		}
	}
	return nil
}

// GetEvent retrieves an event and its lineage by ID.
func (s *SQLiteStore) GetEvent(ctx context.Context, id string) (*Event, error) {
	if s.db == nil {
		return nil, errNotOpened
	}

	e := &Event{}
	var eventMillis int64
	var exception sql.NullString
	var hasLineage bool
	err := s.db.QueryRowContext(ctx,
		`SELECT id, operation_id, statement, state, session_id, session_user, session_type, engine_instance,
			create_time_ms, start_time_ms, complete_time_ms, event_time_ms, exception, has_lineage
		 FROM lineage_events WHERE id = ?`,
		id,
	).Scan(&e.ID, &e.OperationID, &e.Statement, &e.State, &e.SessionID, &e.SessionUser, &e.SessionType, &e.Instance,
		&e.CreateTime, &e.StartTime, &e.CompleteTime, &eventMillis, &exception, &hasLineage)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	e.EventTime = time.UnixMilli(eventMillis).UTC()
	e.Exception = exception.String

	if hasLineage {
		lin, err := s.loadLineage(ctx, id)
		if err != nil {
			return nil, err
		}
		e.Lineage = lin
	}
	return e, nil
}

func (s *SQLiteStore) loadLineage(ctx context.Context, id string) (*lineage.Lineage, error) {
	lin := &lineage.Lineage{
		InputTables:   []string{},
		OutputTables:  []string{},
		ColumnLineage: []lineage.ColumnLineage{},
	}
	if err := s.loadTables(ctx, id, lin); err != nil {
		return nil, err
	}
	if err := s.loadColumns(ctx, id, lin); err != nil {
		return nil, err
	}
	return lin, nil
}

func (s *SQLiteStore) loadTables(ctx context.Context, id string, lin *lineage.Lineage) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT direction, table_name FROM lineage_tables WHERE event_id = ? ORDER BY direction, position`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dir, table string
		if err := rows.Scan(&dir, &table); err != nil {
			return fmt.Errorf("failed to scan table: %w", err)
		}
		if Direction(dir) == DirectionInput {
			lin.InputTables = append(lin.InputTables, table)
		} else {
			lin.OutputTables = append(lin.OutputTables, table)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate tables: %w", err)
	}
	return nil
}

func (s *SQLiteStore) loadColumns(ctx context.Context, id string, lin *lineage.Lineage) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT position, column_name, source FROM lineage_columns WHERE event_id = ? ORDER BY position, source_position`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	last := -1
	for rows.Next() {
		var pos int
		var name string
		var source sql.NullString
		if err := rows.Scan(&pos, &name, &source); err != nil {
			return fmt.Errorf("failed to scan column: %w", err)
		}
		if pos != last {
			lin.ColumnLineage = append(lin.ColumnLineage, lineage.ColumnLineage{Column: name, OriginalColumns: []string{}})
			last = pos
		}
		if source.Valid {
			cur := &lin.ColumnLineage[len(lin.ColumnLineage)-1]
			cur.OriginalColumns = append(cur.OriginalColumns, source.String)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate columns: %w", err)
	}
	return nil
}

// ListEvents returns the most recent events, newest first. A limit of zero
// or less returns all events.
func (s *SQLiteStore) ListEvents(ctx context.Context, limit int) ([]EventSummary, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, operation_id, statement, state, session_user, event_time_ms, has_lineage, exception
		 FROM lineage_events ORDER BY event_time_ms DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return scanSummaries(rows)
}

// EventsForTable returns the events that read or wrote table, newest first.
func (s *SQLiteStore) EventsForTable(ctx context.Context, table string) ([]EventSummary, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT e.id, e.operation_id, e.statement, e.state, e.session_user, e.event_time_ms, e.has_lineage, e.exception
		 FROM lineage_events e
		 WHERE e.id IN (SELECT event_id FROM lineage_tables WHERE table_name = ?)
		 ORDER BY e.event_time_ms DESC, e.rowid DESC`,
		table,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get events for table %s: %w", table, err)
	}
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]EventSummary, error) {
	defer rows.Close()
	var out []EventSummary
	for rows.Next() {
		var sum EventSummary
		var millis int64
		var exception sql.NullString
		if err := rows.Scan(&sum.ID, &sum.OperationID, &sum.Statement, &sum.State, &sum.SessionUser,
			&millis, &sum.HasLineage, &exception); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		sum.EventTime = time.UnixMilli(millis).UTC()
		sum.Exception = exception.String
		out = append(out, sum)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
