package state

import (
	"context"
	"database/sql"
	"fmt"
)

// Edge is a recorded flow from one table or column to another, with the
// number of events that produced it.
type Edge struct {
	From   string
	To     string
	Events int
}

// TableEdges returns an edge from every input table to every output table
// of each recorded event.
func (s *SQLiteStore) TableEdges(ctx context.Context) ([]Edge, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT i.table_name, o.table_name, COUNT(DISTINCT i.event_id)
		 FROM lineage_tables i
		 JOIN lineage_tables o ON o.event_id = i.event_id
		 WHERE i.direction = 'input' AND o.direction = 'output'
		 GROUP BY i.table_name, o.table_name
		 ORDER BY i.table_name, o.table_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query table edges: %w", err)
	}
	return scanEdges(rows)
}

// ColumnEdges returns an edge from every source column to the output
// column it feeds. Only events that wrote a table contribute: columns of
// plain queries are not addressable.
func (s *SQLiteStore) ColumnEdges(ctx context.Context) ([]Edge, error) {
	if s.db == nil {
		return nil, errNotOpened
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.source, c.column_name, COUNT(DISTINCT c.event_id)
		 FROM lineage_columns c
		 WHERE c.source IS NOT NULL
		   AND EXISTS (SELECT 1 FROM lineage_tables t WHERE t.event_id = c.event_id AND t.direction = 'output')
		 GROUP BY c.source, c.column_name
		 ORDER BY c.source, c.column_name`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query column edges: %w", err)
	}
	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	defer rows.Close()
	var out []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.From, &e.To, &e.Events); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate edges: %w", err)
	}
	return out, nil
}
