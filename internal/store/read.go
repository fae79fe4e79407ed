package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/AppleFlash/BackgroundRealm/internal/query"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
)

// Record is one stored row.
type Record struct {
	// ID is the row id. It is stable across updates and orders records by
	// insertion.
	ID int64

	// Key is the canonical JSON of the primary-key value, or a generated
	// uuid for keyless kinds.
	Key string

	// Body is the stored object.
	Body record.Object

	// Seq is the write-clock stamp of the last content write.
	Seq int64
}

// Bodies returns the bodies of recs in order.
func Bodies(recs []Record) []record.Object {
	out := make([]record.Object, len(recs))
	for i, r := range recs {
		out[i] = r.Body
	}
	return out
}

// Query returns every record matching q, in q's order with insertion order
// breaking ties.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Query(ctx context.Context, q query.Query) ([]Record, error) {
	recs, err := s.query(ctx, s.conn(ctx), q)
	if err != nil {
		return nil, &Error{Op: "query " + q.Kind, Err: err}
	}
	return recs, nil
}

// Count returns the number of records matching q.
func (s *Store) Count(ctx context.Context, q query.Query) (int, error) {
	n, err := s.count(ctx, s.conn(ctx), q)
	if err != nil {
		return 0, &Error{Op: "count " + q.Kind, Err: err}
	}
	return n, nil
}

func (s *Store) query(ctx context.Context, db querier, q query.Query) ([]Record, error) {
	if _, err := s.Kind(q.Kind); err != nil {
		return nil, err
	}
	stmt, args, err := s.compiler.Select(q)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("select: %w", err)
	}
	defer rows.Close()

	recs := []Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return recs, nil
}

func (s *Store) count(ctx context.Context, db querier, q query.Query) (int, error) {
	if _, err := s.Kind(q.Kind); err != nil {
		return 0, err
	}
	stmt, args, err := s.compiler.Count(q)
	if err != nil {
		return 0, err
	}

	var n int
	if err := db.QueryRowContext(ctx, stmt, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

func scanRecord(rows *sql.Rows) (Record, error) {
	var (
		r    Record
		body string
	)
	if err := rows.Scan(&r.ID, &r.Key, &body, &r.Seq); err != nil {
		return Record{}, fmt.Errorf("scan record: %w", err)
	}
	obj, err := record.Unmarshal([]byte(body))
	if err != nil {
		return Record{}, fmt.Errorf("decode record %d: %w", r.ID, err)
	}
	r.Body = obj
	return r, nil
}
