package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
)

var (
	// ErrDuplicateID is returned when inserting a document whose id exists.
	ErrDuplicateID = errors.New("document id already exists")

	// ErrMissingID is returned when writing a document without an id.
	ErrMissingID = errors.New("document has no id")

	// ErrImmutableID is returned when an update tries to change a document id.
	ErrImmutableID = errors.New("document id cannot be updated")
)

// Find returns the documents of kind matching filter in seq order.
// limit <= 0 means no limit.
func (s *Store) Find(ctx context.Context, kind string, filter queryir.Predicate, limit int) ([]ir.Document, error) {
	docs, err := s.find(ctx, s.db, kind, filter, limit)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", kind, err)
	}
	return docs, nil
}

// FindOne returns the first document of kind matching filter.
func (s *Store) FindOne(ctx context.Context, kind string, filter queryir.Predicate) (ir.Document, bool, error) {
	docs, err := s.find(ctx, s.db, kind, filter, 1)
	if err != nil {
		return nil, false, fmt.Errorf("find one %s: %w", kind, err)
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0], true, nil
}

// Insert stores a new document. Returns ErrDuplicateID if the id is taken.
func (s *Store) Insert(ctx context.Context, kind string, doc ir.Document) error {
	if err := s.insert(ctx, s.db, kind, doc); err != nil {
		return fmt.Errorf("insert %s: %w", kind, err)
	}
	return nil
}

// Upsert stores doc, replacing any document of kind with the same id.
// A replaced document keeps its position in seq order.
func (s *Store) Upsert(ctx context.Context, kind string, doc ir.Document) error {
	if err := s.upsert(ctx, s.db, kind, doc); err != nil {
		return fmt.Errorf("upsert %s: %w", kind, err)
	}
	return nil
}

// UpdateOne merges set into the first document matching filter and returns
// the updated document. Returns false when nothing matched.
func (s *Store) UpdateOne(ctx context.Context, kind string, filter queryir.Predicate, set ir.IRObject) (ir.Document, bool, error) {
	doc, ok, err := s.updateOne(ctx, s.db, kind, filter, set)
	if err != nil {
		return nil, false, fmt.Errorf("update one %s: %w", kind, err)
	}
	return doc, ok, nil
}

// DeleteOne removes the first document matching filter.
// Returns false when nothing matched.
func (s *Store) DeleteOne(ctx context.Context, kind string, filter queryir.Predicate) (bool, error) {
	ok, err := s.deleteOne(ctx, s.db, kind, filter)
	if err != nil {
		return false, fmt.Errorf("delete one %s: %w", kind, err)
	}
	return ok, nil
}

// BulkWrite applies ops in order inside one transaction.
// Any failing op rolls back the whole batch.
func (s *Store) BulkWrite(ctx context.Context, kind string, ops []queryir.Write) (queryir.BulkResult, error) {
	var result queryir.BulkResult

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("bulk write %s: begin: %w", kind, err)
	}
	defer tx.Rollback()

	for i, op := range ops {
		switch w := op.(type) {
		case queryir.InsertOp:
			if err := s.insert(ctx, tx, kind, w.Document); err != nil {
				return queryir.BulkResult{}, fmt.Errorf("bulk write %s: op %d: %w", kind, i, err)
			}
			result.Inserted++
		case queryir.UpsertOp:
			if err := s.upsert(ctx, tx, kind, w.Document); err != nil {
				return queryir.BulkResult{}, fmt.Errorf("bulk write %s: op %d: %w", kind, i, err)
			}
			result.Upserted++
		case queryir.UpdateOp:
			_, ok, err := s.updateOne(ctx, tx, kind, w.Filter, w.Set)
			if err != nil {
				return queryir.BulkResult{}, fmt.Errorf("bulk write %s: op %d: %w", kind, i, err)
			}
			if ok {
				result.Matched++
				result.Modified++
			}
		case queryir.DeleteOp:
			ok, err := s.deleteOne(ctx, tx, kind, w.Filter)
			if err != nil {
				return queryir.BulkResult{}, fmt.Errorf("bulk write %s: op %d: %w", kind, i, err)
			}
			if ok {
				result.Deleted++
			}
		default:
			return queryir.BulkResult{}, fmt.Errorf("bulk write %s: op %d: unsupported write %T", kind, i, op)
		}
	}

	if err := tx.Commit(); err != nil {
		return queryir.BulkResult{}, fmt.Errorf("bulk write %s: commit: %w", kind, err)
	}
	return result, nil
}

// Kinds returns the distinct document kinds in the store.
func (s *Store) Kinds(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT kind FROM documents ORDER BY kind COLLATE BINARY ASC`)
	if err != nil {
		return nil, fmt.Errorf("list kinds: %w", err)
	}
	defer rows.Close()

	var kinds []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("list kinds: scan: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, rows.Err()
}

func (s *Store) find(ctx context.Context, q execer, kind string, filter queryir.Predicate, limit int) ([]ir.Document, error) {
	query, params, err := s.compiler.Compile(queryir.Select{Kind: kind, Filter: filter, Limit: limit})
	if err != nil {
		return nil, err
	}

	rows, err := q.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	defer rows.Close()

	var docs []ir.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc, err := ir.UnmarshalDocument([]byte(body))
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate: %w", err)
	}
	return docs, nil
}

func (s *Store) insert(ctx context.Context, q execer, kind string, doc ir.Document) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO documents (kind, id, scope_id, revision, body, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO NOTHING
	`, kind, doc.ID(), doc.Scope(), doc.Revision(), body, s.seq.Next())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrDuplicateID, doc.ID())
	}
	return nil
}

func (s *Store) upsert(ctx context.Context, q execer, kind string, doc ir.Document) error {
	body, err := encodeDocument(doc)
	if err != nil {
		return err
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (kind, id, scope_id, revision, body, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, id) DO UPDATE SET
			scope_id = excluded.scope_id,
			revision = excluded.revision,
			body = excluded.body
	`, kind, doc.ID(), doc.Scope(), doc.Revision(), body, s.seq.Next())
	return err
}

func (s *Store) updateOne(ctx context.Context, q execer, kind string, filter queryir.Predicate, set ir.IRObject) (ir.Document, bool, error) {
	docs, err := s.find(ctx, q, kind, filter, 1)
	if err != nil {
		return nil, false, err
	}
	if len(docs) == 0 {
		return nil, false, nil
	}

	doc := docs[0]
	id := doc.ID()
	if v, ok := set[ir.FieldID]; ok {
		if newID, ok := ir.StringOf(v); !ok || newID != id {
			return nil, false, ErrImmutableID
		}
	}

	for k, v := range set {
		doc[k] = v
	}

	body, err := encodeDocument(doc)
	if err != nil {
		return nil, false, err
	}
	if _, err := q.ExecContext(ctx, `
		UPDATE documents SET scope_id = ?, revision = ?, body = ?
		WHERE kind = ? AND id = ?
	`, doc.Scope(), doc.Revision(), body, kind, id); err != nil {
		return nil, false, err
	}
	return doc, true, nil
}

func (s *Store) deleteOne(ctx context.Context, q execer, kind string, filter queryir.Predicate) (bool, error) {
	docs, err := s.find(ctx, q, kind, filter, 1)
	if err != nil {
		return false, err
	}
	if len(docs) == 0 {
		return false, nil
	}

	res, err := q.ExecContext(ctx, `DELETE FROM documents WHERE kind = ? AND id = ?`, kind, docs[0].ID())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func encodeDocument(doc ir.Document) (string, error) {
	if doc.ID() == "" {
		return "", ErrMissingID
	}
	body, err := doc.MarshalJSON()
	if err != nil {
		return "", fmt.Errorf("encode document: %w", err)
	}
	return string(body), nil
}

// isNoRows reports whether err is sql.ErrNoRows.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
