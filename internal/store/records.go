package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/querysql"
)

// Store is the Index Record repository.
var _ index.Repository = (*Store)(nil)

// GetRecord loads an Index Record with its pk and tag sets.
func (s *Store) GetRecord(ctx context.Context, id string) (index.Record, bool, error) {
	rec, err := s.loadRecord(ctx, id)
	if isNoRows(err) {
		return index.Record{}, false, nil
	}
	if err != nil {
		return index.Record{}, false, fmt.Errorf("get index record %s: %w", id, err)
	}
	return rec, true, nil
}

// SaveRecord inserts or replaces an Index Record. The pk and tag sets are
// rewritten in the same transaction.
func (s *Store) SaveRecord(ctx context.Context, rec index.Record) error {
	keys, err := json.Marshal(rec.Keys)
	if err != nil {
		return fmt.Errorf("save index record: encode keys: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save index record: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO index_records
		(id, kind, scope_id, primary_key, keys, current_id, current_revision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			keys = excluded.keys,
			current_id = excluded.current_id,
			current_revision = excluded.current_revision,
			updated_at = excluded.updated_at
	`,
		rec.ID,
		rec.Kind,
		rec.ScopeID,
		rec.PrimaryKey,
		string(keys),
		nullString(rec.CurrentID),
		rec.CurrentRevision,
		formatTime(rec.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("save index record: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_pk WHERE record_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("save index record: clear pk: %w", err)
	}
	for i, entry := range rec.PK {
		column, value, err := querysql.PKValueColumn(entry)
		if err != nil {
			return fmt.Errorf("save index record: pk %q: %w", entry.Field, err)
		}
		query := fmt.Sprintf(`
			INSERT INTO index_pk (record_id, kind, scope_id, field, type, %s, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, column)
		if _, err := tx.ExecContext(ctx, query, rec.ID, rec.Kind, rec.ScopeID, entry.Field, string(entry.Type), value, i); err != nil {
			return fmt.Errorf("save index record: pk %q: %w", entry.Field, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM index_tags WHERE record_id = ?`, rec.ID); err != nil {
		return fmt.Errorf("save index record: clear tags: %w", err)
	}
	for i, tag := range rec.Tags {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO index_tags (record_id, key, weight, position) VALUES (?, ?, ?, ?)
		`, rec.ID, tag.Key, tag.Weight, i); err != nil {
			return fmt.Errorf("save index record: tag %q: %w", tag.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save index record: commit: %w", err)
	}
	return nil
}

// SearchRecords returns the records matching q, most recently updated first.
func (s *Store) SearchRecords(ctx context.Context, q index.Search) ([]index.Record, error) {
	query, params, err := s.compiler.CompileRecordSearch(q)
	if err != nil {
		return nil, fmt.Errorf("search index records: %w", err)
	}

	ids, err := s.queryIDs(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("search index records: %w", err)
	}
	return s.loadRecords(ctx, ids)
}

// ListRecords returns every record of kind ordered by scope then primary key.
func (s *Store) ListRecords(ctx context.Context, kind string) ([]index.Record, error) {
	ids, err := s.queryIDs(ctx, `
		SELECT id FROM index_records WHERE kind = ?
		ORDER BY scope_id COLLATE BINARY ASC, primary_key COLLATE BINARY ASC
	`, kind)
	if err != nil {
		return nil, fmt.Errorf("list index records: %w", err)
	}
	return s.loadRecords(ctx, ids)
}

func (s *Store) queryIDs(ctx context.Context, query string, params ...any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// loadRecords loads ids in order. Rows are collected before the nested
// loads because the pool holds a single connection.
func (s *Store) loadRecords(ctx context.Context, ids []string) ([]index.Record, error) {
	records := make([]index.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := s.loadRecord(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load index record %s: %w", id, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) loadRecord(ctx context.Context, id string) (index.Record, error) {
	var (
		rec       index.Record
		keys      string
		currentID sql.NullString
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, scope_id, primary_key, keys, current_id, current_revision, updated_at
		FROM index_records WHERE id = ?
	`, id).Scan(&rec.ID, &rec.Kind, &rec.ScopeID, &rec.PrimaryKey, &keys, &currentID, &rec.CurrentRevision, &updatedAt)
	if err != nil {
		return index.Record{}, err
	}

	if err := json.Unmarshal([]byte(keys), &rec.Keys); err != nil {
		return index.Record{}, fmt.Errorf("decode keys: %w", err)
	}
	rec.CurrentID = currentID.String
	if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAt); err != nil {
		return index.Record{}, fmt.Errorf("decode updated_at: %w", err)
	}

	if rec.PK, err = s.loadPK(ctx, id); err != nil {
		return index.Record{}, err
	}
	if rec.Tags, err = s.loadTags(ctx, id); err != nil {
		return index.Record{}, err
	}
	return rec, nil
}

func (s *Store) loadPK(ctx context.Context, id string) ([]index.PKEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT field, type, value_text, value_num, value_bool
		FROM index_pk WHERE record_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load pk: %w", err)
	}
	defer rows.Close()

	var entries []index.PKEntry
	for rows.Next() {
		var (
			field, typ string
			text       sql.NullString
			num        sql.NullInt64
			flag       sql.NullInt64
		)
		if err := rows.Scan(&field, &typ, &text, &num, &flag); err != nil {
			return nil, fmt.Errorf("load pk: scan: %w", err)
		}

		entry := index.PKEntry{Field: field, Type: index.PKType(typ)}
		switch entry.Type {
		case index.PKString:
			entry.Value = ir.IRString(text.String)
		case index.PKReference:
			entry.Value = ir.IRRef(text.String)
		case index.PKNumber:
			entry.Value = ir.IRInt(num.Int64)
		case index.PKBoolean:
			entry.Value = ir.IRBool(flag.Int64 != 0)
		default:
			return nil, fmt.Errorf("load pk: unknown type %q", typ)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (s *Store) loadTags(ctx context.Context, id string) ([]index.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, weight FROM index_tags WHERE record_id = ?
		ORDER BY position ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	defer rows.Close()

	var tags []index.Tag
	for rows.Next() {
		var tag index.Tag
		if err := rows.Scan(&tag.Key, &tag.Weight); err != nil {
			return nil, fmt.Errorf("load tags: scan: %w", err)
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// formatTime stores timestamps as fixed-width UTC text so they sort lexically.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
