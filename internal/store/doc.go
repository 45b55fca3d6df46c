// Package store provides SQLite-backed storage for documents and Index Records.
//
// Documents are stored per kind with their JSON body; id, scope_id and
// revision are promoted to columns. Reads compile queryir filters through
// querysql and always order by seq ASC, id COLLATE BINARY ASC.
//
// Index Records live in three tables:
//   - index_records: one row per (kind, scope_id, primary_key)
//   - index_pk: typed pk entries with one lookup index per value type
//   - index_tags: weighted tags
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
