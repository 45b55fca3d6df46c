package queryir

import "github.com/roach88/canon/internal/ir"

// Write is a single operation of a bulk write.
//
// Write types:
//   - InsertOp: insert a new document
//   - UpsertOp: insert or replace by id
//   - UpdateOp: set fields on the first matching document
//   - DeleteOp: delete the first matching document
type Write interface {
	writeNode() // Marker method - seals interface to this package
}

// InsertOp inserts Document. Inserting an existing id is an error.
type InsertOp struct {
	Document ir.Document
}

func (InsertOp) writeNode() {}

// UpsertOp inserts Document or replaces the stored document with the same id.
type UpsertOp struct {
	Document ir.Document
}

func (UpsertOp) writeNode() {}

// UpdateOp merges Set into the first document matching Filter.
type UpdateOp struct {
	Filter Predicate
	Set    ir.IRObject
}

func (UpdateOp) writeNode() {}

// DeleteOp removes the first document matching Filter.
type DeleteOp struct {
	Filter Predicate
}

func (DeleteOp) writeNode() {}

// BulkResult summarizes a bulk write.
type BulkResult struct {
	Inserted int64 `json:"inserted"`
	Upserted int64 `json:"upserted"`
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
	Deleted  int64 `json:"deleted"`
}
