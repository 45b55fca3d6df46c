package index

import (
	"context"
	"time"

	"github.com/roach88/canon/internal/ir"
)

// PKType is the declared type of a primary-key field.
type PKType string

const (
	PKString    PKType = "string"
	PKNumber    PKType = "number"
	PKReference PKType = "reference"
	PKBoolean   PKType = "boolean"
)

// Valid reports whether t is a known pk type.
func (t PKType) Valid() bool {
	switch t {
	case PKString, PKNumber, PKReference, PKBoolean:
		return true
	default:
		return false
	}
}

// PKEntry is a typed primary-key value extracted from a document.
//
// Value holds ir.IRString for string entries, ir.IRInt for number entries,
// ir.IRBool for boolean entries and ir.IRRef for reference entries.
type PKEntry struct {
	Field string     `json:"field"`
	Type  PKType     `json:"type"`
	Value ir.IRValue `json:"value"`
}

// Tag is a weighted identity signal. Weight is in [0, 1].
type Tag struct {
	Key    string  `json:"key"`
	Weight float64 `json:"weight"`
}

// Record is one Index Record.
type Record struct {
	ID              string    `json:"id"`
	Kind            string    `json:"kind"`
	ScopeID         string    `json:"scope_id"`
	Keys            []string  `json:"keys"`
	PrimaryKey      string    `json:"primary_key"`
	Tags            []Tag     `json:"tags"`
	CurrentID       string    `json:"current_id,omitempty"`
	CurrentRevision int64     `json:"current_revision"`
	PK              []PKEntry `json:"pk"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Linked reports whether the record points at a physical document.
func (r Record) Linked() bool {
	return r.CurrentID != ""
}

// Search selects Index Records for resolution.
//
// A record matches when kind and scope are equal, every condition has an
// exact (field, type, value) entry in the record's pk set, and, when Tags
// is non-empty, the record shares at least one tag key.
type Search struct {
	Kind       string
	ScopeID    string
	Conditions []PKEntry
	Tags       []string
}

// Repository persists Index Records.
type Repository interface {
	// GetRecord loads a record by id. Returns false when absent.
	GetRecord(ctx context.Context, id string) (Record, bool, error)

	// SaveRecord inserts or replaces a record, including its pk and tag sets.
	SaveRecord(ctx context.Context, rec Record) error

	// SearchRecords returns records matching s, most recently updated first.
	SearchRecords(ctx context.Context, s Search) ([]Record, error)

	// ListRecords returns every record of kind ordered by scope then primary key.
	ListRecords(ctx context.Context, kind string) ([]Record, error)
}

// DefaultFields are the pk and alias fields used when a kind configures none.
var DefaultFields = []string{"key", "name", "token"}

// Schema is the per-kind field configuration used for extraction.
//
// FieldTypes is resolved once at startup; fields absent from it are typed
// from the value they carry.
type Schema struct {
	PKFields   []string
	KeyFields  []string
	FieldTypes map[string]PKType
}

// DefaultSchema returns the schema applied to unconfigured kinds.
func DefaultSchema() Schema {
	return Schema{
		PKFields:  append([]string(nil), DefaultFields...),
		KeyFields: append([]string(nil), DefaultFields...),
	}
}

// Policy holds the resolution tunables.
type Policy struct {
	// Threshold is the minimum best score trusted when tags were queried.
	Threshold float64
	// Delta is the minimum gap between the top two scores before a
	// resolution is flagged ambiguous.
	Delta float64
}

const (
	DefaultThreshold = 0.3
	DefaultDelta     = 0.2
)

// DefaultPolicy returns the default confidence threshold and ambiguity delta.
func DefaultPolicy() Policy {
	return Policy{Threshold: DefaultThreshold, Delta: DefaultDelta}
}

func recordID(rec Record) string {
	return ir.IndexRecordID(rec.Kind, rec.ScopeID, rec.PrimaryKey)
}
