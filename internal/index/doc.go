// Package index maintains Index Records: the persisted mapping from a
// logical identity (typed primary-key entries, aliases, weighted tags) to
// the currently canonical physical document of an entity kind.
//
// Records are keyed by (kind, scope, primary key). Merging follows fixed
// rules:
//   - keys are unioned
//   - pk entries are last-write-wins per (field, type)
//   - tags keep the maximum weight per key
//   - the linked document only moves to a strictly greater revision
//
// Records are never deleted.
package index
