// Package harness runs YAML scenarios against a fresh access layer and
// records the decision trace of every step.
//
// Each scenario gets its own in-memory SQLite store, a fake clock starting
// at testutil.Epoch and sequential document ids, so the trace of a
// scenario is fully deterministic and can be compared against a golden
// file.
//
// A scenario has three parts:
//
//   - setup: documents written straight to the store, behind the access
//     layer. They are not indexed and not cached.
//   - flow: operations run through the access layer (create, upsert, save,
//     find, find_one, update, delete, advance), each with an optional
//     expect clause.
//   - assertions: checks over the trace and the final store state.
//
// Example:
//
//	name: alias_follows_revision
//	description: a find by token returns the newest revision
//	flow:
//	  - op: create
//	    kind: Item
//	    document: {id: X, scope_id: A, revision: 1, token: sword-001}
//	  - op: create
//	    kind: Item
//	    document: {id: Y, scope_id: A, revision: 2, token: sword-001}
//	  - op: find
//	    kind: Item
//	    filter: {scope_id: A, token: sword-001}
//	    expect: {outcome: resolved, ids: [Y]}
//	assertions:
//	  - type: index_record
//	    kind: Item
//	    scope: A
//	    where: {token: sword-001}
//	    expect: {current_id: Y, current_revision: 2}
package harness
