// Package access is the data-access layer between application code and
// the raw document store.
//
// Reads go through an interception pipeline that redirects lookups by
// logical identity (pk fields, weighted tags) to the current physical
// document, consults a per-kind TTL cache, and backfills the index from raw
// results. Resolution problems never fail a read: the pipeline falls back
// to the original raw query.
//
// Writes pass through the raw store. Create and Upsert also index the
// document and refresh the cache. Save serializes upserts per document
// through the write-order queue, and the proof-gated entry points consult
// the verification gate before touching the store.
package access
