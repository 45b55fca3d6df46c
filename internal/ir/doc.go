// Package ir provides the document value model for canon.
//
// This package contains value types only. All other internal packages
// import ir; ir imports nothing internal.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - References to other documents are a distinct type (IRRef), not strings
//   - Reserved document fields: id, scope_id, revision, tags
//   - Content-addressed ids use RFC 8785 canonical JSON and SHA-256
package ir
