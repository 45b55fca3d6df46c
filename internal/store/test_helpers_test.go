package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/canon/internal/ir"
)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// item creates a test Item document.
func item(id, scope, token string, revision int64) ir.Document {
	doc := ir.Document{
		"id":       ir.IRString(id),
		"revision": ir.IRInt(revision),
		"token":    ir.IRString(token),
	}
	if scope != "" {
		doc["scope_id"] = ir.IRString(scope)
	}
	return doc
}
