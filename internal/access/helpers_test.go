package access

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/config"
	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/store"
	"github.com/roach88/canon/internal/testutil"
)

type testEnv struct {
	layer    *Layer
	store    *store.Store
	clock    *testutil.FakeClock
	recorder *Recorder
}

func cachedItems() config.Config {
	cfg := config.Default()
	cfg.Kinds = map[string]config.KindConfig{
		"Item": {Cache: config.CacheConfig{Enabled: true, TTLMillis: 60000}},
	}
	return cfg
}

// createTestEnv opens a sqlite store in a temp directory and layers over
// it with a fake clock, sequential ids and a recorder.
func createTestEnv(t *testing.T, cfg config.Config, opts ...Option) *testEnv {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return createTestEnvWithRepo(t, s, s, cfg, opts...)
}

func createTestEnvWithRepo(t *testing.T, s *store.Store, repo index.Repository, cfg config.Config, opts ...Option) *testEnv {
	t.Helper()
	env := &testEnv{
		store:    s,
		clock:    testutil.NewFakeClock(testutil.Epoch),
		recorder: &Recorder{},
	}
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(env.clock.Now),
		WithIDGenerator(testutil.NewSequentialIDs("item")),
		WithObserver(env.recorder),
	}
	env.layer = New(s, repo, cfg, append(base, opts...)...)
	return env
}

func (e *testEnv) lastOutcome(t *testing.T) Outcome {
	t.Helper()
	d, ok := e.recorder.Last()
	require.True(t, ok, "no read recorded")
	return d.Outcome
}

// item creates a test Item document.
func item(id, scope, token string, revision int64) ir.Document {
	doc := ir.Document{
		"revision": ir.IRInt(revision),
		"token":    ir.IRString(token),
	}
	if id != "" {
		doc["id"] = ir.IRString(id)
	}
	if scope != "" {
		doc["scope_id"] = ir.IRString(scope)
	}
	return doc
}

func ids(docs []ir.Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID()
	}
	return out
}

var errIndexDown = errors.New("index unavailable")

// brokenRepo fails or panics on every search.
type brokenRepo struct {
	index.Repository
	panics bool
}

func (b brokenRepo) SearchRecords(context.Context, index.Search) ([]index.Record, error) {
	if b.panics {
		panic("search exploded")
	}
	return nil, errIndexDown
}
