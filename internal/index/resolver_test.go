package index

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/ir"
)

// tickingClock returns a clock that advances one second per call.
func tickingClock() func() time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(time.Second)
		return now
	}
}

func newTestResolver() (*Resolver, *memRepo) {
	repo := newMemRepo()
	return NewResolver(repo, DefaultPolicy(), WithNow(tickingClock())), repo
}

func tokenCondition(token string) []PKEntry {
	return []PKEntry{{Field: "token", Type: PKString, Value: ir.IRString(token)}}
}

func TestResolver_RevisionMonotonicity(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver()
	schema := itemSchema()

	first := ir.Document{"id": ir.IRString("X"), "scope_id": ir.IRString("A"), "revision": ir.IRInt(1), "token": ir.IRString("sword-001")}
	second := ir.Document{"id": ir.IRString("Y"), "scope_id": ir.IRString("A"), "revision": ir.IRInt(2), "token": ir.IRString("sword-001")}

	res, ok, err := r.IndexDocument(ctx, schema, "Item", first)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, res.Created)

	res, _, err = r.IndexDocument(ctx, schema, "Item", second)
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, "Y", res.Record.CurrentID)

	// A stale rev1 replay does not move it back.
	_, _, err = r.IndexDocument(ctx, schema, "Item", first)
	require.NoError(t, err)

	got, err := r.Resolve(ctx, Query{Kind: "Item", ScopeID: "A", Conditions: tokenCondition("sword-001")})
	require.NoError(t, err)
	best, ok := got.Best()
	require.True(t, ok)
	assert.Equal(t, "Y", best.Record.CurrentID)
	assert.Equal(t, int64(2), best.Record.CurrentRevision)
}

func TestResolver_Idempotence(t *testing.T) {
	ctx := context.Background()
	r, repo := newTestResolver()

	doc := ir.Document{
		"id":    ir.IRString("X"),
		"token": ir.IRString("sword-001"),
		"tags":  ir.IRArray{ir.IRString("legendary")},
	}

	first, _, err := r.IndexDocument(ctx, itemSchema(), "Item", doc)
	require.NoError(t, err)
	second, _, err := r.IndexDocument(ctx, itemSchema(), "Item", doc)
	require.NoError(t, err)

	assert.False(t, second.Changed)
	assert.False(t, second.Advanced)
	assert.Equal(t, 1, repo.saves)

	stored, ok, err := repo.GetRecord(ctx, first.Record.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "X", stored.CurrentID)
	assert.Equal(t, int64(1), stored.CurrentRevision)
	assert.Len(t, stored.PK, 1)
	assert.Len(t, stored.Tags, 1)
	assert.Equal(t, first.Record.UpdatedAt, stored.UpdatedAt)
}

func TestResolver_ScopeIsolation(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestResolver()

	for _, scope := range []string{"A", "B"} {
		_, _, err := r.IndexDocument(ctx, itemSchema(), "Item", ir.Document{
			"id":       ir.IRString("doc-" + scope),
			"scope_id": ir.IRString(scope),
			"token":    ir.IRString("sword-001"),
		})
		require.NoError(t, err)
	}

	got, err := r.Resolve(ctx, Query{Kind: "Item", ScopeID: "B", Conditions: tokenCondition("sword-001")})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.Equal(t, "doc-B", got.Candidates[0].Record.CurrentID)

	got, err = r.Resolve(ctx, Query{Kind: "Weapon", ScopeID: "B", Conditions: tokenCondition("sword-001")})
	require.NoError(t, err)
	assert.Empty(t, got.Candidates)
}

func seedTagged(t *testing.T, r *Resolver, key, id string, tags ...Tag) {
	t.Helper()
	_, err := r.Upsert(context.Background(), Record{
		Kind:            "Item",
		PrimaryKey:      key,
		CurrentID:       id,
		CurrentRevision: 1,
		Tags:            tags,
	})
	require.NoError(t, err)
}

func TestResolver_TagScoringNotAmbiguous(t *testing.T) {
	r, _ := newTestResolver()
	seedTagged(t, r, "c1", "C1", Tag{Key: "legendary", Weight: 0.5}, Tag{Key: "sword", Weight: 0.5})
	seedTagged(t, r, "c2", "C2", Tag{Key: "legendary", Weight: 0.6})

	got, err := r.Resolve(context.Background(), Query{Kind: "Item", Tags: []string{"legendary", "sword"}})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 2)

	assert.Equal(t, "C1", got.Candidates[0].Record.CurrentID)
	assert.InDelta(t, 1.0, got.Candidates[0].Score, 1e-9)
	assert.InDelta(t, 0.6, got.Candidates[1].Score, 1e-9)
	assert.InDelta(t, 0.4, got.Delta, 1e-9)
	assert.False(t, got.Ambiguous)
	assert.False(t, got.LowConfidence)
}

func TestResolver_Ambiguous(t *testing.T) {
	r, _ := newTestResolver()
	seedTagged(t, r, "c1", "C1", Tag{Key: "legendary", Weight: 0.7})
	seedTagged(t, r, "c2", "C2", Tag{Key: "legendary", Weight: 0.6})

	got, err := r.Resolve(context.Background(), Query{Kind: "Item", Tags: []string{"legendary"}})
	require.NoError(t, err)
	assert.True(t, got.Ambiguous)
	best, _ := got.Best()
	assert.Equal(t, "C1", best.Record.CurrentID)
}

func TestResolver_ExactDeltaIsNotAmbiguous(t *testing.T) {
	r, _ := newTestResolver()
	seedTagged(t, r, "c1", "C1", Tag{Key: "legendary", Weight: 0.7})
	seedTagged(t, r, "c2", "C2", Tag{Key: "legendary", Weight: 0.5})

	got, err := r.Resolve(context.Background(), Query{Kind: "Item", Tags: []string{"legendary"}})
	require.NoError(t, err)
	assert.False(t, got.Ambiguous)
}

func TestResolver_LowConfidence(t *testing.T) {
	r, _ := newTestResolver()
	seedTagged(t, r, "c1", "C1", Tag{Key: "obscure", Weight: 0.1})

	got, err := r.Resolve(context.Background(), Query{Kind: "Item", Tags: []string{"obscure"}})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.True(t, got.LowConfidence)
}

func TestResolver_NoTagsNeverLowConfidence(t *testing.T) {
	r, _ := newTestResolver()
	seedTagged(t, r, "c1", "C1")

	got, err := r.Resolve(context.Background(), Query{Kind: "Item"})
	require.NoError(t, err)
	require.Len(t, got.Candidates, 1)
	assert.False(t, got.LowConfidence)
	assert.False(t, got.Ambiguous)
}

func TestResolver_LinkedIDs(t *testing.T) {
	res := Resolution{Candidates: []Candidate{
		{Record: Record{CurrentID: "a"}},
		{Record: Record{}},
		{Record: Record{CurrentID: "b"}},
		{Record: Record{CurrentID: "a"}},
	}}
	assert.Equal(t, []string{"a", "b"}, res.LinkedIDs())
}

func TestResolver_UpsertRequiresPrimaryKey(t *testing.T) {
	r, _ := newTestResolver()
	_, err := r.Upsert(context.Background(), Record{Kind: "Item"})
	assert.Error(t, err)
}

func TestResolver_IndexDocumentWithoutAlias(t *testing.T) {
	r, repo := newTestResolver()
	_, ok, err := r.IndexDocument(context.Background(), itemSchema(), "Item", ir.Document{"id": ir.IRString("X")})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, repo.saves)
}
