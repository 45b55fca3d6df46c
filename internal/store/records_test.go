package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
)

var testTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testRecord(kind, scope, pk, currentID string, updatedAt time.Time) index.Record {
	return index.Record{
		ID:              ir.IndexRecordID(kind, scope, pk),
		Kind:            kind,
		ScopeID:         scope,
		PrimaryKey:      pk,
		Keys:            []string{pk},
		CurrentID:       currentID,
		CurrentRevision: 1,
		PK: []index.PKEntry{
			{Field: "token", Type: index.PKString, Value: ir.IRString(pk)},
		},
		UpdatedAt: updatedAt,
	}
}

func TestSaveRecord_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	rec := testRecord("Item", "A", "sword-001", "X", testTime)
	rec.Keys = []string{"sword-001", "Excalibur"}
	rec.PK = append(rec.PK,
		index.PKEntry{Field: "owner", Type: index.PKReference, Value: ir.IRRef("p-1")},
		index.PKEntry{Field: "owner", Type: index.PKString, Value: ir.IRString("p-1")},
		index.PKEntry{Field: "level", Type: index.PKNumber, Value: ir.IRInt(40)},
		index.PKEntry{Field: "soulbound", Type: index.PKBoolean, Value: ir.IRBool(true)},
	)
	rec.Tags = []index.Tag{{Key: "legendary", Weight: 0.5}, {Key: "sword", Weight: 1}}

	require.NoError(t, s.SaveRecord(ctx, rec))

	got, ok, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, ok)

	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
	got.UpdatedAt = rec.UpdatedAt
	assert.Equal(t, rec, got)
}

func TestGetRecord_Missing(t *testing.T) {
	s := createTestStore(t)
	_, ok, err := s.GetRecord(t.Context(), "nope")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSaveRecord_Unlinked(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	rec := testRecord("Item", "", "t", "", testTime)
	require.NoError(t, s.SaveRecord(ctx, rec))

	got, ok, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, got.Linked())
}

func TestSaveRecord_ReplacesSets(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	rec := testRecord("Item", "A", "t", "X", testTime)
	rec.Tags = []index.Tag{{Key: "a", Weight: 1}}
	require.NoError(t, s.SaveRecord(ctx, rec))

	rec.CurrentID = "Y"
	rec.CurrentRevision = 2
	rec.Tags = []index.Tag{{Key: "b", Weight: 0.4}}
	rec.PK = []index.PKEntry{{Field: "token", Type: index.PKString, Value: ir.IRString("t2")}}
	require.NoError(t, s.SaveRecord(ctx, rec))

	got, _, err := s.GetRecord(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "Y", got.CurrentID)
	assert.Equal(t, int64(2), got.CurrentRevision)
	assert.Equal(t, rec.Tags, got.Tags)
	assert.Equal(t, rec.PK, got.PK)
}

func TestSaveRecord_UniqueIdentity(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	rec := testRecord("Item", "A", "t", "X", testTime)
	require.NoError(t, s.SaveRecord(ctx, rec))

	dup := rec
	dup.ID = "different-id"
	assert.Error(t, s.SaveRecord(ctx, dup))
}

func TestSearchRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	older := testRecord("Item", "A", "sword-001", "X", testTime)
	older.Tags = []index.Tag{{Key: "legendary", Weight: 0.5}}
	newer := testRecord("Item", "A", "sword-002", "Y", testTime.Add(time.Minute))
	newer.PK = append(newer.PK, index.PKEntry{Field: "level", Type: index.PKNumber, Value: ir.IRInt(3)})
	newer.Tags = []index.Tag{{Key: "sword", Weight: 1}}
	otherScope := testRecord("Item", "B", "sword-001", "Z", testTime)
	otherKind := testRecord("Weapon", "A", "sword-001", "W", testTime)

	for _, rec := range []index.Record{older, newer, otherScope, otherKind} {
		require.NoError(t, s.SaveRecord(ctx, rec))
	}

	tests := []struct {
		name   string
		search index.Search
		want   []string
	}{
		{
			name:   "kind and scope by recency",
			search: index.Search{Kind: "Item", ScopeID: "A"},
			want:   []string{"Y", "X"},
		},
		{
			name: "pk condition",
			search: index.Search{Kind: "Item", ScopeID: "A", Conditions: []index.PKEntry{
				{Field: "token", Type: index.PKString, Value: ir.IRString("sword-001")},
			}},
			want: []string{"X"},
		},
		{
			name: "all conditions must match",
			search: index.Search{Kind: "Item", ScopeID: "A", Conditions: []index.PKEntry{
				{Field: "token", Type: index.PKString, Value: ir.IRString("sword-001")},
				{Field: "level", Type: index.PKNumber, Value: ir.IRInt(3)},
			}},
			want: nil,
		},
		{
			name: "type must match",
			search: index.Search{Kind: "Item", ScopeID: "A", Conditions: []index.PKEntry{
				{Field: "level", Type: index.PKString, Value: ir.IRString("3")},
			}},
			want: nil,
		},
		{
			name:   "shared tag",
			search: index.Search{Kind: "Item", ScopeID: "A", Tags: []string{"legendary", "epic"}},
			want:   []string{"X"},
		},
		{
			name:   "other scope",
			search: index.Search{Kind: "Item", ScopeID: "B"},
			want:   []string{"Z"},
		},
		{
			name:   "unscoped",
			search: index.Search{Kind: "Item"},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recs, err := s.SearchRecords(ctx, tt.search)
			require.NoError(t, err)
			var ids []string
			for _, r := range recs {
				ids = append(ids, r.CurrentID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestListRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()

	for _, rec := range []index.Record{
		testRecord("Item", "B", "a", "1", testTime),
		testRecord("Item", "A", "b", "2", testTime),
		testRecord("Item", "A", "a", "3", testTime),
		testRecord("Weapon", "A", "a", "4", testTime),
	} {
		require.NoError(t, s.SaveRecord(ctx, rec))
	}

	recs, err := s.ListRecords(ctx, "Item")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "3", recs[0].CurrentID)
	assert.Equal(t, "2", recs[1].CurrentID)
	assert.Equal(t, "1", recs[2].CurrentID)
}

func TestStore_WithResolver(t *testing.T) {
	s := createTestStore(t)
	ctx := t.Context()
	now := testTime
	r := index.NewResolver(s, index.DefaultPolicy(), index.WithNow(func() time.Time {
		now = now.Add(time.Second)
		return now
	}))

	schema := index.DefaultSchema()
	_, _, err := r.IndexDocument(ctx, schema, "Item", item("X", "A", "sword-001", 1))
	require.NoError(t, err)
	_, _, err = r.IndexDocument(ctx, schema, "Item", item("Y", "A", "sword-001", 2))
	require.NoError(t, err)

	res, err := r.Resolve(ctx, index.Query{
		Kind:    "Item",
		ScopeID: "A",
		Conditions: []index.PKEntry{
			{Field: "token", Type: index.PKString, Value: ir.IRString("sword-001")},
		},
	})
	require.NoError(t, err)
	best, ok := res.Best()
	require.True(t, ok)
	assert.Equal(t, "Y", best.Record.CurrentID)
}
