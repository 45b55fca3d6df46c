package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
)

func itemSchema() Schema {
	return Schema{
		PKFields:  []string{"token", "owner", "level", "soulbound", "id"},
		KeyFields: []string{"token", "name"},
		FieldTypes: map[string]PKType{
			"token": PKString,
			"owner": PKReference,
			"level": PKNumber,
		},
	}
}

func TestExtract_TypedEntries(t *testing.T) {
	doc := ir.Document{
		"id":        ir.IRString("X"),
		"scope_id":  ir.IRString("A"),
		"revision":  ir.IRInt(3),
		"token":     ir.IRString("sword-001"),
		"name":      ir.IRString("Excalibur"),
		"owner":     ir.IRRef("player-1"),
		"level":     ir.IRInt(40),
		"soulbound": ir.IRBool(true),
	}

	rec, ok := Extract(itemSchema(), "Item", doc)
	require.True(t, ok)

	assert.Equal(t, ir.IndexRecordID("Item", "A", "sword-001"), rec.ID)
	assert.Equal(t, "Item", rec.Kind)
	assert.Equal(t, "A", rec.ScopeID)
	assert.Equal(t, []string{"sword-001", "Excalibur"}, rec.Keys)
	assert.Equal(t, "sword-001", rec.PrimaryKey)
	assert.Equal(t, "X", rec.CurrentID)
	assert.Equal(t, int64(3), rec.CurrentRevision)
	assert.Equal(t, []PKEntry{
		{Field: "token", Type: PKString, Value: ir.IRString("sword-001")},
		{Field: "owner", Type: PKReference, Value: ir.IRRef("player-1")},
		{Field: "owner", Type: PKString, Value: ir.IRString("player-1")},
		{Field: "level", Type: PKNumber, Value: ir.IRInt(40)},
		{Field: "soulbound", Type: PKBoolean, Value: ir.IRBool(true)},
	}, rec.PK)
}

func TestExtract_DeclaredReferenceFromString(t *testing.T) {
	doc := ir.Document{
		"token": ir.IRString("t"),
		"owner": ir.IRString("player-1"),
	}

	rec, ok := Extract(itemSchema(), "Item", doc)
	require.True(t, ok)
	assert.Contains(t, rec.PK, PKEntry{Field: "owner", Type: PKReference, Value: ir.IRRef("player-1")})
	assert.Contains(t, rec.PK, PKEntry{Field: "owner", Type: PKString, Value: ir.IRString("player-1")})
}

func TestExtract_NoAlias(t *testing.T) {
	doc := ir.Document{
		"id":    ir.IRString("X"),
		"token": ir.IRString(""),
		"level": ir.IRInt(3),
	}
	_, ok := Extract(itemSchema(), "Item", doc)
	assert.False(t, ok)
}

func TestExtract_DuplicateAliases(t *testing.T) {
	doc := ir.Document{
		"token": ir.IRString("same"),
		"name":  ir.IRString("same"),
	}
	rec, ok := Extract(itemSchema(), "Item", doc)
	require.True(t, ok)
	assert.Equal(t, []string{"same"}, rec.Keys)
}

func TestExtract_DefaultRevision(t *testing.T) {
	for _, rev := range []ir.IRValue{nil, ir.IRString("2"), ir.IRInt(0), ir.IRInt(-4)} {
		doc := ir.Document{"token": ir.IRString("t")}
		if rev != nil {
			doc["revision"] = rev
		}
		rec, ok := Extract(DefaultSchema(), "Item", doc)
		require.True(t, ok)
		assert.Equal(t, int64(1), rec.CurrentRevision, "revision %v", rev)
	}
}

func TestExtract_Tags(t *testing.T) {
	doc := ir.Document{
		"token": ir.IRString("t"),
		"tags": ir.IRArray{
			ir.IRString("legendary"),
			ir.IRObject{"key": ir.IRString("sword"), "weight": ir.IRString("0.5")},
			ir.IRObject{"key": ir.IRString("sword"), "weight": ir.IRString("0.7")},
			ir.IRObject{"key": ir.IRString("heavy"), "weight": ir.IRInt(5)},
			ir.IRObject{"key": ir.IRString("cursed"), "weight": ir.IRString("bogus")},
			ir.IRObject{"weight": ir.IRInt(1)},
			ir.IRInt(3),
		},
	}

	rec, ok := Extract(DefaultSchema(), "Item", doc)
	require.True(t, ok)
	assert.Equal(t, []Tag{
		{Key: "legendary", Weight: 1},
		{Key: "sword", Weight: 0.7},
		{Key: "heavy", Weight: 1},
		{Key: "cursed", Weight: 0},
	}, rec.Tags)
}

func TestConditions(t *testing.T) {
	filter := queryir.All(
		queryir.Eq("id", ir.IRString("X")),
		queryir.Eq("scope_id", ir.IRString("A")),
		queryir.Eq("token", ir.IRString("sword-001")),
		queryir.Eq("owner", ir.IRString("player-1")),
		queryir.Eq("color", ir.IRString("red")),
		queryir.AnyOf("level", ir.IRInt(1), ir.IRInt(2)),
		queryir.Tags("legendary"),
	)

	conds := Conditions(itemSchema(), filter)
	assert.Equal(t, []PKEntry{
		{Field: "token", Type: PKString, Value: ir.IRString("sword-001")},
		{Field: "owner", Type: PKReference, Value: ir.IRRef("player-1")},
	}, conds)
	assert.Equal(t, []string{"legendary"}, TagsOf(filter))
}

func TestConditions_NoneForPlainFilter(t *testing.T) {
	filter := queryir.Eq("color", ir.IRString("red"))
	assert.Empty(t, Conditions(itemSchema(), filter))
	assert.Empty(t, TagsOf(filter))
}
