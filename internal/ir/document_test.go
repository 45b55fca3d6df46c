package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRevisionDefaults(t *testing.T) {
	tests := []struct {
		name string
		doc  Document
		want int64
	}{
		{"unset", Document{}, 1},
		{"zero", Document{FieldRevision: IRInt(0)}, 1},
		{"negative", Document{FieldRevision: IRInt(-4)}, 1},
		{"string", Document{FieldRevision: IRString("7")}, 1},
		{"valid", Document{FieldRevision: IRInt(7)}, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.Revision())
		})
	}
}

func TestDocumentIdentityAcceptsRefs(t *testing.T) {
	doc := Document{FieldID: IRRef("X"), FieldScope: IRString("A")}
	assert.Equal(t, "X", doc.ID())
	assert.Equal(t, "A", doc.Scope())

	assert.Equal(t, "", Document{FieldID: IRInt(5)}.ID())
}

func TestDocumentNormalize(t *testing.T) {
	doc := Document{
		FieldID: IRString("X"),
		"owner": IRRef("p-1"),
	}
	assert.Equal(t, map[string]any{"id": "X", "owner": "p-1"}, doc.Normalize())
	assert.Nil(t, Document(nil).Normalize())
}

func TestIndexRecordIDDeterministic(t *testing.T) {
	id1 := IndexRecordID("Item", "A", "sword-001")
	id2 := IndexRecordID("Item", "A", "sword-001")
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")

	assert.NotEqual(t, id1, IndexRecordID("Item", "B", "sword-001"))
	assert.NotEqual(t, id1, IndexRecordID("Weapon", "A", "sword-001"))
	assert.NotEqual(t, id1, IndexRecordID("Item", "A", "sword-002"))
}

func TestDocumentDigestIgnoresKeyOrderAndNulls(t *testing.T) {
	a := Document{"id": IRString("X"), "n": IRInt(1), "gone": IRNull{}}
	b := Document{"n": IRInt(1), "id": IRString("X")}

	da, err := DocumentDigest(a)
	require.NoError(t, err)
	db, err := DocumentDigest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)

	dc, err := DocumentDigest(Document{"id": IRString("Y"), "n": IRInt(1)})
	require.NoError(t, err)
	assert.NotEqual(t, da, dc)
}
