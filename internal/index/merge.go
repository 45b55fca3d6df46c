package index

import "github.com/roach88/canon/internal/ir"

// Merge folds incoming into existing and reports whether anything changed.
//
// The linked document advances only on a strictly greater revision, except
// that an unlinked record is linked by the first incoming document whose
// revision is not lower than the recorded one.
func Merge(existing, incoming Record) (Record, bool) {
	merged := existing
	merged.Keys = mergeKeys(existing.Keys, incoming.Keys)
	merged.PK = dedupePK(append(append([]PKEntry(nil), existing.PK...), incoming.PK...))
	merged.Tags = mergeTags(existing.Tags, incoming.Tags)

	if incoming.CurrentID != "" {
		switch {
		case incoming.CurrentRevision > existing.CurrentRevision:
			merged.CurrentID = incoming.CurrentID
			merged.CurrentRevision = incoming.CurrentRevision
		case existing.CurrentID == "" && incoming.CurrentRevision >= existing.CurrentRevision:
			merged.CurrentID = incoming.CurrentID
			merged.CurrentRevision = incoming.CurrentRevision
		}
	}

	return merged, !sameContent(existing, merged)
}

// normalize dedupes and clamps a record before its first save.
func normalize(rec Record) Record {
	rec.Keys = mergeKeys(nil, rec.Keys)
	rec.PK = dedupePK(rec.PK)
	rec.Tags = dedupeTags(rec.Tags)
	if rec.CurrentRevision < ir.DefaultRevision {
		rec.CurrentRevision = ir.DefaultRevision
	}
	return rec
}

func mergeKeys(existing, incoming []string) []string {
	out := make([]string, 0, len(existing)+len(incoming))
	seen := make(map[string]bool, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, k := range list {
			if k == "" || seen[k] {
				continue
			}
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

type pkSlot struct {
	field string
	typ   PKType
}

// dedupePK keeps one entry per (field, type); later entries win but keep
// the position of the first occurrence.
func dedupePK(entries []PKEntry) []PKEntry {
	if len(entries) == 0 {
		return nil
	}
	pos := make(map[pkSlot]int, len(entries))
	out := make([]PKEntry, 0, len(entries))
	for _, e := range entries {
		slot := pkSlot{e.Field, e.Type}
		if i, ok := pos[slot]; ok {
			out[i] = e
			continue
		}
		pos[slot] = len(out)
		out = append(out, e)
	}
	return out
}

func mergeTags(existing, incoming []Tag) []Tag {
	return dedupeTags(append(append([]Tag(nil), existing...), incoming...))
}

// dedupeTags keeps one tag per key with the maximum weight.
func dedupeTags(tags []Tag) []Tag {
	if len(tags) == 0 {
		return nil
	}
	pos := make(map[string]int, len(tags))
	out := make([]Tag, 0, len(tags))
	for _, t := range tags {
		if t.Key == "" {
			continue
		}
		t.Weight = clampWeight(t.Weight)
		if i, ok := pos[t.Key]; ok {
			if t.Weight > out[i].Weight {
				out[i].Weight = t.Weight
			}
			continue
		}
		pos[t.Key] = len(out)
		out = append(out, t)
	}
	return out
}

func sameContent(a, b Record) bool {
	if a.CurrentID != b.CurrentID || a.CurrentRevision != b.CurrentRevision {
		return false
	}
	if len(a.Keys) != len(b.Keys) || len(a.PK) != len(b.PK) || len(a.Tags) != len(b.Tags) {
		return false
	}
	for i := range a.Keys {
		if a.Keys[i] != b.Keys[i] {
			return false
		}
	}
	for i := range a.Tags {
		if a.Tags[i] != b.Tags[i] {
			return false
		}
	}
	for i := range a.PK {
		if a.PK[i].Field != b.PK[i].Field || a.PK[i].Type != b.PK[i].Type || a.PK[i].Value != b.PK[i].Value {
			return false
		}
	}
	return true
}
