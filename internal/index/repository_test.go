package index

import (
	"context"
	"sort"
	"sync"
)

// memRepo is an in-memory Repository for tests.
type memRepo struct {
	mu      sync.Mutex
	records map[string]Record
	saves   int
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]Record)}
}

func (m *memRepo) GetRecord(_ context.Context, id string) (Record, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[id]
	return rec, ok, nil
}

func (m *memRepo) SaveRecord(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.ID] = rec
	m.saves++
	return nil
}

func (m *memRepo) SearchRecords(_ context.Context, s Search) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Record
	for _, rec := range m.records {
		if rec.Kind != s.Kind || rec.ScopeID != s.ScopeID {
			continue
		}
		if !hasAllConditions(rec, s.Conditions) {
			continue
		}
		if len(s.Tags) > 0 && !sharesTag(rec, s.Tags) {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *memRepo) ListRecords(_ context.Context, kind string) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, rec := range m.records {
		if rec.Kind == kind {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ScopeID != out[j].ScopeID {
			return out[i].ScopeID < out[j].ScopeID
		}
		return out[i].PrimaryKey < out[j].PrimaryKey
	})
	return out, nil
}

func hasAllConditions(rec Record, conds []PKEntry) bool {
	for _, c := range conds {
		found := false
		for _, e := range rec.PK {
			if e.Field == c.Field && e.Type == c.Type && e.Value == c.Value {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sharesTag(rec Record, keys []string) bool {
	for _, t := range rec.Tags {
		for _, k := range keys {
			if t.Key == k {
				return true
			}
		}
	}
	return false
}
