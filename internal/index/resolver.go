package index

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/canon/internal/ir"
)

// Query is a resolution request derived from a read filter.
type Query struct {
	Kind       string
	ScopeID    string
	Conditions []PKEntry
	Tags       []string
}

// Resolution is the ranked outcome of a resolution query.
type Resolution struct {
	Candidates []Candidate

	// LowConfidence is set when tags were queried and the best score is
	// below the policy threshold. Callers must not trust the candidates.
	LowConfidence bool

	// Ambiguous is set when the top two scores are closer than the policy
	// delta. The best candidate is still usable.
	Ambiguous bool

	// Delta is the gap between the top two scores (0 with fewer than two).
	Delta float64
}

// Best returns the top candidate.
func (r Resolution) Best() (Candidate, bool) {
	if len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}

// LinkedIDs returns the current document ids of every linked candidate in rank order.
func (r Resolution) LinkedIDs() []string {
	var ids []string
	seen := make(map[string]bool)
	for _, c := range r.Candidates {
		id := c.Record.CurrentID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

// UpsertResult reports what an upsert did.
type UpsertResult struct {
	Record Record
	// Created is set when no record existed for the identity.
	Created bool
	// Advanced is set when the linked document moved.
	Advanced bool
	// Changed is set when anything was written.
	Changed bool
}

// Resolver resolves logical identities against a Repository and maintains
// its records.
//
// Upsert is a read-then-write without compare-and-swap: two concurrent
// upserts of the same identity can lose an update.
type Resolver struct {
	repo   Repository
	policy Policy
	now    func() time.Time
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithNow sets the wall clock used for UpdatedAt.
func WithNow(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver creates a Resolver.
func NewResolver(repo Repository, policy Policy, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		repo:   repo,
		policy: policy,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Policy returns the resolver's tunables.
func (r *Resolver) Policy() Policy {
	return r.policy
}

// Resolve finds and ranks the records matching q.
func (r *Resolver) Resolve(ctx context.Context, q Query) (Resolution, error) {
	records, err := r.repo.SearchRecords(ctx, Search{
		Kind:       q.Kind,
		ScopeID:    q.ScopeID,
		Conditions: q.Conditions,
		Tags:       q.Tags,
	})
	if err != nil {
		return Resolution{}, fmt.Errorf("search index records: %w", err)
	}

	res := Resolution{Candidates: Rank(records, q.Tags)}
	if len(res.Candidates) == 0 {
		return res, nil
	}

	best := res.Candidates[0].Score
	if len(q.Tags) > 0 && best < r.policy.Threshold-scoreEpsilon {
		res.LowConfidence = true
	}
	if len(res.Candidates) >= 2 {
		res.Delta = best - res.Candidates[1].Score
		if res.Delta < r.policy.Delta-scoreEpsilon {
			res.Ambiguous = true
		}
	}
	return res, nil
}

// Upsert merges rec into the record for its (kind, scope, primary key),
// creating it when absent.
func (r *Resolver) Upsert(ctx context.Context, rec Record) (UpsertResult, error) {
	if rec.PrimaryKey == "" {
		return UpsertResult{}, fmt.Errorf("upsert index record: empty primary key")
	}
	rec = normalize(rec)
	rec.ID = recordID(rec)
	if len(rec.Keys) == 0 || rec.Keys[0] != rec.PrimaryKey {
		rec.Keys = mergeKeys([]string{rec.PrimaryKey}, rec.Keys)
	}

	existing, ok, err := r.repo.GetRecord(ctx, rec.ID)
	if err != nil {
		return UpsertResult{}, fmt.Errorf("load index record: %w", err)
	}

	if !ok {
		rec.UpdatedAt = r.now().UTC()
		if err := r.repo.SaveRecord(ctx, rec); err != nil {
			return UpsertResult{}, fmt.Errorf("save index record: %w", err)
		}
		return UpsertResult{Record: rec, Created: true, Advanced: rec.Linked(), Changed: true}, nil
	}

	merged, changed := Merge(existing, rec)
	if !changed {
		return UpsertResult{Record: existing}, nil
	}

	merged.UpdatedAt = r.now().UTC()
	if err := r.repo.SaveRecord(ctx, merged); err != nil {
		return UpsertResult{}, fmt.Errorf("save index record: %w", err)
	}
	return UpsertResult{
		Record:   merged,
		Advanced: merged.CurrentID != existing.CurrentID || merged.CurrentRevision != existing.CurrentRevision,
		Changed:  true,
	}, nil
}

// IndexDocument extracts the record for doc and upserts it. Returns false
// without touching the repository when doc has no alias to index under.
func (r *Resolver) IndexDocument(ctx context.Context, schema Schema, kind string, doc ir.Document) (UpsertResult, bool, error) {
	rec, ok := Extract(schema, kind, doc)
	if !ok {
		return UpsertResult{}, false, nil
	}
	res, err := r.Upsert(ctx, rec)
	if err != nil {
		return UpsertResult{}, true, err
	}
	return res, true, nil
}
