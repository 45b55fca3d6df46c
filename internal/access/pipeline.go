package access

import (
	"context"
	"fmt"

	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
)

// read is one intercepted read.
type read struct {
	op     Operation
	filter queryir.Predicate
	limit  int
}

func (r read) single() bool {
	return r.op == OpFindOne
}

// intercept runs the read pipeline and reports its decision.
func (c *Collection) intercept(ctx context.Context, r read) ([]ir.Document, error) {
	d := Decision{Kind: c.kind, Operation: r.op}
	docs, err := c.pipeline(ctx, r, &d)
	if err != nil {
		d.Error = err.Error()
	}
	c.layer.observeRead(d)
	return docs, err
}

func (c *Collection) pipeline(ctx context.Context, r read, d *Decision) ([]ir.Document, error) {
	if id, ok := queryir.IdentityOnly(r.filter); ok {
		return c.identityRead(ctx, r, id, d)
	}

	conds := index.Conditions(c.schema, r.filter)
	tags := index.TagsOf(r.filter)
	if len(conds) == 0 && len(tags) == 0 {
		d.Outcome = OutcomePassthrough
		return c.raw(ctx, r.filter, r.limit)
	}

	docs, err := c.resolveSafely(ctx, r, conds, tags, d)
	if err == nil {
		return docs, nil
	}

	c.layer.logger.Warn("resolution failed, falling back to raw query",
		"kind", c.kind,
		"operation", string(r.op),
		"error", err,
	)
	*d = Decision{Kind: c.kind, Operation: r.op, Outcome: OutcomeFallback}
	return c.raw(ctx, r.filter, r.limit)
}

// identityRead serves id-only filters from cache when every id hits.
func (c *Collection) identityRead(ctx context.Context, r read, id queryir.Identity, d *Decision) ([]ir.Document, error) {
	if docs, ok := c.cachedIdentity(r, id); ok {
		d.Outcome = OutcomeIdentityHit
		return docs, nil
	}

	d.Outcome = OutcomeIdentityMiss
	docs, err := c.raw(ctx, r.filter, r.limit)
	if err != nil {
		return nil, err
	}
	c.cache.SetAll(docs)
	return docs, nil
}

// cachedIdentity looks ids up under the filter's scope. Entries are keyed
// by each document's own scope, so an unscoped filter only hits documents
// stored without one.
func (c *Collection) cachedIdentity(r read, id queryir.Identity) ([]ir.Document, bool) {
	if r.single() {
		// Which of several ids findOne returns depends on store order.
		if len(id.IDs) != 1 {
			return nil, false
		}
		doc, ok := c.cache.Get(id.Scope, id.IDs[0])
		if !ok {
			return nil, false
		}
		return []ir.Document{doc}, true
	}

	docs, ok := c.cache.GetAll(id.Scope, id.IDs)
	if !ok {
		return nil, false
	}
	return truncate(docs, r.limit), true
}

// resolveSafely runs the index-backed steps, converting panics into errors
// so a resolution bug can only ever cost a fallback.
func (c *Collection) resolveSafely(ctx context.Context, r read, conds []index.PKEntry, tags []string, d *Decision) (docs []ir.Document, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			docs = nil
			err = fmt.Errorf("resolution panic: %v", rec)
		}
	}()
	return c.resolve(ctx, r, conds, tags, d)
}

func (c *Collection) resolve(ctx context.Context, r read, conds []index.PKEntry, tags []string, d *Decision) ([]ir.Document, error) {
	scope := queryir.ScopeOf(r.filter)
	res, err := c.layer.resolver.Resolve(ctx, index.Query{
		Kind:       c.kind,
		ScopeID:    scope,
		Conditions: conds,
		Tags:       tags,
	})
	if err != nil {
		return nil, err
	}

	d.Candidates = len(res.Candidates)
	d.Ambiguous = res.Ambiguous
	best, ok := res.Best()
	if !ok {
		d.Outcome = OutcomeNoCandidates
		return c.rawAndBackfill(ctx, r, d)
	}
	d.BestScore = best.Score

	if res.LowConfidence {
		c.layer.logger.Warn("low-confidence resolution, using raw query",
			"kind", c.kind,
			"tags", tags,
			"best_score", best.Score,
			"threshold", c.layer.resolver.Policy().Threshold,
		)
		d.Outcome = OutcomeLowConfidence
		return c.rawAndBackfill(ctx, r, d)
	}

	if res.Ambiguous {
		c.layer.logger.Warn("ambiguous resolution, using best candidate",
			"kind", c.kind,
			"candidates", len(res.Candidates),
			"best_score", best.Score,
			"delta", res.Delta,
			"primary_key", best.Record.PrimaryKey,
		)
	}

	var ids []string
	if r.single() {
		if best.Record.Linked() {
			ids = []string{best.Record.CurrentID}
		}
	} else {
		ids = res.LinkedIDs()
	}
	if len(ids) == 0 {
		d.Outcome = OutcomeUnlinked
		return c.rawAndBackfill(ctx, r, d)
	}
	d.ResolvedIDs = ids

	if docs, ok := c.cachedIdentity(r, queryir.Identity{Scope: scope, IDs: ids}); ok {
		d.Outcome = OutcomeResolvedHit
		return docs, nil
	}

	docs, err := c.raw(ctx, queryir.ByIdentity(scope, ids...), r.limit)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		// The index points at documents that no longer match.
		d.Outcome = OutcomeStale
		return c.rawAndBackfill(ctx, r, d)
	}

	d.Outcome = OutcomeResolved
	c.cache.SetAll(docs)
	return docs, nil
}

func (c *Collection) raw(ctx context.Context, filter queryir.Predicate, limit int) ([]ir.Document, error) {
	return c.layer.backend.Find(ctx, c.kind, filter, limit)
}

// rawAndBackfill runs the original filter and indexes what it returned.
func (c *Collection) rawAndBackfill(ctx context.Context, r read, d *Decision) ([]ir.Document, error) {
	docs, err := c.raw(ctx, r.filter, r.limit)
	if err != nil {
		return nil, err
	}
	d.Backfilled = c.backfill(ctx, docs)
	return docs, nil
}

// backfill indexes docs. Failures are logged; a read never fails because
// the index could not be updated.
func (c *Collection) backfill(ctx context.Context, docs []ir.Document) int {
	n := 0
	for _, doc := range docs {
		res, ok, err := c.layer.resolver.IndexDocument(ctx, c.schema, c.kind, doc)
		if err != nil {
			c.layer.logger.Warn("index backfill failed",
				"kind", c.kind,
				"id", doc.ID(),
				"error", err,
			)
			continue
		}
		if ok && res.Changed {
			n++
		}
	}
	return n
}

func truncate(docs []ir.Document, limit int) []ir.Document {
	if limit > 0 && len(docs) > limit {
		return docs[:limit]
	}
	return docs
}
