package access

import (
	"context"
	"fmt"

	"github.com/roach88/canon/internal/cache"
	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
	"github.com/roach88/canon/internal/verify"
	"github.com/roach88/canon/internal/writeorder"
)

// Collection is the resolution-aware view of one entity kind.
// Method shapes mirror Backend without the kind argument.
type Collection struct {
	layer  *Layer
	kind   string
	schema index.Schema
	cache  *cache.Cache
}

// FindOption configures Find.
type FindOption func(*findOptions)

type findOptions struct {
	limit int
}

// Limit caps the number of documents Find returns. Zero means no cap.
func Limit(n int) FindOption {
	return func(o *findOptions) {
		o.limit = n
	}
}

// Kind returns the entity kind.
func (c *Collection) Kind() string {
	return c.kind
}

// Find returns the documents matching filter, resolving alias filters
// through the index.
func (c *Collection) Find(ctx context.Context, filter queryir.Predicate, opts ...FindOption) ([]ir.Document, error) {
	var o findOptions
	for _, opt := range opts {
		opt(&o)
	}
	if err := queryir.Validate(filter); err != nil {
		return nil, err
	}
	docs, err := c.intercept(ctx, read{op: OpFind, filter: filter, limit: o.limit})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", c.kind, err)
	}
	return docs, nil
}

// FindOne returns the first document matching filter.
func (c *Collection) FindOne(ctx context.Context, filter queryir.Predicate) (ir.Document, bool, error) {
	if err := queryir.Validate(filter); err != nil {
		return nil, false, err
	}
	docs, err := c.intercept(ctx, read{op: OpFindOne, filter: filter, limit: 1})
	if err != nil {
		return nil, false, fmt.Errorf("find one %s: %w", c.kind, err)
	}
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0], true, nil
}

// FindNormalized is Find returning plain Go values with references as ids.
func (c *Collection) FindNormalized(ctx context.Context, filter queryir.Predicate, opts ...FindOption) ([]map[string]any, error) {
	docs, err := c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(docs))
	for i, doc := range docs {
		out[i] = doc.Normalize()
	}
	return out, nil
}

// FindOneNormalized is FindOne returning plain Go values.
func (c *Collection) FindOneNormalized(ctx context.Context, filter queryir.Predicate) (map[string]any, bool, error) {
	doc, ok, err := c.FindOne(ctx, filter)
	if err != nil || !ok {
		return nil, ok, err
	}
	return doc.Normalize(), true, nil
}

// Create inserts doc, assigning an id when it has none, then indexes it
// and caches it. Returns the stored document.
func (c *Collection) Create(ctx context.Context, doc ir.Document) (ir.Document, error) {
	doc = c.withID(doc)
	ev := WriteEvent{Kind: c.kind, Operation: OpCreate}
	if err := c.layer.backend.Insert(ctx, c.kind, doc); err != nil {
		ev.Error = err.Error()
		c.layer.observeWrite(ev)
		return nil, fmt.Errorf("create %s: %w", c.kind, err)
	}
	ev.Indexed = c.afterWrite(ctx, doc)
	c.layer.observeWrite(ev)
	return doc, nil
}

// Upsert inserts doc or replaces the stored document with the same id,
// then indexes it and caches it.
func (c *Collection) Upsert(ctx context.Context, doc ir.Document) (ir.Document, error) {
	doc = c.withID(doc)
	ev := WriteEvent{Kind: c.kind, Operation: OpUpsert}
	if err := c.layer.backend.Upsert(ctx, c.kind, doc); err != nil {
		ev.Error = err.Error()
		c.layer.observeWrite(ev)
		return nil, fmt.Errorf("upsert %s: %w", c.kind, err)
	}
	ev.Indexed = c.afterWrite(ctx, doc)
	c.layer.observeWrite(ev)
	return doc, nil
}

// UpdateOne sets fields on the first document matching filter.
// The cache and index are not updated; later reads may see the previous
// snapshot until its entry expires.
func (c *Collection) UpdateOne(ctx context.Context, filter queryir.Predicate, set ir.IRObject) (ir.Document, bool, error) {
	doc, ok, err := c.layer.backend.UpdateOne(ctx, c.kind, filter, set)
	c.observeRaw(OpUpdate, err)
	if err != nil {
		return nil, false, fmt.Errorf("update %s: %w", c.kind, err)
	}
	return doc, ok, nil
}

// DeleteOne removes the first document matching filter.
// Index Records pointing at it are left in place.
func (c *Collection) DeleteOne(ctx context.Context, filter queryir.Predicate) (bool, error) {
	ok, err := c.layer.backend.DeleteOne(ctx, c.kind, filter)
	c.observeRaw(OpDelete, err)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", c.kind, err)
	}
	return ok, nil
}

// BulkWrite passes ops straight to the backend.
func (c *Collection) BulkWrite(ctx context.Context, ops []queryir.Write) (queryir.BulkResult, error) {
	res, err := c.layer.backend.BulkWrite(ctx, c.kind, ops)
	c.observeRaw(OpBulk, err)
	if err != nil {
		return queryir.BulkResult{}, fmt.Errorf("bulk write %s: %w", c.kind, err)
	}
	return res, nil
}

// Save upserts doc behind every earlier Save or Enqueue for the same id.
func (c *Collection) Save(ctx context.Context, doc ir.Document) (ir.Document, error) {
	doc = c.withID(doc)
	var saved ir.Document
	err := c.layer.queue.Do(ctx, c.queueKey(doc.ID()), func(ctx context.Context) error {
		var err error
		saved, err = c.Upsert(ctx, doc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// Enqueue schedules fn after every earlier write queued for id.
func (c *Collection) Enqueue(ctx context.Context, id string, fn writeorder.Func) *writeorder.Pending {
	return c.layer.queue.Enqueue(ctx, c.queueKey(id), fn)
}

// CreateWithProof runs Create after the gate approves it.
func (c *Collection) CreateWithProof(ctx context.Context, proof verify.Proof, doc ir.Document) (ir.Document, error) {
	doc = c.withID(doc)
	digest, err := ir.DocumentDigest(doc)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", c.kind, err)
	}
	m := verify.Mutation{Kind: c.kind, Operation: verify.OpCreate, Document: doc, Digest: digest}
	if err := c.check(ctx, proof, m, OpCreate); err != nil {
		return nil, err
	}
	return c.Create(ctx, doc)
}

// UpdateWithProof runs UpdateOne after the gate approves it.
func (c *Collection) UpdateWithProof(ctx context.Context, proof verify.Proof, filter queryir.Predicate, set ir.IRObject) (ir.Document, bool, error) {
	m := verify.Mutation{Kind: c.kind, Operation: verify.OpUpdate, Filter: filter, Update: set}
	if err := c.check(ctx, proof, m, OpUpdate); err != nil {
		return nil, false, err
	}
	return c.UpdateOne(ctx, filter, set)
}

func (c *Collection) check(ctx context.Context, proof verify.Proof, m verify.Mutation, op Operation) error {
	gate := c.layer.gate
	if !gate.Enforcing() {
		return nil
	}
	err := gate.Check(ctx, proof, m)
	if err == nil {
		return nil
	}
	ev := WriteEvent{Kind: c.kind, Operation: op, Gated: true, Error: err.Error()}
	ev.Rejected = verify.IsRejected(err)
	c.layer.observeWrite(ev)
	c.layer.logger.Warn("mutation rejected",
		"kind", c.kind,
		"operation", string(op),
		"wallet", proof.WalletAddress,
		"error", err,
	)
	return err
}

// afterWrite indexes doc and refreshes its cache entry. Index failures are
// logged; the next read that misses the index backfills it.
func (c *Collection) afterWrite(ctx context.Context, doc ir.Document) bool {
	c.cache.Set(doc.Scope(), doc.ID(), doc)

	res, ok, err := c.layer.resolver.IndexDocument(ctx, c.schema, c.kind, doc)
	if err != nil {
		c.layer.logger.Warn("index update failed",
			"kind", c.kind,
			"id", doc.ID(),
			"error", err,
		)
		return false
	}
	return ok && (res.Created || res.Advanced)
}

func (c *Collection) observeRaw(op Operation, err error) {
	ev := WriteEvent{Kind: c.kind, Operation: op}
	if err != nil {
		ev.Error = err.Error()
	}
	c.layer.observeWrite(ev)
}

func (c *Collection) withID(doc ir.Document) ir.Document {
	if doc.ID() != "" {
		return doc
	}
	out := doc.Clone()
	if out == nil {
		out = ir.Document{}
	}
	out[ir.FieldID] = ir.IRString(c.layer.ids.Generate())
	return out
}

func (c *Collection) queueKey(id string) string {
	return c.kind + "/" + id
}
