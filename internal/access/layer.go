package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/canon/internal/cache"
	"github.com/roach88/canon/internal/config"
	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
	"github.com/roach88/canon/internal/verify"
	"github.com/roach88/canon/internal/writeorder"
)

// ErrUnknownKind is returned by Lookup for kinds absent from a non-empty
// kind configuration.
var ErrUnknownKind = errors.New("unknown entity kind")

// Backend is the raw document store the layer wraps.
// Implemented by store.Store.
type Backend interface {
	Find(ctx context.Context, kind string, filter queryir.Predicate, limit int) ([]ir.Document, error)
	FindOne(ctx context.Context, kind string, filter queryir.Predicate) (ir.Document, bool, error)
	Insert(ctx context.Context, kind string, doc ir.Document) error
	Upsert(ctx context.Context, kind string, doc ir.Document) error
	UpdateOne(ctx context.Context, kind string, filter queryir.Predicate, set ir.IRObject) (ir.Document, bool, error)
	DeleteOne(ctx context.Context, kind string, filter queryir.Predicate) (bool, error)
	BulkWrite(ctx context.Context, kind string, ops []queryir.Write) (queryir.BulkResult, error)
}

// Layer owns the resolver, caches, write-order queue and verification gate
// shared by every Collection.
type Layer struct {
	backend   Backend
	cfg       config.Config
	resolver  *index.Resolver
	caches    *cache.Registry
	queue     *writeorder.Queue
	gate      *verify.Gate
	logger    *slog.Logger
	now       func() time.Time
	ids       IDGenerator
	observers []Observer

	mu          sync.Mutex
	collections map[string]*Collection
}

// Option configures a Layer.
type Option func(*Layer)

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(layer *Layer) {
		layer.logger = l
	}
}

// WithClock sets the wall clock used for cache expiry and index recency.
func WithClock(now func() time.Time) Option {
	return func(layer *Layer) {
		layer.now = now
	}
}

// WithIDGenerator sets the generator for documents created without an id.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(layer *Layer) {
		layer.ids = g
	}
}

// WithObserver adds an observer of read decisions and write events.
func WithObserver(o Observer) Option {
	return func(layer *Layer) {
		layer.observers = append(layer.observers, o)
	}
}

// WithGate shares a verification gate. Default: a fresh advisory gate.
func WithGate(g *verify.Gate) Option {
	return func(layer *Layer) {
		layer.gate = g
	}
}

// New creates a Layer over backend, keeping Index Records in repo.
func New(backend Backend, repo index.Repository, cfg config.Config, opts ...Option) *Layer {
	l := &Layer{
		backend:     backend,
		cfg:         cfg,
		queue:       writeorder.New(),
		gate:        verify.NewGate(),
		logger:      slog.Default(),
		now:         time.Now,
		ids:         UUIDv7Generator{},
		collections: make(map[string]*Collection),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.resolver = index.NewResolver(repo, cfg.Policy(), index.WithNow(l.now))
	l.caches = cache.NewRegistry(cfg.CacheOptions(), l.now)
	return l
}

// Collection returns the collection of kind. Unconfigured kinds use the
// default field configuration.
func (l *Layer) Collection(kind string) *Collection {
	l.mu.Lock()
	defer l.mu.Unlock()

	if c, ok := l.collections[kind]; ok {
		return c
	}
	c := &Collection{
		layer:  l,
		kind:   kind,
		schema: l.cfg.Kind(kind).Schema(),
		cache:  l.caches.For(kind),
	}
	l.collections[kind] = c
	return c
}

// Lookup returns the collection of kind, rejecting kinds that are not
// configured when the configuration names any kinds.
func (l *Layer) Lookup(kind string) (*Collection, error) {
	if kind == "" {
		return nil, fmt.Errorf("%w: empty kind", ErrUnknownKind)
	}
	if len(l.cfg.Kinds) > 0 {
		if _, ok := l.cfg.Kinds[kind]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
		}
	}
	return l.Collection(kind), nil
}

// RegisterVerifier installs the write verifier. Only one may be registered.
func (l *Layer) RegisterVerifier(v verify.Verifier) error {
	return l.gate.Register(v)
}

// Queue returns the write-order queue.
func (l *Layer) Queue() *writeorder.Queue {
	return l.queue
}

// Resolver returns the index resolver.
func (l *Layer) Resolver() *index.Resolver {
	return l.resolver
}

func (l *Layer) observeRead(d Decision) {
	for _, o := range l.observers {
		o.ObserveRead(d)
	}
}

func (l *Layer) observeWrite(e WriteEvent) {
	for _, o := range l.observers {
		o.ObserveWrite(e)
	}
}
