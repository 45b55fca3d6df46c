package access

import "sync"

// Operation names a collection operation.
type Operation string

const (
	OpFind    Operation = "find"
	OpFindOne Operation = "find_one"
	OpCreate  Operation = "create"
	OpUpsert  Operation = "upsert"
	OpUpdate  Operation = "update"
	OpDelete  Operation = "delete"
	OpBulk    Operation = "bulk_write"
	OpSave    Operation = "save"
)

// Outcome is the branch the read pipeline took.
type Outcome string

const (
	// OutcomePassthrough: no pk condition and no tags; raw query untouched.
	OutcomePassthrough Outcome = "passthrough"
	// OutcomeIdentityHit: identity-only filter served from cache.
	OutcomeIdentityHit Outcome = "identity_cache_hit"
	// OutcomeIdentityMiss: identity-only filter, raw query, cache populated.
	OutcomeIdentityMiss Outcome = "identity_cache_miss"
	// OutcomeNoCandidates: nothing resolved; raw query and backfill.
	OutcomeNoCandidates Outcome = "no_candidates"
	// OutcomeLowConfidence: best tag score below threshold; raw query and backfill.
	OutcomeLowConfidence Outcome = "low_confidence"
	// OutcomeUnlinked: no linked candidate; raw query and backfill.
	OutcomeUnlinked Outcome = "unlinked"
	// OutcomeResolvedHit: rewritten to concrete ids and served from cache.
	OutcomeResolvedHit Outcome = "resolved_cache_hit"
	// OutcomeResolved: rewritten to concrete ids, raw query, cache populated.
	OutcomeResolved Outcome = "resolved"
	// OutcomeStale: rewritten ids matched nothing; raw query and backfill.
	OutcomeStale Outcome = "stale"
	// OutcomeFallback: resolution failed; original raw query.
	OutcomeFallback Outcome = "fallback"
)

// CacheHit reports whether the outcome was served from cache.
func (o Outcome) CacheHit() bool {
	return o == OutcomeIdentityHit || o == OutcomeResolvedHit
}

// CacheMiss reports whether the outcome looked in the cache and missed.
func (o Outcome) CacheMiss() bool {
	return o == OutcomeIdentityMiss || o == OutcomeResolved
}

// Decision records how one read was served.
type Decision struct {
	Kind       string    `json:"kind" yaml:"kind"`
	Operation  Operation `json:"operation" yaml:"operation"`
	Outcome    Outcome   `json:"outcome" yaml:"outcome"`
	Candidates int       `json:"candidates" yaml:"candidates"`
	Ambiguous  bool      `json:"ambiguous,omitempty" yaml:"ambiguous,omitempty"`
	BestScore  float64   `json:"best_score,omitempty" yaml:"best_score,omitempty"`
	// ResolvedIDs are the concrete ids the filter was rewritten to.
	ResolvedIDs []string `json:"resolved_ids,omitempty" yaml:"resolved_ids,omitempty"`
	// Backfilled counts index records created or advanced from raw results.
	Backfilled int    `json:"backfilled,omitempty" yaml:"backfilled,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// WriteEvent records one mutation.
type WriteEvent struct {
	Kind      string    `json:"kind" yaml:"kind"`
	Operation Operation `json:"operation" yaml:"operation"`
	// Indexed is set when the mutation created or advanced an Index Record.
	Indexed bool `json:"indexed,omitempty" yaml:"indexed,omitempty"`
	// Gated is set when the mutation went through an enforcing gate.
	Gated bool `json:"gated,omitempty" yaml:"gated,omitempty"`
	// Rejected is set when the gate refused the mutation.
	Rejected bool   `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	Error    string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Observer receives read decisions and write events.
// Observers are called synchronously and must not block.
type Observer interface {
	ObserveRead(Decision)
	ObserveWrite(WriteEvent)
}

// Recorder is an Observer that keeps everything it sees. Used by the
// scenario harness and tests.
type Recorder struct {
	mu     sync.Mutex
	reads  []Decision
	writes []WriteEvent
}

func (r *Recorder) ObserveRead(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = append(r.reads, d)
}

func (r *Recorder) ObserveWrite(e WriteEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes = append(r.writes, e)
}

// Reads returns a copy of the recorded decisions.
func (r *Recorder) Reads() []Decision {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Decision(nil), r.reads...)
}

// Writes returns a copy of the recorded write events.
func (r *Recorder) Writes() []WriteEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]WriteEvent(nil), r.writes...)
}

// Last returns the most recent decision.
func (r *Recorder) Last() (Decision, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.reads) == 0 {
		return Decision{}, false
	}
	return r.reads[len(r.reads)-1], true
}

// Reset drops everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reads = nil
	r.writes = nil
}
