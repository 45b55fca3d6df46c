package harness

// TraceEvent is one flow step as the access layer saw it.
type TraceEvent struct {
	Step int    `json:"step"`
	Op   string `json:"op"`
	Kind string `json:"kind,omitempty"`

	// Outcome is the read pipeline branch. Empty for writes.
	Outcome    string   `json:"outcome,omitempty"`
	Candidates int      `json:"candidates,omitempty"`
	Ambiguous  bool     `json:"ambiguous,omitempty"`
	Backfilled int      `json:"backfilled,omitempty"`
	Indexed    bool     `json:"indexed,omitempty"`
	Rejected   bool     `json:"rejected,omitempty"`
	IDs        []string `json:"ids,omitempty"`
	Error      string   `json:"error,omitempty"`
}

// IsRead reports whether the event came from a find or find_one step.
func (e TraceEvent) IsRead() bool {
	return e.Op == OpFind || e.Op == OpFindOne
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per flow step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors holds expectation and assertion failures.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(e TraceEvent) {
	r.Trace = append(r.Trace, e)
}
