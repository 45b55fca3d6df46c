package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/roach88/canon/internal/access"
	"github.com/roach88/canon/internal/config"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
	"github.com/roach88/canon/internal/store"
	"github.com/roach88/canon/internal/testutil"
)

// Harness is the scenario execution engine.
// It runs scenarios with a fake clock and sequential document ids.
type Harness struct {
	store    *store.Store
	layer    *access.Layer
	cfg      config.Config
	clock    *testutil.FakeClock
	recorder *access.Recorder
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext executes a scenario, reporting every decision and write to
// the extra observers as well.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Load configuration and open the store
// 2. Write setup documents straight to the store
// 3. Execute flow steps through the access layer, checking expect clauses
// 4. Evaluate assertions against the trace and final state
func RunContext(ctx context.Context, scenario *Scenario, observers ...access.Observer) (*Result, error) {
	cfg, err := scenario.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:    st,
		cfg:      cfg,
		clock:    testutil.NewFakeClock(testutil.Epoch),
		recorder: &access.Recorder{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	opts := []access.Option{
		access.WithLogger(h.logger),
		access.WithClock(h.clock.Now),
		access.WithIDGenerator(testutil.NewSequentialIDs("doc")),
		access.WithObserver(h.recorder),
	}
	for _, o := range observers {
		opts = append(opts, access.WithObserver(o))
	}
	h.layer = access.New(st, st, cfg, opts...)

	if err := h.executeSetup(ctx, scenario.Setup); err != nil {
		return nil, fmt.Errorf("failed to execute setup: %w", err)
	}

	result := NewResult()
	if err := h.executeFlow(ctx, scenario.Flow, result); err != nil {
		return nil, fmt.Errorf("failed to execute flow: %w", err)
	}

	actx := &AssertionContext{
		Store:  st,
		Config: cfg,
		Ctx:    ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// executeSetup writes setup documents without indexing or caching them.
func (h *Harness) executeSetup(ctx context.Context, setup []SetupStep) error {
	for i, step := range setup {
		doc, err := toDocument(step.Document)
		if err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
		if err := h.store.Upsert(ctx, step.Kind, doc); err != nil {
			return fmt.Errorf("setup step %d: %w", i, err)
		}
	}
	return nil
}

// executeFlow runs all flow steps and validates expect clauses.
// Operation failures are recorded in the trace; only malformed steps
// abort the run.
func (h *Harness) executeFlow(ctx context.Context, flow []FlowStep, result *Result) error {
	for i, step := range flow {
		h.recorder.Reset()

		event := TraceEvent{Step: i, Op: step.Op, Kind: step.Kind}
		if step.Op == OpAdvance {
			h.clock.Advance(time.Duration(step.AdvanceMillis) * time.Millisecond)
			result.AddTrace(event)
			continue
		}

		ids, err := h.execute(ctx, step)
		if err != nil {
			var bad *stepError
			if errors.As(err, &bad) {
				return fmt.Errorf("flow step %d: %w", i, bad.err)
			}
			event.Error = err.Error()
		}
		event.IDs = ids
		h.annotate(&event)
		result.AddTrace(event)

		for _, msg := range checkExpect(step.Expect, event) {
			result.AddError(fmt.Sprintf("flow[%d] %s %s: %s", i, step.Op, step.Kind, msg))
		}

		h.logger.Info("flow step completed",
			"step", i,
			"op", step.Op,
			"kind", step.Kind,
			"outcome", event.Outcome,
			"ids", ids,
		)
	}
	return nil
}

// execute runs one step and returns the ids of the documents it returned
// or wrote.
func (h *Harness) execute(ctx context.Context, step FlowStep) ([]string, error) {
	c := h.layer.Collection(step.Kind)

	switch step.Op {
	case OpCreate, OpUpsert, OpSave:
		doc, err := toDocument(step.Document)
		if err != nil {
			return nil, &stepError{err}
		}
		var written ir.Document
		switch step.Op {
		case OpCreate:
			written, err = c.Create(ctx, doc)
		case OpUpsert:
			written, err = c.Upsert(ctx, doc)
		default:
			written, err = c.Save(ctx, doc)
		}
		if err != nil {
			return nil, err
		}
		return []string{written.ID()}, nil

	case OpFind:
		filter, err := queryir.FromMap(step.Filter)
		if err != nil {
			return nil, err
		}
		docs, err := c.Find(ctx, filter, access.Limit(step.Limit))
		if err != nil {
			return nil, err
		}
		return docIDs(docs), nil

	case OpFindOne:
		filter, err := queryir.FromMap(step.Filter)
		if err != nil {
			return nil, err
		}
		doc, ok, err := c.FindOne(ctx, filter)
		if err != nil || !ok {
			return nil, err
		}
		return []string{doc.ID()}, nil

	case OpUpdate:
		filter, err := queryir.FromMap(step.Filter)
		if err != nil {
			return nil, err
		}
		set, err := toObject(step.Set)
		if err != nil {
			return nil, &stepError{err}
		}
		doc, ok, err := c.UpdateOne(ctx, filter, set)
		if err != nil || !ok {
			return nil, err
		}
		return []string{doc.ID()}, nil

	case OpDelete:
		filter, err := queryir.FromMap(step.Filter)
		if err != nil {
			return nil, err
		}
		_, err = c.DeleteOne(ctx, filter)
		return nil, err
	}
	return nil, &stepError{fmt.Errorf("unknown op %q", step.Op)}
}

// annotate copies what the observers saw during the step into event.
func (h *Harness) annotate(event *TraceEvent) {
	if d, ok := h.recorder.Last(); ok {
		event.Outcome = string(d.Outcome)
		event.Candidates = d.Candidates
		event.Ambiguous = d.Ambiguous
		event.Backfilled = d.Backfilled
	}
	writes := h.recorder.Writes()
	if len(writes) > 0 {
		w := writes[len(writes)-1]
		event.Indexed = w.Indexed
		event.Rejected = w.Rejected
	}
}

func checkExpect(expect *ExpectClause, event TraceEvent) []string {
	var errs []string
	if expect == nil || !expect.Error {
		if event.Error != "" {
			errs = append(errs, fmt.Sprintf("unexpected error: %s", event.Error))
		}
	}
	if expect == nil {
		return errs
	}

	if expect.Error && event.Error == "" {
		errs = append(errs, "expected an error, got none")
	}
	if expect.Outcome != "" && expect.Outcome != event.Outcome {
		errs = append(errs, fmt.Sprintf("expected outcome %s, got %s", expect.Outcome, event.Outcome))
	}
	if expect.IDs != nil && !slices.Equal(expect.IDs, event.IDs) {
		errs = append(errs, fmt.Sprintf("expected ids %v, got %v", expect.IDs, event.IDs))
	}
	if expect.Count != nil && *expect.Count != len(event.IDs) {
		errs = append(errs, fmt.Sprintf("expected %d documents, got %d", *expect.Count, len(event.IDs)))
	}
	if expect.Ambiguous != nil && *expect.Ambiguous != event.Ambiguous {
		errs = append(errs, fmt.Sprintf("expected ambiguous=%t, got %t", *expect.Ambiguous, event.Ambiguous))
	}
	if expect.Indexed != nil && *expect.Indexed != event.Indexed {
		errs = append(errs, fmt.Sprintf("expected indexed=%t, got %t", *expect.Indexed, event.Indexed))
	}
	return errs
}

// stepError marks a step the harness could not even attempt.
type stepError struct {
	err error
}

func (e *stepError) Error() string {
	return e.err.Error()
}

// toDocument converts a YAML-decoded map into a document.
func toDocument(m map[string]any) (ir.Document, error) {
	if m == nil {
		return ir.Document{}, nil
	}
	return ir.DocumentFromGo(m)
}

func toObject(m map[string]any) (ir.IRObject, error) {
	if m == nil {
		return ir.IRObject{}, nil
	}
	v, err := ir.FromGo(m)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(ir.IRObject)
	if !ok {
		return nil, fmt.Errorf("expected an object, got %T", v)
	}
	return obj, nil
}

func docIDs(docs []ir.Document) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID()
	}
	return ids
}
