package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/canon/internal/config"
	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/queryir"
	"github.com/roach88/canon/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s", event.Step, event.Op, event.Kind)
			if event.Outcome != "" {
				fmt.Fprintf(&buf, " -> %s", event.Outcome)
			}
			if len(event.IDs) > 0 {
				fmt.Fprintf(&buf, " %v", event.IDs)
			}
			buf.WriteString("\n")
		}
	}

	return buf.String()
}

// AssertionContext provides what state assertions need.
type AssertionContext struct {
	Store  *store.Store
	Config config.Config
	Ctx    context.Context
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertOutcomeCount:
			err = assertOutcomeCount(result.Trace, a)
		case AssertOutcomeOrder:
			err = assertOutcomeOrder(result.Trace, a)
		case AssertDocumentCount:
			err = assertDocumentCount(actx, a)
		case AssertIndexRecord:
			err = assertIndexRecord(actx, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// assertOutcomeCount checks the outcome appears exactly Count times.
func assertOutcomeCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Outcome == a.Outcome {
			count++
		}
	}

	if count != a.Count {
		return &AssertionError{
			Type:     AssertOutcomeCount,
			Expected: fmt.Sprintf("%d occurrences of %s", a.Count, a.Outcome),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertOutcomeOrder checks the read outcomes contain Outcomes as a
// subsequence. Other reads may come between them.
func assertOutcomeOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(a.Outcomes) {
			break
		}
		if event.IsRead() && event.Outcome == a.Outcomes[next] {
			next++
		}
	}

	if next < len(a.Outcomes) {
		return &AssertionError{
			Type:     AssertOutcomeOrder,
			Expected: fmt.Sprintf("outcomes in order: %v", a.Outcomes),
			Actual:   fmt.Sprintf("missing %s after position %d", a.Outcomes[next], next),
			Trace:    trace,
		}
	}
	return nil
}

// assertDocumentCount counts the stored documents Filter matches,
// bypassing the access layer.
func assertDocumentCount(actx *AssertionContext, a Assertion) error {
	filter, err := queryir.FromMap(a.Filter)
	if err != nil {
		return err
	}
	docs, err := actx.Store.Find(actx.Ctx, a.Kind, filter, 0)
	if err != nil {
		return fmt.Errorf("query documents: %w", err)
	}

	if len(docs) != a.Count {
		return &AssertionError{
			Type:     AssertDocumentCount,
			Expected: fmt.Sprintf("%d %s documents matching %s", a.Count, a.Kind, formatMap(a.Filter)),
			Actual:   fmt.Sprintf("%d documents", len(docs)),
		}
	}
	return nil
}

// assertIndexRecord looks up the record Where selects and compares
// Expect against it (subset match).
func assertIndexRecord(actx *AssertionContext, a Assertion) error {
	filter, err := queryir.FromMap(a.Where)
	if err != nil {
		return err
	}
	conds := index.Conditions(actx.Config.Kind(a.Kind).Schema(), filter)
	if len(conds) == 0 {
		return fmt.Errorf("where %s names no primary-key field of %s", formatMap(a.Where), a.Kind)
	}

	records, err := actx.Store.SearchRecords(actx.Ctx, index.Search{
		Kind:       a.Kind,
		ScopeID:    a.Scope,
		Conditions: conds,
	})
	if err != nil {
		return fmt.Errorf("search index records: %w", err)
	}
	if len(records) == 0 {
		return &AssertionError{
			Type:     AssertIndexRecord,
			Expected: fmt.Sprintf("%s record in scope %q where %s", a.Kind, a.Scope, formatMap(a.Where)),
			Actual:   "record not found",
		}
	}

	rec := records[0]
	actual := map[string]any{
		"current_id":       rec.CurrentID,
		"current_revision": rec.CurrentRevision,
		"primary_key":      rec.PrimaryKey,
		"linked":           rec.Linked(),
		"tags":             len(rec.Tags),
	}
	for _, field := range sortedKeys(a.Expect) {
		want := a.Expect[field]
		got, ok := actual[field]
		if !ok {
			return fmt.Errorf("unknown index record field %q", field)
		}
		if fmt.Sprint(want) != fmt.Sprint(got) {
			return &AssertionError{
				Type:     AssertIndexRecord,
				Expected: fmt.Sprintf("%s = %v", field, want),
				Actual:   fmt.Sprintf("%s = %v", field, got),
			}
		}
	}
	return nil
}

func formatMap(m map[string]any) string {
	parts := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, m[k]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
