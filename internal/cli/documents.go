package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/access"
	"github.com/roach88/canon/internal/ir"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Create bool // insert only; fail if the id exists
}

// FindOptions holds flags for the find and find-one commands.
type FindOptions struct {
	*RootOptions
	Limit      int
	Normalized bool
	Explain    bool
	Metrics    bool
}

// FindResult is the JSON payload of find and find-one.
type FindResult struct {
	Documents []any            `json:"documents"`
	Decision  *access.Decision `json:"decision,omitempty"`
}

// WriteResult is the JSON payload of put, update and delete.
type WriteResult struct {
	Document ir.Document `json:"document,omitempty"`
	Matched  bool        `json:"matched"`
	Indexed  bool        `json:"indexed,omitempty"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <kind> <document-json>",
		Short: "Write a document and index it",
		Long: `Write a document through the access layer.

The document is upserted by id (or inserted with --create), indexed under
its primary-key fields and cached. Documents without an id get a UUIDv7.

Examples:
  canon put Item '{"id":"X","scope_id":"A","revision":1,"token":"sword-001"}'
  canon put Item --create '{"scope_id":"A","token":"shield-001","tags":["iron"]}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Create, "create", false, "insert only; fail if the id exists")
	return cmd
}

func runPut(opts *PutOptions, kind, raw string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	doc, err := ir.UnmarshalDocument([]byte(raw))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidDocument, "invalid document", err)
	}

	s, err := openSession(opts.RootOptions, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.collection(f, kind)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var written ir.Document
	if opts.Create {
		written, err = c.Create(ctx, doc)
	} else {
		written, err = c.Save(ctx, doc)
	}
	if err != nil {
		return failStore(f, "put", err)
	}

	result := WriteResult{Document: written, Matched: true}
	if writes := s.recorder.Writes(); len(writes) > 0 {
		result.Indexed = writes[len(writes)-1].Indexed
	}
	f.VerboseLog("Wrote %s %s (indexed=%t)", kind, written.ID(), result.Indexed)
	return f.Lines(result, []any{written})
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <kind> [filter-json]",
		Short: "Find documents, resolving aliases through the index",
		Long: `Find documents matching a JSON filter.

Filters on primary-key fields or tags are resolved to the newest physical
documents through the index; filters on ids are served from the cache
when it is enabled. Text output prints one document per line.

Filter shape:
  {"token": "sword-001"}               equality
  {"id": ["X", "Y"]}                   any of
  {"owner": {"$ref": "p-1"}}           reference equality
  {"tags": ["legendary", "sword"]}     tag ranking

Examples:
  canon find Item '{"scope_id":"A","token":"sword-001"}'
  canon find Item '{"scope_id":"A","tags":["sword"]}' --explain
  canon find Item --limit 10 --metrics`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args, false, cmd)
		},
	}

	addFindFlags(cmd, opts)
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of documents (0 = no limit)")
	return cmd
}

// NewFindOneCommand creates the find-one command.
func NewFindOneCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find-one <kind> [filter-json]",
		Short: "Find the best matching document",
		Long: `Find the single best document matching a JSON filter.

Exits 1 when nothing matches.

Example:
  canon find-one Item '{"scope_id":"A","token":"sword-001"}'`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(opts, args, true, cmd)
		},
	}

	addFindFlags(cmd, opts)
	return cmd
}

func addFindFlags(cmd *cobra.Command, opts *FindOptions) {
	cmd.Flags().BoolVar(&opts.Normalized, "normalized", false, "print references as plain ids")
	cmd.Flags().BoolVar(&opts.Explain, "explain", false, "report how the read was resolved")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print Prometheus metrics after the result")
}

func runFind(opts *FindOptions, args []string, single bool, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	kind := args[0]

	raw := ""
	if len(args) > 1 {
		raw = args[1]
	}
	filter, err := parseFilter(f, raw)
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions, cmd, opts.Metrics)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.collection(f, kind)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var docs []ir.Document
	if single {
		doc, ok, err := c.FindOne(ctx, filter)
		if err != nil {
			return failStore(f, "find-one", err)
		}
		if ok {
			docs = []ir.Document{doc}
		}
	} else {
		docs, err = c.Find(ctx, filter, access.Limit(opts.Limit))
		if err != nil {
			return failStore(f, "find", err)
		}
	}

	result := FindResult{Documents: make([]any, len(docs))}
	for i, doc := range docs {
		if opts.Normalized {
			result.Documents[i] = doc.Normalize()
		} else {
			result.Documents[i] = doc
		}
	}
	decision := s.lastDecision()
	if opts.Explain || f.Format == "json" {
		result.Decision = decision
	}

	if single && len(docs) == 0 {
		explain(f, opts, decision)
		return f.Fail(ExitFailure, ErrCodeNotFound, "no document matched", nil)
	}

	if err := f.Lines(result, result.Documents); err != nil {
		return err
	}
	explain(f, opts, decision)
	return s.writeMetrics(f)
}

// explain prints the decision to stderr in text mode.
func explain(f *OutputFormatter, opts *FindOptions, d *access.Decision) {
	if !opts.Explain || f.Format == "json" || d == nil {
		return
	}
	w := f.GetErrWriter()
	fmt.Fprintf(w, "outcome=%s candidates=%d", d.Outcome, d.Candidates)
	if d.Ambiguous {
		fmt.Fprint(w, " ambiguous=true")
	}
	if d.BestScore != 0 {
		fmt.Fprintf(w, " best_score=%g", d.BestScore)
	}
	if len(d.ResolvedIDs) > 0 {
		fmt.Fprintf(w, " resolved=%v", d.ResolvedIDs)
	}
	if d.Backfilled > 0 {
		fmt.Fprintf(w, " backfilled=%d", d.Backfilled)
	}
	fmt.Fprintln(w)
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update <kind> <filter-json> <set-json>",
		Short: "Set fields on the first matching document",
		Long: `Set fields on the first document matching a filter.

Updates go straight to the store: the index and cache are not refreshed.

Example:
  canon update Item '{"id":"X"}' '{"color":"red"}'`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(rootOpts, args[0], args[1], args[2], cmd)
		},
	}
	return cmd
}

func runUpdate(opts *RootOptions, kind, rawFilter, rawSet string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	filter, err := parseFilter(f, rawFilter)
	if err != nil {
		return err
	}
	set, err := ir.UnmarshalDocument([]byte(rawSet))
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeInvalidDocument, "invalid set", err)
	}

	s, err := openSession(opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.collection(f, kind)
	if err != nil {
		return err
	}

	doc, ok, err := c.UpdateOne(cmd.Context(), filter, ir.IRObject(set))
	if err != nil {
		return failStore(f, "update", err)
	}
	if !ok {
		return f.Fail(ExitFailure, ErrCodeNotFound, "no document matched", nil)
	}
	return f.Lines(WriteResult{Document: doc, Matched: true}, []any{doc})
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <kind> <filter-json>",
		Short: "Delete the first matching document",
		Long: `Delete the first document matching a filter.

Index records pointing at the document are kept; reads through them fall
back to the original filter.

Example:
  canon delete Item '{"id":"X"}'`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}
	return cmd
}

func runDelete(opts *RootOptions, kind, rawFilter string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	filter, err := parseFilter(f, rawFilter)
	if err != nil {
		return err
	}

	s, err := openSession(opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	c, err := s.collection(f, kind)
	if err != nil {
		return err
	}

	ok, err := c.DeleteOne(cmd.Context(), filter)
	if err != nil {
		return failStore(f, "delete", err)
	}
	if !ok {
		return f.Fail(ExitFailure, ErrCodeNotFound, "no document matched", nil)
	}
	return f.Success(WriteResult{Matched: true})
}
