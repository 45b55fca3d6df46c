package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/index"
	"github.com/roach88/canon/internal/ir"
	"github.com/roach88/canon/internal/queryir"
)

// RebuildResult is the JSON payload of index rebuild.
type RebuildResult struct {
	Kind      string `json:"kind"`
	Documents int    `json:"documents"`
	Skipped   int    `json:"skipped"`
	Changed   int    `json:"changed"`
}

// NewIndexCommand creates the index command group.
func NewIndexCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index",
		Short: "Inspect and rebuild Index Records",
		Long: `Inspect and rebuild the Index Records that map logical identities to
their newest physical documents.`,
	}

	cmd.AddCommand(newIndexListCommand(rootOpts))
	cmd.AddCommand(newIndexShowCommand(rootOpts))
	cmd.AddCommand(newIndexRebuildCommand(rootOpts))
	return cmd
}

func newIndexListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list <kind>",
		Short: "List the Index Records of a kind",
		Example: `  canon index list Item
  canon index list Item --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := openSession(opts, cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			recs, err := s.store.ListRecords(cmd.Context(), args[0])
			if err != nil {
				return failStore(f, "index list", err)
			}
			lines := make([]any, len(recs))
			for i, rec := range recs {
				lines[i] = rec
			}
			return f.Lines(recs, lines)
		},
	}
}

func newIndexShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <kind> <scope> <primary-key>",
		Short: "Show one Index Record",
		Long: `Show the Index Record of a logical identity.

The primary key is the alias value the record was created under, usually
the first key field of the first document written for the identity.`,
		Example:       `  canon index show Item A sword-001`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := openSession(opts, cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			id := ir.IndexRecordID(args[0], args[1], args[2])
			f.VerboseLog("Looking up index record %s", id)
			rec, ok, err := s.store.GetRecord(cmd.Context(), id)
			if err != nil {
				return failStore(f, "index show", err)
			}
			if !ok {
				return f.Fail(ExitFailure, ErrCodeNotFound, "no index record", nil)
			}
			return f.Lines(rec, []any{rec})
		},
	}
}

func newIndexRebuildCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <kind>",
		Short: "Index every stored document of a kind",
		Long: `Index every stored document of a kind.

Rebuild catches the index up with writes that bypassed it (update,
delete and bulk writes). Records are only ever advanced, so rebuilding
twice is a no-op.`,
		Example:       `  canon index rebuild Item`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRebuild(opts, args[0], cmd)
		},
	}
}

func runRebuild(opts *RootOptions, kind string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)
	s, err := openSession(opts, cmd, false)
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.collection(f, kind); err != nil {
		return err
	}

	ctx := cmd.Context()
	docs, err := s.store.Find(ctx, kind, queryir.All(), 0)
	if err != nil {
		return failStore(f, "index rebuild", err)
	}

	schema := s.cfg.Kind(kind).Schema()
	result := RebuildResult{Kind: kind, Documents: len(docs)}
	for _, doc := range docs {
		res, indexed, err := s.layer.Resolver().IndexDocument(ctx, schema, kind, doc)
		if err != nil {
			return failStore(f, "index rebuild", err)
		}
		if !indexed {
			result.Skipped++
			continue
		}
		if res.Changed {
			result.Changed++
		}
		logRebuilt(f, doc, res)
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "Indexed %d %s document(s): %d changed, %d skipped\n",
		result.Documents-result.Skipped, kind, result.Changed, result.Skipped)
	return nil
}

func logRebuilt(f *OutputFormatter, doc ir.Document, res index.UpsertResult) {
	if res.Changed {
		f.VerboseLog("  %s -> %s/%s rev %d", doc.ID(), res.Record.ScopeID, res.Record.PrimaryKey, res.Record.CurrentRevision)
	}
}

// NewKindsCommand creates the kinds command.
func NewKindsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "kinds",
		Short:         "List the document kinds in the database",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			s, err := openSession(opts, cmd, false)
			if err != nil {
				return err
			}
			defer s.Close()

			kinds, err := s.store.Kinds(cmd.Context())
			if err != nil {
				return failStore(f, "kinds", err)
			}
			if f.Format == "json" {
				return f.Success(kinds)
			}
			for _, k := range kinds {
				fmt.Fprintln(f.Writer, k)
			}
			return nil
		},
	}
}
