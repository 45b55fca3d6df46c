package cli

import (
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/config"
	"github.com/roach88/canon/internal/ir"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Database and Config default to CANON_DB and CANON_CONFIG.
	Database string
	Config   string

	// Settings are the environment settings read at startup.
	Settings config.Settings
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the canon CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "canon",
		Short: "canon - entity resolution over a document store",
		Long: `canon resolves logical entities to their newest physical document.

Reads by alias (primary-key fields or weighted tags) are rewritten to
concrete document ids through an index of logical identities, and
identity reads are served from a per-kind TTL cache.`,
		Version:       ir.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			f := opts.formatter(cmd)
			if !isValidFormat(opts.Format) {
				return f.Fail(ExitCommandError, ErrCodeGeneric, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats), nil)
			}

			settings, err := config.LoadSettings()
			if err != nil {
				return f.Fail(ExitCommandError, ErrCodeConfig, "invalid environment", err)
			}
			opts.Settings = settings
			if !cmd.Flags().Changed("db") {
				opts.Database = settings.DBPath
			}
			if !cmd.Flags().Changed("config") {
				opts.Config = settings.ConfigPath
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite database (default $CANON_DB or canon.db)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to YAML or CUE configuration (default $CANON_CONFIG)")

	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewFindCommand(opts))
	cmd.AddCommand(NewFindOneCommand(opts))
	cmd.AddCommand(NewUpdateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewIndexCommand(opts))
	cmd.AddCommand(NewKindsCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}
