package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool         `json:"valid"`
	Kinds []KindReport `json:"kinds,omitempty"`
	Field string       `json:"field,omitempty"`
	Error string       `json:"error,omitempty"`
}

// KindReport summarizes one configured kind.
type KindReport struct {
	Name     string   `json:"name"`
	PKFields []string `json:"pk_fields,omitempty"`
	Keys     []string `json:"key_fields,omitempty"`
	Cached   bool     `json:"cached"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a resolution config without opening a database",
		Long: `Validate a YAML or CUE resolution config.

Checks field names, pk field types, threshold bounds and cache settings.

Exit codes:
  0 - Config is valid
  1 - Config is invalid
  2 - Command error (missing file, etc.)

Examples:
  canon validate ./canon.yaml
  canon validate ./canon.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	f := opts.formatter(cmd)

	if _, err := os.Stat(path); err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, fmt.Sprintf("config file not found: %s", path), err)
	}

	f.VerboseLog("Validating %s", path)
	cfg, err := config.Load(path)
	if err != nil {
		return outputValidationError(f, err)
	}

	result := ValidationResult{Valid: true}
	for _, name := range cfg.KindNames() {
		k := cfg.Kind(name)
		result.Kinds = append(result.Kinds, KindReport{
			Name:     name,
			PKFields: k.PKFields,
			Keys:     k.KeyFields,
			Cached:   k.Cache.Enabled,
		})
	}

	if f.Format == "json" {
		return f.Success(result)
	}
	fmt.Fprintf(f.Writer, "✓ Config valid (%d kind(s))\n", len(result.Kinds))
	for _, k := range result.Kinds {
		fmt.Fprintf(f.Writer, "  %s pk=%v keys=%v cached=%t\n", k.Name, k.PKFields, k.Keys, k.Cached)
	}
	return nil
}

// outputValidationError reports an invalid config. Validation failures
// exit 1; parse failures are command errors.
func outputValidationError(f *OutputFormatter, err error) error {
	result := ValidationResult{Valid: false, Error: err.Error()}

	var ve *config.ValidationError
	exitCode := ExitCommandError
	if errors.As(err, &ve) {
		result.Field = ve.Field
		exitCode = ExitFailure
	}

	if f.Format == "json" {
		if encErr := f.encode(CLIResponse{
			Status: "error",
			Data:   result,
			Error:  &CLIError{Code: ErrCodeConfig, Message: err.Error()},
		}); encErr != nil {
			return encErr
		}
		return WrapExitError(exitCode, "config invalid", err)
	}

	fmt.Fprintln(f.Writer, "✗ Config invalid")
	if result.Field != "" {
		fmt.Fprintf(f.Writer, "  field: %s\n", result.Field)
	}
	fmt.Fprintf(f.Writer, "  %s\n", err)
	return WrapExitError(exitCode, "config invalid", err)
}
