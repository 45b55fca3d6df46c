package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/roach88/canon/internal/access"
	"github.com/roach88/canon/internal/config"
	"github.com/roach88/canon/internal/metrics"
	"github.com/roach88/canon/internal/queryir"
	"github.com/roach88/canon/internal/store"
)

// session is an open store with an access layer over it.
type session struct {
	store    *store.Store
	layer    *access.Layer
	cfg      config.Config
	recorder *access.Recorder
	registry *prometheus.Registry
	logger   *slog.Logger
}

// openSession opens the database and builds the access layer.
// withMetrics registers Prometheus collectors on a private registry.
func openSession(opts *RootOptions, cmd *cobra.Command, withMetrics bool) (*session, error) {
	f := opts.formatter(cmd)

	settings := opts.Settings
	if opts.Verbose {
		settings.LogLevel = "debug"
	}
	logger, err := settings.Logger(cmd.ErrOrStderr())
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "invalid log settings", err)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeConfig, "failed to load config", err)
	}

	if opts.Database == "" {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "no database path", nil)
	}
	f.VerboseLog("Opening database %s", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeStore, "failed to open database", err)
	}

	s := &session{
		store:    st,
		cfg:      cfg,
		recorder: &access.Recorder{},
		logger:   logger,
	}
	layerOpts := []access.Option{
		access.WithLogger(logger),
		access.WithObserver(s.recorder),
	}
	if withMetrics {
		s.registry = prometheus.NewRegistry()
		layerOpts = append(layerOpts, access.WithObserver(metrics.New(s.registry)))
	}
	s.layer = access.New(st, st, cfg, layerOpts...)
	return s, nil
}

func (s *session) Close() error {
	return s.store.Close()
}

// collection looks up kind, reporting unknown kinds through f.
func (s *session) collection(f *OutputFormatter, kind string) (*access.Collection, error) {
	c, err := s.layer.Lookup(kind)
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeUnknownKind, "unknown kind", err)
	}
	return c, nil
}

// lastDecision returns the decision of the most recent read.
func (s *session) lastDecision() *access.Decision {
	d, ok := s.recorder.Last()
	if !ok {
		return nil
	}
	return &d
}

// writeMetrics prints the collected metrics after the command output.
func (s *session) writeMetrics(f *OutputFormatter) error {
	if s.registry == nil {
		return nil
	}
	w := f.Writer
	if f.Format == "json" {
		w = f.GetErrWriter()
	}
	return metrics.WriteText(w, s.registry)
}

// parseFilter parses a JSON filter argument. An empty string matches all.
func parseFilter(f *OutputFormatter, raw string) (queryir.Predicate, error) {
	p, err := queryir.ParseJSON([]byte(raw))
	if err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeInvalidFilter, "invalid filter", err)
	}
	if err := queryir.Validate(p); err != nil {
		return nil, f.Fail(ExitCommandError, ErrCodeInvalidFilter, "invalid filter", err)
	}
	return p, nil
}

// failStore reports an operation error, classifying the known ones.
func failStore(f *OutputFormatter, op string, err error) error {
	var ve *queryir.ValidationError
	switch {
	case errors.As(err, &ve):
		return f.Fail(ExitCommandError, ErrCodeInvalidFilter, "invalid filter", err)
	case errors.Is(err, store.ErrDuplicateID):
		return f.Fail(ExitFailure, ErrCodeDuplicateID, fmt.Sprintf("%s failed", op), err)
	case errors.Is(err, store.ErrMissingID), errors.Is(err, store.ErrImmutableID):
		return f.Fail(ExitCommandError, ErrCodeInvalidDocument, fmt.Sprintf("%s failed", op), err)
	default:
		return f.Fail(ExitFailure, ErrCodeStore, fmt.Sprintf("%s failed", op), err)
	}
}
