package cli

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/brickbook/internal/catalogue"
	"github.com/roach88/brickbook/internal/config"
	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/store"
)

// session is an open database and the catalogue service on top of it.
type session struct {
	config  config.Config
	logger  *slog.Logger
	store   *store.Store
	service *catalogue.Service
}

// openSession loads configuration, opens the database and builds the
// catalogue service. database overrides the configured path when non-empty.
func (o *RootOptions) openSession(cmd *cobra.Command, database string) (*session, error) {
	cfg, err := o.loadConfig(database)
	if err != nil {
		return nil, err
	}
	logger := o.newLogger(cmd.ErrOrStderr(), cfg)

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	svc := catalogue.New(st,
		catalogue.WithLikeRetries(cfg.LikeRetries),
		catalogue.WithLogCacheSize(cfg.LogCacheSize),
		catalogue.WithLogger(logger),
	)
	return &session{config: cfg, logger: logger, store: st, service: svc}, nil
}

func (s *session) Close() {
	if err := s.store.Close(); err != nil {
		s.logger.Error("error closing database", "error", err)
	}
}

// addDatabaseFlag registers --db, which overrides the configured database.
func addDatabaseFlag(cmd *cobra.Command, target *string) {
	cmd.Flags().StringVar(target, "db", "", "path to SQLite database (overrides config)")
}

// parseID parses a positional record or log id.
func parseID(name, arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid %s %q: must be a positive integer", name, arg))
	}
	return id, nil
}

// parseUser parses the --user flag.
func parseUser(arg string) (ir.Principal, error) {
	p, err := ir.ParsePrincipal(arg)
	if err != nil {
		return ir.Principal{}, WrapExitError(ExitCommandError, "invalid --user", err)
	}
	return p, nil
}
