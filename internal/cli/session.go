package cli

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/learnsync/internal/config"
	"github.com/roach88/learnsync/internal/engine"
	"github.com/roach88/learnsync/internal/offline"
	"github.com/roach88/learnsync/internal/quota"
	"github.com/roach88/learnsync/internal/remote"
	"github.com/roach88/learnsync/internal/store"
)

// session is an initialized service plus the output plumbing of one command.
type session struct {
	cfg *config.Config
	svc *offline.Service
	out *OutputFormatter
	log io.Closer
}

// openSession loads configuration, installs the logger and initializes the
// offline service. Callers must close the session.
func openSession(cmd *cobra.Command, opts *RootOptions) (*session, error) {
	out := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, out.Fail(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Store.Path = opts.Database
	}
	if opts.LogFile != "" {
		cfg.Log.File = opts.LogFile
	}
	if opts.LogFormat != "" {
		cfg.Log.Format = opts.LogFormat
	}

	logger, logCloser := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())
	slog.SetDefault(logger)

	svcOpts, err := serviceOptions(cfg)
	if err != nil {
		_ = logCloser.Close()
		return nil, out.Fail(ExitCommandError, "failed to configure service", err)
	}
	svc := offline.New(cfg.Store.Path, append(svcOpts, opts.ServiceOptions...)...)

	if err := svc.InitializeOfflineMode(cmd.Context()); err != nil {
		_ = logCloser.Close()
		return nil, out.Fail(ExitCommandError, "failed to open database", err)
	}
	out.VerboseLog("database ready: %s", cfg.Store.Path)

	return &session{cfg: cfg, svc: svc, out: out, log: logCloser}, nil
}

func (s *session) Close() {
	if err := s.svc.CleanupOfflineMode(); err != nil {
		slog.Error("error closing database", "error", err)
	}
	_ = s.log.Close()
}

// serviceOptions maps configuration onto offline.Service options.
func serviceOptions(cfg *config.Config) ([]offline.Option, error) {
	// A configured zero delay means no delay; the engine reads zero as
	// "use the default".
	delay := cfg.Sync.RetryDelay
	if delay == 0 {
		delay = -1
	}

	opts := []offline.Option{
		offline.WithByteBudget(cfg.Store.ByteBudget),
		offline.WithHistoryLimit(cfg.Sync.HistoryLimit),
		offline.WithSyncDefaults(engine.SyncOptions{
			ResolveConflicts: cfg.Sync.Policy,
			RetryAttempts:    cfg.Sync.RetryAttempts,
			RetryDelay:       delay,
		}),
	}

	if cfg.Remote.BaseURL != "" {
		gw, err := remote.NewHTTPGateway(cfg.Remote)
		if err != nil {
			return nil, err
		}
		opts = append(opts, offline.WithGateway(gw))
	} else {
		slog.Warn("no remote configured, syncing against the in-process gateway")
	}

	switch cfg.Quota.Estimator {
	case config.EstimatorDisk:
		opts = append(opts, offline.WithEstimator(func(st *store.Store) quota.Estimator {
			return quota.DiskEstimator{Path: filepath.Dir(st.Path())}
		}))
	case config.EstimatorNone:
		opts = append(opts, offline.WithEstimator(func(*store.Store) quota.Estimator {
			return nil
		}))
	}
	return opts, nil
}

// parseDuration accepts Go durations and bare milliseconds.
func parseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(ms) * time.Millisecond, nil
}
