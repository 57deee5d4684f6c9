package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/mednote/mednote/internal/config"
	"github.com/mednote/mednote/internal/coordinator"
	"github.com/mednote/mednote/internal/platform/db"
	"github.com/mednote/mednote/internal/platform/metrics"
	"github.com/mednote/mednote/internal/platform/notification"
)

// session is one CLI invocation's view of the Record Store: a coordinator
// for the configured principal plus everything that must be closed after.
type session struct {
	ctx   context.Context
	cfg   *config.Config
	coord *coordinator.Coordinator
	// pinned is set when every request shares one database connection and
	// so must not run concurrently.
	pinned  bool
	closers []func()
}

func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := newLogger(cfg, cmd.ErrOrStderr()).Level(logLevel(cmd))

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s := &session{ctx: ctx, cfg: cfg}

	b, err := openBackend(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	s.closers = append(s.closers, b.Close)

	if b.pool != nil {
		tctx, release, err := db.AcquireTenant(ctx, b.pool, cfg.DefaultTenant)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.ctx, s.pinned = tctx, true
		s.closers = append(s.closers, release)
	}

	notifiers := []notification.Notifier{toastPrinter(cmd.ErrOrStderr()), notification.NewLogNotifier(log)}
	if cfg.NATSURL != "" {
		pub, nc, err := notification.ConnectNATS(cfg.NATSURL, cfg.NotifySubject, log)
		if err != nil {
			s.Close()
			return nil, err
		}
		notifiers = append(notifiers, pub)
		s.closers = append(s.closers, func() { _ = nc.Drain() })
	}

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s.coord = coordinator.New(metrics.InstrumentStore(b.store, m), cfg.Principal,
		coordinator.WithLogger(log),
		coordinator.WithNotifier(notification.Multi(notifiers...)),
		coordinator.WithMetrics(m),
	)
	if cfg.PushgatewayURL != "" {
		// Appended last so it runs first, while the store is still open.
		s.closers = append(s.closers, func() {
			if err := metrics.Push(context.Background(), cfg.PushgatewayURL, cfg.Principal, reg); err != nil {
				log.Warn().Err(err).Msg("metrics not pushed")
			}
		})
	}
	return s, nil
}

// Close releases resources in reverse order of acquisition.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// load fills the working set with every patient and note.
func (s *session) load() error {
	if !s.pinned {
		return s.coord.Load(s.ctx)
	}
	if err := s.coord.FetchPatients(s.ctx); err != nil {
		return err
	}
	return s.coord.FetchNotes(s.ctx, "")
}

// withSession opens a session for the duration of fn.
func withSession(fn func(cmd *cobra.Command, args []string, s *session) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd)
		if err != nil {
			return err
		}
		defer s.Close()
		if err := fn(cmd, args, s); err != nil {
			return fmt.Errorf("%s: %w", cmd.CommandPath(), err)
		}
		return nil
	}
}

func logLevel(cmd *cobra.Command) zerolog.Level {
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		return zerolog.DebugLevel
	}
	return zerolog.WarnLevel
}
