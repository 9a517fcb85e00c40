// cmd/hmi/serve.go
//
// serve – run the view transport.
//
// Start-up
// --------
//
//  1. Load configuration (defaults → .env → conf/global.yaml → HMI_ env).
//
//  2. Start the rotating file logger (tees to console in a TTY).
//
//  3. Open the journal when a DSN is configured, resolving a vault:
//     password reference first.  It hooks every accepted request.
//
//  4. ApplicationAvailable: initialize extensions, create the bridge.
//
//  5. EngineAvailable: expose the bridge in the engine's root context,
//     then start the UI loop.
//
//  6. Serve HTTP until SIGINT or SIGTERM, then shut down in reverse.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yanizio/hmi/internal/config"
	"github.com/yanizio/hmi/internal/harness"
	"github.com/yanizio/hmi/internal/journal"
	"github.com/yanizio/hmi/internal/logger"
	"github.com/yanizio/hmi/internal/server"
	"github.com/yanizio/hmi/internal/vault"
	"github.com/yanizio/hmi/internal/view"
)

const shutdownGrace = 10 * time.Second

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the operator scene and popup API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (overrides http.listen_addr)")
	return cmd
}

func serve(ctx context.Context, addr string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if addr != "" {
		cfg.HTTP.ListenAddr = addr
	}

	log, err := logger.New(cfg.Log.Dir, cfg.Log.Level, logger.RunningInTTY())
	if err != nil {
		return fmt.Errorf("start logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	//
	// ── 1.  Journal (optional) ──────────────────────────────────────────
	//
	var store *journal.Store
	if cfg.Journal.Enabled() {
		store, err = openJournal(ctx, cfg.Journal, log)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	//
	// ── 2.  Readiness sequence ──────────────────────────────────────────
	//
	setup := harness.New(
		harness.WithContextName(cfg.View.BridgeName),
		harness.WithLogger(log),
	)
	defer setup.Cleanup()

	if err := setup.ApplicationAvailable(); err != nil {
		return fmt.Errorf("application start: %w", err)
	}

	// The journal flushes queued rows after the bridge closes and before
	// its pool does.
	journalCtx, stopJournal := context.WithCancel(context.Background())
	journalDone := make(chan error, 1)
	defer func() { stopJournal(); <-journalDone }()
	if store != nil {
		setup.Bridge().OnAccepted(store.Observer())
		go func() { journalDone <- store.Run(journalCtx) }()
	} else {
		close(journalDone)
	}

	if err := setup.EngineAvailable(view.NewEngine(nil)); err != nil {
		return fmt.Errorf("engine start: %w", err)
	}
	engine := setup.Engine()

	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- engine.Loop().Run(loopCtx) }()

	//
	// ── 3.  HTTP ────────────────────────────────────────────────────────
	//
	srv := server.New(server.Options{
		Bridge:         setup.Bridge(),
		Engine:         engine,
		Journal:        store,
		AllowedOrigins: cfg.View.AllowedOrigins,
		ForceHTTPS:     cfg.HTTP.ForceHTTPS,
		Log:            log,
	})
	httpSrv := server.NewHTTP(cfg.HTTP.ListenAddr, srv.Handler())

	serveErr := make(chan error, 1)
	go func() {
		log.Infow("listening", "addr", cfg.HTTP.ListenAddr)
		serveErr <- httpSrv.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
	case <-ctx.Done():
		log.Infow("shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		err = httpSrv.Shutdown(sctx)
		cancel()
	}

	// The bridge closes before the loop stops so nothing new is posted.
	setup.Cleanup()
	engine.Loop().Stop()
	stopLoop()
	if lerr := <-loopDone; lerr != nil && !errors.Is(lerr, context.Canceled) {
		log.Warnw("ui loop exited", "err", lerr)
	}
	return err
}

func openJournal(ctx context.Context, jc config.Journal, log *zap.SugaredLogger) (*journal.Store, error) {
	password := jc.Password
	if vault.IsRef(password) {
		vc, err := vault.New(ctx, log)
		if err != nil {
			return nil, fmt.Errorf("vault client: %w", err)
		}
		if password, err = vc.Resolve(ctx, password); err != nil {
			return nil, fmt.Errorf("resolve journal password: %w", err)
		}
	}

	db, err := journal.Open(ctx, jc.DSN, password)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	store := journal.New(db, log)
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate journal: %w", err)
	}
	log.Infow("journal online")
	return store, nil
}
