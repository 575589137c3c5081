package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/kelseyhightower/envconfig"
	"golang.org/x/sync/errgroup"

	"github.com/partyhub-games/partyhub/internal/broadcast"
	"github.com/partyhub-games/partyhub/internal/buildinfo"
	"github.com/partyhub-games/partyhub/internal/cache"
	"github.com/partyhub-games/partyhub/internal/database"
	archiveDb "github.com/partyhub-games/partyhub/internal/database/archive/database"
	drawingDb "github.com/partyhub-games/partyhub/internal/database/drawing/database"
	"github.com/partyhub-games/partyhub/internal/logging"
	"github.com/partyhub-games/partyhub/internal/registry"
	"github.com/partyhub-games/partyhub/internal/scoring"
	"github.com/partyhub-games/partyhub/internal/server"
	"github.com/partyhub-games/partyhub/internal/shutdown"
	"github.com/partyhub-games/partyhub/internal/timer"
)

var version string

func main() {
	_, _ = fmt.Fprint(os.Stdout, buildinfo.Graffiti)
	_, _ = fmt.Fprintf(os.Stdout, buildinfo.GreetingCLI, buildinfo.ProjectName, version, buildinfo.GithubURL)

	ctx, cancel := shutdown.New()
	defer cancel()

	if err := realMain(ctx); err != nil {
		logging.DefaultLogger().Fatal(err)
	}

	logging.DefaultLogger().Infof("finished")
}

func realMain(ctx context.Context) error {
	var config registry.Config
	if err := envconfig.Process("", &config); err != nil {
		return fmt.Errorf("processing the config: %w", err)
	}

	logger := logging.NewLogger(config.Debug)
	ctx = logging.WithLogger(ctx, logger)

	db, err := database.NewFromEnv(ctx, &config.DB)
	if err != nil {
		return fmt.Errorf("create database connection: %w", err)
	}

	defer func() {
		if err := db.Close(ctx); err != nil {
			logger.Errorf("database close: %v", err)
		}
	}()

	lru, err := cache.NewLRU(config.CacheSize)
	if err != nil {
		return fmt.Errorf("create lru cache: %w", err)
	}

	timers := timer.New(ctx, clockwork.NewRealClock())
	hub := broadcast.NewHub(ctx)
	ledger := scoring.NewLedger()

	drawings := drawingDb.New(db, lru)
	archive := archiveDb.New(db)

	manager := registry.NewManager(&config, timers, hub, ledger, drawings, archive)
	manager.Run(ctx)
	defer manager.Shutdown()

	wg, ctx := errgroup.WithContext(ctx)

	// health check
	wg.Go(func() error {
		mux := http.NewServeMux()
		mux.Handle("/health", server.HandleHealth(ctx))

		srv, err := server.New(config.Port)
		if err != nil {
			return fmt.Errorf("creating server: %w", err)
		}

		logger.Infof("listening on: %s", config.Port)
		return srv.ServeHTTP(ctx, &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	})

	// pprof
	wg.Go(func() error {
		mux := http.NewServeMux()
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

		srv, err := server.New(config.ProfPort)
		if err != nil {
			return fmt.Errorf("creating profile server: %w", err)
		}

		logger.Infof("pprof listening on: %s", config.ProfPort)
		return srv.ServeHTTP(ctx, &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	})

	return wg.Wait()
}
