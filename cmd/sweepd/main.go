package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/me/gosweep/internal/cache"
	"github.com/me/gosweep/internal/config"
	"github.com/me/gosweep/internal/logging"
	"github.com/me/gosweep/internal/server"
	"github.com/me/gosweep/internal/session"
	"github.com/me/gosweep/internal/store"
	"github.com/me/gosweep/internal/substrate"
)

func main() {
	cfg := config.DefaultServerConfig()

	flag.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format (text, json)")
	flag.StringVar(&cfg.DBPath, "db", cfg.DBPath, "Database path (default ~/.gosweep/gosweep.db)")
	flag.StringVar(&cfg.WorkDir, "work-dir", cfg.WorkDir, "Directory for run environments (default: temp dir)")
	flag.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Completion poll interval")
	flag.DurationVar(&cfg.ReportInterval, "report-interval", cfg.ReportInterval, "Progress report interval")
	cacheSize := flag.Int("cache-size", 64, "Result cache capacity (entries)")
	cacheTTL := flag.Duration("cache-ttl", cache.DefaultTTL, "Result cache entry TTL")
	debug := flag.Bool("debug", false, "Shorthand for --log-level=debug")

	flag.Parse()

	if *debug {
		cfg.LogLevel = "debug"
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat)

	// Resolve database path.
	dbPath := cfg.DBPath
	if dbPath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "cannot determine home directory: %v\n", err)
			os.Exit(1)
		}
		dir := filepath.Join(home, ".gosweep")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "cannot create %s: %v\n", dir, err)
			os.Exit(1)
		}
		dbPath = filepath.Join(dir, "gosweep.db")
	}

	// Open store and run migrations.
	st, err := store.NewSQLiteStore(dbPath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open database: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if err := st.Migrate(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "migrate database: %v\n", err)
		os.Exit(1)
	}
	logger.Info("database ready", "path", dbPath)

	sub := substrate.NewLocal(cfg.WorkDir, logger)
	results := cache.New(*cacheSize, *cacheTTL, cache.DefaultHistoryCapacity)

	// Cancelling this context stops every in-flight sweep session.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(cfg, st, session.NewMemoryStore(), sub, logger,
		server.WithRunContext(ctx),
		server.WithCache(results),
	)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: srv.Handler(),
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
