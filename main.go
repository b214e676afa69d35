package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	cfg, err := LoadConfig(os.Args[1:])
	if err != nil {
		os.Exit(configExitCode(err, os.Stderr))
	}
	logger := NewLogger(cfg, os.Stdout)

	var (
		db        *DB
		analytics *Analytics
		ledger    MatchLedger
	)
	if cfg.DBPath != "" {
		db, err = OpenDB(cfg.DBPath)
		if err != nil {
			logger.Fatal().Err(err).Msg("open match ledger")
		}
		defer db.Close()
		analytics = NewAnalytics(db, logger)
		ledger = analytics
	}

	hub := NewHub(cfg, ledger, logger)
	go hub.Run()

	auth := NewAuth(cfg, db, logger)
	mux := SetupRoutes(cfg, hub, auth, db, logger)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("client", cfg.ClientDir).Bool("ledger", db != nil).Msg("server starting")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("ListenAndServe")
		}
	}()

	<-stop
	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	hub.Stop()
	if analytics != nil {
		analytics.Stop()
	}
}
