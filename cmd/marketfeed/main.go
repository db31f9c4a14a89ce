package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sawpanic/marketfeed/internal/config"
	"github.com/sawpanic/marketfeed/internal/httpapi"
	"github.com/sawpanic/marketfeed/internal/logging"
	"github.com/sawpanic/marketfeed/internal/scheduler"
	"github.com/sawpanic/marketfeed/internal/store/sqlite"
	"github.com/sawpanic/marketfeed/internal/unixapi"
)

const version = "v1.0.0"

func main() {
	var (
		configPath string
		httpPort   int
		noHTTP     bool
		noUnix     bool
	)

	rootCmd := &cobra.Command{
		Use:     "marketfeed",
		Short:   "Continuous market data and news ingestion daemon.",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configPath, httpPort, noHTTP, noUnix)
		},
	}

	rootCmd.Flags().StringVar(&configPath, "config", "marketfeed.yaml", "Path to YAML configuration file")
	rootCmd.Flags().IntVar(&httpPort, "port", 0, "Override the configured HTTP port (0 = use config)")
	rootCmd.Flags().BoolVar(&noHTTP, "no-http", false, "Disable the HTTP API front-end")
	rootCmd.Flags().BoolVar(&noUnix, "no-unix", false, "Disable the local-socket API front-end")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string, httpPortOverride int, noHTTP, noUnix bool) error {
	cfg, rejects := config.Load(configPath)
	log := logging.New(cfg.LogLevel)

	for _, rerr := range rejects {
		log.Warn().Err(rerr).Msg("rejected malformed source configuration")
	}

	if httpPortOverride > 0 {
		cfg.HTTPPort = httpPortOverride
	}

	st, err := sqlite.Open(cfg.DBPath, log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	sched := scheduler.New(cfg, st, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
		cancel()
	}()

	errCh := make(chan error, 3)
	pending := 1

	go func() {
		errCh <- sched.Run(ctx)
	}()

	var httpSrv *httpapi.Server
	if !noHTTP {
		httpSrv = httpapi.New(sched, fmt.Sprintf(":%d", cfg.HTTPPort), log)
		pending++
		go func() {
			if err := httpSrv.Start(); err != nil {
				errCh <- fmt.Errorf("http api: %w", err)
				return
			}
			errCh <- nil
		}()
	}

	if !noUnix {
		unixSrv := unixapi.New(cfg.UnixSocketPath, sched, log)
		pending++
		go func() {
			errCh <- unixSrv.Start(ctx)
		}()
	}

	<-ctx.Done()

	if httpSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http api shutdown failed")
		}
	}

	// unixapi.Server.Start already closes its listener and returns as soon as
	// ctx is cancelled, so no separate stop call is needed — but every
	// goroutine started above must be joined here before st.Close() runs via
	// defer, or an in-flight insert can still be writing to a closed store.
	for i := 0; i < pending; i++ {
		if err := <-errCh; err != nil {
			log.Error().Err(err).Msg("component returned an error during shutdown")
		}
	}

	log.Info().Msg("marketfeed shutting down")
	return nil
}
