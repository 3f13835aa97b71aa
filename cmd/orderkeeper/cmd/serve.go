package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"orderkeeper/internal/api"
	"orderkeeper/internal/config"
	"orderkeeper/internal/logger"
	"orderkeeper/internal/netmon"
	"orderkeeper/internal/orders"
	"orderkeeper/internal/payments"
	"orderkeeper/internal/remote"
	"orderkeeper/internal/store"
	"orderkeeper/internal/syncengine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the terminal engine and its local API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg := config.MustLoad()
	if dataPath != "" {
		cfg.DataPath = dataPath
	}
	if remoteAddr != "" {
		cfg.RemoteAddress = remoteAddr
	}
	if listenAddr != "" {
		cfg.ListenAddress = listenAddr
	}

	log := logger.New(cfg.Env)
	log.Info("starting orderkeeper", "env", cfg.Env, "data", cfg.DataPath, "remote", cfg.RemoteAddress)

	if err := os.MkdirAll(filepath.Dir(cfg.DataPath), 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	st, err := store.Open(cfg.DataPath, log)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer st.Close()

	client := remote.New(cfg.RemoteAddress, log)

	monCfg := netmon.DefaultConfig()
	monCfg.Cooldown = cfg.BreakerCooldown
	monCfg.ProbeInterval = cfg.ProbeInterval
	monCfg.ProbeTimeout = cfg.ProbeTimeout
	monCfg.BreakerInterval = cfg.BreakerInterval
	monCfg.CallTimeout = cfg.CallTimeout
	monitor := netmon.New(client, monCfg, log)
	client.SetMonitor(monitor)

	engine := syncengine.New(st, client, monitor, cfg.SyncInterval, log)

	ordersSvc := orders.NewService(st, monitor, engine, log)
	paymentsSvc := payments.NewService(st, monitor, engine, log)

	if err := monitor.Start(); err != nil {
		return fmt.Errorf("start network monitor: %w", err)
	}
	defer monitor.Stop()

	if err := engine.Start(); err != nil {
		return fmt.Errorf("start sync engine: %w", err)
	}
	defer engine.Stop()

	srv := &http.Server{
		Addr:         cfg.ListenAddress,
		Handler:      api.New(ordersSvc, paymentsSvc, monitor, st, engine, log),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("api listening", "address", cfg.ListenAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("api server: %w", err)
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown api server: %w", err)
	}

	log.Info("stopped")
	return nil
}
