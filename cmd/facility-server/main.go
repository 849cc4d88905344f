// Command facility-server runs the UDP facility booking server.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"pkt.systems/pslog"

	"facilityd/internal/config"
	"facilityd/internal/dedup"
	"facilityd/internal/dispatch"
	"facilityd/internal/monitor"
	"facilityd/internal/persistence"
	"facilityd/internal/store"
	"facilityd/internal/telemetry"
	"facilityd/internal/udpserver"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger := telemetry.NewLogger("FACILITYD_LOG_").With("app", "facility-server")

	cmd := newRootCommand(logger)
	ctx := withSignalCancel(context.Background())
	if err := cmd.ExecuteContext(ctx); err != nil {
		if err != context.Canceled {
			logger.Error("command failed", "error", err)
		}
		return 1
	}
	return 0
}

func newRootCommand(logger pslog.Logger) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "facility-server",
		Short: "Run the UDP facility booking server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), configPath, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file (falls back to FACILITYD_* environment variables)")
	return cmd
}

func serve(ctx context.Context, configPath string, logger pslog.Logger) error {
	cfg, err := config.LoadServer(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("load timezone %q: %w", cfg.Timezone, err)
	}

	var persist store.Persister
	if cfg.DataDir != "" {
		persist, err = persistence.New(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("open persistence dir: %w", err)
		}
	} else {
		persist = store.NoopPersister()
	}

	st, err := store.New(store.DefaultConfig(loc), persist)
	if err != nil {
		return fmt.Errorf("build store: %w", err)
	}

	monitors := monitor.New()
	metrics := telemetry.NewMetrics()

	var udpSrv *udpserver.Server
	dispatcher := dispatch.New(st, monitors, func(addr *net.UDPAddr, payload []byte) error {
		metrics.NotificationsOut.Inc()
		return udpSrv.WriteTo(payload, addr)
	}, logger).WithMetrics(metrics)

	cacheCfg := dedup.New(time.Duration(cfg.CacheTTL)*time.Second, cfg.CacheLimit)

	udpSrv, err = udpserver.New(udpserver.Config{
		Addr:       cfg.Addr,
		Workers:    cfg.Workers,
		AtMostOnce: cfg.AtMostOnce(),
		Cache:      cacheCfg,
		DropRate:   cfg.DropRate,
		CacheHits:  metrics.CacheHits,
	}, dispatcher.Handle, logger)
	if err != nil {
		return fmt.Errorf("bind udp socket: %w", err)
	}
	defer udpSrv.Close()

	if cfg.MetricsAddr != "" {
		closeMetrics, err := metrics.ServeHTTP(ctx, cfg.MetricsAddr, logger)
		if err != nil {
			return fmt.Errorf("start metrics endpoint: %w", err)
		}
		defer closeMetrics()
		logger.Info("facility-server metrics listening", "addr", cfg.MetricsAddr)
	}

	logger.Info("facility-server listening",
		"addr", udpSrv.LocalAddr().String(),
		"semantics", cfg.Semantics,
		"timezone", cfg.Timezone,
	)

	return udpSrv.Run(ctx)
}

func withSignalCancel(ctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(ctx)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()
	return ctx
}
