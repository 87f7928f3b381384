package commands

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/capnode/tcapd/internal/logger"
	"github.com/capnode/tcapd/pkg/config"
	"github.com/capnode/tcapd/pkg/metrics"
	"github.com/capnode/tcapd/pkg/tcap"
)

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	if err := InitLogger(); err != nil {
		return err
	}

	logger.Info("configuration loaded",
		"interface", cfg.Interface,
		"address", cfg.Address.String(),
		"switch_addr", cfg.SwitchAddr.String())

	if cfg.NetStats {
		metrics.InitRegistry()
		logger.Info("net-stats enabled")
		if cfg.MetricsAddr != "" {
			serveMetrics(cfg.MetricsAddr)
		}
	} else {
		logger.Info("net-stats disabled")
	}

	svc, err := tcap.New(tcap.Config{
		Interface:                cfg.Interface,
		Address:                  cfg.Address,
		SwitchAddr:               cfg.SwitchAddr,
		DirectControlPlaneCopies: cfg.DirectControlPlaneCopies,
	})
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serviceDone := make(chan error, 1)
	go func() {
		serviceDone <- svc.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("service running, press Ctrl+C to stop", "commit", svc.CompilationCommit())

	select {
	case <-sigChan:
		signal.Stop(sigChan)
		logger.Info("shutdown signal received, terminating")
		svc.Terminate(ctx)
		cancel()

		if err := <-serviceDone; err != nil {
			logger.Error("service shutdown error", "error", err)
			return err
		}
		logger.Info("service stopped gracefully")

	case err := <-serviceDone:
		signal.Stop(sigChan)
		if err != nil {
			logger.Error("service error", "error", err)
			return err
		}
		logger.Info("service stopped")
	}

	return nil
}

// serveMetrics starts the optional Prometheus HTTP endpoint in the
// background. A listen failure is logged, not fatal — net-stats still
// updates the in-process counters even without a scrape endpoint.
func serveMetrics(addr string) {
	reg := metrics.GetRegistry()
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	go func() {
		logger.Info("metrics server listening", "address", addr)
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
}
