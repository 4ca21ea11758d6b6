package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/evanofslack/ddns-agent/internal/config"
	"github.com/evanofslack/ddns-agent/internal/ddns"
	"github.com/evanofslack/ddns-agent/internal/history"
	"github.com/evanofslack/ddns-agent/internal/logger"
	"github.com/evanofslack/ddns-agent/internal/metrics"
	"github.com/evanofslack/ddns-agent/internal/provider"
	"github.com/evanofslack/ddns-agent/internal/provider/cloudflare"
	"github.com/evanofslack/ddns-agent/internal/provider/records"
	"github.com/evanofslack/ddns-agent/internal/resolver"
	"github.com/evanofslack/ddns-agent/internal/scheduler"
	"github.com/spf13/cobra"
)

func main() {
	logger.Bootstrap()

	if err := newRootCommand().Execute(); err != nil {
		slog.Error("ddns-agent failed", "error", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "ddns-agent",
		Short:         "Keep a DNS A record pointed at this host's public IPv4 address",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", config.DefaultPath, "config file (.toml, .yaml or .yml)")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newHistoryCommand(opts))
	cmd.AddCommand(newSetupCommand(opts))
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the sync loop (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAgent(opts)
		},
	}
}

func runAgent(opts *rootOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", opts.configPath, err)
	}
	logger.Configure(cfg.Log)

	m := metrics.New(true)

	journal, err := openJournal(cfg.HistoryPath, m)
	if err != nil {
		return fmt.Errorf("open update history: %w", err)
	}
	defer journal.Close()

	dnsProvider, err := newProvider(cfg, m)
	if err != nil {
		return fmt.Errorf("initialize DNS provider: %w", err)
	}
	ipResolver := resolver.New(cfg.IPService, m)

	// Graceful shutdown handling
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ddns.Init(ctx, dnsProvider, ipResolver, cfg.RemoteRecordID())
	if err != nil {
		return fmt.Errorf("initialize record: %w", err)
	}

	slog.Info("Starting ddns-agent", "provider", cfg.Provider, "record", client.Record().Name, "interval", cfg.Interval())

	// started only once startup can no longer fail
	server := startMetricsServer(cfg.MetricsAddr, m)

	sched := scheduler.New(client, cfg.Interval(), journal, m)
	wg := &sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("Sync loop stopped", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("Shutdown signal received")
	cancel()

	if server != nil {
		serverShutdownCtx, cancelServer := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelServer()
		if err := server.Shutdown(serverShutdownCtx); err != nil {
			slog.Error("Metrics server shutdown error", "error", err)
		}
	}

	// Wait for sync loop to finish
	wg.Wait()
	slog.Info("Service shutdown complete")
	return nil
}

func newProvider(cfg *config.Config, m *metrics.Metrics) (provider.Provider, error) {
	switch cfg.Provider {
	case config.ProviderCloudflare:
		return cloudflare.New(cfg.Token, cfg.Cloudflare, m)
	case config.ProviderRecords:
		return records.New(cfg.APIURL, cfg.Token, m)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}

func openJournal(path string, m *metrics.Metrics) (history.Journal, error) {
	if path == "" {
		return history.Nop(), nil
	}
	return history.Open(path, m)
}

// startMetricsServer serves /metrics in the background. An empty address
// disables it.
func startMetricsServer(addr string, m *metrics.Metrics) *http.Server {
	if addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("Starting metrics server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Metrics server failed", "error", err)
		}
	}()
	return server
}
