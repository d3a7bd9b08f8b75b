package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cqnguy23/azure-signalr/pkg/conn"
	"github.com/cqnguy23/azure-signalr/pkg/protocol"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Maintain a connection pool and serve health and metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProbe(cmd.Context())
		},
	}

	flags := cmd.Flags()
	flags.String("url", "", "service endpoint to dial (wss://...)")
	flags.String("server-id", "", "server id to present (default: hostname)")
	flags.Int("connections", 5, "number of parallel connections")
	flags.String("listen", ":9090", "ops HTTP listen address")
	flags.Duration("status-interval", 30*time.Second, "interval between status and servers pings")
	flags.Bool("migrate", true, "migrate clients on graceful shutdown")

	v := viper.New()
	v.SetEnvPrefix("ASRS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	v.BindPFlags(flags)
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		if v.GetString("url") == "" {
			return fmt.Errorf("--url (or ASRS_URL) is required")
		}
		probeConfig = v
		return nil
	}
	return cmd
}

// probeConfig holds the resolved flag/env view for the run command.
var probeConfig *viper.Viper

func runProbe(ctx context.Context) error {
	v := probeConfig
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := conn.DefaultConfig()
	cfg.URL = v.GetString("url")
	cfg.ServerID = v.GetString("server-id")
	if cfg.ServerID == "" {
		host, _ := os.Hostname()
		cfg.ServerID = host
	}
	cfg.ConnectionCount = v.GetInt("connections")
	cfg.Logger = logger

	dialer := &conn.WebSocketDialer{MaxMessageSize: cfg.MaxMessageSize}
	handler := conn.HandlerFunc(func(c *conn.Connection, m protocol.ServiceMessage) {
		logger.Info("message", "type", m.Type().String(), "connection", c.ID())
	})

	container := conn.NewContainer(cfg, dialer, handler)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := container.Start(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	logger.Info("connected", "endpoint", cfg.URL, "connections", cfg.ConnectionCount)

	go watchStatus(ctx, container, logger)
	go pollService(ctx, container, v.GetDuration("status-interval"))

	srv := &http.Server{
		Addr:    v.GetString("listen"),
		Handler: opsRouter(container),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("ops server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down, going offline")

	offlineCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := container.Offline(offlineCtx, v.GetBool("migrate")); err != nil {
		logger.Warn("graceful offline incomplete", "error", err)
	}
	container.Stop()
	return nil
}

// opsRouter serves the operational endpoints.
func opsRouter(container *conn.Container) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !container.HasConnected() {
			http.Error(w, "no healthy connection", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Get("/servers", func(w http.ResponseWriter, req *http.Request) {
		container.RequestServers()
		fmt.Fprintf(w, "%s\n", strings.Join(container.ServerIDs(), "\n"))
	})
	return r
}

// watchStatus logs every connection status transition.
func watchStatus(ctx context.Context, container *conn.Container, logger *slog.Logger) {
	changes := container.SubscribeStatus(64)
	for {
		select {
		case ch, ok := <-changes:
			if !ok {
				return
			}
			logger.Info("connection status",
				"connection", ch.ConnectionID, "from", ch.Old.String(), "to", ch.New.String())
		case <-ctx.Done():
			return
		}
	}
}

// pollService keeps the status and servers bookkeeping fresh.
func pollService(ctx context.Context, container *conn.Container, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			container.Write(protocol.StatusRequestPing())
			container.RequestServers()
		case <-ctx.Done():
			return
		}
	}
}
