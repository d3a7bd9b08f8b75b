package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/cqnguy23/azure-signalr/pkg/conn"
	"github.com/cqnguy23/azure-signalr/pkg/protocol"
)

func echoCmd() *cobra.Command {
	var (
		url      string
		count    int
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Measure round-trip time with echo pings",
		RunE: func(cmd *cobra.Command, args []string) error {
			if url == "" {
				return fmt.Errorf("--url is required")
			}
			return runEcho(cmd.Context(), url, count, interval)
		},
	}
	cmd.Flags().StringVar(&url, "url", "", "service endpoint to dial (wss://...)")
	cmd.Flags().IntVar(&count, "count", 5, "number of echo pings")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "delay between pings")
	return cmd
}

func runEcho(ctx context.Context, url string, count int, interval time.Duration) error {
	cfg := conn.DefaultConfig()
	cfg.URL = url
	cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	dialer := &conn.WebSocketDialer{MaxMessageSize: cfg.MaxMessageSize}
	c := conn.NewConnection(cfg, dialer, conn.HandlerFunc(func(*conn.Connection, protocol.ServiceMessage) {}))
	go c.Run(ctx)
	defer c.Stop()

	select {
	case <-c.Initialized():
		if err := c.InitErr(); err != nil {
			return err
		}
	case <-ctx.Done():
		return ctx.Err()
	}

	var total, min, max time.Duration
	for i := 0; i < count; i++ {
		rtt, err := c.Echo(ctx)
		if err != nil {
			return fmt.Errorf("echo %d: %w", i+1, err)
		}
		fmt.Printf("echo %d: %v\n", i+1, rtt)
		total += rtt
		if min == 0 || rtt < min {
			min = rtt
		}
		if rtt > max {
			max = rtt
		}
		if i+1 < count {
			select {
			case <-time.After(interval):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	fmt.Printf("min %v / avg %v / max %v\n", min, total/time.Duration(count), max)
	return nil
}
