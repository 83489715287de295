package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	busline "github.com/busline/busline-go"
	"github.com/busline/busline-go/config"
	"github.com/busline/busline-go/packet"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

func main() {
	var (
		configFile string
		url        string
		nodeID     string
		prefix     string
		verbose    bool
	)

	rootCmd := &cobra.Command{
		Use:     "busline-node",
		Short:   "Run a busline transit node",
		Long:    "busline-node connects to the broker, joins the bus topology and logs inbound packet traffic. Useful for inspecting a running bus or as a wiring reference.",
		Version: fmt.Sprintf("%s (commit: %s)", version, gitCommit),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			if url != "" {
				cfg.URL = url
			}
			if nodeID != "" {
				cfg.NodeID = nodeID
			}
			if prefix != "" {
				cfg.Prefix = prefix
			}

			level := slog.LevelInfo
			if verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

			return run(cmd.Context(), cfg, logger)
		},
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Configuration file (YAML)")
	rootCmd.Flags().StringVarP(&url, "url", "u", "", "Broker connection URL")
	rootCmd.Flags().StringVarP(&nodeID, "node-id", "n", "", "Node identity")
	rootCmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Topic namespace prefix")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	handler := func(ctx context.Context, category packet.Category, body []byte) error {
		logger.Info("packet received", "category", category, "bytes", len(body))
		return nil
	}

	client, err := busline.NewClient(cfg,
		busline.WithClientLogger(logger),
		busline.WithHandler(handler),
	)
	if err != nil {
		return err
	}

	if err := client.Connect(ctx); err != nil {
		return err
	}
	logger.Info("node online", "nodeID", client.NodeID())

	// Announce ourselves, then heartbeat until interrupted.
	if err := client.Publish(ctx, packet.New(packet.CategoryInfo, "", packet.Payload{})); err != nil {
		logger.Warn("announce failed", "error", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := client.Publish(ctx, packet.New(packet.CategoryHeartbeat, "", packet.Payload{})); err != nil {
				logger.Warn("heartbeat failed", "error", err)
			}

		case sig := <-sigCh:
			logger.Info("shutting down", "signal", sig.String())
			if err := client.Publish(ctx, packet.New(packet.CategoryDisconnect, "", packet.Payload{})); err != nil {
				logger.Warn("disconnect announce failed", "error", err)
			}
			return client.Disconnect(ctx)

		case <-ctx.Done():
			return client.Disconnect(context.Background())
		}
	}
}
