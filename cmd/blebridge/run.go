package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/srg/blebridge/internal/bridge"
	"github.com/srg/blebridge/internal/devicefactory"
	"github.com/srg/blebridge/internal/host"
	"github.com/srg/blebridge/internal/host/mqttpub"
	"github.com/srg/blebridge/internal/registry"
	"github.com/srg/blebridge/pkg/config"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the bridge",
	Long: `Run the bridge until interrupted.

Persisted accessories are restored first; accessories whose device is no
longer configured are removed. Configured devices are then connected as soon
as they are seen advertising, and reconnected after every disconnect.`,
	Args: cobra.NoArgs,
	RunE: runBridge,
}

var configPath string

func init() {
	for _, cmd := range []*cobra.Command{runCmd, checkConfigCmd} {
		cmd.Flags().StringVarP(&configPath, "config", "c", "blebridge.yaml", "Path to the configuration file")
	}
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	reg, err := registry.New(cfg.Accessories)
	if err != nil {
		logger.WithField("error", err).Error("No accessories loaded")
		return err
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupts gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			logger.Info("Received interrupt signal, shutting down...")
			cancel()
		case <-ctx.Done():
		}
	}()

	hostBridge := host.NewBridge(logger, host.NewYAMLStore(cfg.Store.Path))

	if cfg.MQTT.Enabled {
		pub := mqttpub.NewFromConfig(cfg.MQTT, hostBridge, logger)
		hostBridge.AddObserver(pub)
		if err := pub.Start(ctx); err != nil {
			return err
		}
		defer func() { _ = pub.Close() }()
	}

	adapter := devicefactory.NewAdapter(logger, devicefactory.Options{ProbeInterval: cfg.ProbeInterval})
	platform := bridge.New(adapter, hostBridge, reg, logger, bridge.Options{
		PluginID:         cfg.PluginID,
		Platform:         cfg.Platform,
		ConnectTimeout:   cfg.ConnectTimeout,
		DiscoveryTimeout: cfg.DiscoveryTimeout,
	})

	if err := hostBridge.Restore(platform.ConfigureAccessory); err != nil {
		return err
	}

	if err := platform.Run(ctx); err != nil {
		return fmt.Errorf("bridge stopped: %w", err)
	}
	return nil
}
