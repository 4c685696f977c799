package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	rcommon "github.com/rindexer-go/rindexer/internal/common"
	"github.com/rindexer-go/rindexer/internal/core"
	"github.com/rindexer-go/rindexer/internal/logger"
	"github.com/rindexer-go/rindexer/pkg/config"
)

const (
	version = "0.1.0"
	banner  = `
╔═══════════════════════════════════════════╗
║              rindexer v%s               ║
║   EVM Event Indexing Engine                ║
╚═══════════════════════════════════════════╝
`
)

var manifestPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "rindexer",
	Short:   "rindexer - manifest-driven EVM event indexing engine",
	Long:    `rindexer indexes contract events across one or more EVM networks into pluggable storage sinks, streams, and chat bridges, with automatic reorg handling and hot-reloadable configuration.`,
	Version: version,
	RunE:    runEngine,
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the manifest without starting the engine",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := config.LoadFromFile(manifestPath); err != nil {
			return fmt.Errorf("manifest invalid: %w", err)
		}
		fmt.Println("manifest OK")
		return nil
	},
}

var listPipelinesCmd = &cobra.Command{
	Use:   "list-pipelines",
	Short: "List the (network, contract, event) pipelines the manifest would build",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := config.LoadFromFile(manifestPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		for _, contract := range m.Contracts {
			for _, details := range contract.Details {
				for _, event := range contract.Events {
					note := ""
					if details.Factory != nil {
						note = " (factory-sourced, not started by this build)"
					}
					fmt.Printf("  %s / %s / %s%s\n", details.Network, contract.Name, event.Signature, note)
				}
			}
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&manifestPath, "config", "c", "manifest.yaml", "path to manifest file")
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listPipelinesCmd)
}

func runEngine(cmd *cobra.Command, args []string) error {
	fmt.Printf(banner, version)

	m, err := config.LoadFromFile(manifestPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\n\nShutting down gracefully...")
		cancel()
	}()

	log := logger.NewComponentLoggerFromConfig(rcommon.ComponentCore, m.Logging)

	log.Infow("building engine", "networks", len(m.Networks), "contracts", len(m.Contracts))
	engine, err := core.New(ctx, manifestPath, m, log)
	if err != nil {
		return fmt.Errorf("failed to build engine: %w", err)
	}

	log.Info("starting rindexer")
	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("engine stopped with error: %w", err)
	}

	if err := engine.Shutdown(context.Background()); err != nil {
		log.Warnw("shutdown did not complete cleanly", "error", err)
	}

	log.Info("rindexer stopped")
	return nil
}
