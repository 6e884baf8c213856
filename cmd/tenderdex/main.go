// Command tenderdex ingests tender tables into a vector index and serves semantic search.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/tenderdex/internal/config"
	"github.com/kailas-cloud/tenderdex/internal/version"
)

var (
	flagEnv    string
	flagConfig string
)

var rootCmd = &cobra.Command{
	Use:   "tenderdex",
	Short: "Tender ingestion pipeline and semantic search",
	Long: `tenderdex normalizes and classifies tender records, indexes them in a
Redis or Valkey vector index and answers natural language queries with
intent-aware filtered KNN search.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagEnv, "env", config.GetEnv(), "environment (local, dev, prod)")
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "config file (default config/<env>.yaml)")
	rootCmd.SetVersionTemplate(version.String() + "\n")
	// cmd.Print* default to stderr; results belong on stdout.
	rootCmd.SetOut(os.Stdout)
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// loadConfig reads --config when given, config/<env>.yaml otherwise.
func loadConfig() (config.Config, error) {
	if flagConfig != "" {
		return config.LoadFile(flagConfig)
	}
	return config.Load(flagEnv)
}
