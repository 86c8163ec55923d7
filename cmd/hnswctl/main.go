package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ann-go/hnswgraph/internal/config"
	"github.com/ann-go/hnswgraph/internal/logger"
)

const version = "0.1.0"

var cfg = config.Load(version)

var rootCmd = &cobra.Command{
	Use:   "hnswctl",
	Short: "Build, query, and inspect HNSW graph snapshots",
	Long:  `hnswctl builds an HNSW approximate-nearest-neighbor index from a vector file, queries a snapshot, and reports per-layer graph statistics.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Buffered so a future `hnswctl diagnostics` surface (or a
		// panic handler) can dump the last N log lines without
		// re-parsing stderr.
		logger.InitWithBuffer(&logger.Config{
			Level:  logger.ParseLevel(cfg.LogLevel),
			Format: cfg.LogFormat,
			Output: os.Stderr,
		}, 500)
		return nil
	},
}

func main() {
	rootCmd.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: json or text")
	rootCmd.PersistentFlags().StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "Directory for index snapshots")

	rootCmd.AddCommand(buildCmd, queryCmd, infoCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
