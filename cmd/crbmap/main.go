package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/guaminsects/crbmap/internal/config"
	"github.com/guaminsects/crbmap/internal/logging"
)

var (
	// Global flags
	paramsFile string
	outputDir  string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "crbmap",
	Short: "Build the coconut rhinoceros beetle damage map for Guam",
	Long: `crbmap turns roadside video survey results into a damage map.

It extracts GPS tracks, tree damage and v-cut observations for a list of
videos from the survey database, aggregates mean damage onto a 1 km grid,
classifies the grid into six damage classes and writes the map layers.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}
		if paramsFile != "" {
			cfg.ParamsFile = paramsFile
		}
		if outputDir != "" {
			cfg.OutputDir = outputDir
		}

		level := cfg.LogLevel
		if verbose {
			level = "debug"
		}
		logger, err = logging.New(level, cfg.LogFormat)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&paramsFile, "params", "", "survey parameters file (default "+config.DefaultParamsFile+")")
	rootCmd.PersistentFlags().StringVar(&outputDir, "out", "", "output directory (default "+config.DefaultOutputDir+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(extractCmd, buildCmd, runCmd, restyleCmd, serveCmd, classifyCmd, tokenCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger != nil {
			logger.Error("Command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
