package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/strokeml/strokeprep/internal/config"
	"github.com/strokeml/strokeprep/internal/logging"
	"github.com/strokeml/strokeprep/internal/pipeline"
)

var (
	verbose    bool
	configPath string

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "strokeprep",
	Short: "Offline preparation pipeline for the stroke-treatment dataset",
	Long: `strokeprep transforms a raw stroke-audit extract into
machine-learning-ready stratified k-fold splits in three batch stages:

  clean     normalize raw coded fields, neutralize implausible records,
            and write a parallel issue log
  reformat  filter the cohort, derive treatment-time features, and attach
            stable anonymized site codes
  split     partition the cohort into stratified train/test folds

Every stage reads and writes delimited text files; reruns are
deterministic given the same inputs and a stable site-code mapping.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load .env file: %w", err)
		}
		var err error
		logger, err = logging.New(verbose)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Clean the raw extract into normalized typed columns",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		return p.RunClean()
	},
}

var reformatCmd = &cobra.Command{
	Use:   "reformat",
	Short: "Filter the cohort and attach anonymized site codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		return p.RunReformat()
	},
}

var splitCmd = &cobra.Command{
	Use:   "split",
	Short: "Partition the cohort into stratified train/test folds",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		return p.RunSplit()
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run all three stages in sequence",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newPipeline()
		if err != nil {
			return err
		}
		return p.RunAll()
	},
}

func newPipeline() (*pipeline.Pipeline, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, logger), nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(cleanCmd, reformatCmd, splitCmd, runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		if logger != nil {
			logger.Error("run aborted", zap.Error(err))
			_ = logger.Sync()
		}
		os.Exit(1)
	}
}
