package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"surveil-screener/config"
)

var rootCmd = &cobra.Command{
	Use:   "surveil-screener",
	Short: "Autoencoder screening of flight-behaviour tables",
	Long: "surveil-screener trains a sparse autoencoder on unlabeled aircraft flight features and " +
		"ranks aircraft by reconstruction error to surface surveillance-like behaviour.",
	SilenceUsage: true,
}

var (
	configPath string
	schemaPath string

	flagEpochs  int
	flagSeed    int64
	flagScaling string
	flagRankK   int
	flagCutoff  float64
	flagStore   string

	scoreInput      string
	scoreCheckpoint string
	scoreOutput     string

	overlapA      string
	overlapB      string
	overlapColumn string

	runsLimit int
	runsShow  string
	runsTop   int
)

// Execute runs the root command. Interrupting the process cancels training between
// epochs.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Train, evaluate and screen in one pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return runPipeline(cmd.Context(), cfg)
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train the autoencoder and write the best checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return trainOnly(cmd.Context(), cfg)
	},
}

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score a feature table with an existing checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		useRank := cmd.Flags().Changed("rank-k")
		return scoreWithCheckpoint(cfg, scoreInput, scoreCheckpoint, scoreOutput, useRank)
	},
}

var overlapCmd = &cobra.Command{
	Use:   "overlap",
	Short: "Compare two identifier lists",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return compareLists(cfg, overlapA, overlapB, overlapColumn)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored runs, or show the scores of one",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return listRuns(cmd.Context(), cfg, runsLimit, runsShow, runsTop)
	},
}

// loadConfig reads the YAML file, then applies the environment and finally any flag the
// user set explicitly.
func loadConfig(cmd *cobra.Command) (*config.PipelineConfig, error) {
	cfg, err := config.Load(configPath, schemaPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv()

	flags := cmd.Flags()
	if flags.Changed("epochs") {
		cfg.Training.Epochs = flagEpochs
	}
	if flags.Changed("seed") {
		cfg.Training.Seed = flagSeed
	}
	if flags.Changed("scaling") {
		cfg.Scaling.Mode = flagScaling
	}
	if flags.Changed("rank-k") {
		cfg.Thresholds.RankK = flagRankK
	}
	if flags.Changed("cutoff") {
		cfg.Thresholds.Cutoff = flagCutoff
	}
	if flags.Changed("store") {
		cfg.Store.Type = flagStore
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to pipeline configuration YAML (defaults are used when empty)")
	pf.StringVar(&schemaPath, "schema", "schemas/pipeline.cue", "Path to CUE schema file; empty disables schema validation")
	pf.StringVar(&flagStore, "store", "", "Run store: sqlite, mongo, json or none")

	for _, c := range []*cobra.Command{runCmd, trainCmd} {
		c.Flags().IntVar(&flagEpochs, "epochs", 0, "Training epochs")
		c.Flags().Int64Var(&flagSeed, "seed", 0, "Seed for partitioning, initialisation and shuffling")
		c.Flags().StringVar(&flagScaling, "scaling", "", "Scaling mode: per-pool or fit-once")
	}
	for _, c := range []*cobra.Command{runCmd, scoreCmd} {
		c.Flags().IntVar(&flagRankK, "rank-k", 0, "Number of top-error records labelled positive")
		c.Flags().Float64Var(&flagCutoff, "cutoff", 0, "Fixed reconstruction-error cutoff")
	}

	scoreCmd.Flags().StringVar(&scoreInput, "input", "", "Feature table to score (defaults to inputs.features)")
	scoreCmd.Flags().StringVar(&scoreCheckpoint, "checkpoint", "", "Checkpoint to load (defaults to outputs.checkpoint)")
	scoreCmd.Flags().StringVar(&scoreOutput, "out", "", "Scores CSV to write (defaults to outputs.scores)")

	overlapCmd.Flags().StringVar(&overlapA, "a", "", "First identifier list")
	overlapCmd.Flags().StringVar(&overlapB, "b", "", "Second identifier list (defaults to inputs.reference)")
	overlapCmd.Flags().StringVar(&overlapColumn, "column", "", "Identifier column (defaults to columns.id)")
	overlapCmd.MarkFlagRequired("a")

	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Number of runs to list")
	runsCmd.Flags().StringVar(&runsShow, "show", "", "Run ID whose scores should be printed")
	runsCmd.Flags().IntVar(&runsTop, "top", 25, "Rows per pool printed with --show")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(overlapCmd)
	rootCmd.AddCommand(runsCmd)
}
