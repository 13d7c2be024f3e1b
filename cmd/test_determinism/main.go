package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"surveil-screener/config"
	"surveil-screener/flights"
	"surveil-screener/models"
)

// Runs the full pipeline several times with one seed and checks that partitions, losses
// and scores are identical.
func main() {
	configPath := flag.String("config", "", "Pipeline configuration YAML (defaults when empty)")
	schemaPath := flag.String("schema", "schemas/pipeline.cue", "CUE schema for the configuration")
	runs := flag.Int("runs", 3, "Number of repeated runs")
	epochs := flag.Int("epochs", 10, "Epochs per run")
	flag.Parse()

	cfg, err := config.Load(*configPath, *schemaPath)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	cfg.ApplyEnv()
	cfg.Training.Epochs = *epochs
	cfg.Store.Type = "none"

	tmpDir, err := os.MkdirTemp("", "determinism")
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	log.Printf("Testing determinism with %s, seed %d, %d runs", cfg.Inputs.Features, cfg.Training.Seed, *runs)

	var results []*flights.RunResult
	for i := 0; i < *runs; i++ {
		runCfg := *cfg
		runCfg.Outputs.Checkpoint = filepath.Join(tmpDir, fmt.Sprintf("run%d.json", i))

		result, err := flights.NewPipeline(&runCfg).Run(context.Background())
		if err != nil {
			log.Fatalf("Run %d failed: %v", i+1, err)
		}
		results = append(results, result)
		log.Printf("Run %d: best epoch %d, val loss %.10f, %d candidates",
			i+1, result.History.BestEpoch+1, result.History.BestValLoss, len(result.Candidates))
	}

	fmt.Println("\n=== Determinism Check ===")
	identical := true
	maxDiff := 0.0
	first := results[0]
	for i, r := range results[1:] {
		if r.History.BestEpoch != first.History.BestEpoch {
			identical = false
			fmt.Printf("Run %d stopped at best epoch %d, run 1 at %d\n", i+2, r.History.BestEpoch+1, first.History.BestEpoch+1)
		}
		for _, pair := range [][2][]models.ScoreRow{
			{first.LabeledScores, r.LabeledScores},
			{first.ScoringScores, r.ScoringScores},
		} {
			d, ok := compareScores(pair[0], pair[1])
			maxDiff = math.Max(maxDiff, d)
			if !ok {
				identical = false
				fmt.Printf("Run %d scored different records than run 1\n", i+2)
			}
		}
	}

	if identical && maxDiff == 0 {
		fmt.Println("All runs produced IDENTICAL scores")
		return
	}
	fmt.Printf("Runs differ (max score difference %e)\n", maxDiff)
	os.Exit(1)
}

// compareScores returns the largest error difference and whether both slices cover the
// same identifiers in the same order with the same labels.
func compareScores(a, b []models.ScoreRow) (float64, bool) {
	if len(a) != len(b) {
		return math.Inf(1), false
	}
	maxDiff := 0.0
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Predicted != b[i].Predicted {
			return math.Inf(1), false
		}
		maxDiff = math.Max(maxDiff, math.Abs(a[i].Error-b[i].Error))
	}
	return maxDiff, true
}
