package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"surveil-screener/config"
	"surveil-screener/flights"
	"surveil-screener/models"
)

// KResult is the labeled-pool evaluation at one rank threshold.
type KResult struct {
	K         int              `json:"k"`
	Boundary  float64          `json:"boundary"`
	Confusion models.Confusion `json:"confusion"`
	Precision float64          `json:"precision"`
	Recall    float64          `json:"recall"`
	Accuracy  float64          `json:"accuracy"`
}

// EvaluationReport is written with -report.
type EvaluationReport struct {
	Timestamp   time.Time `json:"timestamp"`
	ModelPath   string    `json:"modelPath"`
	Features    string    `json:"features"`
	Labels      string    `json:"labels"`
	LabeledRows int       `json:"labeledRows"`
	Positives   int       `json:"positives"`
	Results     []KResult `json:"results"`
}

func main() {
	configPath := flag.String("config", "", "Pipeline configuration YAML (defaults when empty)")
	schemaPath := flag.String("schema", "schemas/pipeline.cue", "CUE schema for the configuration")
	modelPath := flag.String("model", "", "Checkpoint (defaults to outputs.checkpoint)")
	ks := flag.String("k", "25,50,97,150,200", "Comma-separated rank thresholds to evaluate")
	reportPath := flag.String("report", "", "Optional JSON report path")
	flag.Parse()

	cfg, err := config.Load(*configPath, *schemaPath)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	cfg.ApplyEnv()
	if *modelPath == "" {
		*modelPath = cfg.Outputs.Checkpoint
	}
	kValues, err := parseKs(*ks)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	log.Println("Step 1: Loading labels...")
	labels, err := flights.LoadLabels(cfg.Inputs.Labels, cfg.Columns.ID, cfg.Columns.Class, cfg.DelimiterRune())
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}

	log.Printf("Step 2: Scoring labelled aircraft of %s with %s...", cfg.Inputs.Features, *modelPath)
	labeled, err := flights.ScoreLabeled(cfg.Inputs.Features, labels, *modelPath, cfg)
	if err != nil {
		log.Fatalf("ERROR: %v", err)
	}
	positives := 0
	for _, row := range labeled {
		if strings.EqualFold(row.Actual, cfg.Columns.Positive) {
			positives++
		}
	}
	log.Printf("Found %d labelled aircraft, %d %s", len(labeled), positives, cfg.Columns.Positive)

	log.Println("Step 3: Sweeping rank thresholds...")
	report := EvaluationReport{
		Timestamp:   time.Now().UTC(),
		ModelPath:   *modelPath,
		Features:    cfg.Inputs.Features,
		Labels:      cfg.Inputs.Labels,
		LabeledRows: len(labeled),
		Positives:   positives,
	}
	for _, k := range kValues {
		rows, boundary := flights.RankThreshold(labeled, k)
		c := flights.ConfusionMatrix(rows, cfg.Columns.Positive)
		p, r, a := flights.ConfusionStats(c)
		report.Results = append(report.Results, KResult{K: k, Boundary: boundary, Confusion: c, Precision: p, Recall: r, Accuracy: a})
	}

	printReport(report)

	if *reportPath != "" {
		if err := saveReport(report, *reportPath); err != nil {
			log.Fatalf("ERROR: %v", err)
		}
		log.Printf("Report saved to %s", *reportPath)
	}
}

func parseKs(s string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil || k < 0 {
			return nil, fmt.Errorf("invalid k %q", part)
		}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no k values given")
	}
	return out, nil
}

func printReport(report EvaluationReport) {
	fmt.Println()
	fmt.Println("=== Rank Threshold Sweep ===")
	fmt.Printf("%6s %10s %5s %5s %5s %5s %9s %7s %8s\n", "K", "boundary", "TP", "FP", "TN", "FN", "precision", "recall", "accuracy")
	for _, r := range report.Results {
		c := r.Confusion
		fmt.Printf("%6d %10.6f %5d %5d %5d %5d %9.3f %7.3f %8.3f\n",
			r.K, r.Boundary, c.TruePositive, c.FalsePositive, c.TrueNegative, c.FalseNegative,
			r.Precision, r.Recall, r.Accuracy)
	}
}

func saveReport(report EvaluationReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
