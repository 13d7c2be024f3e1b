package flights

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"surveil-screener/autoencoder"
	"surveil-screener/config"
)

// Three similar flights are learned; the fourth is ten times larger on every metric and
// must come out with the highest reconstruction error.
func TestOutlierScoresHighest(t *testing.T) {
	t.Parallel()

	training := poolOf("train",
		[]float64{1.0, 2.0, 3.0},
		[]float64{1.1, 2.1, 2.9},
		[]float64{0.9, 1.9, 3.1},
	)
	all := poolOf("all",
		[]float64{1.0, 2.0, 3.0},
		[]float64{1.1, 2.1, 2.9},
		[]float64{0.9, 1.9, 3.1},
		[]float64{10, 20, 30},
	)

	n := NewNormalizer(ScaleFitOnce, false)
	scaledTraining, err := n.FitTraining(training)
	if err != nil {
		t.Fatalf("FitTraining returned error: %v", err)
	}
	scaledAll, err := n.Apply(all)
	if err != nil {
		t.Fatalf("Apply returned error: %v", err)
	}

	net, err := autoencoder.New(autoencoder.DefaultConfig(3))
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	if _, err := net.Train(context.Background(), autoencoder.TrainArgs{
		Train:     scaledTraining.Matrix(),
		Epochs:    50,
		BatchSize: 3,
		Optimizer: autoencoder.Adam(0.01),
		Seed:      1,
	}); err != nil {
		t.Fatalf("Train returned error: %v", err)
	}

	rows, err := Score(net, scaledAll)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	ranked, _ := RankThreshold(rows, 1)
	if got := Candidates(ranked); len(got) != 1 || got[0] != "all3" {
		t.Fatalf("expected the outlier all3 to rank first, got %v (scores %+v)", got, rows)
	}
	for _, r := range rows[:3] {
		if r.Error >= rows[3].Error {
			t.Fatalf("normal flight %s error %g not below outlier error %g", r.ID, r.Error, rows[3].Error)
		}
	}
}

func writeDataset(t *testing.T, dir string, n int) (features, labels, reference string) {
	t.Helper()

	var fb strings.Builder
	fb.WriteString("adshex,type,duration,turn_rate,altitude\n")
	for i := 0; i < n; i++ {
		typ := []string{"C172", "B738", "R44"}[i%3]
		fmt.Fprintf(&fb, "a%03d,%s,%d,%g,%d\n", i, typ, 100+i*7%40, 0.1+float64(i%5)/10, 1000+(i*37)%500)
	}
	features = filepath.Join(dir, "features.csv")
	if err := os.WriteFile(features, []byte(fb.String()), 0644); err != nil {
		t.Fatalf("failed to write features: %v", err)
	}

	labels = filepath.Join(dir, "train.csv")
	body := "adshex,class\na000,surveil\na001,other\na002,other\na003,surveil\na004,other\na005,other\n"
	if err := os.WriteFile(labels, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write labels: %v", err)
	}

	reference = filepath.Join(dir, "candidates.csv")
	if err := os.WriteFile(reference, []byte("adshex\na010\na020\nffffff\n"), 0644); err != nil {
		t.Fatalf("failed to write reference: %v", err)
	}
	return features, labels, reference
}

func testConfig(dir, features, labels, reference string) *config.PipelineConfig {
	cfg := config.Default()
	cfg.Inputs.Features = features
	cfg.Inputs.Labels = labels
	cfg.Inputs.Reference = reference
	cfg.Training.Fraction = 0.5
	cfg.Training.Epochs = 5
	cfg.Training.BatchSize = 4
	cfg.Thresholds.RankK = 2
	cfg.Thresholds.Cutoff = 0
	cfg.Outputs.Checkpoint = filepath.Join(dir, "model", "autoencoder.json")
	cfg.Outputs.Scores = filepath.Join(dir, "scores.csv")
	return cfg
}

func TestPipelineRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	features, labels, reference := writeDataset(t, dir, 30)
	cfg := testConfig(dir, features, labels, reference)

	var epochs int
	p := NewPipeline(cfg)
	p.Update = func(autoencoder.Epoch) { epochs++ }

	result, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.LabeledCount != 6 || result.TrainingCount != 12 || result.ScoringCount != 12 {
		t.Fatalf("pool sizes = %d/%d/%d, want 6/12/12", result.LabeledCount, result.TrainingCount, result.ScoringCount)
	}
	if epochs != 5 {
		t.Errorf("Update saw %d epochs, want 5", epochs)
	}
	if result.RunID == "" {
		t.Error("run has no identifier")
	}

	if len(result.LabeledScores) != 6 || len(Candidates(result.LabeledScores)) != 2 {
		t.Fatalf("labeled pool should have exactly 2 positives out of 6, got %+v", result.LabeledScores)
	}
	c := result.Confusion
	if c.TruePositive+c.FalsePositive != 2 || c.TruePositive+c.FalseNegative != 2 {
		t.Errorf("confusion matrix inconsistent with 2 positives and 2 surveil labels: %+v", c)
	}

	if len(result.ScoringScores) != 12 {
		t.Fatalf("scoring pool has %d scores, want 12", len(result.ScoringScores))
	}
	for _, r := range result.ScoringScores {
		if r.Error < 0 || math.IsNaN(r.Error) {
			t.Fatalf("invalid error for %s: %g", r.ID, r.Error)
		}
	}
	if result.Overlap == nil {
		t.Fatal("overlap should be computed when a reference list is configured")
	}
	for _, id := range result.Overlap.IDs {
		if id == "ffffff" {
			t.Error("overlap contains an identifier missing from the feature table")
		}
	}

	if _, err := os.Stat(cfg.Outputs.Checkpoint); err != nil {
		t.Fatalf("checkpoint was not written: %v", err)
	}
	enc, err := LoadCategoryEncoder(EncoderPath(cfg.Outputs.Checkpoint), "type", ',')
	if err != nil {
		t.Fatalf("encoder was not written next to the checkpoint: %v", err)
	}
	if len(enc.Codes) != 3 {
		t.Errorf("encoder has %d codes, want 3", len(enc.Codes))
	}
	if rec := result.Record(cfg); rec.ConfigDigest == "" || rec.ConfigDigest != cfg.Digest() {
		t.Errorf("run record digest %q does not match config", rec.ConfigDigest)
	}

	rec := result.Record(cfg)
	if rec.ID != result.RunID || rec.RankK != 2 || rec.CandidateCount != len(result.Candidates) {
		t.Errorf("unexpected run record: %+v", rec)
	}
}

func TestScoreTableUsesCheckpoint(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	features, labels, reference := writeDataset(t, dir, 24)
	cfg := testConfig(dir, features, labels, reference)
	cfg.Scaling.Mode = "fit-once"

	if _, err := NewPipeline(cfg).Train(context.Background()); err != nil {
		t.Fatalf("Train returned error: %v", err)
	}

	result, err := ScoreTable(features, cfg.Outputs.Checkpoint, cfg, 3, 0)
	if err != nil {
		t.Fatalf("ScoreTable returned error: %v", err)
	}
	if len(result.Rows) != 24 || len(result.Candidates) != 3 {
		t.Fatalf("got %d rows and %d candidates, want 24 and 3", len(result.Rows), len(result.Candidates))
	}
	if result.History.BestEpoch < 0 {
		t.Errorf("checkpoint history lost: %+v", result.History)
	}

	other := filepath.Join(dir, "other.csv")
	if err := os.WriteFile(other, []byte("adshex,type,speed\nx1,C172,1\nx2,C172,2\n"), 0644); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}
	if _, err := ScoreTable(other, cfg.Outputs.Checkpoint, cfg, 0, 0.1); err == nil {
		t.Fatal("scoring a table with different columns should fail")
	}
}

func TestScoreLabeledMatchesRun(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	features, labels, reference := writeDataset(t, dir, 30)
	cfg := testConfig(dir, features, labels, reference)

	result, err := NewPipeline(cfg).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	labelMap, err := LoadLabels(labels, "adshex", "class", ',')
	if err != nil {
		t.Fatalf("LoadLabels returned error: %v", err)
	}
	rows, err := ScoreLabeled(features, labelMap, cfg.Outputs.Checkpoint, cfg)
	if err != nil {
		t.Fatalf("ScoreLabeled returned error: %v", err)
	}
	if len(rows) != len(result.LabeledScores) {
		t.Fatalf("got %d rows, want %d", len(rows), len(result.LabeledScores))
	}
	for i, r := range rows {
		want := result.LabeledScores[i]
		if r.ID != want.ID || r.Actual != want.Actual || math.Abs(r.Error-want.Error) > 1e-12 {
			t.Fatalf("row %d = %+v, run scored %+v", i, r, want)
		}
	}

	ranked, _ := RankThreshold(rows, cfg.Thresholds.RankK)
	if got := ConfusionMatrix(ranked, cfg.Columns.Positive); got != result.Confusion {
		t.Fatalf("confusion = %+v, run printed %+v", got, result.Confusion)
	}
}

func TestPipelineRejectsNonFiniteFeature(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	features, labels, reference := writeDataset(t, dir, 30)
	data, err := os.ReadFile(features)
	if err != nil {
		t.Fatalf("failed to read features: %v", err)
	}
	lines := strings.Split(string(data), "\n")
	fields := strings.Split(lines[7], ",") // a006
	fields[3] = "NaN"
	lines[7] = strings.Join(fields, ",")
	if err := os.WriteFile(features, []byte(strings.Join(lines, "\n")), 0644); err != nil {
		t.Fatalf("failed to write features: %v", err)
	}

	cfg := testConfig(dir, features, labels, reference)
	if _, err := NewPipeline(cfg).Run(context.Background()); err == nil || !strings.Contains(err.Error(), "turn_rate") {
		t.Fatalf("expected a feature table error naming turn_rate, got %v", err)
	}
}

func TestFailedTrainingLeavesNoEncoder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	features, labels, reference := writeDataset(t, dir, 30)
	cfg := testConfig(dir, features, labels, reference)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewPipeline(cfg).Train(ctx); err == nil {
		t.Fatal("expected training to fail on a cancelled context")
	}
	if _, err := os.Stat(EncoderPath(cfg.Outputs.Checkpoint)); !os.IsNotExist(err) {
		t.Fatalf("encoder should not be written when training fails, stat err = %v", err)
	}
}

func TestPipelineRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	cfg.Training.Epochs = 0
	if _, err := NewPipeline(cfg).Run(context.Background()); err == nil {
		t.Fatal("expected an error for zero epochs")
	}
}
