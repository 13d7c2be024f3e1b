package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"surveil-screener/config"
	"surveil-screener/models"
)

func sampleRun(id string, created time.Time) models.RunRecord {
	return models.RunRecord{
		ID:             id,
		CreatedAt:      created,
		ConfigDigest:   "abc123",
		FeaturesPath:   "data/features.csv",
		CheckpointPath: "model/autoencoder.json",
		ScalingMode:    "per-pool",
		Seed:           42,
		LabeledCount:   6,
		TrainingCount:  12,
		ScoringCount:   12,
		Epochs:         5,
		BestEpoch:      4,
		BestValLoss:    0.0125,
		RankK:          2,
		Cutoff:         0.2,
		Confusion:      models.Confusion{TruePositive: 1, FalsePositive: 1, TrueNegative: 3, FalseNegative: 1},
		CandidateCount: 3,
		OverlapCount:   1,
	}
}

// exerciseClient runs the same save/list/get sequence against any backend.
func exerciseClient(t *testing.T, c DBClient) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	older := sampleRun("run-a", base)
	newer := sampleRun("run-b", base.Add(time.Hour))

	for _, run := range []models.RunRecord{older, newer} {
		if err := c.SaveRun(ctx, run); err != nil {
			t.Fatalf("SaveRun(%s) returned error: %v", run.ID, err)
		}
	}

	runs, err := c.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("ListRuns returned error: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-b" || runs[1].ID != "run-a" {
		t.Fatalf("ListRuns should return newest first, got %+v", runs)
	}
	if limited, _ := c.ListRuns(ctx, 1); len(limited) != 1 {
		t.Fatalf("ListRuns(1) returned %d runs", len(limited))
	}

	got, ok, err := c.GetRun(ctx, "run-a")
	if err != nil || !ok {
		t.Fatalf("GetRun returned %v, %v", ok, err)
	}
	if !got.CreatedAt.Equal(older.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, older.CreatedAt)
	}
	got.CreatedAt = older.CreatedAt
	if got != older {
		t.Errorf("GetRun = %+v, want %+v", got, older)
	}
	if _, ok, err := c.GetRun(ctx, "missing"); ok || err != nil {
		t.Errorf("GetRun(missing) = %v, %v", ok, err)
	}

	// saving again replaces instead of duplicating
	older.CandidateCount = 9
	if err := c.SaveRun(ctx, older); err != nil {
		t.Fatalf("SaveRun(update) returned error: %v", err)
	}
	if runs, _ := c.ListRuns(ctx, 0); len(runs) != 2 {
		t.Fatalf("re-saving a run should not duplicate it, got %d runs", len(runs))
	}

	labeled := []models.ScoreRow{
		{ID: "a1", Error: 0.1, Actual: "other"},
		{ID: "a2", Error: 0.7, Actual: "surveil", Predicted: true},
	}
	scoring := []models.ScoreRow{{ID: "b1", Error: 0.3, Predicted: true}}
	if err := c.SaveScores(ctx, "run-a", "labeled", labeled); err != nil {
		t.Fatalf("SaveScores returned error: %v", err)
	}
	if err := c.SaveScores(ctx, "run-a", "scoring", scoring); err != nil {
		t.Fatalf("SaveScores returned error: %v", err)
	}
	if err := c.SaveScores(ctx, "run-a", "scoring", scoring); err != nil {
		t.Fatalf("SaveScores (again) returned error: %v", err)
	}

	scores, err := c.GetScores(ctx, "run-a")
	if err != nil {
		t.Fatalf("GetScores returned error: %v", err)
	}
	if len(scores) != 3 {
		t.Fatalf("GetScores returned %d rows, want 3: %+v", len(scores), scores)
	}
	if scores[0].ID != "a2" || scores[0].Pool != "labeled" || !scores[0].Predicted || scores[0].Actual != "surveil" {
		t.Errorf("unexpected first row %+v", scores[0])
	}
	if scores[2].ID != "b1" || scores[2].Pool != "scoring" {
		t.Errorf("unexpected last row %+v", scores[2])
	}
	if other, _ := c.GetScores(ctx, "run-b"); len(other) != 0 {
		t.Errorf("run-b should have no scores, got %d", len(other))
	}
}

func TestSQLiteClient(t *testing.T) {
	t.Parallel()

	c, err := NewSQLiteClient(filepath.Join(t.TempDir(), "nested", "runs.sqlite3"))
	if err != nil {
		t.Fatalf("NewSQLiteClient returned error: %v", err)
	}
	defer c.Close()

	exerciseClient(t, c)
}

func TestJSONStore(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "runs.json")
	exerciseClient(t, NewJSONStore(path))

	// a fresh store over the same file sees the same data
	runs, err := NewJSONStore(path).ListRuns(context.Background(), 0)
	if err != nil || len(runs) != 2 {
		t.Fatalf("reopened store returned %d runs, %v", len(runs), err)
	}
}

func TestNewDBClient(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()

	if _, err := NewDBClient(ctx, config.Store{Type: "none"}); !errors.Is(err, ErrStoreDisabled) {
		t.Errorf("expected ErrStoreDisabled, got %v", err)
	}
	if _, err := NewDBClient(ctx, config.Store{Type: "redis"}); err == nil {
		t.Error("expected an error for an unknown store type")
	}

	c, err := NewDBClient(ctx, config.Store{Type: "json", JSONPath: filepath.Join(dir, "runs.json")})
	if err != nil {
		t.Fatalf("NewDBClient(json) returned error: %v", err)
	}
	if _, ok := c.(*JSONStore); !ok {
		t.Errorf("expected *JSONStore, got %T", c)
	}

	c, err = NewDBClient(ctx, config.Store{Type: "sqlite", SQLitePath: filepath.Join(dir, "runs.sqlite3")})
	if err != nil {
		t.Fatalf("NewDBClient(sqlite) returned error: %v", err)
	}
	defer c.Close()
	if _, ok := c.(*SQLiteClient); !ok {
		t.Errorf("expected *SQLiteClient, got %T", c)
	}
}

func TestNewMongoClientRequiresDatabase(t *testing.T) {
	t.Parallel()

	if _, err := NewMongoClient(context.Background(), "mongodb://localhost:27017", ""); err == nil {
		t.Fatal("expected an error for an empty database name")
	}
}
