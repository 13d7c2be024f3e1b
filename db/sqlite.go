package db

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"surveil-screener/models"
	"surveil-screener/utils"

	_ "github.com/mattn/go-sqlite3" // SQLite driver registration
)

type SQLiteClient struct {
	db *sql.DB
}

func NewSQLiteClient(dataSourceName string) (*SQLiteClient, error) {
	// Extract the file path before query parameters
	dbPath := dataSourceName
	if idx := strings.Index(dataSourceName, "?"); idx != -1 {
		dbPath = dataSourceName[:idx]
	}

	dbDir := filepath.Dir(dbPath)
	if dbDir != "." && dbDir != "" {
		if err := utils.CreateFolder(dbDir); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	// busy timeout in milliseconds
	if !strings.Contains(dataSourceName, "_busy_timeout") {
		if strings.Contains(dataSourceName, "?") {
			dataSourceName += "&_busy_timeout=5000"
		} else {
			dataSourceName += "?_busy_timeout=5000"
		}
	}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error connecting to SQLite: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating tables: %w", err)
	}

	return &SQLiteClient{db: db}, nil
}

// createTables creates the required tables if they don't exist
func createTables(db *sql.DB) error {
	createRunsTable := `
    CREATE TABLE IF NOT EXISTS runs (
        id TEXT PRIMARY KEY,
        created_at DATETIME NOT NULL,
        config_digest TEXT,
        features_path TEXT,
        checkpoint_path TEXT,
        scaling_mode TEXT,
        seed INTEGER NOT NULL DEFAULT 0,
        labeled_count INTEGER NOT NULL DEFAULT 0,
        training_count INTEGER NOT NULL DEFAULT 0,
        scoring_count INTEGER NOT NULL DEFAULT 0,
        epochs INTEGER NOT NULL DEFAULT 0,
        best_epoch INTEGER NOT NULL DEFAULT -1,
        best_val_loss REAL,
        rank_k INTEGER NOT NULL DEFAULT 0,
        cutoff REAL NOT NULL DEFAULT 0,
        true_positive INTEGER NOT NULL DEFAULT 0,
        false_positive INTEGER NOT NULL DEFAULT 0,
        true_negative INTEGER NOT NULL DEFAULT 0,
        false_negative INTEGER NOT NULL DEFAULT 0,
        candidate_count INTEGER NOT NULL DEFAULT 0,
        overlap_count INTEGER NOT NULL DEFAULT 0
    );
    CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
    `

	createScoresTable := `
    CREATE TABLE IF NOT EXISTS scores (
        run_id TEXT NOT NULL,
        pool TEXT NOT NULL,
        aircraft_id TEXT NOT NULL,
        error REAL NOT NULL,
        actual TEXT,
        predicted INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (run_id, pool, aircraft_id)
    );
    `

	if _, err := db.Exec(createRunsTable); err != nil {
		return fmt.Errorf("error creating runs table: %w", err)
	}
	if _, err := db.Exec(createScoresTable); err != nil {
		return fmt.Errorf("error creating scores table: %w", err)
	}
	return nil
}

func (db *SQLiteClient) Close() error {
	if db.db != nil {
		return db.db.Close()
	}
	return nil
}

const runColumns = `id, created_at, config_digest, features_path, checkpoint_path, scaling_mode,
        seed, labeled_count, training_count, scoring_count, epochs, best_epoch, best_val_loss,
        rank_k, cutoff, true_positive, false_positive, true_negative, false_negative,
        candidate_count, overlap_count`

// SaveRun inserts or replaces the run record.
func (db *SQLiteClient) SaveRun(ctx context.Context, run models.RunRecord) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.CreatedAt.UTC(),
		run.ConfigDigest,
		run.FeaturesPath,
		run.CheckpointPath,
		run.ScalingMode,
		run.Seed,
		run.LabeledCount,
		run.TrainingCount,
		run.ScoringCount,
		run.Epochs,
		run.BestEpoch,
		run.BestValLoss,
		run.RankK,
		run.Cutoff,
		run.Confusion.TruePositive,
		run.Confusion.FalsePositive,
		run.Confusion.TrueNegative,
		run.Confusion.FalseNegative,
		run.CandidateCount,
		run.OverlapCount,
	)
	if err != nil {
		return fmt.Errorf("error storing run %s: %w", run.ID, err)
	}
	return nil
}

// SaveScores replaces the rows of one pool of a run in a single transaction.
func (db *SQLiteClient) SaveScores(ctx context.Context, runID, pool string, rows []models.ScoreRow) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM scores WHERE run_id = ? AND pool = ?", runID, pool); err != nil {
		tx.Rollback()
		return fmt.Errorf("error clearing scores: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO scores (run_id, pool, aircraft_id, error, actual, predicted) VALUES (?, ?, ?, ?, ?, ?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("error preparing statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		predicted := 0
		if row.Predicted {
			predicted = 1
		}
		if _, err := stmt.ExecContext(ctx, runID, pool, row.ID, row.Error, row.Actual, predicted); err != nil {
			tx.Rollback()
			return fmt.Errorf("error storing score for %s: %w", row.ID, err)
		}
	}

	return tx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(s rowScanner) (models.RunRecord, error) {
	var run models.RunRecord
	var digest, features, checkpoint, mode sql.NullString
	var bestValLoss sql.NullFloat64
	err := s.Scan(
		&run.ID,
		&run.CreatedAt,
		&digest,
		&features,
		&checkpoint,
		&mode,
		&run.Seed,
		&run.LabeledCount,
		&run.TrainingCount,
		&run.ScoringCount,
		&run.Epochs,
		&run.BestEpoch,
		&bestValLoss,
		&run.RankK,
		&run.Cutoff,
		&run.Confusion.TruePositive,
		&run.Confusion.FalsePositive,
		&run.Confusion.TrueNegative,
		&run.Confusion.FalseNegative,
		&run.CandidateCount,
		&run.OverlapCount,
	)
	if err != nil {
		return run, err
	}
	run.ConfigDigest = digest.String
	run.FeaturesPath = features.String
	run.CheckpointPath = checkpoint.String
	run.ScalingMode = mode.String
	run.BestValLoss = bestValLoss.Float64
	return run, nil
}

func (db *SQLiteClient) ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error) {
	query := "SELECT " + runColumns + " FROM runs ORDER BY created_at DESC, id ASC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying runs: %w", err)
	}
	defer rows.Close()

	var runs []models.RunRecord
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (db *SQLiteClient) GetRun(ctx context.Context, id string) (models.RunRecord, bool, error) {
	row := db.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return models.RunRecord{}, false, nil
		}
		return models.RunRecord{}, false, fmt.Errorf("failed to retrieve run: %w", err)
	}
	return run, true, nil
}

func (db *SQLiteClient) GetScores(ctx context.Context, runID string) ([]models.StoredScore, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT pool, aircraft_id, error, actual, predicted
		FROM scores
		WHERE run_id = ?
		ORDER BY pool ASC, error DESC, aircraft_id ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying scores: %w", err)
	}
	defer rows.Close()

	var scores []models.StoredScore
	for rows.Next() {
		s := models.StoredScore{RunID: runID}
		var actual sql.NullString
		var predicted int
		if err := rows.Scan(&s.Pool, &s.ID, &s.Error, &actual, &predicted); err != nil {
			return nil, fmt.Errorf("error scanning score: %w", err)
		}
		s.Actual = actual.String
		s.Predicted = predicted == 1
		scores = append(scores, s)
	}
	return scores, rows.Err()
}
