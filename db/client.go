package db

import (
	"context"
	"errors"
	"fmt"

	"surveil-screener/config"
	"surveil-screener/models"
)

// ErrStoreDisabled is returned by NewDBClient when the store type is "none".
var ErrStoreDisabled = errors.New("run store is disabled")

// DBClient persists screening runs and their score tables.
type DBClient interface {
	SaveRun(ctx context.Context, run models.RunRecord) error
	SaveScores(ctx context.Context, runID, pool string, rows []models.ScoreRow) error

	// ListRuns returns the most recent runs first. limit <= 0 returns all of them.
	ListRuns(ctx context.Context, limit int) ([]models.RunRecord, error)
	GetRun(ctx context.Context, id string) (models.RunRecord, bool, error)

	// GetScores returns the rows of a run ordered by pool, then error descending.
	GetScores(ctx context.Context, runID string) ([]models.StoredScore, error)

	Close() error
}

// NewDBClient opens the backend selected by store.
func NewDBClient(ctx context.Context, store config.Store) (DBClient, error) {
	switch store.Type {
	case "sqlite", "":
		c, err := NewSQLiteClient(store.SQLitePath)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "mongo":
		c, err := NewMongoClient(ctx, store.MongoURI, store.MongoDatabase)
		if err != nil {
			return nil, err
		}
		return c, nil
	case "json":
		return NewJSONStore(store.JSONPath), nil
	case "none":
		return nil, ErrStoreDisabled
	default:
		return nil, fmt.Errorf("unsupported store type %q", store.Type)
	}
}

func storedScores(runID, pool string, rows []models.ScoreRow) []models.StoredScore {
	out := make([]models.StoredScore, len(rows))
	for i, row := range rows {
		out[i] = models.StoredScore{RunID: runID, Pool: pool, ScoreRow: row}
	}
	return out
}
