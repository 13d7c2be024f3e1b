package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"surveil-screener/models"
	"surveil-screener/utils"
)

// JSONStore keeps every run and score row in a single JSON file. It suits small
// installations without a database; the whole file is rewritten on every save.
type JSONStore struct {
	path string
	mu   sync.RWMutex
}

type jsonDocument struct {
	Runs   []models.RunRecord   `json:"runs"`
	Scores []models.StoredScore `json:"scores"`
}

func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

func (s *JSONStore) Close() error { return nil }

// load reads the file (caller holds the lock)
func (s *JSONStore) load() (*jsonDocument, error) {
	doc := &jsonDocument{}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading runs file: %w", err)
	}
	if len(data) == 0 {
		return doc, nil
	}

	if err := json.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("error unmarshaling runs file: %w", err)
	}
	return doc, nil
}

// write replaces the file (caller holds the write lock)
func (s *JSONStore) write(doc *jsonDocument) error {
	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("error creating directory: %w", err)
		}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshaling runs: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("error writing runs file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("error renaming runs file: %w", err)
	}
	return nil
}

func (s *JSONStore) SaveRun(_ context.Context, run models.RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	run.CreatedAt = run.CreatedAt.UTC()
	replaced := false
	for i := range doc.Runs {
		if doc.Runs[i].ID == run.ID {
			doc.Runs[i] = run
			replaced = true
			break
		}
	}
	if !replaced {
		doc.Runs = append(doc.Runs, run)
	}

	return s.write(doc)
}

func (s *JSONStore) SaveScores(_ context.Context, runID, pool string, rows []models.ScoreRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	kept := doc.Scores[:0]
	for _, sc := range doc.Scores {
		if sc.RunID != runID || sc.Pool != pool {
			kept = append(kept, sc)
		}
	}
	doc.Scores = append(kept, storedScores(runID, pool, rows)...)

	return s.write(doc)
}

func (s *JSONStore) ListRuns(_ context.Context, limit int) ([]models.RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	runs := doc.Runs
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (s *JSONStore) GetRun(_ context.Context, id string) (models.RunRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return models.RunRecord{}, false, err
	}
	for _, run := range doc.Runs {
		if run.ID == id {
			return run, true, nil
		}
	}
	return models.RunRecord{}, false, nil
}

func (s *JSONStore) GetScores(_ context.Context, runID string) ([]models.StoredScore, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	var scores []models.StoredScore
	for _, sc := range doc.Scores {
		if sc.RunID == runID {
			scores = append(scores, sc)
		}
	}
	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if a.Pool != b.Pool {
			return a.Pool < b.Pool
		}
		if a.Error != b.Error {
			return a.Error > b.Error
		}
		return a.ID < b.ID
	})
	return scores, nil
}
