package flights

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"surveil-screener/models"
)

type identity struct{}

func (identity) Reconstruct(x []float64) ([]float64, error) {
	return append([]float64(nil), x...), nil
}

type zeros struct{}

func (zeros) Reconstruct(x []float64) ([]float64, error) {
	return make([]float64, len(x)), nil
}

func TestReconstructionError(t *testing.T) {
	t.Parallel()

	if got := ReconstructionError([]float64{1, 2}, []float64{1, 2}); got != 0 {
		t.Errorf("perfect reconstruction should have error 0, got %g", got)
	}
	// sqrt((9 + 16) / 2)
	if got := ReconstructionError([]float64{3, 4}, []float64{0, 0}); math.Abs(got-math.Sqrt(12.5)) > 1e-12 {
		t.Errorf("got %g, want %g", got, math.Sqrt(12.5))
	}
}

func TestScoreKeepsIdentity(t *testing.T) {
	t.Parallel()

	p := Pool{
		Name:    "labeled",
		IDs:     []string{"a", "b"},
		Rows:    [][]float64{{0, 0}, {1, 1}},
		Classes: []string{"other", "surveil"},
	}
	rows, err := Score(zeros{}, p)
	if err != nil {
		t.Fatalf("Score returned error: %v", err)
	}
	want := []models.ScoreRow{
		{ID: "a", Error: 0, Actual: "other"},
		{ID: "b", Error: 1, Actual: "surveil"},
	}
	if !reflect.DeepEqual(rows, want) {
		t.Fatalf("Score = %+v, want %+v", rows, want)
	}

	again, _ := Score(zeros{}, p)
	if !reflect.DeepEqual(rows, again) {
		t.Fatal("scoring twice gave different results")
	}

	rows, _ = Score(identity{}, p)
	for _, r := range rows {
		if r.Error != 0 {
			t.Errorf("identity model should have zero error, got %+v", r)
		}
	}
}

func scoreRows(pairs ...any) []models.ScoreRow {
	var rows []models.ScoreRow
	for i := 0; i < len(pairs); i += 2 {
		rows = append(rows, models.ScoreRow{ID: pairs[i].(string), Error: pairs[i+1].(float64)})
	}
	return rows
}

func TestRankThresholdMarksExactlyK(t *testing.T) {
	t.Parallel()

	rows := scoreRows("a", 0.1, "b", 0.9, "c", 0.5, "d", 0.7)
	out, boundary := RankThreshold(rows, 2)

	if got := Candidates(out); !reflect.DeepEqual(got, []string{"b", "d"}) {
		t.Fatalf("candidates = %v, want [b d]", got)
	}
	if boundary != 0.7 {
		t.Errorf("boundary = %g, want 0.7", boundary)
	}
	if out[0].ID != "a" || out[3].ID != "d" {
		t.Error("RankThreshold should keep input order")
	}
	if rows[1].Predicted {
		t.Error("RankThreshold modified its input")
	}

	all, _ := RankThreshold(rows, 10)
	if len(Candidates(all)) != 4 {
		t.Errorf("k larger than the pool should mark everything")
	}
	none, boundary := RankThreshold(rows, 0)
	if len(Candidates(none)) != 0 || boundary != 0 {
		t.Errorf("k = 0 should mark nothing")
	}
}

func TestRankThresholdBreaksTiesByID(t *testing.T) {
	t.Parallel()

	rows := scoreRows("c", 0.5, "a", 0.5, "b", 0.5, "z", 0.1)
	out, _ := RankThreshold(rows, 2)
	if got := Candidates(out); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("tied rows should be cut by identifier, got %v", got)
	}
}

func TestFixedThreshold(t *testing.T) {
	t.Parallel()

	out := FixedThreshold(scoreRows("a", 0.2, "b", 0.21, "c", 0.05), 0.2)
	if got := Candidates(out); !reflect.DeepEqual(got, []string{"b"}) {
		t.Fatalf("only errors strictly above the cutoff are positive, got %v", got)
	}
}

func TestConfusionMatrix(t *testing.T) {
	t.Parallel()

	rows := []models.ScoreRow{
		{ID: "1", Actual: "surveil", Predicted: true},
		{ID: "2", Actual: "Surveil", Predicted: false},
		{ID: "3", Actual: "other", Predicted: true},
		{ID: "4", Actual: "other", Predicted: false},
		{ID: "5", Actual: "other", Predicted: false},
		{ID: "6", Predicted: true}, // unlabeled
	}
	c := ConfusionMatrix(rows, "surveil")
	want := models.Confusion{TruePositive: 1, FalseNegative: 1, FalsePositive: 1, TrueNegative: 2}
	if c != want {
		t.Fatalf("confusion = %+v, want %+v", c, want)
	}

	precision, recall, accuracy := ConfusionStats(c)
	if precision != 0.5 || recall != 0.5 || accuracy != 0.6 {
		t.Errorf("stats = %g %g %g", precision, recall, accuracy)
	}
	if p, r, a := ConfusionStats(models.Confusion{}); p != 0 || r != 0 || a != 0 {
		t.Errorf("empty matrix stats should be zero")
	}

	text := FormatConfusion(c, "surveil")
	if !strings.Contains(text, "surveil") || !strings.Contains(text, "other") {
		t.Errorf("formatted matrix lacks class names:\n%s", text)
	}
}

func TestOverlap(t *testing.T) {
	t.Parallel()

	if got := Overlap([]string{"a", "b"}, []string{"c"}); got.Size != 0 || got.OnlyA != 2 || got.OnlyB != 1 {
		t.Errorf("disjoint overlap = %+v", got)
	}

	same := []string{"b", "a", "a"}
	got := Overlap(same, []string{"a", "b"})
	if got.Size != 2 || !reflect.DeepEqual(got.IDs, []string{"a", "b"}) {
		t.Errorf("identical sets overlap = %+v", got)
	}

	if got := Overlap(nil, nil); got.Size != 0 || got.IDs == nil {
		t.Errorf("empty overlap = %+v", got)
	}
}

func TestWriteScoresCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "scores.csv")
	rows := []models.ScoreRow{
		{ID: "a", Error: 0.1, Actual: "other"},
		{ID: "b", Error: 0.9, Actual: "surveil", Predicted: true},
	}
	if err := WriteScoresCSV(path, rows); err != nil {
		t.Fatalf("WriteScoresCSV returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read scores: %v", err)
	}
	want := "id,error,actual,predicted\nb,0.9,surveil,true\na,0.1,other,false\n"
	if string(data) != want {
		t.Fatalf("scores file =\n%s\nwant\n%s", data, want)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file was left behind")
	}
}
