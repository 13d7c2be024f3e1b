package flights

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func defaultOptions() TableOptions {
	return TableOptions{IDColumn: "adshex", TypeColumn: "type", Delimiter: ','}
}

func TestLoadFeatureTable(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "features.csv", "\ufeffadshex,duration,type,turn\n"+
		"a1,10,C172,0.5\n"+
		"a2,20,B738,0.1\n"+
		"a3,30,C172,0.9\n")

	table, err := LoadFeatureTable(path, defaultOptions())
	if err != nil {
		t.Fatalf("LoadFeatureTable returned error: %v", err)
	}

	if want := []string{"type", "duration", "turn"}; !reflect.DeepEqual(table.Columns, want) {
		t.Fatalf("columns = %v, want %v", table.Columns, want)
	}
	if want := []string{"a1", "a2", "a3"}; !reflect.DeepEqual(table.IDs(), want) {
		t.Fatalf("ids = %v, want %v", table.IDs(), want)
	}

	// sorted codes: B738 -> 0, C172 -> 1
	if got := table.Records[0].Features; !reflect.DeepEqual(got, []float64{1, 10, 0.5}) {
		t.Errorf("a1 features = %v", got)
	}
	if got := table.Records[1].Features; !reflect.DeepEqual(got, []float64{0, 20, 0.1}) {
		t.Errorf("a2 features = %v", got)
	}
}

func TestLoadFeatureTableRejectsDuplicateID(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "features.csv", "adshex,type,speed\na1,C172,1\na1,C172,2\n")
	_, err := LoadFeatureTable(path, defaultOptions())
	if !errors.Is(err, ErrDuplicateID) {
		t.Fatalf("expected ErrDuplicateID, got %v", err)
	}
	if !strings.Contains(err.Error(), "line 3") {
		t.Errorf("error should name the offending line: %v", err)
	}
}

func TestLoadFeatureTableRejectsBadNumber(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "features.csv", "adshex,type,speed\na1,C172,1\na2,C172,fast\n")
	_, err := LoadFeatureTable(path, defaultOptions())
	if err == nil {
		t.Fatal("expected an error for a non-numeric feature")
	}
	if !strings.Contains(err.Error(), "line 3") || !strings.Contains(err.Error(), "speed") {
		t.Errorf("error should name the line and column: %v", err)
	}
}

func TestLoadFeatureTableRejectsNonFinite(t *testing.T) {
	t.Parallel()

	for _, cell := range []string{"NaN", "Inf", "+Inf", "-inf"} {
		path := writeFile(t, "features.csv", "adshex,type,speed\na1,C172,1\na2,C172,"+cell+"\n")
		_, err := LoadFeatureTable(path, defaultOptions())
		if err == nil {
			t.Fatalf("expected an error for %q", cell)
		}
		if !strings.Contains(err.Error(), "line 3") || !strings.Contains(err.Error(), "speed") {
			t.Errorf("error for %q should name the line and column: %v", cell, err)
		}
	}
}

func TestCategoryEncoderFileColumnsByName(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "encoder.csv", "code,type\n4,C172\n9,B738\n")
	enc, err := LoadCategoryEncoder(path, "type", ',')
	if err != nil {
		t.Fatalf("LoadCategoryEncoder returned error: %v", err)
	}
	if enc.Encode("C172") != 4 || enc.Encode("B738") != 9 {
		t.Fatalf("codes = %v", enc.Codes)
	}

	missing := writeFile(t, "nocode.csv", "type,value\nC172,1\n")
	if _, err := LoadCategoryEncoder(missing, "type", ','); !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadFeatureTableMissingColumn(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "features.csv", "icao,type,speed\na1,C172,1\n")
	_, err := LoadFeatureTable(path, defaultOptions())
	if !errors.Is(err, ErrMissingColumn) {
		t.Fatalf("expected ErrMissingColumn, got %v", err)
	}
}

func TestLoadFeatureTableWithEncoder(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "features.csv", "adshex;type;speed\na1;C172;1\na2;GLID;2\n")
	opts := defaultOptions()
	opts.Delimiter = ';'
	opts.Encoder = &CategoryEncoder{Column: "type", Codes: map[string]int{"C172": 7}}

	table, err := LoadFeatureTable(path, opts)
	if err != nil {
		t.Fatalf("LoadFeatureTable returned error: %v", err)
	}
	if table.Records[0].Features[0] != 7 {
		t.Errorf("C172 code = %g, want 7", table.Records[0].Features[0])
	}
	if table.Records[1].Features[0] != -1 {
		t.Errorf("unknown type should encode as -1, got %g", table.Records[1].Features[0])
	}
}

func TestLoadLabels(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "train.csv", "adshex,class\na1,surveil\na2,other\n,other\na1,surveil\n")
	labels, err := LoadLabels(path, "adshex", "class", ',')
	if err != nil {
		t.Fatalf("LoadLabels returned error: %v", err)
	}
	want := map[string]string{"a1": "surveil", "a2": "other"}
	if !reflect.DeepEqual(labels, want) {
		t.Fatalf("labels = %v, want %v", labels, want)
	}

	conflict := writeFile(t, "conflict.csv", "adshex,class\na1,surveil\na1,other\n")
	if _, err := LoadLabels(conflict, "adshex", "class", ','); err == nil {
		t.Fatal("expected an error for conflicting labels")
	}
}

func TestLoadReferenceList(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "candidates.csv", "adshex\nb2\na1\nb2\n\n")
	ids, err := LoadReferenceList(path, "adshex", ',')
	if err != nil {
		t.Fatalf("LoadReferenceList returned error: %v", err)
	}
	if want := []string{"b2", "a1"}; !reflect.DeepEqual(ids, want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
}

func TestCategoryEncoderRoundTrip(t *testing.T) {
	t.Parallel()

	enc := FitCategoryEncoder("type", []string{"GLID", "B738", "C172", "B738"})
	if want := []string{"B738", "C172", "GLID"}; !reflect.DeepEqual(enc.Categories(), want) {
		t.Fatalf("categories = %v, want %v", enc.Categories(), want)
	}

	path := filepath.Join(t.TempDir(), "encoder.json")
	if err := enc.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	loaded, err := LoadCategoryEncoder(path, "type", ',')
	if err != nil {
		t.Fatalf("LoadCategoryEncoder returned error: %v", err)
	}
	if !reflect.DeepEqual(loaded.Codes, enc.Codes) {
		t.Fatalf("codes = %v, want %v", loaded.Codes, enc.Codes)
	}

	csvPath := writeFile(t, "encoder.csv", "category,code\nC172,3\nB738,5\n")
	fromCSV, err := LoadCategoryEncoder(csvPath, "type", ',')
	if err != nil {
		t.Fatalf("LoadCategoryEncoder(csv) returned error: %v", err)
	}
	if fromCSV.Encode("B738") != 5 || fromCSV.Encode("ZZZZ") != -1 {
		t.Fatalf("unexpected codes from csv: %v", fromCSV.Codes)
	}
}
