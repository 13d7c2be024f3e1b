package flights

// Dataset Loading
//
// The screener works from three delimiter-separated tables, each with a header row:
//
//   - the feature table: one row per aircraft with an identifier column, a categorical
//     type column and any number of numeric behaviour metrics;
//   - the label table: identifier and ground-truth class ("surveil" / "other");
//   - the reference list: identifiers flagged by an external analysis.
//
// The type column is turned into an integer code by a CategoryEncoder and becomes the
// first feature; the numeric columns follow in header order. Identifiers are kept apart
// from the feature vectors so they never reach the network.

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"surveil-screener/models"
	"surveil-screener/utils"
)

var (
	ErrDuplicateID   = errors.New("duplicate identifier")
	ErrMissingColumn = errors.New("missing column")
)

// TableOptions locates the special columns of the feature table.
type TableOptions struct {
	IDColumn   string
	TypeColumn string
	Delimiter  rune

	// Encoder maps type values to codes. When nil, one is fit from the table itself.
	Encoder *CategoryEncoder
}

// Table is the parsed feature table.
type Table struct {
	Columns []string // feature names, encoded type column first
	Records []models.FeatureRecord
	Encoder *CategoryEncoder
}

// IDs returns the identifiers in table order.
func (t Table) IDs() []string {
	ids := make([]string, len(t.Records))
	for i, rec := range t.Records {
		ids[i] = rec.ID
	}
	return ids
}

type delimitedFile struct {
	path   string
	header []string
	rows   [][]string
}

func readDelimited(path string, delimiter rune) (*delimitedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s is empty", path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return &delimitedFile{path: path, header: header, rows: rows}, nil
}

func (d *delimitedFile) column(name string) (int, error) {
	for i, h := range d.header {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w %q in %s", ErrMissingColumn, name, d.path)
}

// LoadFeatureTable parses the feature table at path.
func LoadFeatureTable(path string, opts TableOptions) (Table, error) {
	file, err := readDelimited(path, opts.Delimiter)
	if err != nil {
		return Table{}, err
	}

	idIdx, err := file.column(opts.IDColumn)
	if err != nil {
		return Table{}, err
	}
	typeIdx, err := file.column(opts.TypeColumn)
	if err != nil {
		return Table{}, err
	}

	var numeric []int
	columns := []string{file.header[typeIdx]}
	for i, name := range file.header {
		if i == idIdx || i == typeIdx {
			continue
		}
		numeric = append(numeric, i)
		columns = append(columns, name)
	}

	encoder := opts.Encoder
	if encoder == nil {
		values := make([]string, 0, len(file.rows))
		for _, row := range file.rows {
			values = append(values, strings.TrimSpace(row[typeIdx]))
		}
		encoder = FitCategoryEncoder(file.header[typeIdx], values)
	}

	logger := utils.GetLogger()
	seen := make(map[string]int, len(file.rows))
	records := make([]models.FeatureRecord, 0, len(file.rows))
	unknownTypes := 0

	for r, row := range file.rows {
		line := r + 2 // header is line 1
		id := strings.TrimSpace(row[idIdx])
		if id == "" {
			return Table{}, fmt.Errorf("%s line %d: empty identifier", path, line)
		}
		if first, dup := seen[id]; dup {
			return Table{}, fmt.Errorf("%s line %d: %w %q (first seen on line %d)", path, line, ErrDuplicateID, id, first)
		}
		seen[id] = line

		typeValue := strings.TrimSpace(row[typeIdx])
		code := encoder.Encode(typeValue)
		if code < 0 {
			unknownTypes++
		}

		features := make([]float64, 0, len(columns))
		features = append(features, float64(code))
		for _, idx := range numeric {
			raw := strings.TrimSpace(row[idx])
			val, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return Table{}, fmt.Errorf("%s line %d column %q: invalid number %q: %w", path, line, file.header[idx], raw, err)
			}
			if math.IsNaN(val) || math.IsInf(val, 0) {
				return Table{}, fmt.Errorf("%s line %d column %q: invalid number %q: not finite", path, line, file.header[idx], raw)
			}
			features = append(features, val)
		}

		records = append(records, models.FeatureRecord{
			ID:       id,
			Features: features,
		})
	}

	if unknownTypes > 0 {
		logger.Warn("feature table has types unknown to the encoder",
			"path", path,
			"count", unknownTypes)
	}
	logger.Debug("feature table loaded",
		"path", path,
		"records", len(records),
		"features", len(columns))

	return Table{Columns: columns, Records: records, Encoder: encoder}, nil
}

// LoadLabels reads the identifier -> class table. Rows with an empty identifier are skipped.
func LoadLabels(path, idColumn, classColumn string, delimiter rune) (map[string]string, error) {
	file, err := readDelimited(path, delimiter)
	if err != nil {
		return nil, err
	}
	idIdx, err := file.column(idColumn)
	if err != nil {
		return nil, err
	}
	classIdx, err := file.column(classColumn)
	if err != nil {
		return nil, err
	}

	labels := make(map[string]string, len(file.rows))
	for r, row := range file.rows {
		id := strings.TrimSpace(row[idIdx])
		if id == "" {
			continue
		}
		class := strings.TrimSpace(row[classIdx])
		if prev, ok := labels[id]; ok && prev != class {
			return nil, fmt.Errorf("%s line %d: identifier %q labelled both %q and %q", path, r+2, id, prev, class)
		}
		labels[id] = class
	}

	return labels, nil
}

// LoadReferenceList reads the externally supplied candidate identifiers, deduplicated in
// file order.
func LoadReferenceList(path, idColumn string, delimiter rune) ([]string, error) {
	file, err := readDelimited(path, delimiter)
	if err != nil {
		return nil, err
	}
	idIdx, err := file.column(idColumn)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(file.rows))
	ids := make([]string, 0, len(file.rows))
	for _, row := range file.rows {
		id := strings.TrimSpace(row[idIdx])
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	return ids, nil
}
