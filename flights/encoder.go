package flights

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"surveil-screener/utils"
)

// CategoryEncoder assigns integer codes to the values of one categorical column.
type CategoryEncoder struct {
	Column string         `json:"column"`
	Codes  map[string]int `json:"codes"`
}

// FitCategoryEncoder codes the distinct values in sorted order, 0..n-1, so the same set of
// values always gets the same codes.
func FitCategoryEncoder(column string, values []string) *CategoryEncoder {
	distinct := make(map[string]struct{})
	for _, v := range values {
		distinct[v] = struct{}{}
	}
	sorted := make([]string, 0, len(distinct))
	for v := range distinct {
		sorted = append(sorted, v)
	}
	sort.Strings(sorted)

	codes := make(map[string]int, len(sorted))
	for i, v := range sorted {
		codes[v] = i
	}
	return &CategoryEncoder{Column: column, Codes: codes}
}

// Encode returns the code of value, or -1 if the encoder has never seen it.
func (e *CategoryEncoder) Encode(value string) int {
	if code, ok := e.Codes[value]; ok {
		return code
	}
	return -1
}

// Categories returns the known values ordered by code.
func (e *CategoryEncoder) Categories() []string {
	out := make([]string, 0, len(e.Codes))
	for v := range e.Codes {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return e.Codes[out[i]] < e.Codes[out[j]] })
	return out
}

// LoadCategoryEncoder reads an encoder from either a JSON file written by Save or a
// delimited file with a header row naming the category column (the type column's
// name or "category") and a "code" column.
func LoadCategoryEncoder(path, column string, delimiter rune) (*CategoryEncoder, error) {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read encoder %s: %w", path, err)
		}
		var enc CategoryEncoder
		if err := json.Unmarshal(data, &enc); err != nil {
			return nil, fmt.Errorf("unable to parse encoder %s: %w", path, err)
		}
		if enc.Codes == nil {
			enc.Codes = map[string]int{}
		}
		if enc.Column == "" {
			enc.Column = column
		}
		return &enc, nil
	}

	file, err := readDelimited(path, delimiter)
	if err != nil {
		return nil, err
	}
	catIdx, err := file.column(column)
	if err != nil {
		if catIdx, err = file.column("category"); err != nil {
			return nil, fmt.Errorf("encoder %s: %w", path, err)
		}
	}
	codeIdx, err := file.column("code")
	if err != nil {
		return nil, fmt.Errorf("encoder %s: %w", path, err)
	}

	enc := &CategoryEncoder{Column: column, Codes: make(map[string]int, len(file.rows))}
	for r, row := range file.rows {
		raw := strings.TrimSpace(row[codeIdx])
		code, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: invalid code %q: %w", path, r+2, raw, err)
		}
		enc.Codes[strings.TrimSpace(row[catIdx])] = code
	}
	return enc, nil
}

// Save writes the encoder as JSON.
func (e *CategoryEncoder) Save(path string) error {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := utils.CreateFolder(dir); err != nil {
			return fmt.Errorf("failed to create encoder directory: %w", err)
		}
	}
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal encoder: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write encoder: %w", err)
	}
	return nil
}
