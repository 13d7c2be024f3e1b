package flights

import "errors"

var ErrEmptyPool = errors.New("pool has no records")

// Pool is an immutable set of records flowing between pipeline stages. IDs, Rows and
// Classes are parallel; Classes is nil for unlabeled pools. Stages return new Pools
// instead of modifying the ones they are given.
type Pool struct {
	Name    string
	Columns []string
	IDs     []string
	Rows    [][]float64
	Classes []string
}

func (p Pool) Len() int {
	return len(p.IDs)
}

func (p Pool) Labeled() bool {
	return p.Classes != nil
}

// Matrix returns a copy of the feature rows with the identifiers stripped.
func (p Pool) Matrix() [][]float64 {
	out := make([][]float64, len(p.Rows))
	for i, row := range p.Rows {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// withRows returns a copy of p carrying rows in place of its own.
func (p Pool) withRows(rows [][]float64) Pool {
	return Pool{
		Name:    p.Name,
		Columns: append([]string(nil), p.Columns...),
		IDs:     append([]string(nil), p.IDs...),
		Rows:    rows,
		Classes: cloneStrings(p.Classes),
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}
