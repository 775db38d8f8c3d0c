package plan

import (
	"sort"

	"github.com/samyama-ai/samyama-graph-sub000/pkg/cypher"
	"github.com/samyama-ai/samyama-graph-sub000/pkg/graph"
)

func cmpValues(a, b graph.PropertyValue) int { return graph.Compare(a, b) }

// SkipLimit drops the first Skip rows and, when HasLimit is set, stops
// after Limit further rows (LIMIT 0 yields no rows), implementing RETURN's "SKIP n LIMIT n" clause
// (spec §4.F).
type SkipLimit struct {
	Input        Operator
	Skip         int64
	Limit        int64
	HasLimit     bool
	skipped      int64
	returned     int64
}

func (s *SkipLimit) Open() error { s.skipped, s.returned = 0, 0; return s.Input.Open() }

func (s *SkipLimit) Next() (Row, bool, error) {
	if s.HasLimit && s.returned >= s.Limit {
		return nil, false, nil
	}
	for s.skipped < s.Skip {
		_, ok, err := s.Input.Next()
		if err != nil || !ok {
			return nil, false, err
		}
		s.skipped++
	}
	row, ok, err := s.Input.Next()
	if err != nil || !ok {
		return nil, false, err
	}
	s.returned++
	return row, true, nil
}

func (s *SkipLimit) Close() error     { return s.Input.Close() }
func (s *SkipLimit) Describe() string { return describeChild("SkipLimit", s.Input, "") }

// Sort materializes its input and orders it by OrderBy, since a Volcano
// sort operator must see every row before producing its first output
// (spec §4.F ORDER BY).
type Sort struct {
	Input   Operator
	OrderBy []cypher.OrderItem

	rows []Row
	idx  int
	err  error
}

func (s *Sort) Open() error {
	if err := s.Input.Open(); err != nil {
		return err
	}
	s.rows = nil
	s.idx = 0
	s.err = nil
	for {
		row, ok, err := s.Input.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		s.rows = append(s.rows, row)
	}
	sort.SliceStable(s.rows, func(i, j int) bool {
		for _, item := range s.OrderBy {
			vi, erri := Eval(item.Expr, s.rows[i])
			vj, errj := Eval(item.Expr, s.rows[j])
			if erri != nil || errj != nil {
				s.err = erri
				if s.err == nil {
					s.err = errj
				}
				return false
			}
			c := cmpValues(vi, vj)
			if c == 0 {
				continue
			}
			if item.Descending {
				return c > 0
			}
			return c < 0
		}
		return false
	})
	return nil
}

func (s *Sort) Next() (Row, bool, error) {
	if s.err != nil {
		return nil, false, s.err
	}
	if s.idx >= len(s.rows) {
		return nil, false, nil
	}
	row := s.rows[s.idx]
	s.idx++
	return row, true, nil
}

func (s *Sort) Close() error     { return s.Input.Close() }
func (s *Sort) Describe() string { return describeChild("Sort", s.Input, "") }
