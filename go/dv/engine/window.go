/*
Copyright 2025 The DVSQL Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package engine

import (
	"context"
	"io"
	"sort"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/evalengine"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// WindowFunc identifies one window function.
type WindowFunc int

const (
	WindowRowNumber WindowFunc = iota
	WindowRank
	WindowDenseRank
	WindowSum
	WindowAvg
	WindowMin
	WindowMax
	WindowCount
)

func (f WindowFunc) String() string {
	switch f {
	case WindowRowNumber:
		return "row_number"
	case WindowRank:
		return "rank"
	case WindowDenseRank:
		return "dense_rank"
	case WindowSum:
		return "sum"
	case WindowAvg:
		return "avg"
	case WindowMin:
		return "min"
	case WindowMax:
		return "max"
	case WindowCount:
		return "count"
	}
	return "unknown"
}

// WindowSpec describes one OVER clause, resolved to column indexes.
type WindowSpec struct {
	Func WindowFunc
	// ArgCol is the aggregate argument column, -1 for ranking functions.
	ArgCol      int
	PartitionBy []int
	OrderBy     []SortKey
}

// Window appends one computed column per spec. The input is fully
// materialized: each partition must be complete before its ranks or its
// aggregate can be known. Input row order is preserved in the output.
type Window struct {
	Windows      []WindowSpec
	OutputFields []sqltypes.Field
	Input        Primitive
}

var _ Primitive = (*Window)(nil)

func (w *Window) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	in, err := w.Input.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	var rows []sqltypes.Row
	for {
		row, err := in.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rows) == MaxMaterializedRows {
			return nil, errTooManyRows("window")
		}
		rows = append(rows, row)
	}

	appended := make([][]sqltypes.Value, len(w.Windows))
	for i, spec := range w.Windows {
		col, err := computeWindow(spec, rows)
		if err != nil {
			return nil, err
		}
		appended[i] = col
	}

	out := make([]sqltypes.Row, len(rows))
	for i, row := range rows {
		wide := make(sqltypes.Row, 0, len(row)+len(appended))
		wide = append(wide, row...)
		for _, col := range appended {
			wide = append(wide, col[i])
		}
		out[i] = wide
	}
	return newSliceStream(w.OutputFields, out), nil
}

// computeWindow evaluates one spec over all rows, returning one value per
// input row, positionally aligned.
func computeWindow(spec WindowSpec, rows []sqltypes.Row) ([]sqltypes.Value, error) {
	partitions := partitionRows(spec.PartitionBy, rows)
	result := make([]sqltypes.Value, len(rows))
	for _, part := range partitions {
		switch spec.Func {
		case WindowRowNumber, WindowRank, WindowDenseRank:
			if err := rankPartition(spec, rows, part, result); err != nil {
				return nil, err
			}
		default:
			if err := aggregatePartition(spec, rows, part, result); err != nil {
				return nil, err
			}
		}
	}
	return result, nil
}

// partitionRows groups row indexes by partition key.
func partitionRows(cols []int, rows []sqltypes.Row) [][]int {
	if len(cols) == 0 {
		all := make([]int, len(rows))
		for i := range rows {
			all[i] = i
		}
		if len(all) == 0 {
			return nil
		}
		return [][]int{all}
	}
	type bucket struct {
		sample sqltypes.Row
		idx    []int
	}
	groups := make(map[evalengine.HashCode][]*bucket)
	var order []*bucket
	for i, row := range rows {
		code := evalengine.HashRow(row, cols)
		var found *bucket
		for _, b := range groups[code] {
			if evalengine.RowsEqual(b.sample, row, cols) {
				found = b
				break
			}
		}
		if found == nil {
			found = &bucket{sample: row}
			groups[code] = append(groups[code], found)
			order = append(order, found)
		}
		found.idx = append(found.idx, i)
	}
	out := make([][]int, len(order))
	for i, b := range order {
		out[i] = b.idx
	}
	return out
}

func rankPartition(spec WindowSpec, rows []sqltypes.Row, part []int, result []sqltypes.Value) error {
	sorted := make([]int, len(part))
	copy(sorted, part)
	var sortErr error
	sort.SliceStable(sorted, func(a, b int) bool {
		for _, key := range spec.OrderBy {
			cmp, err := sqltypes.NullsafeCompare(rows[sorted[a]][key.Col], rows[sorted[b]][key.Col])
			if err != nil {
				if sortErr == nil {
					sortErr = err
				}
				return false
			}
			if cmp == 0 {
				continue
			}
			if key.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
	if sortErr != nil {
		return sortErr
	}
	rank, denseRank := int64(0), int64(0)
	for pos, idx := range sorted {
		newGroup := pos == 0 || !orderKeysEqual(spec.OrderBy, rows[sorted[pos-1]], rows[idx])
		if newGroup {
			rank = int64(pos) + 1
			denseRank++
		}
		switch spec.Func {
		case WindowRowNumber:
			result[idx] = sqltypes.NewInt64(int64(pos) + 1)
		case WindowRank:
			result[idx] = sqltypes.NewInt64(rank)
		case WindowDenseRank:
			result[idx] = sqltypes.NewInt64(denseRank)
		}
	}
	return nil
}

func orderKeysEqual(keys []SortKey, a, b sqltypes.Row) bool {
	for _, key := range keys {
		cmp, err := sqltypes.NullsafeCompare(a[key.Col], b[key.Col])
		if err != nil || cmp != 0 {
			return false
		}
	}
	return true
}

func aggregatePartition(spec WindowSpec, rows []sqltypes.Row, part []int, result []sqltypes.Value) error {
	acc := sqltypes.NULL
	var count int64
	var err error
	for _, idx := range part {
		v := rows[idx][spec.ArgCol]
		if v.IsNull() {
			continue
		}
		count++
		switch spec.Func {
		case WindowSum, WindowAvg:
			acc, err = evalengine.MergeSum(acc, v)
		case WindowMin:
			acc, err = evalengine.MergeMin(acc, v)
		case WindowMax:
			acc, err = evalengine.MergeMax(acc, v)
		case WindowCount:
		default:
			err = dverrors.Errorf(dverrors.Internal, "unsupported window function %v", spec.Func)
		}
		if err != nil {
			return err
		}
	}
	out := acc
	switch spec.Func {
	case WindowCount:
		out = sqltypes.NewInt64(count)
	case WindowAvg:
		out, err = evalengine.AvgFromParts(acc, sqltypes.NewInt64(count))
		if err != nil {
			return err
		}
	}
	for _, idx := range part {
		result[idx] = out
	}
	return nil
}

func (w *Window) EstimatedRows() int64 {
	return w.Input.EstimatedRows()
}

func (w *Window) Inputs() []Primitive {
	return []Primitive{w.Input}
}

func (w *Window) Description() PrimitiveDescription {
	funcs := make([]string, 0, len(w.Windows))
	for _, spec := range w.Windows {
		funcs = append(funcs, spec.Func.String())
	}
	return PrimitiveDescription{
		OperatorType:  "Window",
		EstimatedRows: w.Input.EstimatedRows(),
		Other:         map[string]string{"Functions": joinNames(funcs)},
	}
}
