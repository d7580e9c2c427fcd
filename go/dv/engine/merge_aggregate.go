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

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/evalengine"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// AggregateOp is the merge rule for one partial-aggregate column.
type AggregateOp int

const (
	// AggrSum also merges COUNT partials: counts add.
	AggrSum AggregateOp = iota
	AggrMin
	AggrMax
	// AggrAvg recomputes the average from partial sums and counts. Never
	// average averages.
	AggrAvg
)

func (op AggregateOp) String() string {
	switch op {
	case AggrSum:
		return "sum"
	case AggrMin:
		return "min"
	case AggrMax:
		return "max"
	case AggrAvg:
		return "avg"
	}
	return "unknown"
}

// AggregateParams describes one merged column. Col is both the partial's
// input position and the merged value's output position. For AggrAvg, SumCol
// and CountCol locate the partial sum and partial count in the input row.
type AggregateParams struct {
	Op       AggregateOp
	Col      int
	SumCol   int
	CountCol int
}

// MergeAggregate combines pre-aggregated rows from partitioned scans (or
// re-aggregates a date-bucketed server result) by group key. Output rows keep
// the input layout with partial columns overwritten by merged values.
type MergeAggregate struct {
	GroupCols    []int
	Aggregates   []AggregateParams
	OutputFields []sqltypes.Field
	Input        Primitive
}

var _ Primitive = (*MergeAggregate)(nil)

type aggGroup struct {
	row    sqltypes.Row
	avgSum []sqltypes.Value
	avgCnt []sqltypes.Value
}

func (m *MergeAggregate) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	in, err := m.Input.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	groups := make(map[evalengine.HashCode][]*aggGroup)
	var order []*aggGroup
	for {
		row, err := in.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		g, err := m.findGroup(groups, &order, row)
		if err != nil {
			return nil, err
		}
		if g == nil {
			continue
		}
		if err := m.mergeInto(g, row); err != nil {
			return nil, err
		}
	}

	// A global aggregate over zero input rows still yields one row.
	if len(order) == 0 && len(m.GroupCols) == 0 {
		order = append(order, m.emptyGroup())
	}

	rows := make([]sqltypes.Row, 0, len(order))
	for _, g := range order {
		if err := m.finalize(g); err != nil {
			return nil, err
		}
		rows = append(rows, g.row)
	}
	return newSliceStream(m.OutputFields, rows), nil
}

// findGroup locates the row's group, creating it on first sight. Creation
// seeds the group from the row itself, so a nil return tells the caller the
// row is already consumed.
func (m *MergeAggregate) findGroup(groups map[evalengine.HashCode][]*aggGroup, order *[]*aggGroup, row sqltypes.Row) (*aggGroup, error) {
	code := evalengine.HashRow(row, m.GroupCols)
	for _, g := range groups[code] {
		if evalengine.RowsEqual(g.row, row, m.GroupCols) {
			return g, nil
		}
	}
	g := m.newGroup(row)
	groups[code] = append(groups[code], g)
	*order = append(*order, g)
	return nil, nil
}

func (m *MergeAggregate) newGroup(row sqltypes.Row) *aggGroup {
	g := &aggGroup{
		row:    append(sqltypes.Row(nil), row...),
		avgSum: make([]sqltypes.Value, len(m.Aggregates)),
		avgCnt: make([]sqltypes.Value, len(m.Aggregates)),
	}
	for i, p := range m.Aggregates {
		if p.Op == AggrAvg {
			g.avgSum[i] = row[p.SumCol]
			g.avgCnt[i] = row[p.CountCol]
		}
	}
	return g
}

func (m *MergeAggregate) emptyGroup() *aggGroup {
	row := make(sqltypes.Row, len(m.OutputFields))
	for i := range row {
		row[i] = sqltypes.NULL
	}
	g := &aggGroup{
		row:    row,
		avgSum: make([]sqltypes.Value, len(m.Aggregates)),
		avgCnt: make([]sqltypes.Value, len(m.Aggregates)),
	}
	for i, p := range m.Aggregates {
		if p.Op == AggrSum && m.OutputFields[p.Col].Type == sqltypes.Int64 {
			// COUNT over nothing is zero, not NULL
			g.row[p.Col] = sqltypes.NewInt64(0)
		}
		if p.Op == AggrAvg {
			g.avgSum[i] = sqltypes.NULL
			g.avgCnt[i] = sqltypes.NewInt64(0)
		}
	}
	return g
}

func (m *MergeAggregate) mergeInto(g *aggGroup, row sqltypes.Row) error {
	var err error
	for i, p := range m.Aggregates {
		switch p.Op {
		case AggrSum:
			g.row[p.Col], err = evalengine.MergeSum(g.row[p.Col], row[p.Col])
		case AggrMin:
			g.row[p.Col], err = evalengine.MergeMin(g.row[p.Col], row[p.Col])
		case AggrMax:
			g.row[p.Col], err = evalengine.MergeMax(g.row[p.Col], row[p.Col])
		case AggrAvg:
			g.avgSum[i], err = evalengine.MergeSum(g.avgSum[i], row[p.SumCol])
			if err == nil {
				g.avgCnt[i], err = evalengine.MergeSum(g.avgCnt[i], row[p.CountCol])
			}
		default:
			err = dverrors.Errorf(dverrors.Internal, "unsupported merge op %v", p.Op)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (m *MergeAggregate) finalize(g *aggGroup) error {
	for i, p := range m.Aggregates {
		if p.Op != AggrAvg {
			continue
		}
		cnt := g.avgCnt[i]
		if cnt.IsNull() {
			cnt = sqltypes.NewInt64(0)
		}
		avg, err := evalengine.AvgFromParts(g.avgSum[i], cnt)
		if err != nil {
			return err
		}
		g.row[p.Col] = avg
	}
	return nil
}

func (m *MergeAggregate) EstimatedRows() int64 {
	return EstimateUnknown
}

func (m *MergeAggregate) Inputs() []Primitive {
	return []Primitive{m.Input}
}

func (m *MergeAggregate) Description() PrimitiveDescription {
	ops := make([]string, 0, len(m.Aggregates))
	for _, p := range m.Aggregates {
		ops = append(ops, p.Op.String())
	}
	return PrimitiveDescription{
		OperatorType:  "MergeAggregate",
		EstimatedRows: EstimateUnknown,
		Other:         map[string]string{"Aggregates": joinNames(ops)},
	}
}
