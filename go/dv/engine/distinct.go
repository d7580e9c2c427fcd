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

	"github.com/dvsql/dvsql/go/dv/evalengine"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// Distinct removes duplicate rows with an in-memory probe table. NULLs
// compare equal for deduplication. The input is fully drained before the
// first row is produced; this is one of the few materializing operators.
type Distinct struct {
	// CheckCols restricts the comparison to a column subset; nil compares
	// whole rows.
	CheckCols []int
	Input     Primitive
}

var _ Primitive = (*Distinct)(nil)

type probeTable struct {
	seen      map[evalengine.HashCode][]sqltypes.Row
	checkCols []int
}

func newProbeTable(checkCols []int) *probeTable {
	return &probeTable{seen: make(map[evalengine.HashCode][]sqltypes.Row), checkCols: checkCols}
}

// tryAdd reports whether the row was new, adding it if so.
func (pt *probeTable) tryAdd(row sqltypes.Row) bool {
	code := evalengine.HashRow(row, pt.checkCols)
	for _, prev := range pt.seen[code] {
		if evalengine.RowsEqual(prev, row, pt.checkCols) {
			return false
		}
	}
	pt.seen[code] = append(pt.seen[code], row)
	return true
}

func (d *Distinct) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	in, err := d.Input.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	defer in.Close()
	pt := newProbeTable(d.CheckCols)
	var rows []sqltypes.Row
	for {
		row, err := in.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if pt.tryAdd(row) {
			if len(rows) == MaxMaterializedRows {
				return nil, errTooManyRows("distinct")
			}
			rows = append(rows, row)
		}
	}
	return newSliceStream(in.Fields(), rows), nil
}

func (d *Distinct) EstimatedRows() int64 {
	return EstimateUnknown
}

func (d *Distinct) Inputs() []Primitive {
	return []Primitive{d.Input}
}

func (d *Distinct) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "Distinct",
		EstimatedRows: EstimateUnknown,
	}
}
