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
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// SortKey orders by one output column. NULL sorts before every non-NULL
// value in ascending order.
type SortKey struct {
	Col  int
	Desc bool
}

// MemorySort materializes its input and sorts it client side. The planner
// emits it when an ORDER BY key cannot be pushed into the native query, on
// computed columns or above merged partitions for example.
type MemorySort struct {
	Keys  []SortKey
	Input Primitive
}

var _ Primitive = (*MemorySort)(nil)

func (m *MemorySort) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	in, err := m.Input.Exec(ctx, pctx)
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
			return nil, errTooManyRows("sort")
		}
		rows = append(rows, row)
	}
	var sortErr error
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range m.Keys {
			cmp, err := sqltypes.NullsafeCompare(rows[i][key.Col], rows[j][key.Col])
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
		return nil, sortErr
	}
	return newSliceStream(in.Fields(), rows), nil
}

func (m *MemorySort) EstimatedRows() int64 {
	return m.Input.EstimatedRows()
}

func (m *MemorySort) Inputs() []Primitive {
	return []Primitive{m.Input}
}

func (m *MemorySort) Description() PrimitiveDescription {
	keys := make([]string, 0, len(m.Keys))
	for _, k := range m.Keys {
		dir := "asc"
		if k.Desc {
			dir = "desc"
		}
		keys = append(keys, fmt.Sprintf("%d %s", k.Col, dir))
	}
	return PrimitiveDescription{
		OperatorType:  "MemorySort",
		EstimatedRows: m.Input.EstimatedRows(),
		Other:         map[string]string{"OrderBy": strings.Join(keys, ", ")},
	}
}
