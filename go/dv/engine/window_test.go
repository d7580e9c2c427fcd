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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/sqltypes"
)

func TestWindowRowNumber(t *testing.T) {
	in := sqltypes.MakeTestFields("dept|amount", "int64|int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(in,
		"1|300",
		"2|50",
		"1|100",
		"1|200",
	)}

	out := sqltypes.MakeTestFields("dept|amount|rn", "int64|int64|int64")
	result := runPrimitive(t, &Window{
		Windows: []WindowSpec{{
			Func:        WindowRowNumber,
			ArgCol:      -1,
			PartitionBy: []int{0},
			OrderBy:     []SortKey{{Col: 1, Desc: true}},
		}},
		OutputFields: out,
		Input:        input,
	}, newTestContext())

	// numbering follows the order-by, output keeps the input order
	expected := sqltypes.MakeTestResult(out,
		"1|300|1",
		"2|50|1",
		"1|100|3",
		"1|200|2",
	)
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestWindowRankTies(t *testing.T) {
	in := sqltypes.MakeTestFields("amount", "int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(in,
		"100",
		"100",
		"200",
		"300",
	)}

	out := sqltypes.MakeTestFields("amount|rnk|drnk", "int64|int64|int64")
	result := runPrimitive(t, &Window{
		Windows: []WindowSpec{
			{Func: WindowRank, ArgCol: -1, OrderBy: []SortKey{{Col: 0}}},
			{Func: WindowDenseRank, ArgCol: -1, OrderBy: []SortKey{{Col: 0}}},
		},
		OutputFields: out,
		Input:        input,
	}, newTestContext())

	// rank leaves a gap after the tie, dense_rank does not
	expected := sqltypes.MakeTestResult(out,
		"100|1|1",
		"100|1|1",
		"200|3|2",
		"300|4|3",
	)
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestWindowAggregates(t *testing.T) {
	in := sqltypes.MakeTestFields("dept|amount", "int64|int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(in,
		"1|100",
		"1|null",
		"1|200",
		"2|50",
	)}

	out := sqltypes.MakeTestFields("dept|amount|total|cnt|average", "int64|int64|int64|int64|decimal")
	result := runPrimitive(t, &Window{
		Windows: []WindowSpec{
			{Func: WindowSum, ArgCol: 1, PartitionBy: []int{0}},
			{Func: WindowCount, ArgCol: 1, PartitionBy: []int{0}},
			{Func: WindowAvg, ArgCol: 1, PartitionBy: []int{0}},
		},
		OutputFields: out,
		Input:        input,
	}, newTestContext())

	// NULL arguments are skipped by every aggregate, COUNT included
	expected := [][]string{
		{"int64(1)", "int64(100)", "int64(300)", "int64(2)", "decimal(150)"},
		{"int64(1)", "NULL", "int64(300)", "int64(2)", "decimal(150)"},
		{"int64(1)", "int64(200)", "int64(300)", "int64(2)", "decimal(150)"},
		{"int64(2)", "int64(50)", "int64(50)", "int64(1)", "decimal(50)"},
	}
	require.Len(t, result.Rows, len(expected))
	for i, row := range result.Rows {
		for j, v := range row {
			assert.Equal(t, expected[i][j], v.String(), "row %d col %d", i, j)
		}
	}
}

func TestWindowEmptyInput(t *testing.T) {
	in := sqltypes.MakeTestFields("amount", "int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(in)}

	out := sqltypes.MakeTestFields("amount|rn", "int64|int64")
	result := runPrimitive(t, &Window{
		Windows:      []WindowSpec{{Func: WindowRowNumber, ArgCol: -1, OrderBy: []SortKey{{Col: 0}}}},
		OutputFields: out,
		Input:        input,
	}, newTestContext())
	assert.Empty(t, result.Rows)
}
