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

	"github.com/dvsql/dvsql/go/sqltypes"
)

func TestMergeAggregateGrouped(t *testing.T) {
	fields := sqltypes.MakeTestFields("statecode|total|mn|mx", "int64|int64|int64|int64")
	// two partitions delivered partials for the same groups
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields,
		"0|100|5|50",
		"1|10|1|2",
		"0|200|3|90",
		"1|null|null|null",
	)}

	result := runPrimitive(t, &MergeAggregate{
		GroupCols: []int{0},
		Aggregates: []AggregateParams{
			{Op: AggrSum, Col: 1},
			{Op: AggrMin, Col: 2},
			{Op: AggrMax, Col: 3},
		},
		OutputFields: fields,
		Input:        input,
	}, newTestContext())

	// a NULL partial leaves the merged value untouched
	expected := sqltypes.MakeTestResult(fields,
		"0|300|3|90",
		"1|10|1|2",
	)
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestMergeAggregateAvg(t *testing.T) {
	fields := sqltypes.MakeTestFields("statecode|average|s|c", "int64|decimal|int64|int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields,
		"0|null|30|2",
		"0|null|20|2",
	)}

	result := runPrimitive(t, &MergeAggregate{
		GroupCols: []int{0},
		Aggregates: []AggregateParams{
			{Op: AggrAvg, Col: 1, SumCol: 2, CountCol: 3},
		},
		OutputFields: fields,
		Input:        input,
	}, newTestContext())

	// the average is rebuilt from partial sums and counts: 50 / 4
	assert.Len(t, result.Rows, 1)
	assert.Equal(t, "decimal(12.5)", result.Rows[0][1].String())
}

func TestMergeAggregateEmptyGlobal(t *testing.T) {
	fields := sqltypes.MakeTestFields("cnt|total|average", "int64|decimal|decimal")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields)}

	result := runPrimitive(t, &MergeAggregate{
		Aggregates: []AggregateParams{
			{Op: AggrSum, Col: 0},
			{Op: AggrSum, Col: 1},
			{Op: AggrAvg, Col: 2},
		},
		OutputFields: fields,
		Input:        input,
	}, newTestContext())

	// a global aggregate over nothing yields one row: COUNT is zero,
	// SUM and AVG are NULL
	expected := sqltypes.MakeTestResult(fields, "0|null|null")
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestMergeAggregateEmptyGrouped(t *testing.T) {
	fields := sqltypes.MakeTestFields("statecode|total", "int64|int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields)}

	result := runPrimitive(t, &MergeAggregate{
		GroupCols:    []int{0},
		Aggregates:   []AggregateParams{{Op: AggrSum, Col: 1}},
		OutputFields: fields,
		Input:        input,
	}, newTestContext())
	assert.Empty(t, result.Rows)
}
