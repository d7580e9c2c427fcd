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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dvsql/dvsql/go/sqltypes"
)

func TestDistinct(t *testing.T) {
	fields := sqltypes.MakeTestFields("statecode|name", "int64|text")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields,
		"0|alpha",
		"0|alpha",
		"1|alpha",
		"0|beta",
		"null|alpha",
		"null|alpha",
	)}

	result := runPrimitive(t, &Distinct{Input: input}, newTestContext())
	// NULLs compare equal for deduplication
	expected := sqltypes.MakeTestResult(fields,
		"0|alpha",
		"1|alpha",
		"0|beta",
		"null|alpha",
	)
	assert.Equal(t, expected.Rows, result.Rows)
	assert.Equal(t, 1, input.closeCount)
}

func TestDistinctCheckCols(t *testing.T) {
	fields := sqltypes.MakeTestFields("statecode|name", "int64|text")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields,
		"0|alpha",
		"0|beta",
		"1|gamma",
	)}

	// dedup on the first column only: the first row of each key wins
	result := runPrimitive(t, &Distinct{CheckCols: []int{0}, Input: input}, newTestContext())
	expected := sqltypes.MakeTestResult(fields,
		"0|alpha",
		"1|gamma",
	)
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestMemorySort(t *testing.T) {
	fields := sqltypes.MakeTestFields("statecode|revenue", "int64|int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields,
		"1|300",
		"0|100",
		"1|null",
		"0|200",
	)}

	// NULL sorts before every value ascending
	result := runPrimitive(t, &MemorySort{
		Keys:  []SortKey{{Col: 0}, {Col: 1}},
		Input: input,
	}, newTestContext())
	expected := sqltypes.MakeTestResult(fields,
		"0|100",
		"0|200",
		"1|null",
		"1|300",
	)
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestMemorySortDesc(t *testing.T) {
	fields := sqltypes.MakeTestFields("revenue", "int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields, "100", "null", "300", "200")}

	result := runPrimitive(t, &MemorySort{
		Keys:  []SortKey{{Col: 0, Desc: true}},
		Input: input,
	}, newTestContext())
	expected := sqltypes.MakeTestResult(fields, "300", "200", "100", "null")
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestLimit(t *testing.T) {
	fields := sqltypes.MakeTestFields("n", "int64")
	input := &fakePrimitive{result: sqltypes.MakeTestResult(fields, "1", "2", "3", "4")}

	result := runPrimitive(t, &Limit{Count: 2, Input: input}, newTestContext())
	assert.Equal(t, sqltypes.MakeTestResult(fields, "1", "2").Rows, result.Rows)
	assert.Equal(t, 1, input.closeCount)
}

func TestConcatenate(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	first := &fakePrimitive{result: sqltypes.MakeTestResult(fields, "a", "b")}
	second := &fakePrimitive{result: sqltypes.MakeTestResult(sqltypes.MakeTestFields("fullname", "text"), "c")}

	c := &Concatenate{Sources: []Primitive{first, second}}
	stream, err := c.Exec(context.Background(), newTestContext())
	assert.NoError(t, err)

	// the second source is not opened until the first is exhausted
	assert.Equal(t, 1, first.execCount)
	assert.Equal(t, 0, second.execCount)

	result, err := Drain(stream)
	assert.NoError(t, err)
	assert.Equal(t, 1, second.execCount)
	// field names come from the first branch
	assert.Equal(t, fields, result.Fields)
	assert.Equal(t, sqltypes.MakeTestResult(fields, "a", "b", "c").Rows, result.Rows)
}

func TestConcatenateColumnMismatch(t *testing.T) {
	first := &fakePrimitive{result: sqltypes.MakeTestResult(sqltypes.MakeTestFields("a", "int64"), "1")}
	second := &fakePrimitive{result: sqltypes.MakeTestResult(sqltypes.MakeTestFields("a|b", "int64|int64"), "1|2")}

	c := &Concatenate{Sources: []Primitive{first, second}}
	stream, err := c.Exec(context.Background(), newTestContext())
	assert.NoError(t, err)
	_, err = Drain(stream)
	assert.ErrorContains(t, err, "produced 2 columns, want 1")
}
