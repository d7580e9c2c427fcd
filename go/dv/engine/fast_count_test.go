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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func TestFastCount(t *testing.T) {
	meta := &dataverse.FakeMetadata{RowCounts: map[string]int64{"account": 220000}}
	fallback := &fakePrimitive{result: sqltypes.MakeTestResult(sqltypes.MakeTestFields("cnt", "int64"), "0")}
	pctx := &PlanContext{Metadata: meta, Stats: NewStats()}

	result := runPrimitive(t, &FastCount{Entity: "account", Alias: "cnt", Fallback: fallback}, pctx)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "cnt", result.Fields[0].Name)
	assert.Equal(t, "int64(220000)", result.Rows[0][0].String())
	// statistics answered, the fallback scan never ran
	assert.Equal(t, 0, fallback.execCount)
}

func TestFastCountFallback(t *testing.T) {
	meta := &dataverse.FakeMetadata{CountErr: errors.New("statistics unavailable")}
	fields := sqltypes.MakeTestFields("cnt", "int64")
	fallback := &fakePrimitive{result: sqltypes.MakeTestResult(fields, "42")}
	pctx := &PlanContext{Metadata: meta, Stats: NewStats()}

	result := runPrimitive(t, &FastCount{Entity: "account", Alias: "cnt", Fallback: fallback}, pctx)
	assert.Equal(t, "int64(42)", result.Rows[0][0].String())
	assert.Equal(t, 1, fallback.execCount)
}
