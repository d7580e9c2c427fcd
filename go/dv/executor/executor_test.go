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

package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/planbuilder"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func testMeta() *dataverse.FakeMetadata {
	return &dataverse.FakeMetadata{
		EntityList: []dataverse.EntityMeta{
			{LogicalName: "account", PrimaryID: "accountid", PrimaryName: "name", CreatedAtName: "createdon"},
		},
		AttrsByEnt: map[string][]dataverse.AttributeMeta{
			"account": {
				{LogicalName: "accountid", Type: sqltypes.Guid, IsPrimaryID: true},
				{LogicalName: "name", Type: sqltypes.Text},
				{LogicalName: "statecode", Type: sqltypes.Int64},
				{LogicalName: "revenue", Type: sqltypes.Decimal},
			},
		},
		RowCounts: map[string]int64{"account": 3000},
	}
}

func TestExecuteSelect(t *testing.T) {
	fields := sqltypes.MakeTestFields("name|revenue", "text|decimal")
	e := &Executor{
		Pool: &dataverse.FakePool{
			Pages: map[string][]*dataverse.FetchPage{
				"account": {{Result: sqltypes.MakeTestResult(fields, "contoso|150.5", "fabrikam|99")}},
			},
		},
		Metadata: testMeta(),
	}

	result, err := e.ExecuteToResult(context.Background(), "select name, revenue from account where statecode = 0", nil)
	require.NoError(t, err)
	require.Len(t, result.Fields, 2)
	assert.Equal(t, "name", result.Fields[0].Name)
	assert.Equal(t, "revenue", result.Fields[1].Name)
	require.Len(t, result.Rows, 2)
	assert.Equal(t, "text(contoso)", result.Rows[0][0].String())
}

func TestExecuteMetadataCatalog(t *testing.T) {
	// catalog queries are answered from the metadata store, no pool needed
	e := &Executor{Metadata: testMeta()}
	result, err := e.ExecuteToResult(context.Background(),
		"select logicalname from metadata.attribute where entitylogicalname = 'account' and attributetype = 'decimal'", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "text(revenue)", result.Rows[0][0].String())
}

func TestExecuteFromless(t *testing.T) {
	e := &Executor{Metadata: testMeta()}
	result, err := e.ExecuteToResult(context.Background(), "select 1 + 1 as two", nil)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "int64(2)", result.Rows[0][0].String())
	assert.Equal(t, "two", result.Fields[0].Name)
}

func TestExecuteParams(t *testing.T) {
	fields := sqltypes.MakeTestFields("name|revenue", "text|decimal")
	e := &Executor{
		Pool: &dataverse.FakePool{
			Pages: map[string][]*dataverse.FetchPage{
				"account": {{Result: sqltypes.MakeTestResult(fields, "contoso|150.5", "fabrikam|99")}},
			},
		},
		Metadata: testMeta(),
	}

	// placeholders are not pushable, so the comparison runs client side
	opts := &ExecuteOptions{Params: map[string]sqltypes.Value{"floor": sqltypes.NewInt64(100)}}
	result, err := e.ExecuteToResult(context.Background(), "select name, revenue from account where revenue > :floor", opts)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "text(contoso)", result.Rows[0][0].String())
}

func TestExecuteParseError(t *testing.T) {
	e := &Executor{Metadata: testMeta()}
	_, err := e.Execute(context.Background(), "select * frm account", nil)
	require.Error(t, err)
	assert.Equal(t, dverrors.Syntax, dverrors.CodeOf(err))
}

func TestExecuteDML(t *testing.T) {
	fields := sqltypes.MakeTestFields("accountid|statecode", "guid|int64")
	bulk := &dataverse.FakeBulkWriter{}
	e := &Executor{
		Pool: &dataverse.FakePool{
			Pages: map[string][]*dataverse.FetchPage{
				"account": {{Result: sqltypes.MakeTestResult(fields, "0a|0", "0b|0")}},
			},
		},
		Bulk:     bulk,
		Metadata: testMeta(),
	}

	result, err := e.ExecuteToResult(context.Background(), "update account set statecode = 1 where statecode = 0", nil)
	require.NoError(t, err)
	assert.Equal(t, "int64(2)", result.Rows[0][0].String())
	require.Len(t, bulk.Writes, 1)
	assert.Equal(t, dataverse.WriteUpdate, bulk.Writes[0].Op)
}

func TestExplain(t *testing.T) {
	e := &Executor{Metadata: testMeta()}
	out, err := e.Explain(context.Background(), "select name from account where len(name) > 5", nil)
	require.NoError(t, err)
	assert.Contains(t, out, "Projection")
	assert.Contains(t, out, "Filter")
	assert.Contains(t, out, "FetchScan on account")
	// explain never touches the record store
	assert.Contains(t, out, "client side")
}

func TestExplainWarnings(t *testing.T) {
	e := &Executor{Metadata: testMeta()}
	opts := &ExecuteOptions{Plan: planbuilder.PlanOptions{Accelerate: true}}
	out, err := e.Explain(context.Background(), "select name from account where accountid = :id", opts)
	require.NoError(t, err)
	assert.Contains(t, out, "warning: accelerated path unavailable")
}

func TestExecuteAccelerated(t *testing.T) {
	fields := sqltypes.MakeTestFields("name", "text")
	tds := &dataverse.FakeTDS{Result: sqltypes.MakeTestResult(fields, "contoso")}
	e := &Executor{TDS: tds, Metadata: testMeta()}

	opts := &ExecuteOptions{Plan: planbuilder.PlanOptions{Accelerate: true}}
	result, err := e.ExecuteToResult(context.Background(), "select name from account", opts)
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)
	require.Len(t, tds.Queries, 1)
	assert.Equal(t, "select name from account", tds.Queries[0])
}
