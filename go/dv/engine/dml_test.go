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
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func setExpr(t *testing.T, sql string) sqlparser.Expr {
	t.Helper()
	stmt, err := sqlparser.Parse("select " + sql)
	require.NoError(t, err)
	return stmt.(*sqlparser.Select).SelectExprs[0].Expr
}

func TestDMLUpdate(t *testing.T) {
	fields := sqltypes.MakeTestFields("accountid|revenue", "guid|int64")
	source := &fakePrimitive{result: sqltypes.MakeTestResult(fields,
		"0a|100",
		"0b|200",
	)}
	bulk := &dataverse.FakeBulkWriter{}
	pctx := &PlanContext{Bulk: bulk, Stats: NewStats()}

	result := runPrimitive(t, &DMLExecute{
		Op:           DMLUpdate,
		Entity:       "account",
		PrimaryIDCol: 0,
		Source:       source,
		Sets:         []SetExpr{{Attr: "revenue", Expr: setExpr(t, "revenue * 2")}},
	}, pctx)

	// one row, the affected count
	assert.Equal(t, "rowsaffected", result.Fields[0].Name)
	require.Len(t, result.Rows, 1)
	assert.Equal(t, "int64(2)", result.Rows[0][0].String())

	// the whole source is drained into a single write call
	require.Len(t, bulk.Writes, 1)
	write := bulk.Writes[0]
	assert.Equal(t, dataverse.WriteUpdate, write.Op)
	require.Len(t, write.Entities, 2)
	assert.Equal(t, "0a", write.Entities[0].ID)
	assert.Equal(t, "int64(200)", write.Entities[0].Attributes["revenue"].String())
	assert.Equal(t, "0b", write.Entities[1].ID)
	assert.Equal(t, "int64(400)", write.Entities[1].Attributes["revenue"].String())
}

func TestDMLUpdateMaxRows(t *testing.T) {
	fields := sqltypes.MakeTestFields("accountid", "guid")
	source := &fakePrimitive{result: sqltypes.MakeTestResult(fields, "0a", "0b", "0c")}
	bulk := &dataverse.FakeBulkWriter{}
	pctx := &PlanContext{Bulk: bulk, Stats: NewStats()}

	d := &DMLExecute{
		Op:           DMLUpdate,
		Entity:       "account",
		PrimaryIDCol: 0,
		Source:       source,
		MaxRows:      2,
	}
	_, err := d.Exec(context.Background(), pctx)
	require.Error(t, err)
	assert.Equal(t, dverrors.DMLBlocked, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "update on account matches more than 2 rows")

	// nothing is written when the cap trips
	assert.Empty(t, bulk.Writes)
}

func TestDMLInsert(t *testing.T) {
	fields := sqltypes.MakeTestFields("c0|c1", "text|int64")
	source := &fakePrimitive{result: sqltypes.MakeTestResult(fields, "contoso|5")}
	bulk := &dataverse.FakeBulkWriter{}
	pctx := &PlanContext{Bulk: bulk, Stats: NewStats()}

	result := runPrimitive(t, &DMLExecute{
		Op:         DMLInsert,
		Entity:     "account",
		Source:     source,
		InsertCols: []string{"name", "numberofemployees"},
	}, pctx)
	assert.Equal(t, "int64(1)", result.Rows[0][0].String())

	require.Len(t, bulk.Writes, 1)
	write := bulk.Writes[0]
	assert.Equal(t, dataverse.WriteCreate, write.Op)
	require.Len(t, write.Entities, 1)
	assert.Equal(t, "text(contoso)", write.Entities[0].Attributes["name"].String())
	assert.Equal(t, "int64(5)", write.Entities[0].Attributes["numberofemployees"].String())
}

func TestDMLDelete(t *testing.T) {
	fields := sqltypes.MakeTestFields("accountid", "guid")
	source := &fakePrimitive{result: sqltypes.MakeTestResult(fields, "0a", "0b")}
	bulk := &dataverse.FakeBulkWriter{}
	pctx := &PlanContext{Bulk: bulk, Stats: NewStats()}

	result := runPrimitive(t, &DMLExecute{
		Op:           DMLDelete,
		Entity:       "contact",
		PrimaryIDCol: 0,
		Source:       source,
	}, pctx)
	assert.Equal(t, "int64(2)", result.Rows[0][0].String())

	require.Len(t, bulk.Writes, 1)
	write := bulk.Writes[0]
	assert.Equal(t, dataverse.WriteDelete, write.Op)
	assert.Equal(t, "0a", write.Entities[0].ID)
	assert.Equal(t, "0b", write.Entities[1].ID)
	assert.Equal(t, int64(2), pctx.Stats.Rows("DMLExecute"))
}

func TestDMLNoBulkWriter(t *testing.T) {
	d := &DMLExecute{Op: DMLDelete, Entity: "account", Source: &fakePrimitive{}}
	_, err := d.Exec(context.Background(), newTestContext())
	require.Error(t, err)
	assert.ErrorContains(t, err, "bulk writer is not configured")
}
