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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func TestTDSScan(t *testing.T) {
	fields := sqltypes.MakeTestFields("name|revenue", "text|int64")
	tds := &dataverse.FakeTDS{Result: sqltypes.MakeTestResult(fields, "alpha|100", "beta|200")}
	pctx := &PlanContext{TDS: tds, Stats: NewStats()}

	scan := &TDSScan{SQL: "select name, revenue from account", Entity: "account"}
	result := runPrimitive(t, scan, pctx)
	assert.Equal(t, fields, result.Fields)
	assert.Len(t, result.Rows, 2)
	assert.Equal(t, []string{"select name, revenue from account"}, tds.Queries)
	assert.Equal(t, int64(2), pctx.Stats.Rows("TDSScan"))
}

func TestTDSScanTransportError(t *testing.T) {
	tds := &dataverse.FakeTDS{Err: errors.New("connection reset")}
	pctx := &PlanContext{TDS: tds, Stats: NewStats()}

	scan := &TDSScan{SQL: "select name from account", Entity: "account"}
	_, err := scan.Exec(context.Background(), pctx)
	require.Error(t, err)
	assert.Equal(t, dverrors.Transport, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "accelerated scan")
}

func TestTDSScanNotConfigured(t *testing.T) {
	scan := &TDSScan{SQL: "select name from account", Entity: "account"}
	_, err := scan.Exec(context.Background(), newTestContext())
	require.Error(t, err)
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
}
