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

package evalengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// testEnv binds a single row with a little of everything: an integer, a
// text column, a datetime, and a column that is NULL.
func testEnv(t *testing.T) *Env {
	t.Helper()
	fields := sqltypes.MakeTestFields(
		"revenue|name|createdon|missing",
		"int64|text|datetime|int64",
	)
	env := NewEnv(fields)
	env.Row = sqltypes.TestRow(fields, "100|Contoso|2024-03-15 10:30:00|null")
	return env
}

// mustExpr parses an expression by wrapping it in a SELECT.
func mustExpr(t *testing.T, expr string) sqlparser.Expr {
	t.Helper()
	stmt, err := sqlparser.Parse("select " + expr)
	require.NoError(t, err)
	return stmt.(*sqlparser.Select).SelectExprs[0].Expr
}

func TestEvalCondition(t *testing.T) {
	testcases := []struct {
		expr string
		want Tristate
	}{
		// comparisons against the NULL column are Unknown, not errors
		{"missing = 1", Unknown},
		{"missing <> 1", Unknown},
		{"missing > 1", Unknown},
		{"revenue = 100", True},
		{"revenue <> 100", False},
		{"revenue >= 100", True},
		{"revenue < 100", False},

		// three-valued AND: False dominates, Unknown survives True
		{"missing = 1 and 1 = 2", False},
		{"missing = 1 and 1 = 1", Unknown},
		{"1 = 1 and 2 = 2", True},

		// three-valued OR: True dominates, Unknown survives False
		{"missing = 1 or 1 = 1", True},
		{"missing = 1 or 1 = 2", Unknown},
		{"1 = 2 or 2 = 3", False},

		// NOT Unknown stays Unknown
		{"not missing = 1", Unknown},
		{"not revenue = 100", False},

		// IS NULL is the only predicate that sees NULL as a value
		{"missing is null", True},
		{"missing is not null", False},
		{"revenue is null", False},

		// IN with a NULL in the list: a miss becomes Unknown
		{"revenue in (100, 200)", True},
		{"revenue in (1, null)", Unknown},
		{"revenue in (100, null)", True},
		{"revenue not in (1, 2)", True},
		{"revenue not in (1, null)", Unknown},
		{"revenue not in (100, null)", False},
		{"missing in (1, 2)", Unknown},

		// LIKE folds case and supports % and _
		{"name like 'con%'", True},
		{"name like 'CONTOSO'", True},
		{"name like 'c_ntoso'", True},
		{"name like 'c%'", True},
		{"name like '%oso'", True},
		{"name not like 'x%'", True},
		{"name like 'x%'", False},
		{"missing like '1%'", Unknown},
	}
	for _, tc := range testcases {
		t.Run(tc.expr, func(t *testing.T) {
			env := testEnv(t)
			got, err := env.EvalCondition(mustExpr(t, tc.expr))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvalArithmetic(t *testing.T) {
	testcases := []struct {
		expr string
		want string
	}{
		{"1 + 2", "int64(3)"},
		{"revenue - 30", "int64(70)"},
		{"revenue * 2", "int64(200)"},
		// integer division truncates toward zero
		{"7 / 2", "int64(3)"},
		{"-(7) / 2", "int64(-3)"},
		{"7 % 3", "int64(1)"},
		{"7.0 / 2", "decimal(3.5)"},
		{"1.5 + 2", "decimal(3.5)"},
		// int64 overflow widens to decimal instead of wrapping
		{"9223372036854775807 + 1", "decimal(9223372036854775808)"},
		{"9223372036854775807 * 2", "decimal(18446744073709551614)"},
		// + concatenates only when both sides are text
		{"'foo' + 'bar'", "text(foobar)"},
		// NULL propagates through every operator
		{"missing + 1", "NULL"},
		{"'foo' + missing", "NULL"},
		{"-(missing)", "NULL"},
	}
	for _, tc := range testcases {
		t.Run(tc.expr, func(t *testing.T) {
			env := testEnv(t)
			got, err := env.Eval(mustExpr(t, tc.expr))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}

	t.Run("division by zero", func(t *testing.T) {
		env := testEnv(t)
		for _, expr := range []string{"1 / 0", "1 % 0", "1.5 / 0.0"} {
			_, err := env.Eval(mustExpr(t, expr))
			require.Error(t, err, expr)
			assert.Equal(t, dverrors.Evaluation, dverrors.CodeOf(err))
		}
	})

	t.Run("type mismatch", func(t *testing.T) {
		env := testEnv(t)
		_, err := env.Eval(mustExpr(t, "name * 2"))
		require.Error(t, err)
		assert.Equal(t, dverrors.Evaluation, dverrors.CodeOf(err))
	})
}

func TestEvalFunctions(t *testing.T) {
	testcases := []struct {
		expr string
		want string
	}{
		{"upper(name)", "text(CONTOSO)"},
		{"lower(name)", "text(contoso)"},
		{"len(name)", "int64(7)"},
		{"left(name, 3)", "text(Con)"},
		{"right(name, 3)", "text(oso)"},
		{"left(name, 100)", "text(Contoso)"},
		{"substring(name, 2, 3)", "text(ont)"},
		{"replace(name, 'o', '0')", "text(C0nt0s0)"},
		{"trim('  x  ')", "text(x)"},
		{"abs(-(5))", "int64(5)"},
		{"round(2.567, 2)", "decimal(2.57)"},
		{"floor(2.9)", "decimal(2)"},
		{"ceiling(2.1)", "decimal(3)"},
		{"year(createdon)", "int64(2024)"},
		{"month(createdon)", "int64(3)"},
		{"day(createdon)", "int64(15)"},

		// CONCAT treats NULL as empty text; that never happens anywhere else
		{"concat(name, missing, '!')", "text(Contoso!)"},
		{"coalesce(missing, revenue)", "int64(100)"},
		{"coalesce(missing, missing)", "NULL"},
		{"isnull(missing, 7)", "int64(7)"},
		{"isnull(revenue, 7)", "int64(100)"},

		// NULL-in NULL-out for plain scalar functions
		{"upper(missing)", "NULL"},
		{"len(missing)", "NULL"},
		{"year(missing)", "NULL"},

		{"iif(revenue > 50, 'big', 'small')", "text(big)"},
		{"iif(missing > 50, 'big', 'small')", "text(small)"},
		{"case when revenue > 50 then 'big' end", "text(big)"},
		{"case revenue when 100 then 'exact' else 'other' end", "text(exact)"},
		{"case revenue when 1 then 'one' end", "NULL"},
	}
	for _, tc := range testcases {
		t.Run(tc.expr, func(t *testing.T) {
			env := testEnv(t)
			got, err := env.Eval(mustExpr(t, tc.expr))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}

	t.Run("newid", func(t *testing.T) {
		env := testEnv(t)
		a, err := env.Eval(mustExpr(t, "newid()"))
		require.NoError(t, err)
		b, err := env.Eval(mustExpr(t, "newid()"))
		require.NoError(t, err)
		assert.Equal(t, sqltypes.Guid, a.Type())
		assert.False(t, a.Equal(b))
	})

	t.Run("getdate", func(t *testing.T) {
		env := testEnv(t)
		v, err := env.Eval(mustExpr(t, "getutcdate()"))
		require.NoError(t, err)
		assert.Equal(t, sqltypes.DateTime, v.Type())
	})
}

func TestResolveFunc(t *testing.T) {
	assert.NoError(t, ResolveFunc("UPPER", 1))
	assert.NoError(t, ResolveFunc("concat", 5))

	err := ResolveFunc("explode", 1)
	require.Error(t, err)
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "unknown function EXPLODE")

	err = ResolveFunc("upper", 2)
	require.Error(t, err)
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))

	err = ResolveFunc("substring", 1)
	require.Error(t, err)
	assert.ErrorContains(t, err, "at least 3")
}

func TestEvalCast(t *testing.T) {
	testcases := []struct {
		expr string
		want string
	}{
		{"cast(revenue as varchar)", "text(100)"},
		{"cast('42' as int)", "int64(42)"},
		// decimal to integer truncates toward zero
		{"cast(12.9 as int)", "int64(12)"},
		{"cast('12.9' as int)", "int64(12)"},
		{"cast(1 as bit)", "boolean(true)"},
		{"cast('true' as bit)", "boolean(true)"},
		{"cast(true as int)", "int64(1)"},
		{"cast('3.25' as decimal)", "decimal(3.25)"},
		{"cast('2024-03-15' as datetime)", "datetime(2024-03-15T00:00:00Z)"},
		{"cast(missing as int)", "NULL"},
	}
	for _, tc := range testcases {
		t.Run(tc.expr, func(t *testing.T) {
			env := testEnv(t)
			got, err := env.Eval(mustExpr(t, tc.expr))
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.String())
		})
	}

	t.Run("errors", func(t *testing.T) {
		env := testEnv(t)
		for _, expr := range []string{
			"cast('99999999999999999999999' as int)",
			"cast('abc' as int)",
			"cast('maybe' as bit)",
			"cast('not-a-guid' as uniqueidentifier)",
			"cast(createdon as int)",
		} {
			_, err := env.Eval(mustExpr(t, expr))
			require.Error(t, err, expr)
			assert.Equal(t, dverrors.Evaluation, dverrors.CodeOf(err), expr)
		}
	})
}

func TestEvalPlaceholder(t *testing.T) {
	env := testEnv(t)
	env.Params = map[string]sqltypes.Value{"minrev": sqltypes.NewInt64(50)}

	tri, err := env.EvalCondition(mustExpr(t, "revenue > :minrev"))
	require.NoError(t, err)
	assert.Equal(t, True, tri)

	_, err = env.Eval(mustExpr(t, ":absent"))
	require.Error(t, err)
	assert.Equal(t, dverrors.Evaluation, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "missing value for parameter :absent")
}

func TestResolveColumn(t *testing.T) {
	fields := sqltypes.MakeTestFields("name|c.fullname", "text|text")
	env := NewEnv(fields)
	env.Row = sqltypes.TestRow(fields, "Contoso|Ann")

	// a qualified reference prefers the qualified field
	v, err := env.Resolve("c", "fullname")
	require.NoError(t, err)
	assert.Equal(t, "Ann", v.RawText())

	// a qualifier with no qualified field falls back to the bare name
	v, err = env.Resolve("a", "name")
	require.NoError(t, err)
	assert.Equal(t, "Contoso", v.RawText())

	_, err = env.Resolve("", "nosuch")
	require.Error(t, err)
	assert.Equal(t, dverrors.Evaluation, dverrors.CodeOf(err))
}

func TestAggregateNeverEvaluates(t *testing.T) {
	env := testEnv(t)
	_, err := env.Eval(mustExpr(t, "sum(revenue)"))
	require.Error(t, err)
	assert.Equal(t, dverrors.Internal, dverrors.CodeOf(err))
}

func TestMergeHelpers(t *testing.T) {
	i := sqltypes.NewInt64
	t.Run("sum", func(t *testing.T) {
		v, err := MergeSum(i(3), i(4))
		require.NoError(t, err)
		assert.Equal(t, i(7), v)

		// a partition with no rows contributes nothing
		v, err = MergeSum(sqltypes.NULL, i(4))
		require.NoError(t, err)
		assert.Equal(t, i(4), v)
		v, err = MergeSum(i(3), sqltypes.NULL)
		require.NoError(t, err)
		assert.Equal(t, i(3), v)

		// overflow widens instead of wrapping
		v, err = MergeSum(i(9223372036854775807), i(1))
		require.NoError(t, err)
		assert.Equal(t, "9223372036854775808", v.RawText())
	})

	t.Run("extremum", func(t *testing.T) {
		v, err := MergeMin(i(3), i(1))
		require.NoError(t, err)
		assert.Equal(t, i(1), v)
		v, err = MergeMax(i(3), i(1))
		require.NoError(t, err)
		assert.Equal(t, i(3), v)
		v, err = MergeMin(sqltypes.NULL, i(9))
		require.NoError(t, err)
		assert.Equal(t, i(9), v)
	})

	t.Run("avg from parts", func(t *testing.T) {
		v, err := AvgFromParts(i(10), i(4))
		require.NoError(t, err)
		assert.Equal(t, "2.5", v.RawText())

		v, err = AvgFromParts(i(10), i(0))
		require.NoError(t, err)
		assert.True(t, v.IsNull())

		v, err = AvgFromParts(sqltypes.NULL, i(4))
		require.NoError(t, err)
		assert.True(t, v.IsNull())
	})
}
