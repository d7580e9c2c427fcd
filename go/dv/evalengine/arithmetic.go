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
	"math"

	"github.com/shopspring/decimal"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func (env *Env) evalBinary(node *sqlparser.BinaryExpr) (sqltypes.Value, error) {
	left, err := env.Eval(node.Left)
	if err != nil {
		return sqltypes.NULL, err
	}
	right, err := env.Eval(node.Right)
	if err != nil {
		return sqltypes.NULL, err
	}
	// NULL propagates through every arithmetic operator, including + used
	// as concatenation.
	if left.IsNull() || right.IsNull() {
		return sqltypes.NULL, nil
	}
	if node.Op == sqlparser.AddOp && left.Type() == sqltypes.Text && right.Type() == sqltypes.Text {
		ls, _ := left.ToText()
		rs, _ := right.ToText()
		return sqltypes.NewText(ls + rs), nil
	}
	if !left.Type().IsNumeric() || !right.Type().IsNumeric() {
		return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation,
			"operator %s not defined for %v and %v", node.Op, left.Type(), right.Type())
	}
	if left.Type() == sqltypes.Int64 && right.Type() == sqltypes.Int64 {
		li, _ := left.ToInt64()
		ri, _ := right.ToInt64()
		return intArith(node.Op, li, ri)
	}
	ld, _ := left.ToDecimal()
	rd, _ := right.ToDecimal()
	return decimalArith(node.Op, ld, rd)
}

func intArith(op sqlparser.BinaryOp, a, b int64) (sqltypes.Value, error) {
	switch op {
	case sqlparser.AddOp:
		sum := a + b
		if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
			return decimalArith(op, decimal.NewFromInt(a), decimal.NewFromInt(b))
		}
		return sqltypes.NewInt64(sum), nil
	case sqlparser.SubOp:
		diff := a - b
		if (a >= 0 && b < 0 && diff < 0) || (a < 0 && b > 0 && diff > 0) {
			return decimalArith(op, decimal.NewFromInt(a), decimal.NewFromInt(b))
		}
		return sqltypes.NewInt64(diff), nil
	case sqlparser.MulOp:
		if a != 0 && b != 0 && (abs64(a) > math.MaxInt64/abs64(b) || (a == -1 && b == math.MinInt64) || (b == -1 && a == math.MinInt64)) {
			return decimalArith(op, decimal.NewFromInt(a), decimal.NewFromInt(b))
		}
		return sqltypes.NewInt64(a * b), nil
	case sqlparser.DivOp:
		if b == 0 {
			return sqltypes.NULL, dverrors.New(dverrors.Evaluation, "division by zero")
		}
		// integer division truncates toward zero
		return sqltypes.NewInt64(a / b), nil
	case sqlparser.ModOp:
		if b == 0 {
			return sqltypes.NULL, dverrors.New(dverrors.Evaluation, "division by zero")
		}
		return sqltypes.NewInt64(a % b), nil
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Internal, "unknown arithmetic operator %v", op)
}

func abs64(v int64) int64 {
	if v == math.MinInt64 {
		return math.MaxInt64
	}
	if v < 0 {
		return -v
	}
	return v
}

// decimalDivisionPrecision bounds non-terminating division results.
const decimalDivisionPrecision = 12

func decimalArith(op sqlparser.BinaryOp, a, b decimal.Decimal) (sqltypes.Value, error) {
	switch op {
	case sqlparser.AddOp:
		return sqltypes.NewDecimal(a.Add(b)), nil
	case sqlparser.SubOp:
		return sqltypes.NewDecimal(a.Sub(b)), nil
	case sqlparser.MulOp:
		return sqltypes.NewDecimal(a.Mul(b)), nil
	case sqlparser.DivOp:
		if b.IsZero() {
			return sqltypes.NULL, dverrors.New(dverrors.Evaluation, "division by zero")
		}
		return sqltypes.NewDecimal(a.DivRound(b, decimalDivisionPrecision)), nil
	case sqlparser.ModOp:
		if b.IsZero() {
			return sqltypes.NULL, dverrors.New(dverrors.Evaluation, "division by zero")
		}
		return sqltypes.NewDecimal(a.Mod(b)), nil
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Internal, "unknown arithmetic operator %v", op)
}

func (env *Env) evalUnary(node *sqlparser.UnaryExpr) (sqltypes.Value, error) {
	v, err := env.Eval(node.Expr)
	if err != nil {
		return sqltypes.NULL, err
	}
	if v.IsNull() {
		return sqltypes.NULL, nil
	}
	switch v.Type() {
	case sqltypes.Int64:
		i, _ := v.ToInt64()
		if i == math.MinInt64 {
			return sqltypes.NewDecimal(decimal.NewFromInt(i).Neg()), nil
		}
		return sqltypes.NewInt64(-i), nil
	case sqltypes.Decimal:
		d, _ := v.ToDecimal()
		return sqltypes.NewDecimal(d.Neg()), nil
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "cannot negate %v", v.Type())
}
