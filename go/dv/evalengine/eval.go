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

// Package evalengine evaluates expression ASTs against single rows with SQL
// three-valued null semantics. Aggregates, window functions and subqueries
// never reach Eval: the planner resolves those into plan operators, and their
// appearance here is an internal error.
package evalengine

import (
	"strings"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// Tristate is a SQL truth value.
type Tristate int

const (
	False Tristate = iota
	True
	Unknown
)

func (t Tristate) String() string {
	switch t {
	case True:
		return "true"
	case False:
		return "false"
	}
	return "unknown"
}

// Env binds an expression evaluation to one row. Build one per stream with
// NewEnv and swap Row per input row; the column index is computed once.
type Env struct {
	Fields []sqltypes.Field
	Row    sqltypes.Row
	Params map[string]sqltypes.Value

	index map[string]int
}

// NewEnv builds an environment over the given output schema.
func NewEnv(fields []sqltypes.Field) *Env {
	index := make(map[string]int, len(fields))
	for i, f := range fields {
		index[strings.ToLower(f.Name)] = i
	}
	return &Env{Fields: fields, index: index}
}

// Resolve finds a column by name, preferring a qualified match.
func (env *Env) Resolve(qualifier, name string) (sqltypes.Value, error) {
	if qualifier != "" {
		if i, ok := env.index[strings.ToLower(qualifier+"."+name)]; ok {
			return env.Row[i], nil
		}
	}
	if i, ok := env.index[strings.ToLower(name)]; ok {
		return env.Row[i], nil
	}
	full := name
	if qualifier != "" {
		full = qualifier + "." + name
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "unknown column %q", full)
}

// Eval evaluates expr against the bound row.
func (env *Env) Eval(expr sqlparser.Expr) (sqltypes.Value, error) {
	switch node := expr.(type) {
	case *sqlparser.Literal:
		return evalLiteral(node)
	case *sqlparser.NullVal:
		return sqltypes.NULL, nil
	case *sqlparser.BoolVal:
		return sqltypes.NewBool(node.Val), nil
	case *sqlparser.Placeholder:
		v, ok := env.Params[node.Name]
		if !ok {
			return sqltypes.NULL, dverrors.Errorf(dverrors.Evaluation, "missing value for parameter :%s", node.Name)
		}
		return v, nil
	case *sqlparser.ColName:
		return env.Resolve(node.Qualifier, node.Name)
	case *sqlparser.BinaryExpr:
		return env.evalBinary(node)
	case *sqlparser.UnaryExpr:
		return env.evalUnary(node)
	case *sqlparser.FuncExpr:
		return env.evalFunc(node)
	case *sqlparser.CaseExpr:
		return env.evalCase(node)
	case *sqlparser.IifExpr:
		cond, err := env.EvalCondition(node.Cond)
		if err != nil {
			return sqltypes.NULL, err
		}
		if cond == True {
			return env.Eval(node.WhenTrue)
		}
		return env.Eval(node.WhenFalse)
	case *sqlparser.CastExpr:
		inner, err := env.Eval(node.Expr)
		if err != nil {
			return sqltypes.NULL, err
		}
		return Cast(inner, node.Type)
	case *sqlparser.AndExpr, *sqlparser.OrExpr, *sqlparser.NotExpr,
		*sqlparser.ComparisonExpr, *sqlparser.IsNullExpr, *sqlparser.InExpr:
		tri, err := env.EvalCondition(expr)
		if err != nil {
			return sqltypes.NULL, err
		}
		switch tri {
		case True:
			return sqltypes.NewBool(true), nil
		case False:
			return sqltypes.NewBool(false), nil
		}
		return sqltypes.NULL, nil
	case *sqlparser.AggregateExpr, *sqlparser.WindowExpr, *sqlparser.Subquery, *sqlparser.ExistsExpr:
		return sqltypes.NULL, dverrors.Errorf(dverrors.Internal, "%T must be resolved during planning", expr)
	}
	return sqltypes.NULL, dverrors.Errorf(dverrors.Internal, "unexpected expression %T", expr)
}

func evalLiteral(lit *sqlparser.Literal) (sqltypes.Value, error) {
	switch lit.Kind {
	case sqlparser.IntVal:
		v, err := sqltypes.NewValue(sqltypes.Int64, lit.Val)
		if err != nil {
			return sqltypes.NULL, dverrors.Wrapf(dverrors.WithCode(dverrors.Evaluation, err), "bad integer literal")
		}
		return v, nil
	case sqlparser.DecimalVal:
		v, err := sqltypes.NewValue(sqltypes.Decimal, lit.Val)
		if err != nil {
			return sqltypes.NULL, dverrors.Wrapf(dverrors.WithCode(dverrors.Evaluation, err), "bad decimal literal")
		}
		return v, nil
	}
	return sqltypes.NewText(lit.Val), nil
}

func (env *Env) evalCase(node *sqlparser.CaseExpr) (sqltypes.Value, error) {
	for _, when := range node.Whens {
		cond := when.Cond
		if node.Operand != nil {
			cond = &sqlparser.ComparisonExpr{Op: sqlparser.EqualOp, Left: node.Operand, Right: when.Cond}
		}
		tri, err := env.EvalCondition(cond)
		if err != nil {
			return sqltypes.NULL, err
		}
		if tri == True {
			return env.Eval(when.Val)
		}
	}
	if node.Else != nil {
		return env.Eval(node.Else)
	}
	return sqltypes.NULL, nil
}

// EvalCondition evaluates expr as a SQL condition, returning the three-valued
// result. A comparison with a NULL operand is Unknown, never an error.
func (env *Env) EvalCondition(expr sqlparser.Expr) (Tristate, error) {
	switch node := expr.(type) {
	case *sqlparser.AndExpr:
		left, err := env.EvalCondition(node.Left)
		if err != nil {
			return Unknown, err
		}
		if left == False {
			return False, nil
		}
		right, err := env.EvalCondition(node.Right)
		if err != nil {
			return Unknown, err
		}
		if right == False {
			return False, nil
		}
		if left == Unknown || right == Unknown {
			return Unknown, nil
		}
		return True, nil
	case *sqlparser.OrExpr:
		left, err := env.EvalCondition(node.Left)
		if err != nil {
			return Unknown, err
		}
		if left == True {
			return True, nil
		}
		right, err := env.EvalCondition(node.Right)
		if err != nil {
			return Unknown, err
		}
		if right == True {
			return True, nil
		}
		if left == Unknown || right == Unknown {
			return Unknown, nil
		}
		return False, nil
	case *sqlparser.NotExpr:
		inner, err := env.EvalCondition(node.Expr)
		if err != nil {
			return Unknown, err
		}
		switch inner {
		case True:
			return False, nil
		case False:
			return True, nil
		}
		return Unknown, nil
	case *sqlparser.ComparisonExpr:
		return env.evalComparison(node)
	case *sqlparser.IsNullExpr:
		v, err := env.Eval(node.Expr)
		if err != nil {
			return Unknown, err
		}
		if v.IsNull() != node.Negated {
			return True, nil
		}
		return False, nil
	case *sqlparser.InExpr:
		return env.evalIn(node)
	}
	// anything else must evaluate to a boolean value
	v, err := env.Eval(expr)
	if err != nil {
		return Unknown, err
	}
	if v.IsNull() {
		return Unknown, nil
	}
	b, err := v.ToBool()
	if err != nil {
		return Unknown, dverrors.Errorf(dverrors.Evaluation, "condition is not a boolean: %v", v)
	}
	if b {
		return True, nil
	}
	return False, nil
}

func (env *Env) evalComparison(node *sqlparser.ComparisonExpr) (Tristate, error) {
	left, err := env.Eval(node.Left)
	if err != nil {
		return Unknown, err
	}
	right, err := env.Eval(node.Right)
	if err != nil {
		return Unknown, err
	}
	if left.IsNull() || right.IsNull() {
		return Unknown, nil
	}
	switch node.Op {
	case sqlparser.LikeOp, sqlparser.NotLikeOp:
		s, err := left.ToText()
		if err != nil {
			return Unknown, dverrors.WithCode(dverrors.Evaluation, err)
		}
		pattern, err := right.ToText()
		if err != nil {
			return Unknown, dverrors.WithCode(dverrors.Evaluation, err)
		}
		matched := likeMatch(s, pattern)
		if node.Op == sqlparser.NotLikeOp {
			matched = !matched
		}
		if matched {
			return True, nil
		}
		return False, nil
	}
	cmp, err := sqltypes.NullsafeCompare(left, right)
	if err != nil {
		return Unknown, dverrors.WithCode(dverrors.Evaluation, err)
	}
	var result bool
	switch node.Op {
	case sqlparser.EqualOp:
		result = cmp == 0
	case sqlparser.NotEqualOp:
		result = cmp != 0
	case sqlparser.LessThanOp:
		result = cmp < 0
	case sqlparser.LessEqualOp:
		result = cmp <= 0
	case sqlparser.GreaterThanOp:
		result = cmp > 0
	case sqlparser.GreaterEqualOp:
		result = cmp >= 0
	}
	if result {
		return True, nil
	}
	return False, nil
}

func (env *Env) evalIn(node *sqlparser.InExpr) (Tristate, error) {
	if node.Sub != nil {
		return Unknown, dverrors.New(dverrors.Internal, "IN subquery must be resolved during planning")
	}
	left, err := env.Eval(node.Left)
	if err != nil {
		return Unknown, err
	}
	if left.IsNull() {
		return Unknown, nil
	}
	sawNull := false
	for _, item := range node.Exprs {
		v, err := env.Eval(item)
		if err != nil {
			return Unknown, err
		}
		if v.IsNull() {
			sawNull = true
			continue
		}
		cmp, err := sqltypes.NullsafeCompare(left, v)
		if err != nil {
			return Unknown, dverrors.WithCode(dverrors.Evaluation, err)
		}
		if cmp == 0 {
			if node.Negated {
				return False, nil
			}
			return True, nil
		}
	}
	if sawNull {
		return Unknown, nil
	}
	if node.Negated {
		return True, nil
	}
	return False, nil
}

// likeMatch implements SQL LIKE with % and _ wildcards, case-insensitively.
func likeMatch(s, pattern string) bool {
	return likeMatchFold(strings.ToLower(s), strings.ToLower(pattern))
}

func likeMatchFold(s, pattern string) bool {
	// iterative two-pointer match with backtracking on %
	si, pi := 0, 0
	starP, starS := -1, 0
	for si < len(s) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '_' || pattern[pi] == s[si]):
			si++
			pi++
		case pi < len(pattern) && pattern[pi] == '%':
			starP = pi
			starS = si
			pi++
		case starP >= 0:
			starS++
			si = starS
			pi = starP + 1
		default:
			return false
		}
	}
	for pi < len(pattern) && pattern[pi] == '%' {
		pi++
	}
	return pi == len(pattern)
}
