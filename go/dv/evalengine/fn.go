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
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// builtin is one registered scalar function. Args arrive already evaluated;
// functions that need NULL-in NULL-out behavior handle it themselves, since
// a few (CONCAT, COALESCE, ISNULL) give NULL arguments meaning.
type builtin struct {
	minArgs, maxArgs int
	call             func(args []sqltypes.Value) (sqltypes.Value, error)
}

const unboundedArgs = -1

var builtins = map[string]*builtin{
	"upper":      {1, 1, fnUpper},
	"lower":      {1, 1, fnLower},
	"len":        {1, 1, fnLen},
	"trim":       {1, 1, stringFn(strings.TrimSpace)},
	"ltrim":      {1, 1, stringFn(func(s string) string { return strings.TrimLeft(s, " ") })},
	"rtrim":      {1, 1, stringFn(func(s string) string { return strings.TrimRight(s, " ") })},
	"left":       {2, 2, fnLeft},
	"right":      {2, 2, fnRight},
	"substring":  {3, 3, fnSubstring},
	"replace":    {3, 3, fnReplace},
	"concat":     {2, unboundedArgs, fnConcat},
	"coalesce":   {1, unboundedArgs, fnCoalesce},
	"isnull":     {2, 2, fnIsNull},
	"abs":        {1, 1, fnAbs},
	"round":      {1, 2, fnRound},
	"floor":      {1, 1, fnFloor},
	"ceiling":    {1, 1, fnCeiling},
	"year":       {1, 1, datePartFn(func(t time.Time) int { return t.Year() })},
	"month":      {1, 1, datePartFn(func(t time.Time) int { return int(t.Month()) })},
	"day":        {1, 1, datePartFn(func(t time.Time) int { return t.Day() })},
	"getdate":    {0, 0, fnNow},
	"getutcdate": {0, 0, fnNow},
	"newid":      {0, 0, fnNewID},
}

// ResolveFunc validates a function reference at planning time. Unknown names
// and arity violations are planning errors, never deferred to row
// evaluation.
func ResolveFunc(name string, argCount int) error {
	fn, ok := builtins[strings.ToLower(name)]
	if !ok {
		return dverrors.Errorf(dverrors.Planning, "unknown function %s", strings.ToUpper(name))
	}
	if argCount < fn.minArgs {
		return dverrors.Errorf(dverrors.Planning, "%s requires at least %d argument(s), got %d",
			strings.ToUpper(name), fn.minArgs, argCount)
	}
	if fn.maxArgs != unboundedArgs && argCount > fn.maxArgs {
		return dverrors.Errorf(dverrors.Planning, "%s accepts at most %d argument(s), got %d",
			strings.ToUpper(name), fn.maxArgs, argCount)
	}
	return nil
}

func (env *Env) evalFunc(node *sqlparser.FuncExpr) (sqltypes.Value, error) {
	fn, ok := builtins[node.Name]
	if !ok {
		// the planner resolves every function reference; reaching here
		// with an unknown name is a bug
		return sqltypes.NULL, dverrors.Errorf(dverrors.Internal, "unresolved function %s", node.Name)
	}
	args := make([]sqltypes.Value, len(node.Args))
	for i, argExpr := range node.Args {
		v, err := env.Eval(argExpr)
		if err != nil {
			return sqltypes.NULL, err
		}
		args[i] = v
	}
	return fn.call(args)
}

func stringFn(f func(string) string) func([]sqltypes.Value) (sqltypes.Value, error) {
	return func(args []sqltypes.Value) (sqltypes.Value, error) {
		if args[0].IsNull() {
			return sqltypes.NULL, nil
		}
		s, err := argText(args[0])
		if err != nil {
			return sqltypes.NULL, err
		}
		return sqltypes.NewText(f(s)), nil
	}
}

func argText(v sqltypes.Value) (string, error) {
	if v.Type() != sqltypes.Text {
		return "", dverrors.Errorf(dverrors.Evaluation, "expected text argument, got %v", v.Type())
	}
	s, _ := v.ToText()
	return s, nil
}

func argInt(v sqltypes.Value) (int64, error) {
	i, err := v.ToInt64()
	if err != nil {
		return 0, dverrors.WithCode(dverrors.Evaluation, err)
	}
	return i, nil
}

func fnUpper(args []sqltypes.Value) (sqltypes.Value, error) {
	return stringFn(strings.ToUpper)(args)
}

func fnLower(args []sqltypes.Value) (sqltypes.Value, error) {
	return stringFn(strings.ToLower)(args)
}

func fnLen(args []sqltypes.Value) (sqltypes.Value, error) {
	if args[0].IsNull() {
		return sqltypes.NULL, nil
	}
	s, err := argText(args[0])
	if err != nil {
		return sqltypes.NULL, err
	}
	return sqltypes.NewInt64(int64(len([]rune(s)))), nil
}

func fnLeft(args []sqltypes.Value) (sqltypes.Value, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return sqltypes.NULL, nil
	}
	s, err := argText(args[0])
	if err != nil {
		return sqltypes.NULL, err
	}
	n, err := argInt(args[1])
	if err != nil {
		return sqltypes.NULL, err
	}
	runes := []rune(s)
	if n < 0 {
		n = 0
	}
	if n > int64(len(runes)) {
		n = int64(len(runes))
	}
	return sqltypes.NewText(string(runes[:n])), nil
}

func fnRight(args []sqltypes.Value) (sqltypes.Value, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return sqltypes.NULL, nil
	}
	s, err := argText(args[0])
	if err != nil {
		return sqltypes.NULL, err
	}
	n, err := argInt(args[1])
	if err != nil {
		return sqltypes.NULL, err
	}
	runes := []rune(s)
	if n < 0 {
		n = 0
	}
	if n > int64(len(runes)) {
		n = int64(len(runes))
	}
	return sqltypes.NewText(string(runes[int64(len(runes))-n:])), nil
}

// fnSubstring follows the T-SQL convention: the start offset is 1-based.
func fnSubstring(args []sqltypes.Value) (sqltypes.Value, error) {
	for _, a := range args {
		if a.IsNull() {
			return sqltypes.NULL, nil
		}
	}
	s, err := argText(args[0])
	if err != nil {
		return sqltypes.NULL, err
	}
	start, err := argInt(args[1])
	if err != nil {
		return sqltypes.NULL, err
	}
	length, err := argInt(args[2])
	if err != nil {
		return sqltypes.NULL, err
	}
	runes := []rune(s)
	begin := start - 1
	if begin < 0 {
		length += begin
		begin = 0
	}
	if begin >= int64(len(runes)) || length <= 0 {
		return sqltypes.NewText(""), nil
	}
	end := begin + length
	if end > int64(len(runes)) {
		end = int64(len(runes))
	}
	return sqltypes.NewText(string(runes[begin:end])), nil
}

func fnReplace(args []sqltypes.Value) (sqltypes.Value, error) {
	for _, a := range args {
		if a.IsNull() {
			return sqltypes.NULL, nil
		}
	}
	s, err := argText(args[0])
	if err != nil {
		return sqltypes.NULL, err
	}
	old, err := argText(args[1])
	if err != nil {
		return sqltypes.NULL, err
	}
	replacement, err := argText(args[2])
	if err != nil {
		return sqltypes.NULL, err
	}
	return sqltypes.NewText(strings.ReplaceAll(s, old, replacement)), nil
}

// fnConcat treats NULL as the empty string. This is the only place that
// happens; + propagates NULL.
func fnConcat(args []sqltypes.Value) (sqltypes.Value, error) {
	var sb strings.Builder
	for _, a := range args {
		sb.WriteString(a.RawText())
	}
	return sqltypes.NewText(sb.String()), nil
}

func fnCoalesce(args []sqltypes.Value) (sqltypes.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return sqltypes.NULL, nil
}

func fnIsNull(args []sqltypes.Value) (sqltypes.Value, error) {
	if args[0].IsNull() {
		return args[1], nil
	}
	return args[0], nil
}

func fnAbs(args []sqltypes.Value) (sqltypes.Value, error) {
	v := args[0]
	if v.IsNull() {
		return sqltypes.NULL, nil
	}
	d, err := v.ToDecimal()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	if v.Type() == sqltypes.Int64 {
		i, _ := v.ToInt64()
		if i >= 0 {
			return v, nil
		}
		return sqltypes.NewInt64(-i), nil
	}
	return sqltypes.NewDecimal(d.Abs()), nil
}

func fnRound(args []sqltypes.Value) (sqltypes.Value, error) {
	if args[0].IsNull() {
		return sqltypes.NULL, nil
	}
	var places int64
	if len(args) == 2 {
		if args[1].IsNull() {
			return sqltypes.NULL, nil
		}
		var err error
		places, err = argInt(args[1])
		if err != nil {
			return sqltypes.NULL, err
		}
	}
	d, err := args[0].ToDecimal()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	return sqltypes.NewDecimal(d.Round(int32(places))), nil
}

func fnFloor(args []sqltypes.Value) (sqltypes.Value, error) {
	if args[0].IsNull() {
		return sqltypes.NULL, nil
	}
	d, err := args[0].ToDecimal()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	return sqltypes.NewDecimal(d.Floor()), nil
}

func fnCeiling(args []sqltypes.Value) (sqltypes.Value, error) {
	if args[0].IsNull() {
		return sqltypes.NULL, nil
	}
	d, err := args[0].ToDecimal()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	return sqltypes.NewDecimal(d.Ceil()), nil
}

func datePartFn(part func(time.Time) int) func([]sqltypes.Value) (sqltypes.Value, error) {
	return func(args []sqltypes.Value) (sqltypes.Value, error) {
		if args[0].IsNull() {
			return sqltypes.NULL, nil
		}
		t, err := args[0].ToTime()
		if err != nil {
			return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
		}
		return sqltypes.NewInt64(int64(part(t))), nil
	}
}

func fnNow(_ []sqltypes.Value) (sqltypes.Value, error) {
	return sqltypes.NewDateTime(time.Now().UTC()), nil
}

func fnNewID(_ []sqltypes.Value) (sqltypes.Value, error) {
	return sqltypes.NewGuid(uuid.New()), nil
}
