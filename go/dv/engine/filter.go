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

	"github.com/dvsql/dvsql/go/dv/evalengine"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// Filter drops rows whose predicate does not evaluate to true. Unknown is
// treated as false, per SQL WHERE semantics. It carries the client-side
// residue of predicates the planner could not push into the native query,
// and the HAVING clause over aggregate output.
type Filter struct {
	Predicate sqlparser.Expr
	Input     Primitive
}

var _ Primitive = (*Filter)(nil)

func (f *Filter) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	in, err := f.Input.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	env := evalengine.NewEnv(in.Fields())
	env.Params = pctx.Params
	return newTransformStream(in.Fields(), in, func(row sqltypes.Row) (sqltypes.Row, error) {
		env.Row = row
		t, err := env.EvalCondition(f.Predicate)
		if err != nil {
			return nil, err
		}
		if t != evalengine.True {
			return nil, nil
		}
		return row, nil
	}), nil
}

func (f *Filter) EstimatedRows() int64 {
	return EstimateUnknown
}

func (f *Filter) Inputs() []Primitive {
	return []Primitive{f.Input}
}

func (f *Filter) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "Filter",
		EstimatedRows: EstimateUnknown,
		Other:         map[string]string{"Predicate": sqlparser.String(f.Predicate)},
	}
}
