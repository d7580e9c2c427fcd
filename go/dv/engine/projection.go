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

// Projection evaluates one expression per output column against each input
// row. Rows are transformed one at a time; the stream stays lazy.
type Projection struct {
	OutputFields []sqltypes.Field
	Exprs        []sqlparser.Expr
	Input        Primitive
}

var _ Primitive = (*Projection)(nil)

func (p *Projection) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	in, err := p.Input.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	env := evalengine.NewEnv(in.Fields())
	env.Params = pctx.Params
	return newTransformStream(p.OutputFields, in, func(row sqltypes.Row) (sqltypes.Row, error) {
		env.Row = row
		out := make(sqltypes.Row, 0, len(p.Exprs))
		for _, expr := range p.Exprs {
			v, err := env.Eval(expr)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}), nil
}

func (p *Projection) EstimatedRows() int64 {
	return p.Input.EstimatedRows()
}

func (p *Projection) Inputs() []Primitive {
	return []Primitive{p.Input}
}

func (p *Projection) Description() PrimitiveDescription {
	cols := make([]string, 0, len(p.OutputFields))
	for _, f := range p.OutputFields {
		cols = append(cols, f.Name)
	}
	return PrimitiveDescription{
		OperatorType:  "Projection",
		EstimatedRows: p.Input.EstimatedRows(),
		Other:         map[string]string{"Columns": joinNames(cols)},
	}
}
