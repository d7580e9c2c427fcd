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

// LiteralRows produces rows from constant expressions. It backs FROM-less
// SELECTs and INSERT ... VALUES sources.
type LiteralRows struct {
	OutputFields []sqltypes.Field
	Exprs        [][]sqlparser.Expr
}

var _ Primitive = (*LiteralRows)(nil)

func (l *LiteralRows) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	env := evalengine.NewEnv(nil)
	env.Params = pctx.Params
	rows := make([]sqltypes.Row, 0, len(l.Exprs))
	for _, exprs := range l.Exprs {
		row := make(sqltypes.Row, 0, len(exprs))
		for _, expr := range exprs {
			v, err := env.Eval(expr)
			if err != nil {
				return nil, err
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	return newSliceStream(l.OutputFields, rows), nil
}

func (l *LiteralRows) EstimatedRows() int64 {
	return int64(len(l.Exprs))
}

func (l *LiteralRows) Inputs() []Primitive {
	return nil
}

func (l *LiteralRows) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "LiteralRows",
		EstimatedRows: int64(len(l.Exprs)),
	}
}
