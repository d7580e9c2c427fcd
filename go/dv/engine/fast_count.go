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

	"github.com/dvsql/dvsql/go/dv/log"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// FastCount answers an unfiltered COUNT(*) from entity statistics instead of
// scanning. Statistics can be stale or unavailable, so a Fallback primitive
// (an aggregate scan) is kept for runtime use.
type FastCount struct {
	Entity   string
	Alias    string
	Fallback Primitive
	Why      string
}

var _ Primitive = (*FastCount)(nil)

func (f *FastCount) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	count, err := pctx.Metadata.RowCount(ctx, f.Entity)
	if err != nil {
		if log.V(2) {
			log.Infof("fast count of %s unavailable (%v), falling back to aggregate scan", f.Entity, err)
		}
		return f.Fallback.Exec(ctx, pctx)
	}
	fields := []sqltypes.Field{{Name: f.Alias, Type: sqltypes.Int64}}
	rows := []sqltypes.Row{{sqltypes.NewInt64(count)}}
	return newSliceStream(fields, rows), nil
}

func (f *FastCount) EstimatedRows() int64 {
	return 1
}

func (f *FastCount) Inputs() []Primitive {
	return []Primitive{f.Fallback}
}

func (f *FastCount) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "FastCount",
		Entity:        f.Entity,
		EstimatedRows: 1,
		Why:           f.Why,
	}
}
