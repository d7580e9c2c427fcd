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

	"github.com/dvsql/dvsql/go/dv/dverrors"
)

// TDSScan pushes an entire statement through the accelerated SQL endpoint.
// The endpoint is read only, so this primitive never appears under a DML plan.
type TDSScan struct {
	SQL      string
	Entity   string
	Estimate int64
	Why      string
}

var _ Primitive = (*TDSScan)(nil)

func (s *TDSScan) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	if pctx.TDS == nil {
		return nil, dverrors.New(dverrors.Planning, "accelerated transport is not configured")
	}
	result, err := pctx.TDS.Query(ctx, s.SQL)
	if err != nil {
		if ctx.Err() != nil {
			return nil, dverrors.WithCode(dverrors.Cancelled, err)
		}
		return nil, dverrors.Wrap(dverrors.WithCode(dverrors.Transport, err), "accelerated scan")
	}
	pctx.Stats.AddRows("TDSScan", int64(len(result.Rows)))
	return resultStream(result), nil
}

func (s *TDSScan) EstimatedRows() int64 {
	return s.Estimate
}

func (s *TDSScan) Inputs() []Primitive {
	return nil
}

func (s *TDSScan) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "TDSScan",
		Entity:        s.Entity,
		EstimatedRows: s.Estimate,
		Why:           s.Why,
		Other:         map[string]string{"Query": s.SQL},
	}
}
