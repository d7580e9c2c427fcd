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
	"io"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// Concatenate streams its sources in order, one after the other. A source is
// opened only when the previous one is exhausted, so UNION branches never
// hold more than one connection. Field names come from the first source;
// every source must produce the same column count.
type Concatenate struct {
	Sources []Primitive
}

var _ Primitive = (*Concatenate)(nil)

func (c *Concatenate) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	if len(c.Sources) == 0 {
		return nil, dverrors.New(dverrors.Internal, "concatenate requires at least one source")
	}
	first, err := c.Sources[0].Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	return &concatStream{ctx: ctx, pctx: pctx, sources: c.Sources, cur: first, fields: first.Fields()}, nil
}

func (c *Concatenate) EstimatedRows() int64 {
	var total int64
	for _, src := range c.Sources {
		est := src.EstimatedRows()
		if est == EstimateUnknown {
			return EstimateUnknown
		}
		total += est
	}
	return total
}

func (c *Concatenate) Inputs() []Primitive {
	return c.Sources
}

func (c *Concatenate) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "Concatenate",
		EstimatedRows: c.EstimatedRows(),
	}
}

type concatStream struct {
	ctx     context.Context
	pctx    *PlanContext
	sources []Primitive
	idx     int
	cur     RowStream
	fields  []sqltypes.Field
}

var _ RowStream = (*concatStream)(nil)

func (s *concatStream) Fields() []sqltypes.Field {
	return s.fields
}

func (s *concatStream) Next() (sqltypes.Row, error) {
	for {
		row, err := s.cur.Next()
		if err == nil {
			if len(row) != len(s.fields) {
				return nil, dverrors.Errorf(dverrors.Internal,
					"concatenate source %d produced %d columns, want %d", s.idx, len(row), len(s.fields))
			}
			return row, nil
		}
		if err != io.EOF {
			return nil, err
		}
		s.cur.Close()
		s.idx++
		if s.idx >= len(s.sources) {
			return nil, io.EOF
		}
		next, err := s.sources[s.idx].Exec(s.ctx, s.pctx)
		if err != nil {
			return nil, err
		}
		s.cur = next
	}
}

func (s *concatStream) Close() {
	s.cur.Close()
}
