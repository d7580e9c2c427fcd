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
	"strconv"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// Limit caps the row count client side. It appears above operators that
// prevent the TOP from being pushed into the native query, a client sort or
// a window function for instance.
type Limit struct {
	Count int64
	Input Primitive
}

var _ Primitive = (*Limit)(nil)

func (l *Limit) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	in, err := l.Input.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	return &limitStream{input: in, remaining: l.Count}, nil
}

func (l *Limit) EstimatedRows() int64 {
	return l.Count
}

func (l *Limit) Inputs() []Primitive {
	return []Primitive{l.Input}
}

func (l *Limit) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "Limit",
		EstimatedRows: l.Count,
		Other:         map[string]string{"Count": strconv.FormatInt(l.Count, 10)},
	}
}

type limitStream struct {
	input     RowStream
	remaining int64
}

var _ RowStream = (*limitStream)(nil)

func (s *limitStream) Fields() []sqltypes.Field {
	return s.input.Fields()
}

func (s *limitStream) Next() (sqltypes.Row, error) {
	if s.remaining <= 0 {
		return nil, io.EOF
	}
	row, err := s.input.Next()
	if err != nil {
		return nil, err
	}
	s.remaining--
	return row, nil
}

func (s *limitStream) Close() {
	s.input.Close()
}
