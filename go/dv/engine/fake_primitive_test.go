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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// fakePrimitive serves a scripted result so operator tests do not need a
// transport underneath.
type fakePrimitive struct {
	result *sqltypes.Result
	// execErr fails Exec outright.
	execErr error
	// rowErr terminates the stream with an error after the rows ran out,
	// instead of io.EOF.
	rowErr error

	execCount  int
	closeCount int
}

var _ Primitive = (*fakePrimitive)(nil)

func (f *fakePrimitive) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	f.execCount++
	if f.execErr != nil {
		return nil, f.execErr
	}
	return &fakeStream{src: f}, nil
}

func (f *fakePrimitive) EstimatedRows() int64 {
	if f.result == nil {
		return EstimateUnknown
	}
	return int64(len(f.result.Rows))
}

func (f *fakePrimitive) Inputs() []Primitive { return nil }

func (f *fakePrimitive) Description() PrimitiveDescription {
	return PrimitiveDescription{OperatorType: "Fake", EstimatedRows: f.EstimatedRows()}
}

type fakeStream struct {
	src *fakePrimitive
	pos int
}

func (s *fakeStream) Fields() []sqltypes.Field {
	return s.src.result.Fields
}

func (s *fakeStream) Next() (sqltypes.Row, error) {
	if s.pos >= len(s.src.result.Rows) {
		if s.src.rowErr != nil {
			return nil, s.src.rowErr
		}
		return nil, io.EOF
	}
	row := s.src.result.Rows[s.pos]
	s.pos++
	return row, nil
}

func (s *fakeStream) Close() {
	s.src.closeCount++
}

func newTestContext() *PlanContext {
	return &PlanContext{Stats: NewStats()}
}

// runPrimitive executes p to completion with an empty context.
func runPrimitive(t *testing.T, p Primitive, pctx *PlanContext) *sqltypes.Result {
	t.Helper()
	stream, err := p.Exec(context.Background(), pctx)
	require.NoError(t, err)
	result, err := Drain(stream)
	require.NoError(t, err)
	return result
}
