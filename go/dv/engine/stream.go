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
	"io"
	"strings"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// sliceStream serves rows from an in-memory slice.
type sliceStream struct {
	fields []sqltypes.Field
	rows   []sqltypes.Row
	pos    int
}

var _ RowStream = (*sliceStream)(nil)

func newSliceStream(fields []sqltypes.Field, rows []sqltypes.Row) *sliceStream {
	return &sliceStream{fields: fields, rows: rows}
}

func resultStream(result *sqltypes.Result) *sliceStream {
	return &sliceStream{fields: result.Fields, rows: result.Rows}
}

func (s *sliceStream) Fields() []sqltypes.Field {
	return s.fields
}

func (s *sliceStream) Next() (sqltypes.Row, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	row := s.rows[s.pos]
	s.pos++
	return row, nil
}

func (s *sliceStream) Close() {}

// transformStream wraps an input stream with a per-row transform. A nil row
// returned by the transform drops the input row.
type transformStream struct {
	input     RowStream
	fields    []sqltypes.Field
	transform func(sqltypes.Row) (sqltypes.Row, error)
}

var _ RowStream = (*transformStream)(nil)

func newTransformStream(fields []sqltypes.Field, input RowStream, transform func(sqltypes.Row) (sqltypes.Row, error)) *transformStream {
	return &transformStream{input: input, fields: fields, transform: transform}
}

func (s *transformStream) Fields() []sqltypes.Field {
	return s.fields
}

func (s *transformStream) Next() (sqltypes.Row, error) {
	for {
		row, err := s.input.Next()
		if err != nil {
			return nil, err
		}
		out, err := s.transform(row)
		if err != nil {
			return nil, err
		}
		if out == nil {
			continue
		}
		return out, nil
	}
}

func (s *transformStream) Close() {
	s.input.Close()
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
