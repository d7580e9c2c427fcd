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

package sqlparser

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dvsql/dvsql/go/dv/dverrors"
)

// PositionedErr is a syntax error that knows where in the source it
// happened.
type PositionedErr struct {
	Msg string
	Pos int
}

// NewPositionedErr builds a syntax error at the given byte offset.
func NewPositionedErr(msg string, pos int) error {
	return dverrors.WithCode(dverrors.Syntax, &PositionedErr{Msg: msg, Pos: pos})
}

func (e *PositionedErr) Error() string {
	return fmt.Sprintf("syntax error at position %d: %s", e.Pos, e.Msg)
}

// PositionOf extracts the source offset from a syntax error, or -1.
func PositionOf(err error) int {
	var perr *PositionedErr
	if errors.As(err, &perr) {
		return perr.Pos
	}
	return -1
}

// CaretString renders the offending line of sql with a caret under the error
// position, for terminal display.
func CaretString(err error, sql string) string {
	pos := PositionOf(err)
	if pos < 0 || pos > len(sql) {
		return err.Error()
	}
	lineStart := strings.LastIndexByte(sql[:pos], '\n') + 1
	lineEnd := strings.IndexByte(sql[pos:], '\n')
	if lineEnd < 0 {
		lineEnd = len(sql)
	} else {
		lineEnd += pos
	}
	var sb strings.Builder
	sb.WriteString(err.Error())
	sb.WriteByte('\n')
	sb.WriteString(sql[lineStart:lineEnd])
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(" ", pos-lineStart))
	sb.WriteByte('^')
	return sb.String()
}
