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
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestTruncateForLog(t *testing.T) {
	short := "select name from account"
	assert.Equal(t, short, TruncateForLog(short))

	long := "select name from account where name in (" + strings.Repeat("'x',", 100) + "'x')"
	got := TruncateForLog(long)
	assert.Len(t, got, 256+len(" [TRUNCATED]"))
	assert.True(t, strings.HasSuffix(got, " [TRUNCATED]"))
	assert.Equal(t, long[:256], strings.TrimSuffix(got, " [TRUNCATED]"))
}

func TestTruncateForLogRuneBoundary(t *testing.T) {
	// place a multi-byte rune straddling the cut point
	prefix := strings.Repeat("a", 255)
	sql := prefix + "日本語 and more padding to get past the limit"

	got := TruncateForLog(sql)
	assert.True(t, strings.HasSuffix(got, " [TRUNCATED]"))
	assert.True(t, utf8.ValidString(got), "truncation split a rune: %q", got)
	// the straddling rune is dropped whole, not split
	assert.Equal(t, prefix, strings.TrimSuffix(got, " [TRUNCATED]"))
}
