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

import "unicode/utf8"

// TruncateForLog shortens a statement for log lines. Queries can embed large
// IN lists; logs only need enough to identify the statement.
func TruncateForLog(sql string) string {
	const max = 256
	if len(sql) <= max {
		return sql
	}
	// never split a multi-byte rune
	cut := max
	for cut > 0 && !utf8.RuneStart(sql[cut]) {
		cut--
	}
	return sql[:cut] + " [TRUNCATED]"
}
