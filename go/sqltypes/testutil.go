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

package sqltypes

import (
	"fmt"
	"strings"
)

// MakeTestFields builds a field list from pipe-separated names and types:
//
//	MakeTestFields("id|name", "int64|text")
//
// It panics on malformed input because it is only for tests.
func MakeTestFields(names, types string) []Field {
	nameList := strings.Split(names, "|")
	typeList := strings.Split(types, "|")
	if len(nameList) != len(typeList) {
		panic(fmt.Sprintf("MakeTestFields: %d names but %d types", len(nameList), len(typeList)))
	}
	fields := make([]Field, len(nameList))
	for i, name := range nameList {
		t, err := ParseType(typeList[i])
		if err != nil {
			panic(err)
		}
		fields[i] = Field{Name: name, Type: t}
	}
	return fields
}

// MakeTestResult builds a result from fields and pipe-separated row literals:
//
//	MakeTestResult(fields, "1|alice", "2|null")
//
// The token "null" produces NULL in any column.
func MakeTestResult(fields []Field, rows ...string) *Result {
	result := &Result{Fields: fields}
	for _, rowSpec := range rows {
		cells := strings.Split(rowSpec, "|")
		if len(cells) != len(fields) {
			panic(fmt.Sprintf("MakeTestResult: row %q has %d cells for %d fields", rowSpec, len(cells), len(fields)))
		}
		row := make(Row, len(cells))
		for i, cell := range cells {
			v, err := NewValue(fields[i].Type, cell)
			if err != nil {
				panic(err)
			}
			row[i] = v
		}
		result.AppendRow(row)
	}
	return result
}

// TestRow builds a single row the same way MakeTestResult does.
func TestRow(fields []Field, spec string) Row {
	return MakeTestResult(fields, spec).Rows[0]
}
