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

// Package sqltypes implements the typed values that flow through query plans:
// the column types Dataverse exposes through its SQL surface, immutable Value
// payloads, rows and result sets, and the test constructors used across the
// engine and planbuilder test suites.
package sqltypes

import "fmt"

// Type is the set of column types a query can produce. It is deliberately
// small: Dataverse attribute types all coerce onto one of these on the way
// out of a transport.
type Type int

const (
	Null Type = iota
	Boolean
	Int64
	Decimal
	Text
	DateTime
	Guid
)

var typeNames = map[Type]string{
	Null:     "null",
	Boolean:  "boolean",
	Int64:    "int64",
	Decimal:  "decimal",
	Text:     "text",
	DateTime: "datetime",
	Guid:     "guid",
}

func (t Type) String() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// ParseType returns the Type named by s. It is the inverse of Type.String
// and is used by the test constructors.
func ParseType(s string) (Type, error) {
	for t, name := range typeNames {
		if name == s {
			return t, nil
		}
	}
	return Null, fmt.Errorf("unknown type name: %q", s)
}

// IsNumeric reports whether t participates in arithmetic.
func (t Type) IsNumeric() bool {
	return t == Int64 || t == Decimal
}
