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
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Value is a single typed cell. The zero Value is NULL. Values are immutable:
// every operator that transforms a row builds new Values rather than mutating
// the ones it was handed.
type Value struct {
	typ Type
	b   bool
	i   int64
	d   decimal.Decimal
	s   string
	t   time.Time
	g   uuid.UUID
}

// NULL is the canonical null value.
var NULL = Value{}

// NewBool builds a Boolean value.
func NewBool(b bool) Value {
	return Value{typ: Boolean, b: b}
}

// NewInt64 builds an Int64 value.
func NewInt64(i int64) Value {
	return Value{typ: Int64, i: i}
}

// NewDecimal builds a Decimal value.
func NewDecimal(d decimal.Decimal) Value {
	return Value{typ: Decimal, d: d}
}

// NewText builds a Text value.
func NewText(s string) Value {
	return Value{typ: Text, s: s}
}

// NewDateTime builds a DateTime value. Dataverse timestamps are UTC; callers
// are expected to have normalized already.
func NewDateTime(t time.Time) Value {
	return Value{typ: DateTime, t: t}
}

// NewGuid builds a Guid value.
func NewGuid(g uuid.UUID) Value {
	return Value{typ: Guid, g: g}
}

// NewValue parses s as a value of type t. Used by transports and by the test
// constructors; "null" (any case) always yields NULL.
func NewValue(t Type, s string) (Value, error) {
	if strings.EqualFold(s, "null") {
		return NULL, nil
	}
	switch t {
	case Null:
		return NULL, nil
	case Boolean:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return NULL, err
		}
		return NewBool(b), nil
	case Int64:
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return NULL, err
		}
		return NewInt64(i), nil
	case Decimal:
		d, err := decimal.NewFromString(s)
		if err != nil {
			return NULL, err
		}
		return NewDecimal(d), nil
	case Text:
		return NewText(s), nil
	case DateTime:
		ts, err := parseDateTime(s)
		if err != nil {
			return NULL, err
		}
		return NewDateTime(ts), nil
	case Guid:
		g, err := uuid.Parse(s)
		if err != nil {
			return NULL, err
		}
		return NewGuid(g), nil
	}
	return NULL, fmt.Errorf("NewValue: unsupported type %v", t)
}

var dateTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseDateTime(s string) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as datetime", s)
}

// Type returns the value's type. NULL reports Null regardless of the column
// it came from.
func (v Value) Type() Type {
	return v.typ
}

// IsNull reports whether the value is NULL.
func (v Value) IsNull() bool {
	return v.typ == Null
}

// ToBool returns the boolean payload.
func (v Value) ToBool() (bool, error) {
	if v.typ != Boolean {
		return false, fmt.Errorf("%v is not a boolean", v)
	}
	return v.b, nil
}

// ToInt64 returns the integer payload, coercing an integral decimal.
func (v Value) ToInt64() (int64, error) {
	switch v.typ {
	case Int64:
		return v.i, nil
	case Decimal:
		if !v.d.IsInteger() {
			return 0, fmt.Errorf("%v has a fractional part", v)
		}
		bi := v.d.BigInt()
		if !bi.IsInt64() {
			return 0, fmt.Errorf("%v out of int64 range", v)
		}
		return bi.Int64(), nil
	}
	return 0, fmt.Errorf("%v is not an integer", v)
}

// ToDecimal returns the numeric payload widened to decimal.
func (v Value) ToDecimal() (decimal.Decimal, error) {
	switch v.typ {
	case Int64:
		return decimal.NewFromInt(v.i), nil
	case Decimal:
		return v.d, nil
	}
	return decimal.Zero, fmt.Errorf("%v is not numeric", v)
}

// ToText returns the text payload.
func (v Value) ToText() (string, error) {
	if v.typ != Text {
		return "", fmt.Errorf("%v is not text", v)
	}
	return v.s, nil
}

// ToTime returns the datetime payload.
func (v Value) ToTime() (time.Time, error) {
	if v.typ != DateTime {
		return time.Time{}, fmt.Errorf("%v is not a datetime", v)
	}
	return v.t, nil
}

// ToGuid returns the guid payload.
func (v Value) ToGuid() (uuid.UUID, error) {
	if v.typ != Guid {
		return uuid.Nil, fmt.Errorf("%v is not a guid", v)
	}
	return v.g, nil
}

// RawText renders the payload without type decoration, the way a transport
// would serialize it. NULL renders as the empty string.
func (v Value) RawText() string {
	switch v.typ {
	case Null:
		return ""
	case Boolean:
		return strconv.FormatBool(v.b)
	case Int64:
		return strconv.FormatInt(v.i, 10)
	case Decimal:
		return v.d.String()
	case Text:
		return v.s
	case DateTime:
		return v.t.UTC().Format(time.RFC3339)
	case Guid:
		return v.g.String()
	}
	return ""
}

// String renders the value with its type for debugging and test failure
// output.
func (v Value) String() string {
	if v.typ == Null {
		return "NULL"
	}
	return fmt.Sprintf("%v(%s)", v.typ, v.RawText())
}

// Equal reports strict equality: same type, same payload. NULL equals NULL
// here; three-valued comparison semantics live in evalengine, not on Value.
func (v Value) Equal(other Value) bool {
	if v.typ != other.typ {
		return false
	}
	switch v.typ {
	case Null:
		return true
	case Boolean:
		return v.b == other.b
	case Int64:
		return v.i == other.i
	case Decimal:
		return v.d.Equal(other.d)
	case Text:
		return v.s == other.s
	case DateTime:
		return v.t.Equal(other.t)
	case Guid:
		return v.g == other.g
	}
	return false
}

// NullsafeCompare orders two values, widening across the numeric types.
// NULL sorts before everything; the caller decides whether that ordering or
// three-valued semantics apply. Values of incomparable types return an error.
func NullsafeCompare(a, b Value) (int, error) {
	if a.IsNull() {
		if b.IsNull() {
			return 0, nil
		}
		return -1, nil
	}
	if b.IsNull() {
		return 1, nil
	}
	if a.typ.IsNumeric() && b.typ.IsNumeric() {
		da, _ := a.ToDecimal()
		db, _ := b.ToDecimal()
		return da.Cmp(db), nil
	}
	if a.typ != b.typ {
		return 0, fmt.Errorf("cannot compare %v with %v", a.typ, b.typ)
	}
	switch a.typ {
	case Boolean:
		switch {
		case a.b == b.b:
			return 0, nil
		case !a.b:
			return -1, nil
		}
		return 1, nil
	case Text:
		return strings.Compare(a.s, b.s), nil
	case DateTime:
		switch {
		case a.t.Equal(b.t):
			return 0, nil
		case a.t.Before(b.t):
			return -1, nil
		}
		return 1, nil
	case Guid:
		return strings.Compare(a.g.String(), b.g.String()), nil
	}
	return 0, fmt.Errorf("cannot compare %v values", a.typ)
}
