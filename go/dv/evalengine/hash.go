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

package evalengine

import (
	"hash/fnv"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// HashCode is a hash of a value or row, used by the distinct and semi-join
// probe tables. Equal values hash equal across numeric widths: 2 and 2.0
// land in the same bucket.
type HashCode uint64

// HashValue hashes one value. Numerics are normalized through decimal
// rendering so Int64(2) and Decimal(2.0) collide, matching the comparison
// semantics in sqltypes.NullsafeCompare.
func HashValue(v sqltypes.Value) HashCode {
	h := fnv.New64a()
	switch {
	case v.IsNull():
		h.Write([]byte{0})
	case v.Type().IsNumeric():
		d, _ := v.ToDecimal()
		h.Write([]byte{1})
		h.Write([]byte(d.String()))
	default:
		h.Write([]byte{2, byte(v.Type())})
		h.Write([]byte(v.RawText()))
	}
	return HashCode(h.Sum64())
}

// HashRow combines the hashes of the selected columns. When cols is nil the
// whole row is hashed.
func HashRow(row sqltypes.Row, cols []int) HashCode {
	code := HashCode(17)
	if cols == nil {
		for _, v := range row {
			code = code*31 + HashValue(v)
		}
		return code
	}
	for _, c := range cols {
		code = code*31 + HashValue(row[c])
	}
	return code
}

// RowsEqual compares the selected columns of two rows with null-as-equal
// semantics, the behavior DISTINCT requires.
func RowsEqual(a, b sqltypes.Row, cols []int) bool {
	if cols == nil {
		if len(a) != len(b) {
			return false
		}
		for i := range a {
			if !valuesDistinctEqual(a[i], b[i]) {
				return false
			}
		}
		return true
	}
	for _, c := range cols {
		if !valuesDistinctEqual(a[c], b[c]) {
			return false
		}
	}
	return true
}

func valuesDistinctEqual(a, b sqltypes.Value) bool {
	if a.IsNull() || b.IsNull() {
		return a.IsNull() && b.IsNull()
	}
	cmp, err := sqltypes.NullsafeCompare(a, b)
	if err != nil {
		// incomparable types are simply not equal for dedup purposes
		return false
	}
	return cmp == 0
}
