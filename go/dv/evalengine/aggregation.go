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
	"github.com/shopspring/decimal"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// Merge helpers for recombining partial aggregates across partitions.
// NULL partials (a partition that saw no rows) are ignored.

// MergeSum adds a partial sum (or count) into an accumulator.
func MergeSum(acc, partial sqltypes.Value) (sqltypes.Value, error) {
	if partial.IsNull() {
		return acc, nil
	}
	if acc.IsNull() {
		return partial, nil
	}
	if acc.Type() == sqltypes.Int64 && partial.Type() == sqltypes.Int64 {
		a, _ := acc.ToInt64()
		b, _ := partial.ToInt64()
		sum := a + b
		if (a > 0 && b > 0 && sum < 0) || (a < 0 && b < 0 && sum >= 0) {
			return sqltypes.NewDecimal(decimal.NewFromInt(a).Add(decimal.NewFromInt(b))), nil
		}
		return sqltypes.NewInt64(sum), nil
	}
	a, err := acc.ToDecimal()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	b, err := partial.ToDecimal()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	return sqltypes.NewDecimal(a.Add(b)), nil
}

// MergeMin keeps the smaller of the accumulator and the partial.
func MergeMin(acc, partial sqltypes.Value) (sqltypes.Value, error) {
	return mergeExtremum(acc, partial, -1)
}

// MergeMax keeps the larger of the accumulator and the partial.
func MergeMax(acc, partial sqltypes.Value) (sqltypes.Value, error) {
	return mergeExtremum(acc, partial, 1)
}

func mergeExtremum(acc, partial sqltypes.Value, keep int) (sqltypes.Value, error) {
	if partial.IsNull() {
		return acc, nil
	}
	if acc.IsNull() {
		return partial, nil
	}
	cmp, err := sqltypes.NullsafeCompare(partial, acc)
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	if (keep < 0 && cmp < 0) || (keep > 0 && cmp > 0) {
		return partial, nil
	}
	return acc, nil
}

// AvgFromParts computes a global average from the merged sum and count.
// Averaging partition averages would weight small partitions equally with
// large ones, so the merge always carries sum and count separately.
func AvgFromParts(sum, count sqltypes.Value) (sqltypes.Value, error) {
	if sum.IsNull() || count.IsNull() {
		return sqltypes.NULL, nil
	}
	n, err := count.ToInt64()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	if n == 0 {
		return sqltypes.NULL, nil
	}
	s, err := sum.ToDecimal()
	if err != nil {
		return sqltypes.NULL, dverrors.WithCode(dverrors.Evaluation, err)
	}
	return sqltypes.NewDecimal(s.DivRound(decimal.NewFromInt(n), decimalDivisionPrecision)), nil
}
