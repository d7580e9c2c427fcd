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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescriptionLabel(t *testing.T) {
	testcases := []struct {
		desc PrimitiveDescription
		want string
	}{{
		desc: PrimitiveDescription{OperatorType: "FetchScan", Entity: "account", EstimatedRows: 5000},
		want: "FetchScan on account (estimated rows: 5000)",
	}, {
		desc: PrimitiveDescription{OperatorType: "DMLExecute", Variant: "update", Entity: "account", EstimatedRows: 1},
		want: "DMLExecute(update) on account (estimated rows: 1)",
	}, {
		// an unknown estimate is omitted entirely
		desc: PrimitiveDescription{OperatorType: "MergeAggregate", EstimatedRows: EstimateUnknown, Other: map[string]string{"Aggregates": "sum"}},
		want: "MergeAggregate Aggregates=sum",
	}, {
		desc: PrimitiveDescription{OperatorType: "Filter", EstimatedRows: EstimateUnknown, Why: "predicate uses a scalar function"},
		want: "Filter [predicate uses a scalar function]",
	}}
	for _, tc := range testcases {
		t.Run(tc.want, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.desc.label())
		})
	}
}

func TestDescribeString(t *testing.T) {
	plan := &Limit{
		Count: 10,
		Input: &Filter{
			Predicate: nil,
			Input:     accountScan(),
		},
	}
	out := DescribeString(plan)
	assert.Contains(t, out, "Limit")
	assert.Contains(t, out, "Filter")
	assert.Contains(t, out, "FetchScan on account")
}
