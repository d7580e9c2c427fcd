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
	"fmt"
	"sort"
	"strings"

	"github.com/xlab/treeprint"
)

// PrimitiveDescription is the explain rendering of one node: the operator
// name, the entity it touches (if any), its row estimate, a Why annotation
// explaining any pushdown or fallback decision, and free-form details.
type PrimitiveDescription struct {
	OperatorType  string
	Variant       string
	Entity        string
	EstimatedRows int64
	// Why documents the planning decision that produced this node, e.g.
	// why a predicate stayed client-side.
	Why   string
	Other map[string]string
}

func (pd PrimitiveDescription) label() string {
	var sb strings.Builder
	sb.WriteString(pd.OperatorType)
	if pd.Variant != "" {
		sb.WriteString("(" + pd.Variant + ")")
	}
	if pd.Entity != "" {
		fmt.Fprintf(&sb, " on %s", pd.Entity)
	}
	if pd.EstimatedRows >= 0 {
		fmt.Fprintf(&sb, " (estimated rows: %d)", pd.EstimatedRows)
	}
	if len(pd.Other) > 0 {
		keys := make([]string, 0, len(pd.Other))
		for k := range pd.Other {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, " %s=%s", k, pd.Other[k])
		}
	}
	if pd.Why != "" {
		fmt.Fprintf(&sb, " [%s]", pd.Why)
	}
	return sb.String()
}

// DescribeString renders a plan tree for explain output.
func DescribeString(root Primitive) string {
	tree := treeprint.New()
	tree.SetValue(root.Description().label())
	describeInto(tree, root.Inputs())
	return tree.String()
}

func describeInto(branch treeprint.Tree, inputs []Primitive) {
	for _, input := range inputs {
		child := branch.AddBranch(input.Description().label())
		describeInto(child, input.Inputs())
	}
}
