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

package planbuilder

import (
	"github.com/dvsql/dvsql/go/dv/sqlparser"
)

// CheckAccelerated classifies a statement for the tabular-protocol endpoint.
// The endpoint executes SQL text directly but is read only and cannot bind
// parameters, so DML, placeholders and the client-only window functions all
// disqualify a statement. Callers surface the reason in explain output.
func CheckAccelerated(stmt sqlparser.Statement) (bool, string) {
	switch node := stmt.(type) {
	case *sqlparser.Select:
		return checkAcceleratedSelect(node)
	case *sqlparser.Union:
		for _, q := range node.Queries {
			if ok, reason := checkAcceleratedSelect(q); !ok {
				return false, reason
			}
		}
		return true, ""
	}
	return false, "only read statements can use the accelerated endpoint"
}

func checkAcceleratedSelect(sel *sqlparser.Select) (bool, string) {
	if sel.From == nil {
		return false, "statement reads no entity"
	}
	ok, reason := true, ""
	check := func(expr sqlparser.Expr) {
		walkExpr(expr, func(e sqlparser.Expr) {
			if !ok {
				return
			}
			switch e.(type) {
			case *sqlparser.WindowExpr:
				ok, reason = false, "window functions are evaluated client side"
			case *sqlparser.Placeholder:
				ok, reason = false, "parameter binding requires the native transport"
			}
		})
	}
	for _, se := range sel.SelectExprs {
		check(se.Expr)
	}
	check(sel.Where)
	check(sel.Having)
	for _, o := range sel.OrderBy {
		check(o.Expr)
	}
	if !ok {
		return false, reason
	}
	return true, ""
}
