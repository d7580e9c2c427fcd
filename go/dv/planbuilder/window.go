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
	"strings"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/engine"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// windowItem is one OVER clause found in the select list, with the base
// columns it needs fetched.
type windowItem struct {
	expr *sqlparser.WindowExpr
	cols []*sqlparser.ColName
}

// extractWindows pulls window expressions out of the select list. The native
// grammar has no window support at all, so every one is computed client
// side. A window function must be a whole select item; wrapping it in
// arithmetic is not supported.
func extractWindows(sel *sqlparser.Select, b *builder) ([]*windowItem, []string, error) {
	var items []*windowItem
	var names []string
	for i, se := range sel.SelectExprs {
		if se.Star || !containsWindow(se.Expr) {
			continue
		}
		w, ok := se.Expr.(*sqlparser.WindowExpr)
		if !ok {
			return nil, nil, dverrors.Errorf(dverrors.Planning,
				"window function must be a whole select expression: %s", sqlparser.String(se.Expr))
		}
		item := &windowItem{expr: w}
		item.cols = append(item.cols, referencedColumns(w.Expr)...)
		for _, p := range w.PartitionBy {
			item.cols = append(item.cols, referencedColumns(p)...)
		}
		for _, o := range w.OrderBy {
			item.cols = append(item.cols, referencedColumns(o.Expr)...)
		}
		items = append(items, item)
		names = append(names, b.outputName(se, i))
	}
	return items, names, nil
}

// stripWindows removes window expressions from a select item for base-column
// collection; their columns are tracked by the window items themselves.
func stripWindows(expr sqlparser.Expr) sqlparser.Expr {
	if _, ok := expr.(*sqlparser.WindowExpr); ok {
		return nil
	}
	return expr
}

// resolve binds the window to the scan's output schema.
func (w *windowItem) resolve(scope *scanScope) (engine.WindowSpec, error) {
	var spec engine.WindowSpec
	switch strings.ToLower(w.expr.Name) {
	case "row_number":
		spec.Func = engine.WindowRowNumber
	case "rank":
		spec.Func = engine.WindowRank
	case "dense_rank":
		spec.Func = engine.WindowDenseRank
	case "sum":
		spec.Func = engine.WindowSum
	case "avg":
		spec.Func = engine.WindowAvg
	case "min":
		spec.Func = engine.WindowMin
	case "max":
		spec.Func = engine.WindowMax
	case "count":
		spec.Func = engine.WindowCount
	default:
		return spec, dverrors.Errorf(dverrors.Planning, "unsupported window function %q", w.expr.Name)
	}
	spec.ArgCol = -1
	if w.expr.Expr != nil {
		col, ok := w.expr.Expr.(*sqlparser.ColName)
		if !ok {
			return spec, dverrors.Errorf(dverrors.Planning,
				"window aggregate argument must be a column: %s", sqlparser.String(w.expr.Expr))
		}
		idx, err := scope.fieldIndex(col)
		if err != nil {
			return spec, err
		}
		spec.ArgCol = idx
	}
	for _, p := range w.expr.PartitionBy {
		col, ok := p.(*sqlparser.ColName)
		if !ok {
			return spec, dverrors.Errorf(dverrors.Planning,
				"PARTITION BY term must be a column: %s", sqlparser.String(p))
		}
		idx, err := scope.fieldIndex(col)
		if err != nil {
			return spec, err
		}
		spec.PartitionBy = append(spec.PartitionBy, idx)
	}
	for _, o := range w.expr.OrderBy {
		col, ok := o.Expr.(*sqlparser.ColName)
		if !ok {
			return spec, dverrors.Errorf(dverrors.Planning,
				"window ORDER BY term must be a column: %s", sqlparser.String(o.Expr))
		}
		idx, err := scope.fieldIndex(col)
		if err != nil {
			return spec, err
		}
		spec.OrderBy = append(spec.OrderBy, engine.SortKey{Col: idx, Desc: o.Desc})
	}
	return spec, nil
}

func (w *windowItem) resultType(scope *scanScope) sqltypes.Type {
	switch strings.ToLower(w.expr.Name) {
	case "row_number", "rank", "dense_rank", "count":
		return sqltypes.Int64
	case "sum", "avg":
		return sqltypes.Decimal
	}
	if col, ok := w.expr.Expr.(*sqlparser.ColName); ok {
		if idx, err := scope.fieldIndex(col); err == nil {
			return scope.fields[idx].Type
		}
	}
	return sqltypes.Decimal
}

// fieldIndex locates a column in the scan's output schema.
func (s *scanScope) fieldIndex(col *sqlparser.ColName) (int, error) {
	qual, name, ok := s.resolveColumn(col)
	if !ok {
		return 0, dverrors.Errorf(dverrors.Planning, "unknown table alias %q", col.Qualifier)
	}
	want := name
	if qual != "" {
		want = qual + "." + name
	}
	for i, f := range s.fields {
		if strings.EqualFold(f.Name, want) {
			return i, nil
		}
	}
	return 0, dverrors.Errorf(dverrors.Planning, "column %q is not fetched by the scan", want)
}
