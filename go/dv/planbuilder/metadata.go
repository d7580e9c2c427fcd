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
	"strconv"
	"strings"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/engine"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// metadataTableKind recognizes the catalog pseudo-tables, which are served
// from the metadata store instead of the record transport.
func metadataTableKind(name string) (engine.MetadataScanKind, bool) {
	switch strings.ToLower(name) {
	case "metadata.entity":
		return engine.ScanEntities, true
	case "metadata.attribute":
		return engine.ScanAttributes, true
	case "metadata.optionset":
		return engine.ScanOptionSets, true
	}
	return engine.ScanEntities, false
}

// buildMetadataSelect lowers a SELECT over a catalog pseudo-table. The scan
// takes only the entity (and attribute) qualifier; every other predicate and
// clause runs client side above it.
func (b *builder) buildMetadataSelect(sel *sqlparser.Select, kind engine.MetadataScanKind) (engine.Primitive, error) {
	if len(sel.Joins) > 0 || len(sel.GroupBy) > 0 || sel.Having != nil || isAggregateQuery(sel) {
		return nil, dverrors.Errorf(dverrors.Planning,
			"catalog table %s does not support joins or aggregation", sel.From.Name)
	}
	for _, se := range sel.SelectExprs {
		if containsWindow(se.Expr) {
			return nil, dverrors.Errorf(dverrors.Planning,
				"catalog table %s does not support window functions", sel.From.Name)
		}
	}

	scan := &engine.MetadataScan{Kind: kind}
	where := sel.Where
	if kind == engine.ScanAttributes || kind == engine.ScanOptionSets {
		entity, rest := extractCatalogEquality(where, "entitylogicalname")
		if entity == "" {
			return nil, dverrors.Errorf(dverrors.Planning,
				"%s requires an entitylogicalname = '<entity>' condition", sel.From.Name)
		}
		scan.Entity = entity
		where = rest
	}
	if kind == engine.ScanOptionSets {
		attr, rest := extractCatalogEquality(where, "attributelogicalname")
		scan.Attribute = attr
		where = rest
	}

	catalog := engine.CatalogFields(kind)
	var prim engine.Primitive = scan
	if where != nil {
		prim = &engine.Filter{Predicate: where, Input: prim}
	}

	star := false
	for _, se := range sel.SelectExprs {
		if se.Star {
			star = true
		}
	}
	var names []string
	if star {
		for _, f := range catalog {
			names = append(names, f.Name)
		}
	} else {
		fields := make([]sqltypes.Field, 0, len(sel.SelectExprs))
		exprs := make([]sqlparser.Expr, 0, len(sel.SelectExprs))
		for i, se := range sel.SelectExprs {
			name := b.outputName(se, i)
			names = append(names, name)
			fields = append(fields, sqltypes.Field{Name: name, Type: b.catalogExprType(catalog, se.Expr)})
			exprs = append(exprs, se.Expr)
		}
		prim = &engine.Projection{OutputFields: fields, Exprs: exprs, Input: prim}
	}
	if sel.Distinct {
		prim = &engine.Distinct{Input: prim}
	}
	if len(sel.OrderBy) > 0 {
		keys := make([]engine.SortKey, 0, len(sel.OrderBy))
		for _, o := range sel.OrderBy {
			idx, err := orderKeyIndex(o.Expr, names)
			if err != nil {
				return nil, err
			}
			keys = append(keys, engine.SortKey{Col: idx, Desc: o.Desc})
		}
		prim = &engine.MemorySort{Keys: keys, Input: prim}
	}
	if sel.Top != nil {
		n, err := strconv.ParseInt(sel.Top.Val, 10, 64)
		if err != nil || n < 0 {
			return nil, dverrors.Errorf(dverrors.Planning, "invalid TOP value %q", sel.Top.Val)
		}
		prim = &engine.Limit{Count: n, Input: prim}
	}
	return prim, nil
}

// extractCatalogEquality pulls one `name = 'literal'` conjunct out of the
// predicate, returning its value and the predicate without it.
func extractCatalogEquality(expr sqlparser.Expr, name string) (string, sqlparser.Expr) {
	var rest sqlparser.Expr
	value := ""
	for _, conjunct := range splitConjuncts(expr) {
		if value == "" {
			if v, ok := catalogEqualityValue(conjunct, name); ok {
				value = v
				continue
			}
		}
		rest = andExprs(rest, conjunct)
	}
	return value, rest
}

func catalogEqualityValue(expr sqlparser.Expr, name string) (string, bool) {
	cmp, ok := expr.(*sqlparser.ComparisonExpr)
	if !ok || cmp.Op != sqlparser.EqualOp {
		return "", false
	}
	col, lit, _ := comparisonOperands(cmp)
	if col == nil || lit.Kind != sqlparser.StrVal || !strings.EqualFold(col.Name, name) {
		return "", false
	}
	return strings.ToLower(lit.Val), true
}

// catalogExprType types one select item against the catalog schema.
func (b *builder) catalogExprType(catalog []sqltypes.Field, expr sqlparser.Expr) sqltypes.Type {
	if col, ok := expr.(*sqlparser.ColName); ok {
		for _, f := range catalog {
			if strings.EqualFold(f.Name, col.Name) {
				return f.Type
			}
		}
	}
	return b.exprType(nil, expr)
}
