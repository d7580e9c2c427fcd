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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/engine"
	"github.com/dvsql/dvsql/go/dv/fetchxml"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// DefaultParallelism bounds partition fan-out when the caller supplies no
// budget.
const DefaultParallelism = 4

// aggItem is one aggregate expression lowered to a native aggregate
// attribute. alias is the scan output column carrying its value; cntAlias is
// set only for a partitioned AVG, which ships as a sum/count pair.
type aggItem struct {
	expr     *sqlparser.AggregateExpr
	alias    string
	cntAlias string
	typ      sqltypes.Type
}

// groupItem is one GROUP BY term lowered to a native groupby attribute.
type groupItem struct {
	expr  sqlparser.Expr
	alias string
	typ   sqltypes.Type
}

// buildAggregate lowers an aggregate SELECT. The native grammar does the
// grouping; the client merges partitions, applies HAVING and shapes the
// output. The server's aggregate row cap forces partitioned execution for
// large entities.
func (b *builder) buildAggregate(sel *sqlparser.Select) (engine.Primitive, error) {
	scope := b.newScanScope(sel.From)
	scope.fetch.Aggregate = true
	for _, join := range sel.Joins {
		if err := scope.addJoin(join); err != nil {
			return nil, err
		}
	}
	remaining, pullout, err := b.rewriteSubqueries(scope, sel.Where)
	if err != nil {
		return nil, err
	}
	if pullout != nil {
		return nil, dverrors.New(dverrors.Planning,
			"subquery predicates in aggregate queries must be rewritable to joins")
	}
	pushed, residue := scope.splitPredicate(remaining)
	if residue != nil {
		return nil, dverrors.Errorf(dverrors.Planning,
			"WHERE clause of an aggregate query must be fully native: %s cannot be pushed",
			sqlparser.String(residue))
	}
	for _, p := range pushed {
		scope.applyFilter(p)
	}

	groups, err := b.lowerGroupBy(scope, sel)
	if err != nil {
		return nil, err
	}
	aggs, err := b.collectAggregates(scope, sel)
	if err != nil {
		return nil, err
	}

	est := b.estimateRows(sel.From.Name)
	partitioned := est != engine.EstimateUnknown && est > partitionSafetyMargin
	if partitioned && hasDistinctAggregate(aggs) {
		b.warnf("DISTINCT aggregates cannot be merged across partitions; running a single scan against %d estimated rows", est)
		partitioned = false
	}

	fields, params, err := b.lowerAggregates(scope, groups, aggs, partitioned)
	if err != nil {
		return nil, err
	}

	var prim engine.Primitive
	if partitioned {
		prim, err = b.buildPartitions(scope, sel.From.Name, est, fields, params, groupCols(groups))
		if err != nil {
			return nil, err
		}
	} else {
		prim = &engine.FetchScan{Query: scope.fetch, Estimate: est}
	}

	subst := substitutionMap(groups, aggs)
	if sel.Having != nil {
		prim = &engine.Filter{Predicate: substitute(sel.Having, subst), Input: prim}
	}

	outFields := make([]sqltypes.Field, 0, len(sel.SelectExprs))
	outExprs := make([]sqlparser.Expr, 0, len(sel.SelectExprs))
	for i, se := range sel.SelectExprs {
		if se.Star {
			return nil, dverrors.New(dverrors.Planning, "SELECT * cannot be combined with aggregation")
		}
		outFields = append(outFields, sqltypes.Field{Name: b.outputName(se, i), Type: b.exprType(scope, se.Expr)})
		outExprs = append(outExprs, substitute(se.Expr, subst))
	}
	prim = &engine.Projection{OutputFields: outFields, Exprs: outExprs, Input: prim}

	if len(sel.OrderBy) > 0 {
		keys, err := b.resolveSortKeys(sel, prim)
		if err != nil {
			return nil, err
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

// lowerGroupBy turns GROUP BY terms into native groupby attributes. Date
// bucketing by YEAR/MONTH/DAY pushes down as a dategrouping directive
// instead of a client-side function.
func (b *builder) lowerGroupBy(scope *scanScope, sel *sqlparser.Select) ([]*groupItem, error) {
	items := make([]*groupItem, 0, len(sel.GroupBy))
	for i, g := range sel.GroupBy {
		alias := b.groupAlias(sel, g, i)
		switch node := g.(type) {
		case *sqlparser.ColName:
			qual, name, ok := scope.resolveColumn(node)
			if !ok {
				return nil, dverrors.Errorf(dverrors.Planning, "unknown table alias %q", node.Qualifier)
			}
			attr := &fetchxml.Attribute{Name: name, Alias: alias, GroupBy: true}
			scope.placeAttribute(qual, attr)
			entity := sel.From.Name
			if qual != "" {
				entity = scope.linkEntity[qual]
			}
			items = append(items, &groupItem{expr: g, alias: alias, typ: b.attrType(entity, name)})
		case *sqlparser.FuncExpr:
			grouping, ok := dateGrouping(node.Name)
			if !ok || len(node.Args) != 1 {
				return nil, dverrors.Errorf(dverrors.Planning,
					"GROUP BY %s has no native grouping", sqlparser.String(g))
			}
			col, ok := node.Args[0].(*sqlparser.ColName)
			if !ok {
				return nil, dverrors.Errorf(dverrors.Planning,
					"GROUP BY %s must bucket a column", sqlparser.String(g))
			}
			qual, name, ok := scope.resolveColumn(col)
			if !ok {
				return nil, dverrors.Errorf(dverrors.Planning, "unknown table alias %q", col.Qualifier)
			}
			attr := &fetchxml.Attribute{Name: name, Alias: alias, GroupBy: true, DateGrouping: grouping}
			scope.placeAttribute(qual, attr)
			items = append(items, &groupItem{expr: g, alias: alias, typ: sqltypes.Int64})
		default:
			return nil, dverrors.Errorf(dverrors.Planning,
				"GROUP BY %s has no native grouping", sqlparser.String(g))
		}
	}
	return items, nil
}

func dateGrouping(fn string) (string, bool) {
	switch strings.ToLower(fn) {
	case "year":
		return fetchxml.DateGroupYear, true
	case "month":
		return fetchxml.DateGroupMonth, true
	case "day":
		return fetchxml.DateGroupDay, true
	}
	return "", false
}

// groupAlias reuses the select item's output name when the select list
// repeats the grouping expression, so the final projection lines up.
func (b *builder) groupAlias(sel *sqlparser.Select, g sqlparser.Expr, i int) string {
	canonical := sqlparser.String(g)
	for j, se := range sel.SelectExprs {
		if !se.Star && sqlparser.String(se.Expr) == canonical {
			return b.outputName(se, j)
		}
	}
	return "grp" + strconv.Itoa(i+1)
}

// collectAggregates finds every distinct aggregate expression in the select
// list and HAVING clause.
func (b *builder) collectAggregates(scope *scanScope, sel *sqlparser.Select) ([]*aggItem, error) {
	var items []*aggItem
	seen := make(map[string]bool)
	collect := func(expr sqlparser.Expr, preferred string) {
		walkExpr(expr, func(e sqlparser.Expr) {
			agg, ok := e.(*sqlparser.AggregateExpr)
			if !ok {
				return
			}
			canonical := sqlparser.String(agg)
			if seen[canonical] {
				return
			}
			seen[canonical] = true
			alias := preferred
			if alias == "" || sqlparser.String(expr) != canonical {
				alias = "agg" + strconv.Itoa(len(items)+1)
			}
			items = append(items, &aggItem{expr: agg, alias: alias})
		})
	}
	for i, se := range sel.SelectExprs {
		if !se.Star {
			collect(se.Expr, b.outputName(se, i))
		}
	}
	collect(sel.Having, "")
	return items, nil
}

func hasDistinctAggregate(aggs []*aggItem) bool {
	for _, a := range aggs {
		if a.expr.Distinct {
			return true
		}
	}
	return false
}

// lowerAggregates emits the native aggregate attributes and, when
// partitioned, the merge parameters. A partitioned AVG ships as a sum/count
// pair and is recombined as total sum over total count; averaging partition
// averages would weight partitions wrongly.
func (b *builder) lowerAggregates(scope *scanScope, groups []*groupItem, aggs []*aggItem, partitioned bool) ([]sqltypes.Field, []engine.AggregateParams, error) {
	fields := make([]sqltypes.Field, 0, len(groups)+len(aggs))
	for _, g := range groups {
		fields = append(fields, sqltypes.Field{Name: g.alias, Type: g.typ})
	}
	var params []engine.AggregateParams
	for _, a := range aggs {
		qual, attrName := "", b.primaryIDName(scope.table.Name)
		if a.expr.Expr != nil {
			col, ok := a.expr.Expr.(*sqlparser.ColName)
			if !ok {
				return nil, nil, dverrors.Errorf(dverrors.Planning,
					"aggregate argument must be a column: %s", sqlparser.String(a.expr))
			}
			var resolved bool
			qual, attrName, resolved = scope.resolveColumn(col)
			if !resolved {
				return nil, nil, dverrors.Errorf(dverrors.Planning, "unknown table alias %q", col.Qualifier)
			}
		}
		entity := scope.table.Name
		if qual != "" {
			entity = scope.linkEntity[qual]
		}

		switch a.expr.Op {
		case sqlparser.AggCountStar:
			scope.placeAttribute(qual, &fetchxml.Attribute{Name: attrName, Alias: a.alias, Aggregate: fetchxml.AggCount})
			a.typ = sqltypes.Int64
		case sqlparser.AggCount:
			scope.placeAttribute(qual, &fetchxml.Attribute{
				Name: attrName, Alias: a.alias, Aggregate: fetchxml.AggCountColumn, Distinct: a.expr.Distinct,
			})
			a.typ = sqltypes.Int64
		case sqlparser.AggSum:
			scope.placeAttribute(qual, &fetchxml.Attribute{Name: attrName, Alias: a.alias, Aggregate: fetchxml.AggSum})
			a.typ = sqltypes.Decimal
		case sqlparser.AggAvg:
			if partitioned {
				a.cntAlias = a.alias + "_cnt"
				scope.placeAttribute(qual, &fetchxml.Attribute{Name: attrName, Alias: a.alias, Aggregate: fetchxml.AggSum})
				scope.placeAttribute(qual, &fetchxml.Attribute{Name: attrName, Alias: a.cntAlias, Aggregate: fetchxml.AggCountColumn})
			} else {
				scope.placeAttribute(qual, &fetchxml.Attribute{Name: attrName, Alias: a.alias, Aggregate: fetchxml.AggAvg})
			}
			a.typ = sqltypes.Decimal
		case sqlparser.AggMin:
			scope.placeAttribute(qual, &fetchxml.Attribute{Name: attrName, Alias: a.alias, Aggregate: fetchxml.AggMin})
			a.typ = b.attrType(entity, attrName)
		case sqlparser.AggMax:
			scope.placeAttribute(qual, &fetchxml.Attribute{Name: attrName, Alias: a.alias, Aggregate: fetchxml.AggMax})
			a.typ = b.attrType(entity, attrName)
		}

		col := len(fields)
		fields = append(fields, sqltypes.Field{Name: a.alias, Type: a.typ})
		if !partitioned {
			continue
		}
		switch a.expr.Op {
		case sqlparser.AggCountStar, sqlparser.AggCount, sqlparser.AggSum:
			params = append(params, engine.AggregateParams{Op: engine.AggrSum, Col: col})
		case sqlparser.AggMin:
			params = append(params, engine.AggregateParams{Op: engine.AggrMin, Col: col})
		case sqlparser.AggMax:
			params = append(params, engine.AggregateParams{Op: engine.AggrMax, Col: col})
		case sqlparser.AggAvg:
			cntCol := len(fields)
			fields = append(fields, sqltypes.Field{Name: a.cntAlias, Type: sqltypes.Int64})
			params = append(params, engine.AggregateParams{Op: engine.AggrAvg, Col: col, SumCol: col, CountCol: cntCol})
		}
	}
	return fields, params, nil
}

func groupCols(groups []*groupItem) []int {
	cols := make([]int, len(groups))
	for i := range groups {
		cols[i] = i
	}
	return cols
}

// buildPartitions splits the aggregate scan into N range-disjoint scans over
// the creation timestamp and recombines them with a MergeAggregate. The
// half-open ranges cover [globalMin, globalMax] exactly: boundaries are
// interpolated, the last one lies just past the maximum.
func (b *builder) buildPartitions(scope *scanScope, entity string, est int64, fields []sqltypes.Field, params []engine.AggregateParams, groupBy []int) (engine.Primitive, error) {
	target := b.opts.partitionTarget()
	budget := b.opts.Parallelism
	if budget <= 0 {
		budget = DefaultParallelism
	}
	n := int((est + target - 1) / target)
	if n > budget {
		n = budget
	}
	if n < 1 {
		n = 1
	}

	partitionAttr := b.createdAtName(entity)
	lo, hi, err := b.meta.TimeRange(b.ctx, entity, partitionAttr)
	if err != nil {
		b.warnf("time range probe on %s.%s failed (%v); running a single aggregate scan", entity, partitionAttr, err)
		return &engine.FetchScan{Query: scope.fetch, Estimate: est}, nil
	}
	bounds := partitionBounds(lo, hi, n)

	why := fmt.Sprintf("estimated %d rows exceed the server aggregate cap; split into %d ranges over %s", est, n, partitionAttr)
	partitions := make([]engine.Primitive, 0, n)
	for i := 0; i < n; i++ {
		part := scope.fetch.Clone()
		part.Entity.AddCondition(&fetchxml.Condition{
			Attribute: partitionAttr,
			Operator:  fetchxml.OpGreaterEqual,
			Value:     fetchxml.FormatTime(bounds[i]),
		})
		part.Entity.AddCondition(&fetchxml.Condition{
			Attribute: partitionAttr,
			Operator:  fetchxml.OpLess,
			Value:     fetchxml.FormatTime(bounds[i+1]),
		})
		partitions = append(partitions, &engine.FetchScan{
			Query:    part,
			Estimate: est / int64(n),
			NodeName: "FetchScan(partition " + strconv.Itoa(i) + ")",
		})
	}
	pp := &engine.ParallelPartition{
		Partitions:   partitions,
		MaxParallel:  budget,
		OutputFields: fields,
		Why:          why,
	}
	return &engine.MergeAggregate{
		GroupCols:    groupBy,
		Aggregates:   params,
		OutputFields: fields,
		Input:        pp,
	}, nil
}

// partitionBounds returns n+1 boundaries from lo to just past hi, so the
// half-open ranges [b[i], b[i+1]) tile the whole interval with the maximum
// included.
func partitionBounds(lo, hi time.Time, n int) []time.Time {
	end := hi.Add(time.Second)
	total := end.Sub(lo)
	bounds := make([]time.Time, n+1)
	for i := 0; i <= n; i++ {
		bounds[i] = lo.Add(time.Duration(int64(total) * int64(i) / int64(n)))
	}
	bounds[n] = end
	return bounds
}

// substitutionMap maps each grouping and aggregate expression, by canonical
// rendering, to its scan output column.
func substitutionMap(groups []*groupItem, aggs []*aggItem) map[string]string {
	m := make(map[string]string, len(groups)+len(aggs))
	for _, g := range groups {
		m[sqlparser.String(g.expr)] = g.alias
	}
	for _, a := range aggs {
		m[sqlparser.String(a.expr)] = a.alias
	}
	return m
}

// substitute replaces any subexpression whose canonical rendering appears in
// repl with a reference to the named column.
func substitute(expr sqlparser.Expr, repl map[string]string) sqlparser.Expr {
	if expr == nil {
		return nil
	}
	if name, ok := repl[sqlparser.String(expr)]; ok {
		return &sqlparser.ColName{Name: name}
	}
	switch node := expr.(type) {
	case *sqlparser.AndExpr:
		return &sqlparser.AndExpr{Left: substitute(node.Left, repl), Right: substitute(node.Right, repl)}
	case *sqlparser.OrExpr:
		return &sqlparser.OrExpr{Left: substitute(node.Left, repl), Right: substitute(node.Right, repl)}
	case *sqlparser.NotExpr:
		return &sqlparser.NotExpr{Expr: substitute(node.Expr, repl)}
	case *sqlparser.ComparisonExpr:
		return &sqlparser.ComparisonExpr{Op: node.Op, Left: substitute(node.Left, repl), Right: substitute(node.Right, repl)}
	case *sqlparser.BinaryExpr:
		return &sqlparser.BinaryExpr{Op: node.Op, Left: substitute(node.Left, repl), Right: substitute(node.Right, repl)}
	case *sqlparser.UnaryExpr:
		return &sqlparser.UnaryExpr{Op: node.Op, Expr: substitute(node.Expr, repl)}
	case *sqlparser.IsNullExpr:
		return &sqlparser.IsNullExpr{Expr: substitute(node.Expr, repl), Negated: node.Negated}
	case *sqlparser.FuncExpr:
		out := &sqlparser.FuncExpr{Name: node.Name}
		for _, a := range node.Args {
			out.Args = append(out.Args, substitute(a, repl))
		}
		return out
	case *sqlparser.CaseExpr:
		out := &sqlparser.CaseExpr{Operand: substitute(node.Operand, repl), Else: substitute(node.Else, repl)}
		for _, w := range node.Whens {
			out.Whens = append(out.Whens, &sqlparser.When{Cond: substitute(w.Cond, repl), Val: substitute(w.Val, repl)})
		}
		return out
	case *sqlparser.IifExpr:
		return &sqlparser.IifExpr{
			Cond:      substitute(node.Cond, repl),
			WhenTrue:  substitute(node.WhenTrue, repl),
			WhenFalse: substitute(node.WhenFalse, repl),
		}
	case *sqlparser.CastExpr:
		return &sqlparser.CastExpr{Expr: substitute(node.Expr, repl), Type: node.Type, TypeName: node.TypeName}
	case *sqlparser.InExpr:
		out := &sqlparser.InExpr{Left: substitute(node.Left, repl), Sub: node.Sub, Negated: node.Negated}
		for _, e := range node.Exprs {
			out.Exprs = append(out.Exprs, substitute(e, repl))
		}
		return out
	}
	return expr
}
