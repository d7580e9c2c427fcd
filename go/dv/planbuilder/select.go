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
	"github.com/dvsql/dvsql/go/dv/evalengine"
	"github.com/dvsql/dvsql/go/dv/fetchxml"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func (b *builder) buildSelect(sel *sqlparser.Select) (engine.Primitive, error) {
	if err := b.validateSelect(sel); err != nil {
		return nil, err
	}
	if sel.From == nil {
		return b.buildFromless(sel)
	}
	if kind, ok := metadataTableKind(sel.From.Name); ok {
		return b.buildMetadataSelect(sel, kind)
	}
	if b.opts.Accelerate {
		if ok, reason := CheckAccelerated(sel); ok {
			return &engine.TDSScan{
				SQL:      sqlparser.String(sel),
				Entity:   sel.From.Name,
				Estimate: b.estimateRows(sel.From.Name),
				Why:      "statement is compatible with the accelerated endpoint",
			}, nil
		} else {
			b.warnf("accelerated path unavailable: %s", reason)
		}
	}
	if fc := b.tryFastCount(sel); fc != nil {
		return fc, nil
	}
	if isAggregateQuery(sel) {
		return b.buildAggregate(sel)
	}
	return b.buildRowSelect(sel)
}

// buildFromless evaluates a FROM-less SELECT as a single literal row.
func (b *builder) buildFromless(sel *sqlparser.Select) (engine.Primitive, error) {
	fields := make([]sqltypes.Field, 0, len(sel.SelectExprs))
	exprs := make([]sqlparser.Expr, 0, len(sel.SelectExprs))
	for i, se := range sel.SelectExprs {
		if se.Star {
			return nil, dverrors.New(dverrors.Planning, "SELECT * requires a FROM clause")
		}
		fields = append(fields, sqltypes.Field{Name: b.outputName(se, i), Type: b.exprType(nil, se.Expr)})
		exprs = append(exprs, se.Expr)
	}
	return &engine.LiteralRows{OutputFields: fields, Exprs: [][]sqlparser.Expr{exprs}}, nil
}

// tryFastCount recognizes a bare COUNT(*) over a single entity and answers
// it from entity statistics, with an aggregate scan as runtime fallback.
func (b *builder) tryFastCount(sel *sqlparser.Select) engine.Primitive {
	if len(sel.SelectExprs) != 1 || sel.Where != nil || len(sel.Joins) != 0 ||
		len(sel.GroupBy) != 0 || sel.Having != nil || sel.Distinct || sel.Top != nil {
		return nil
	}
	agg, ok := sel.SelectExprs[0].Expr.(*sqlparser.AggregateExpr)
	if !ok || agg.Op != sqlparser.AggCountStar {
		return nil
	}
	alias := b.outputName(sel.SelectExprs[0], 0)
	fallback := &engine.FetchScan{
		Query: &fetchxml.Fetch{
			Aggregate: true,
			Entity: &fetchxml.Entity{
				Name: sel.From.Name,
				Attributes: []*fetchxml.Attribute{{
					Name:      b.primaryIDName(sel.From.Name),
					Aggregate: fetchxml.AggCount,
					Alias:     alias,
				}},
			},
		},
		Estimate: 1,
		Why:      "aggregate scan fallback for stale entity statistics",
	}
	return &engine.FastCount{
		Entity:   sel.From.Name,
		Alias:    alias,
		Fallback: fallback,
		Why:      "unfiltered COUNT(*) answered from entity statistics",
	}
}

// buildRowSelect lowers a non-aggregate SELECT: scan with pushed filters,
// then the client-side residue, windows, projection, distinct, sort, top.
func (b *builder) buildRowSelect(sel *sqlparser.Select) (engine.Primitive, error) {
	scope := b.newScanScope(sel.From)
	for _, join := range sel.Joins {
		if err := scope.addJoin(join); err != nil {
			return nil, err
		}
	}
	remaining, pullout, err := b.rewriteSubqueries(scope, sel.Where)
	if err != nil {
		return nil, err
	}
	pushed, residue := scope.splitPredicate(remaining)
	for _, p := range pushed {
		scope.applyFilter(p)
	}

	windows, windowNames, err := extractWindows(sel, b)
	if err != nil {
		return nil, err
	}

	star := false
	for _, se := range sel.SelectExprs {
		if se.Star {
			star = true
			continue
		}
		if err := scope.addColumns(stripWindows(se.Expr)); err != nil {
			return nil, err
		}
	}
	if star {
		if len(windows) > 0 {
			return nil, dverrors.New(dverrors.Planning, "window functions require an explicit column list")
		}
		scope.selectAll()
	}
	if err := scope.addColumns(residue); err != nil {
		return nil, err
	}
	for _, w := range windows {
		for _, col := range w.cols {
			if err := scope.addColumn(col); err != nil {
				return nil, err
			}
		}
	}
	for _, o := range sel.OrderBy {
		if col, ok := o.Expr.(*sqlparser.ColName); ok {
			if err := scope.addColumn(col); err != nil {
				return nil, err
			}
		}
	}

	// DISTINCT over plain base columns is the server's job
	serverDistinct := sel.Distinct && star == false && allPlainColumns(sel.SelectExprs) && len(windows) == 0
	if serverDistinct {
		scope.fetch.Distinct = true
	}
	clientDistinct := sel.Distinct && !serverDistinct

	clientSort := len(sel.OrderBy) > 0 &&
		(len(windows) > 0 || clientDistinct || !ordersArePlainRootColumns(scope, sel.OrderBy))
	if len(sel.OrderBy) > 0 && !clientSort {
		for _, o := range sel.OrderBy {
			col := o.Expr.(*sqlparser.ColName)
			scope.pushOrder(col.Name, o.Desc)
		}
	}

	clientOps := residue != nil || len(windows) > 0 || clientDistinct || clientSort || pullout != nil
	if sel.Top != nil && !clientOps {
		n, err := strconv.Atoi(sel.Top.Val)
		if err != nil || n < 0 {
			return nil, dverrors.Errorf(dverrors.Planning, "invalid TOP value %q", sel.Top.Val)
		}
		scope.fetch.Top = n
	}

	why := ""
	if residue != nil {
		why = "predicate partially evaluated client side: " + sqlparser.String(residue)
	}
	scan := &engine.FetchScan{Query: scope.fetch, Estimate: b.estimateRows(sel.From.Name), Why: why}

	var prim engine.Primitive = scan
	if pullout != nil {
		sub, err := b.buildSelect(pullout.sub)
		if err != nil {
			return nil, err
		}
		prim = &engine.PulloutSubquery{
			Subquery:  sub,
			Outer:     scan,
			OuterAttr: pullout.attr,
			Negated:   pullout.negated,
			Why:       pullout.why,
		}
	}
	if residue != nil {
		prim = &engine.Filter{Predicate: residue, Input: prim}
	}
	if len(windows) > 0 {
		specs := make([]engine.WindowSpec, 0, len(windows))
		outFields := append([]sqltypes.Field(nil), scope.fields...)
		for i, w := range windows {
			spec, err := w.resolve(scope)
			if err != nil {
				return nil, err
			}
			specs = append(specs, spec)
			outFields = append(outFields, sqltypes.Field{Name: windowNames[i], Type: w.resultType(scope)})
		}
		prim = &engine.Window{Windows: specs, OutputFields: outFields, Input: prim}
	}

	if !star {
		fields := make([]sqltypes.Field, 0, len(sel.SelectExprs))
		exprs := make([]sqlparser.Expr, 0, len(sel.SelectExprs))
		widx := 0
		for i, se := range sel.SelectExprs {
			name := b.outputName(se, i)
			expr := se.Expr
			if containsWindow(se.Expr) {
				// the window stage already computed this column
				expr = &sqlparser.ColName{Name: windowNames[widx]}
				widx++
			}
			fields = append(fields, sqltypes.Field{Name: name, Type: b.exprType(scope, se.Expr)})
			exprs = append(exprs, expr)
		}
		prim = &engine.Projection{OutputFields: fields, Exprs: exprs, Input: prim}
	}
	if clientDistinct {
		prim = &engine.Distinct{Input: prim}
	}
	if clientSort {
		keys, err := b.resolveSortKeys(sel, prim)
		if err != nil {
			return nil, err
		}
		prim = &engine.MemorySort{Keys: keys, Input: prim}
	}
	if sel.Top != nil && clientOps {
		n, err := strconv.ParseInt(sel.Top.Val, 10, 64)
		if err != nil || n < 0 {
			return nil, dverrors.Errorf(dverrors.Planning, "invalid TOP value %q", sel.Top.Val)
		}
		prim = &engine.Limit{Count: n, Input: prim}
	}
	return prim, nil
}

func (b *builder) buildUnion(union *sqlparser.Union) (engine.Primitive, error) {
	want := -1
	sources := make([]engine.Primitive, 0, len(union.Queries))
	for _, q := range union.Queries {
		cols, countable := branchColumnCount(q)
		if countable {
			if want == -1 {
				want = cols
			} else if cols != want {
				return nil, dverrors.Errorf(dverrors.Planning,
					"UNION branches select %d and %d columns", want, cols)
			}
		}
		prim, err := b.buildSelect(q)
		if err != nil {
			return nil, err
		}
		sources = append(sources, prim)
	}
	var prim engine.Primitive = &engine.Concatenate{Sources: sources}
	dedup := false
	for _, all := range union.All {
		if !all {
			dedup = true
		}
	}
	if dedup {
		prim = &engine.Distinct{Input: prim}
	}
	if len(union.OrderBy) > 0 {
		keys, err := b.resolveUnionSortKeys(union)
		if err != nil {
			return nil, err
		}
		prim = &engine.MemorySort{Keys: keys, Input: prim}
	}
	if union.Top != nil {
		n, err := strconv.ParseInt(union.Top.Val, 10, 64)
		if err != nil || n < 0 {
			return nil, dverrors.Errorf(dverrors.Planning, "invalid TOP value %q", union.Top.Val)
		}
		prim = &engine.Limit{Count: n, Input: prim}
	}
	return prim, nil
}

// branchColumnCount reports a branch's output width; stars make it
// uncountable at plan time.
func branchColumnCount(sel *sqlparser.Select) (int, bool) {
	for _, se := range sel.SelectExprs {
		if se.Star {
			return 0, false
		}
	}
	return len(sel.SelectExprs), true
}

// resolveSortKeys maps ORDER BY terms onto the output schema of prim.
func (b *builder) resolveSortKeys(sel *sqlparser.Select, prim engine.Primitive) ([]engine.SortKey, error) {
	names := outputNames(b, sel.SelectExprs)
	keys := make([]engine.SortKey, 0, len(sel.OrderBy))
	for _, o := range sel.OrderBy {
		idx, err := orderKeyIndex(o.Expr, names)
		if err != nil {
			return nil, err
		}
		keys = append(keys, engine.SortKey{Col: idx, Desc: o.Desc})
	}
	return keys, nil
}

func (b *builder) resolveUnionSortKeys(union *sqlparser.Union) ([]engine.SortKey, error) {
	names := outputNames(b, union.Queries[0].SelectExprs)
	keys := make([]engine.SortKey, 0, len(union.OrderBy))
	for _, o := range union.OrderBy {
		idx, err := orderKeyIndex(o.Expr, names)
		if err != nil {
			return nil, err
		}
		keys = append(keys, engine.SortKey{Col: idx, Desc: o.Desc})
	}
	return keys, nil
}

func orderKeyIndex(expr sqlparser.Expr, names []string) (int, error) {
	col, ok := expr.(*sqlparser.ColName)
	if !ok {
		return 0, dverrors.Errorf(dverrors.Planning,
			"ORDER BY term %s must name an output column", sqlparser.String(expr))
	}
	for i, name := range names {
		if strings.EqualFold(name, col.Name) {
			return i, nil
		}
	}
	return 0, dverrors.Errorf(dverrors.Planning, "ORDER BY column %q is not in the select list", col.Name)
}

func outputNames(b *builder, exprs []*sqlparser.SelectExpr) []string {
	names := make([]string, len(exprs))
	for i, se := range exprs {
		names[i] = b.outputName(se, i)
	}
	return names
}

// outputName picks the caller-visible column name for one select item.
func (b *builder) outputName(se *sqlparser.SelectExpr, i int) string {
	if se.As != "" {
		return strings.ToLower(se.As)
	}
	if col, ok := se.Expr.(*sqlparser.ColName); ok {
		return strings.ToLower(col.Name)
	}
	return "column" + strconv.Itoa(i+1)
}

func allPlainColumns(exprs []*sqlparser.SelectExpr) bool {
	for _, se := range exprs {
		if se.Star {
			return false
		}
		if _, ok := se.Expr.(*sqlparser.ColName); !ok {
			return false
		}
	}
	return true
}

func ordersArePlainRootColumns(scope *scanScope, orders []*sqlparser.Order) bool {
	for _, o := range orders {
		col, ok := o.Expr.(*sqlparser.ColName)
		if !ok {
			return false
		}
		qual, _, ok := scope.resolveColumn(col)
		if !ok || qual != "" {
			return false
		}
	}
	return true
}

func isAggregateQuery(sel *sqlparser.Select) bool {
	if len(sel.GroupBy) > 0 {
		return true
	}
	for _, se := range sel.SelectExprs {
		if se.Star {
			continue
		}
		if containsAggregate(se.Expr) {
			return true
		}
	}
	return false
}

func containsAggregate(expr sqlparser.Expr) bool {
	found := false
	walkExpr(expr, func(e sqlparser.Expr) {
		if _, ok := e.(*sqlparser.AggregateExpr); ok {
			found = true
		}
	})
	return found
}

func containsWindow(expr sqlparser.Expr) bool {
	found := false
	walkExpr(expr, func(e sqlparser.Expr) {
		if _, ok := e.(*sqlparser.WindowExpr); ok {
			found = true
		}
	})
	return found
}

// walkExpr visits every node of an expression tree, not descending into
// subquery bodies.
func walkExpr(expr sqlparser.Expr, visit func(sqlparser.Expr)) {
	if expr == nil {
		return
	}
	visit(expr)
	switch node := expr.(type) {
	case *sqlparser.AndExpr:
		walkExpr(node.Left, visit)
		walkExpr(node.Right, visit)
	case *sqlparser.OrExpr:
		walkExpr(node.Left, visit)
		walkExpr(node.Right, visit)
	case *sqlparser.NotExpr:
		walkExpr(node.Expr, visit)
	case *sqlparser.ComparisonExpr:
		walkExpr(node.Left, visit)
		walkExpr(node.Right, visit)
	case *sqlparser.BinaryExpr:
		walkExpr(node.Left, visit)
		walkExpr(node.Right, visit)
	case *sqlparser.UnaryExpr:
		walkExpr(node.Expr, visit)
	case *sqlparser.IsNullExpr:
		walkExpr(node.Expr, visit)
	case *sqlparser.InExpr:
		walkExpr(node.Left, visit)
		for _, e := range node.Exprs {
			walkExpr(e, visit)
		}
	case *sqlparser.FuncExpr:
		for _, a := range node.Args {
			walkExpr(a, visit)
		}
	case *sqlparser.AggregateExpr:
		walkExpr(node.Expr, visit)
	case *sqlparser.WindowExpr:
		walkExpr(node.Expr, visit)
		for _, e := range node.PartitionBy {
			walkExpr(e, visit)
		}
		for _, o := range node.OrderBy {
			walkExpr(o.Expr, visit)
		}
	case *sqlparser.CaseExpr:
		walkExpr(node.Operand, visit)
		for _, w := range node.Whens {
			walkExpr(w.Cond, visit)
			walkExpr(w.Val, visit)
		}
		walkExpr(node.Else, visit)
	case *sqlparser.IifExpr:
		walkExpr(node.Cond, visit)
		walkExpr(node.WhenTrue, visit)
		walkExpr(node.WhenFalse, visit)
	case *sqlparser.CastExpr:
		walkExpr(node.Expr, visit)
	}
}

// validateSelect resolves every scalar function at plan time so unknown
// names and arity mismatches never reach row evaluation.
func (b *builder) validateSelect(sel *sqlparser.Select) error {
	var err error
	check := func(expr sqlparser.Expr) {
		walkExpr(expr, func(e sqlparser.Expr) {
			if fn, ok := e.(*sqlparser.FuncExpr); ok && err == nil {
				err = evalengine.ResolveFunc(fn.Name, len(fn.Args))
			}
		})
	}
	for _, se := range sel.SelectExprs {
		check(se.Expr)
	}
	check(sel.Where)
	check(sel.Having)
	for _, g := range sel.GroupBy {
		check(g)
	}
	for _, o := range sel.OrderBy {
		check(o.Expr)
	}
	return err
}

// estimateRows probes the metadata row count, EstimateUnknown if the store
// cannot answer.
func (b *builder) estimateRows(entity string) int64 {
	if b.meta == nil {
		return engine.EstimateUnknown
	}
	count, err := b.meta.RowCount(b.ctx, entity)
	if err != nil {
		return engine.EstimateUnknown
	}
	return count
}

// primaryIDName resolves the primary id attribute, falling back to the
// store's naming convention when metadata is unavailable.
func (b *builder) primaryIDName(entity string) string {
	if b.meta != nil {
		if em, err := b.meta.Entity(b.ctx, entity); err == nil && em != nil && em.PrimaryID != "" {
			return em.PrimaryID
		}
	}
	return entity + "id"
}

// createdAtName resolves the monotonic timestamp attribute used for
// partition ranges.
func (b *builder) createdAtName(entity string) string {
	if b.meta != nil {
		if em, err := b.meta.Entity(b.ctx, entity); err == nil && em != nil && em.CreatedAtName != "" {
			return em.CreatedAtName
		}
	}
	return "createdon"
}

// exprType infers an output type for schema purposes. Inference is best
// effort; execution carries exact runtime types.
func (b *builder) exprType(scope *scanScope, expr sqlparser.Expr) sqltypes.Type {
	switch node := expr.(type) {
	case *sqlparser.Literal:
		switch node.Kind {
		case sqlparser.IntVal:
			return sqltypes.Int64
		case sqlparser.DecimalVal:
			return sqltypes.Decimal
		}
		return sqltypes.Text
	case *sqlparser.NullVal:
		return sqltypes.Null
	case *sqlparser.BoolVal:
		return sqltypes.Boolean
	case *sqlparser.ColName:
		if scope == nil {
			return sqltypes.Text
		}
		qual, name, ok := scope.resolveColumn(node)
		if !ok {
			return sqltypes.Text
		}
		entity := scope.table.Name
		if qual != "" {
			entity = scope.linkEntity[qual]
		}
		return b.attrType(entity, name)
	case *sqlparser.BinaryExpr:
		lt := b.exprType(scope, node.Left)
		rt := b.exprType(scope, node.Right)
		if lt == sqltypes.Text && rt == sqltypes.Text {
			return sqltypes.Text
		}
		if lt == sqltypes.Int64 && rt == sqltypes.Int64 && node.Op != sqlparser.DivOp {
			return sqltypes.Int64
		}
		return sqltypes.Decimal
	case *sqlparser.UnaryExpr:
		return b.exprType(scope, node.Expr)
	case *sqlparser.CastExpr:
		return node.Type
	case *sqlparser.AggregateExpr:
		switch node.Op {
		case sqlparser.AggCount, sqlparser.AggCountStar:
			return sqltypes.Int64
		case sqlparser.AggSum, sqlparser.AggAvg:
			return sqltypes.Decimal
		}
		return b.exprType(scope, node.Expr)
	case *sqlparser.WindowExpr:
		if node.Expr == nil {
			return sqltypes.Int64
		}
		return sqltypes.Decimal
	case *sqlparser.CaseExpr:
		if len(node.Whens) > 0 {
			return b.exprType(scope, node.Whens[0].Val)
		}
	case *sqlparser.IifExpr:
		return b.exprType(scope, node.WhenTrue)
	case *sqlparser.ComparisonExpr, *sqlparser.AndExpr, *sqlparser.OrExpr,
		*sqlparser.NotExpr, *sqlparser.IsNullExpr, *sqlparser.InExpr, *sqlparser.ExistsExpr:
		return sqltypes.Boolean
	}
	return sqltypes.Text
}
