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
	"github.com/dvsql/dvsql/go/dv/fetchxml"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
)

// pulloutSpec records an IN subquery that could not become a join: the
// subquery runs first, then either inlines its values into the outer scan or
// filters client side.
type pulloutSpec struct {
	sub     *sqlparser.Select
	attr    string
	negated bool
	why     string
}

// rewriteSubqueries turns EXISTS and IN subquery predicates into link-entity
// joins where the subquery shape allows it, keeping the work server side.
// What cannot become a join becomes a two-phase pullout. The returned
// expression is the WHERE clause with the handled conjuncts removed.
func (b *builder) rewriteSubqueries(scope *scanScope, where sqlparser.Expr) (sqlparser.Expr, *pulloutSpec, error) {
	var remaining sqlparser.Expr
	var pullout *pulloutSpec
	for _, conjunct := range splitConjuncts(where) {
		switch node := conjunct.(type) {
		case *sqlparser.ExistsExpr:
			residue, err := b.rewriteExists(scope, node.Sub.Select, false)
			if err != nil {
				return nil, nil, err
			}
			remaining = andExprs(remaining, residue)
		case *sqlparser.NotExpr:
			exists, ok := node.Expr.(*sqlparser.ExistsExpr)
			if !ok {
				remaining = andExprs(remaining, conjunct)
				continue
			}
			residue, err := b.rewriteExists(scope, exists.Sub.Select, true)
			if err != nil {
				return nil, nil, err
			}
			remaining = andExprs(remaining, residue)
		case *sqlparser.InExpr:
			if node.Sub == nil {
				remaining = andExprs(remaining, conjunct)
				continue
			}
			spec, err := b.rewriteInSubquery(scope, node)
			if err != nil {
				return nil, nil, err
			}
			if spec != nil {
				if pullout != nil {
					return nil, nil, dverrors.New(dverrors.Planning,
						"at most one subquery predicate can fall back to two-phase execution")
				}
				pullout = spec
			}
		default:
			remaining = andExprs(remaining, conjunct)
		}
	}
	return remaining, pullout, nil
}

// rewriteExists lowers [NOT] EXISTS to a link-entity join. Existence becomes
// an inner link; negated existence becomes an outer link plus a client null
// check on the link's join attribute. The subquery must correlate through a
// single column equality.
func (b *builder) rewriteExists(scope *scanScope, sub *sqlparser.Select, negated bool) (sqlparser.Expr, error) {
	if err := subqueryJoinable(sub); err != nil {
		return nil, err
	}
	subQual := strings.ToLower(sub.From.QualifierName())
	subCol, outerCol, rest, ok := findCorrelation(sub.Where, subQual)
	if !ok {
		return nil, dverrors.Errorf(dverrors.Planning,
			"EXISTS subquery on %s must correlate through a single column equality", sub.From.Name)
	}
	if _, _, ok := scope.resolveColumn(outerCol); !ok {
		return nil, dverrors.Errorf(dverrors.Planning, "unknown table alias %q", outerCol.Qualifier)
	}
	linkType := fetchxml.LinkInner
	if negated {
		linkType = fetchxml.LinkOuter
	}
	alias := scope.uniqueAlias(subQual)
	link := &fetchxml.LinkEntity{
		Name:     sub.From.Name,
		From:     strings.ToLower(subCol.Name),
		To:       strings.ToLower(outerCol.Name),
		Alias:    alias,
		LinkType: linkType,
	}
	if err := scope.attachLink(alias, sub.From.Name, outerCol.Qualifier, link); err != nil {
		return nil, err
	}
	if err := pushSubqueryFilter(scope, alias, subQual, rest, sub.From.Name); err != nil {
		return nil, err
	}
	if !negated {
		if !scope.fetch.Aggregate {
			// the join can fan rows out; distinct restores semi-join semantics
			scope.fetch.Distinct = true
		}
		return nil, nil
	}
	// rows with no link match carry a null join attribute
	joinCol := &sqlparser.ColName{Qualifier: alias, Name: link.From}
	if err := scope.addColumn(joinCol); err != nil {
		return nil, err
	}
	return &sqlparser.IsNullExpr{Expr: joinCol}, nil
}

// rewriteInSubquery lowers `col IN (SELECT ...)`. The join form needs an
// uncorrelated single-column subquery whose filter pushes fully into the
// link; everything else returns a pullout spec.
func (b *builder) rewriteInSubquery(scope *scanScope, node *sqlparser.InExpr) (*pulloutSpec, error) {
	left, ok := node.Left.(*sqlparser.ColName)
	if !ok {
		return nil, dverrors.Errorf(dverrors.Planning,
			"IN subquery requires a column on the left side: %s", sqlparser.String(node.Left))
	}
	qual, leftAttr, ok := scope.resolveColumn(left)
	if !ok {
		return nil, dverrors.Errorf(dverrors.Planning, "unknown table alias %q", left.Qualifier)
	}
	sub := node.Sub.Select
	if err := subqueryValueShape(sub); err != nil {
		return nil, err
	}
	subCol, colOK := sub.SelectExprs[0].Expr.(*sqlparser.ColName)

	joinable := !node.Negated && qual == "" && colOK && subqueryJoinable(sub) == nil &&
		!referencesOtherTables(sub.Where, strings.ToLower(sub.From.QualifierName()))
	if joinable {
		subQual := strings.ToLower(sub.From.QualifierName())
		alias := scope.uniqueAlias(subQual)
		link := &fetchxml.LinkEntity{
			Name:     sub.From.Name,
			From:     strings.ToLower(subCol.Name),
			To:       leftAttr,
			Alias:    alias,
			LinkType: fetchxml.LinkInner,
		}
		if err := scope.attachLink(alias, sub.From.Name, left.Qualifier, link); err != nil {
			return nil, err
		}
		if err := pushSubqueryFilter(scope, alias, subQual, sub.Where, sub.From.Name); err == nil {
			if !scope.fetch.Aggregate {
				scope.fetch.Distinct = true
			}
			return nil, nil
		}
		// filter would not push; undo the link and fall back
		scope.detachLink(alias)
	}
	why := "subquery shape has no join rewrite; executing it first"
	if node.Negated {
		why = "NOT IN keeps null semantics only in two-phase execution"
	}
	return &pulloutSpec{sub: sub, attr: leftAttr, negated: node.Negated, why: why}, nil
}

// subqueryJoinable rejects subquery shapes the join rewrite cannot express.
func subqueryJoinable(sub *sqlparser.Select) error {
	if sub.From == nil {
		return dverrors.New(dverrors.Planning, "subquery requires a FROM clause")
	}
	if len(sub.Joins) > 0 || len(sub.GroupBy) > 0 || sub.Having != nil ||
		sub.Distinct || sub.Top != nil || isAggregateQuery(sub) {
		return dverrors.Errorf(dverrors.Planning,
			"subquery on %s is too complex to rewrite into a join", sub.From.Name)
	}
	return nil
}

// subqueryValueShape checks that an IN subquery produces exactly one column.
func subqueryValueShape(sub *sqlparser.Select) error {
	if len(sub.SelectExprs) != 1 || sub.SelectExprs[0].Star {
		return dverrors.New(dverrors.Planning, "IN subquery must select exactly one column")
	}
	return nil
}

// findCorrelation scans conjuncts for an equality joining the subquery table
// to the outer query, returning the two columns and the leftover predicate.
func findCorrelation(where sqlparser.Expr, subQual string) (subCol, outerCol *sqlparser.ColName, rest sqlparser.Expr, found bool) {
	for _, conjunct := range splitConjuncts(where) {
		if !found {
			if cmp, ok := conjunct.(*sqlparser.ComparisonExpr); ok && cmp.Op == sqlparser.EqualOp {
				l, lok := cmp.Left.(*sqlparser.ColName)
				r, rok := cmp.Right.(*sqlparser.ColName)
				if lok && rok {
					lSub := strings.EqualFold(l.Qualifier, subQual)
					rSub := strings.EqualFold(r.Qualifier, subQual)
					if lSub && !rSub {
						subCol, outerCol, found = l, r, true
						continue
					}
					if rSub && !lSub {
						subCol, outerCol, found = r, l, true
						continue
					}
				}
			}
		}
		rest = andExprs(rest, conjunct)
	}
	return subCol, outerCol, rest, found
}

// referencesOtherTables reports whether a predicate mentions any table but
// the named one.
func referencesOtherTables(expr sqlparser.Expr, qual string) bool {
	for _, col := range referencedColumns(expr) {
		if col.Qualifier != "" && !strings.EqualFold(col.Qualifier, qual) {
			return true
		}
	}
	return false
}

// pushSubqueryFilter rewrites the subquery's residual filter against the
// link alias and pushes it into the link. Fails if any part cannot push.
func pushSubqueryFilter(scope *scanScope, alias, subQual string, where sqlparser.Expr, entity string) error {
	if where == nil {
		return nil
	}
	requalified := requalify(where, subQual, alias)
	pushed, residue := scope.splitPredicate(requalified)
	if residue != nil {
		return dverrors.Errorf(dverrors.Planning,
			"subquery filter on %s cannot be pushed: %s", entity, sqlparser.String(residue))
	}
	for _, p := range pushed {
		if p.qualifier != alias {
			return dverrors.Errorf(dverrors.Planning,
				"subquery filter on %s escapes the subquery table", entity)
		}
		scope.applyFilter(p)
	}
	return nil
}

// requalify rebuilds an expression with one table qualifier renamed. Bare
// columns are treated as belonging to the old qualifier.
func requalify(expr sqlparser.Expr, oldQual, newQual string) sqlparser.Expr {
	switch node := expr.(type) {
	case nil:
		return nil
	case *sqlparser.ColName:
		if node.Qualifier == "" || strings.EqualFold(node.Qualifier, oldQual) {
			return &sqlparser.ColName{Qualifier: newQual, Name: node.Name}
		}
		return node
	case *sqlparser.AndExpr:
		return &sqlparser.AndExpr{Left: requalify(node.Left, oldQual, newQual), Right: requalify(node.Right, oldQual, newQual)}
	case *sqlparser.OrExpr:
		return &sqlparser.OrExpr{Left: requalify(node.Left, oldQual, newQual), Right: requalify(node.Right, oldQual, newQual)}
	case *sqlparser.NotExpr:
		return &sqlparser.NotExpr{Expr: requalify(node.Expr, oldQual, newQual)}
	case *sqlparser.ComparisonExpr:
		return &sqlparser.ComparisonExpr{Op: node.Op, Left: requalify(node.Left, oldQual, newQual), Right: requalify(node.Right, oldQual, newQual)}
	case *sqlparser.IsNullExpr:
		return &sqlparser.IsNullExpr{Expr: requalify(node.Expr, oldQual, newQual), Negated: node.Negated}
	case *sqlparser.InExpr:
		out := &sqlparser.InExpr{Left: requalify(node.Left, oldQual, newQual), Sub: node.Sub, Negated: node.Negated}
		for _, e := range node.Exprs {
			out.Exprs = append(out.Exprs, requalify(e, oldQual, newQual))
		}
		return out
	}
	return expr
}

// uniqueAlias returns base if free, else base with a numeric suffix.
func (s *scanScope) uniqueAlias(base string) string {
	if base == "" {
		base = "sub"
	}
	if !s.aliasTaken(base) {
		return base
	}
	for i := 1; ; i++ {
		candidate := base + strconv.Itoa(i)
		if !s.aliasTaken(candidate) {
			return candidate
		}
	}
}

func (s *scanScope) aliasTaken(alias string) bool {
	if strings.EqualFold(alias, s.table.QualifierName()) {
		return true
	}
	_, ok := s.links[alias]
	return ok
}

// detachLink removes a link added speculatively by a rewrite that then
// failed.
func (s *scanScope) detachLink(alias string) {
	link, ok := s.links[alias]
	if !ok {
		return
	}
	delete(s.links, alias)
	delete(s.linkEntity, alias)
	for i, l := range s.fetch.Entity.Links {
		if l == link {
			s.fetch.Entity.Links = append(s.fetch.Entity.Links[:i], s.fetch.Entity.Links[i+1:]...)
			return
		}
	}
}
