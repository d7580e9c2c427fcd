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
	"github.com/dvsql/dvsql/go/dv/fetchxml"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
)

// pushedFilter is one predicate subtree expressible in the native grammar,
// tagged with the table it constrains ("" for the root entity).
type pushedFilter struct {
	qualifier string
	filter    *fetchxml.Filter
}

// splitPredicate partitions a WHERE tree into native-expressible filters and
// a client-side residue. Conjuncts are considered independently; any
// conjunct the native grammar cannot express stays in the residue and is
// evaluated by a Filter node above the scan. The split never weakens the
// predicate: pushed AND residue is equivalent to the original.
func (s *scanScope) splitPredicate(expr sqlparser.Expr) (pushed []pushedFilter, residue sqlparser.Expr) {
	for _, conjunct := range splitConjuncts(expr) {
		qual, filter, ok := s.convertPredicate(conjunct)
		if !ok {
			residue = andExprs(residue, conjunct)
			continue
		}
		pushed = append(pushed, pushedFilter{qualifier: qual, filter: filter})
	}
	return pushed, residue
}

// splitConjuncts flattens an AND tree.
func splitConjuncts(expr sqlparser.Expr) []sqlparser.Expr {
	if expr == nil {
		return nil
	}
	if and, ok := expr.(*sqlparser.AndExpr); ok {
		return append(splitConjuncts(and.Left), splitConjuncts(and.Right)...)
	}
	return []sqlparser.Expr{expr}
}

func andExprs(left, right sqlparser.Expr) sqlparser.Expr {
	if left == nil {
		return right
	}
	if right == nil {
		return left
	}
	return &sqlparser.AndExpr{Left: left, Right: right}
}

// convertPredicate tries to express a predicate subtree as a native filter.
// Supported shapes: column-vs-literal comparisons (including LIKE), IS [NOT]
// NULL, IN over a literal list, and AND/OR combinations of those that stay
// on a single table.
func (s *scanScope) convertPredicate(expr sqlparser.Expr) (string, *fetchxml.Filter, bool) {
	switch node := expr.(type) {
	case *sqlparser.ComparisonExpr:
		qual, cond, ok := s.convertComparison(node)
		if !ok {
			return "", nil, false
		}
		return qual, &fetchxml.Filter{Type: fetchxml.FilterAnd, Conditions: []*fetchxml.Condition{cond}}, true
	case *sqlparser.IsNullExpr:
		col, ok := node.Expr.(*sqlparser.ColName)
		if !ok {
			return "", nil, false
		}
		qual, attr, ok := s.resolveColumn(col)
		if !ok {
			return "", nil, false
		}
		op := fetchxml.OpNull
		if node.Negated {
			op = fetchxml.OpNotNull
		}
		cond := &fetchxml.Condition{Attribute: attr, Operator: op}
		return qual, &fetchxml.Filter{Type: fetchxml.FilterAnd, Conditions: []*fetchxml.Condition{cond}}, true
	case *sqlparser.InExpr:
		return s.convertInList(node)
	case *sqlparser.AndExpr:
		return s.convertBoolPair(node.Left, node.Right, fetchxml.FilterAnd)
	case *sqlparser.OrExpr:
		return s.convertBoolPair(node.Left, node.Right, fetchxml.FilterOr)
	}
	return "", nil, false
}

func (s *scanScope) convertBoolPair(left, right sqlparser.Expr, filterType string) (string, *fetchxml.Filter, bool) {
	lq, lf, ok := s.convertPredicate(left)
	if !ok {
		return "", nil, false
	}
	rq, rf, ok := s.convertPredicate(right)
	if !ok || lq != rq {
		// an OR spanning two tables has no native spelling
		return "", nil, false
	}
	return lq, &fetchxml.Filter{Type: filterType, Filters: []*fetchxml.Filter{lf, rf}}, true
}

func (s *scanScope) convertComparison(node *sqlparser.ComparisonExpr) (string, *fetchxml.Condition, bool) {
	col, lit, flipped := comparisonOperands(node)
	if col == nil {
		return "", nil, false
	}
	qual, attr, ok := s.resolveColumn(col)
	if !ok {
		return "", nil, false
	}
	op := node.Op
	if flipped {
		op = flipComparison(op)
	}
	var operator string
	switch op {
	case sqlparser.EqualOp:
		operator = fetchxml.OpEqual
	case sqlparser.NotEqualOp:
		operator = fetchxml.OpNotEqual
	case sqlparser.LessThanOp:
		operator = fetchxml.OpLess
	case sqlparser.LessEqualOp:
		operator = fetchxml.OpLessEqual
	case sqlparser.GreaterThanOp:
		operator = fetchxml.OpGreater
	case sqlparser.GreaterEqualOp:
		operator = fetchxml.OpGreaterEqual
	case sqlparser.LikeOp:
		operator = fetchxml.OpLike
	case sqlparser.NotLikeOp:
		operator = fetchxml.OpNotLike
	default:
		return "", nil, false
	}
	return qual, &fetchxml.Condition{Attribute: attr, Operator: operator, Value: lit.Val}, true
}

// comparisonOperands normalizes "literal op column" to "column op column"
// order, reporting whether the operator must flip.
func comparisonOperands(node *sqlparser.ComparisonExpr) (*sqlparser.ColName, *sqlparser.Literal, bool) {
	if col, ok := node.Left.(*sqlparser.ColName); ok {
		if lit, ok := node.Right.(*sqlparser.Literal); ok {
			return col, lit, false
		}
		return nil, nil, false
	}
	if lit, ok := node.Left.(*sqlparser.Literal); ok {
		if col, ok := node.Right.(*sqlparser.ColName); ok {
			return col, lit, true
		}
	}
	return nil, nil, false
}

func flipComparison(op sqlparser.ComparisonOp) sqlparser.ComparisonOp {
	switch op {
	case sqlparser.LessThanOp:
		return sqlparser.GreaterThanOp
	case sqlparser.LessEqualOp:
		return sqlparser.GreaterEqualOp
	case sqlparser.GreaterThanOp:
		return sqlparser.LessThanOp
	case sqlparser.GreaterEqualOp:
		return sqlparser.LessEqualOp
	}
	return op
}

func (s *scanScope) convertInList(node *sqlparser.InExpr) (string, *fetchxml.Filter, bool) {
	if node.Sub != nil {
		// subquery IN is handled by the rewrite rules, not pushdown
		return "", nil, false
	}
	col, ok := node.Left.(*sqlparser.ColName)
	if !ok {
		return "", nil, false
	}
	qual, attr, ok := s.resolveColumn(col)
	if !ok {
		return "", nil, false
	}
	op := fetchxml.OpIn
	if node.Negated {
		op = fetchxml.OpNotIn
	}
	cond := &fetchxml.Condition{Attribute: attr, Operator: op}
	for _, e := range node.Exprs {
		lit, ok := e.(*sqlparser.Literal)
		if !ok {
			return "", nil, false
		}
		cond.Values = append(cond.Values, lit.Val)
	}
	return qual, &fetchxml.Filter{Type: fetchxml.FilterAnd, Conditions: []*fetchxml.Condition{cond}}, true
}
