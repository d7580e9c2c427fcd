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

package sqlparser

import (
	"strings"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// Parse parses a single statement.
func Parse(sql string) (Statement, error) {
	stmt, _, err := ParseWithComments(sql)
	return stmt, err
}

// ParseWithComments parses a single statement and also returns the comment
// side stream with source positions.
func ParseWithComments(sql string) (Statement, []Comment, error) {
	p := &parser{tz: NewTokenizer(sql)}
	if err := p.next(); err != nil {
		return nil, nil, err
	}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, nil, err
	}
	if p.tok.Kind == TokenSymbol && p.tok.Val == ";" {
		if err := p.next(); err != nil {
			return nil, nil, err
		}
	}
	if p.tok.Kind != TokenEOF {
		return nil, nil, NewPositionedErr("unexpected trailing input", p.tok.Pos)
	}
	return stmt, p.tz.Comments, nil
}

// parser is a single-lookahead recursive-descent parser.
type parser struct {
	tz  *Tokenizer
	tok Token
}

func (p *parser) next() error {
	tok, err := p.tz.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.Kind == TokenKeyword && p.tok.Val == kw
}

func (p *parser) isSymbol(sym string) bool {
	return p.tok.Kind == TokenSymbol && p.tok.Val == sym
}

// acceptKeyword consumes kw if present.
func (p *parser) acceptKeyword(kw string) (bool, error) {
	if !p.isKeyword(kw) {
		return false, nil
	}
	return true, p.next()
}

func (p *parser) expectKeyword(kw string) error {
	if !p.isKeyword(kw) {
		return NewPositionedErr("expected "+kw, p.tok.Pos)
	}
	return p.next()
}

func (p *parser) acceptSymbol(sym string) (bool, error) {
	if !p.isSymbol(sym) {
		return false, nil
	}
	return true, p.next()
}

func (p *parser) expectSymbol(sym string) error {
	if !p.isSymbol(sym) {
		return NewPositionedErr("expected "+sym, p.tok.Pos)
	}
	return p.next()
}

func (p *parser) expectIdent() (string, error) {
	if p.tok.Kind != TokenIdent {
		return "", NewPositionedErr("expected identifier", p.tok.Pos)
	}
	name := p.tok.Val
	return name, p.next()
}

func (p *parser) parseStatement() (Statement, error) {
	switch {
	case p.isKeyword("SELECT"):
		return p.parseSelectOrUnion()
	case p.isKeyword("INSERT"):
		return p.parseInsert()
	case p.isKeyword("UPDATE"):
		return p.parseUpdate()
	case p.isKeyword("DELETE"):
		return p.parseDelete()
	}
	return nil, NewPositionedErr("expected SELECT, INSERT, UPDATE or DELETE", p.tok.Pos)
}

func (p *parser) parseSelectOrUnion() (Statement, error) {
	first, err := p.parseSelectBody()
	if err != nil {
		return nil, err
	}
	if !p.isKeyword("UNION") {
		if len(first.OrderBy) == 0 {
			first.OrderBy, err = p.parseOptionalOrderBy()
			if err != nil {
				return nil, err
			}
		}
		return first, nil
	}
	union := &Union{Queries: []*Select{first}}
	for p.isKeyword("UNION") {
		if err := p.next(); err != nil {
			return nil, err
		}
		all, err := p.acceptKeyword("ALL")
		if err != nil {
			return nil, err
		}
		union.All = append(union.All, all)
		branch, err := p.parseSelectBody()
		if err != nil {
			return nil, err
		}
		union.Queries = append(union.Queries, branch)
	}
	union.OrderBy, err = p.parseOptionalOrderBy()
	if err != nil {
		return nil, err
	}
	return union, nil
}

// parseSelectBody parses a SELECT without its ORDER BY clause; the caller
// decides whether ordering belongs to the select or an enclosing union.
func (p *parser) parseSelectBody() (*Select, error) {
	if err := p.expectKeyword("SELECT"); err != nil {
		return nil, err
	}
	sel := &Select{}
	var err error
	sel.Distinct, err = p.acceptKeyword("DISTINCT")
	if err != nil {
		return nil, err
	}
	hasTop, err := p.acceptKeyword("TOP")
	if err != nil {
		return nil, err
	}
	if hasTop {
		if p.tok.Kind != TokenNumber {
			return nil, NewPositionedErr("expected row count after TOP", p.tok.Pos)
		}
		sel.Top = NewIntLiteral(p.tok.Val)
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if err := p.parseSelectExprs(sel); err != nil {
		return nil, err
	}
	hasFrom, err := p.acceptKeyword("FROM")
	if err != nil {
		return nil, err
	}
	if hasFrom {
		sel.From, err = p.parseAliasedTable()
		if err != nil {
			return nil, err
		}
		sel.Joins, err = p.parseJoins()
		if err != nil {
			return nil, err
		}
	}
	hasWhere, err := p.acceptKeyword("WHERE")
	if err != nil {
		return nil, err
	}
	if hasWhere {
		sel.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	hasGroup, err := p.acceptKeyword("GROUP")
	if err != nil {
		return nil, err
	}
	if hasGroup {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			sel.GroupBy = append(sel.GroupBy, expr)
			comma, err := p.acceptSymbol(",")
			if err != nil {
				return nil, err
			}
			if !comma {
				break
			}
		}
	}
	hasHaving, err := p.acceptKeyword("HAVING")
	if err != nil {
		return nil, err
	}
	if hasHaving {
		sel.Having, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// parseSelectExprs parses the projection list. A single trailing comma before
// FROM (or end of statement) is tolerated as list termination.
func (p *parser) parseSelectExprs(sel *Select) error {
	for {
		se, err := p.parseSelectExpr()
		if err != nil {
			return err
		}
		sel.SelectExprs = append(sel.SelectExprs, se)
		comma, err := p.acceptSymbol(",")
		if err != nil {
			return err
		}
		if !comma {
			return nil
		}
		// trailing comma: the list is done if the clause that follows
		// the projection starts here
		if p.isKeyword("FROM") || p.tok.Kind == TokenEOF {
			return nil
		}
	}
}

func (p *parser) parseSelectExpr() (*SelectExpr, error) {
	if p.isSymbol("*") {
		if err := p.next(); err != nil {
			return nil, err
		}
		return &SelectExpr{Star: true}, nil
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if marker, ok := expr.(*starMarker); ok {
		return &SelectExpr{Star: true, StarQualifier: marker.qualifier}, nil
	}
	se := &SelectExpr{Expr: expr}
	hasAs, err := p.acceptKeyword("AS")
	if err != nil {
		return nil, err
	}
	if hasAs {
		se.As, err = p.expectIdent()
		if err != nil {
			return nil, err
		}
		return se, nil
	}
	if p.tok.Kind == TokenIdent {
		se.As = p.tok.Val
		return se, p.next()
	}
	return se, nil
}

func (p *parser) parseAliasedTable() (*AliasedTable, error) {
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	// qualified name, e.g. the metadata catalog pseudo-tables
	hasDot, err := p.acceptSymbol(".")
	if err != nil {
		return nil, err
	}
	if hasDot {
		part, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		name = name + "." + part
	}
	tbl := &AliasedTable{Name: name}
	hasAs, err := p.acceptKeyword("AS")
	if err != nil {
		return nil, err
	}
	if hasAs {
		tbl.Alias, err = p.expectIdent()
		return tbl, err
	}
	if p.tok.Kind == TokenIdent {
		tbl.Alias = p.tok.Val
		return tbl, p.next()
	}
	return tbl, nil
}

func (p *parser) parseJoins() ([]*Join, error) {
	var joins []*Join
	for {
		var joinType JoinType
		switch {
		case p.isKeyword("JOIN"):
			joinType = InnerJoin
			if err := p.next(); err != nil {
				return nil, err
			}
		case p.isKeyword("INNER"):
			joinType = InnerJoin
			if err := p.next(); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
		case p.isKeyword("LEFT"):
			joinType = LeftJoin
			if err := p.next(); err != nil {
				return nil, err
			}
			if _, err := p.acceptKeyword("OUTER"); err != nil {
				return nil, err
			}
			if err := p.expectKeyword("JOIN"); err != nil {
				return nil, err
			}
		default:
			return joins, nil
		}
		table, err := p.parseAliasedTable()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("ON"); err != nil {
			return nil, err
		}
		on, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		joins = append(joins, &Join{Type: joinType, Table: table, On: on})
	}
}

func (p *parser) parseOptionalOrderBy() ([]*Order, error) {
	hasOrder, err := p.acceptKeyword("ORDER")
	if err != nil {
		return nil, err
	}
	if !hasOrder {
		return nil, nil
	}
	if err := p.expectKeyword("BY"); err != nil {
		return nil, err
	}
	var orders []*Order
	for {
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		order := &Order{Expr: expr}
		if asc, err := p.acceptKeyword("ASC"); err != nil {
			return nil, err
		} else if !asc {
			order.Desc, err = p.acceptKeyword("DESC")
			if err != nil {
				return nil, err
			}
		}
		orders = append(orders, order)
		comma, err := p.acceptSymbol(",")
		if err != nil {
			return nil, err
		}
		if !comma {
			return orders, nil
		}
	}
}

func (p *parser) parseInsert() (Statement, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("INTO"); err != nil {
		return nil, err
	}
	table, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	ins := &Insert{Table: table}
	hasCols, err := p.acceptSymbol("(")
	if err != nil {
		return nil, err
	}
	if hasCols {
		for {
			col, err := p.expectIdent()
			if err != nil {
				return nil, err
			}
			ins.Columns = append(ins.Columns, col)
			comma, err := p.acceptSymbol(",")
			if err != nil {
				return nil, err
			}
			if !comma {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
	}
	if p.isKeyword("SELECT") {
		src, err := p.parseSelectOrUnion()
		if err != nil {
			return nil, err
		}
		sel, ok := src.(*Select)
		if !ok {
			return nil, NewPositionedErr("INSERT source must be a plain SELECT", p.tok.Pos)
		}
		ins.Source = sel
		return ins, nil
	}
	if err := p.expectKeyword("VALUES"); err != nil {
		return nil, err
	}
	for {
		if err := p.expectSymbol("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, expr)
			comma, err := p.acceptSymbol(",")
			if err != nil {
				return nil, err
			}
			if !comma {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		ins.Rows = append(ins.Rows, row)
		comma, err := p.acceptSymbol(",")
		if err != nil {
			return nil, err
		}
		if !comma {
			return ins, nil
		}
	}
}

func (p *parser) parseUpdate() (Statement, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	table, err := p.parseAliasedTable()
	if err != nil {
		return nil, err
	}
	upd := &Update{Table: table}
	if err := p.expectKeyword("SET"); err != nil {
		return nil, err
	}
	for {
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if err := p.expectSymbol("="); err != nil {
			return nil, err
		}
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		upd.Set = append(upd.Set, &SetClause{Column: col, Expr: expr})
		comma, err := p.acceptSymbol(",")
		if err != nil {
			return nil, err
		}
		if !comma {
			break
		}
	}
	upd.Joins, err = p.parseJoins()
	if err != nil {
		return nil, err
	}
	hasWhere, err := p.acceptKeyword("WHERE")
	if err != nil {
		return nil, err
	}
	if hasWhere {
		upd.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return upd, nil
}

func (p *parser) parseDelete() (Statement, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectKeyword("FROM"); err != nil {
		return nil, err
	}
	table, err := p.parseAliasedTable()
	if err != nil {
		return nil, err
	}
	del := &Delete{Table: table}
	del.Joins, err = p.parseJoins()
	if err != nil {
		return nil, err
	}
	hasWhere, err := p.acceptKeyword("WHERE")
	if err != nil {
		return nil, err
	}
	if hasWhere {
		del.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return del, nil
}

// starMarker is an internal sentinel for "qualifier.*" encountered inside an
// expression position; only the select-list parser accepts it.
type starMarker struct {
	qualifier string
}

func (*starMarker) iExpr()                  {}
func (*starMarker) Format(_ *TrackedBuffer) {}

// Expression grammar, loosest to tightest:
// or → and → not → comparison → additive → multiplicative → unary → primary.

func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &OrExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = &AndExpr{Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.isKeyword("NOT") {
		if err := p.next(); err != nil {
			return nil, err
		}
		expr, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &NotExpr{Expr: expr}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	switch {
	case p.isKeyword("IS"):
		if err := p.next(); err != nil {
			return nil, err
		}
		negated, err := p.acceptKeyword("NOT")
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return &IsNullExpr{Expr: left, Negated: negated}, nil
	case p.isKeyword("IN"):
		return p.parseIn(left, false)
	case p.isKeyword("LIKE"):
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ComparisonExpr{Op: LikeOp, Left: left, Right: right}, nil
	case p.isKeyword("NOT"):
		if err := p.next(); err != nil {
			return nil, err
		}
		switch {
		case p.isKeyword("IN"):
			return p.parseIn(left, true)
		case p.isKeyword("LIKE"):
			if err := p.next(); err != nil {
				return nil, err
			}
			right, err := p.parseAdditive()
			if err != nil {
				return nil, err
			}
			return &ComparisonExpr{Op: NotLikeOp, Left: left, Right: right}, nil
		}
		return nil, NewPositionedErr("expected IN or LIKE after NOT", p.tok.Pos)
	case p.tok.Kind == TokenSymbol:
		var op ComparisonOp
		switch p.tok.Val {
		case "=":
			op = EqualOp
		case "<>":
			op = NotEqualOp
		case "<":
			op = LessThanOp
		case "<=":
			op = LessEqualOp
		case ">":
			op = GreaterThanOp
		case ">=":
			op = GreaterEqualOp
		default:
			return left, nil
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		return &ComparisonExpr{Op: op, Left: left, Right: right}, nil
	}
	return left, nil
}

func (p *parser) parseIn(left Expr, negated bool) (Expr, error) {
	if err := p.next(); err != nil { // consume IN
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	in := &InExpr{Left: left, Negated: negated}
	if p.isKeyword("SELECT") {
		sel, err := p.parseSubquerySelect()
		if err != nil {
			return nil, err
		}
		in.Sub = &Subquery{Select: sel}
	} else {
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			in.Exprs = append(in.Exprs, expr)
			comma, err := p.acceptSymbol(",")
			if err != nil {
				return nil, err
			}
			if !comma {
				break
			}
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return in, nil
}

func (p *parser) parseSubquerySelect() (*Select, error) {
	sel, err := p.parseSelectBody()
	if err != nil {
		return nil, err
	}
	sel.OrderBy, err = p.parseOptionalOrderBy()
	if err != nil {
		return nil, err
	}
	return sel, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("+") || p.isSymbol("-") {
		op := AddOp
		if p.tok.Val == "-" {
			op = SubOp
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.isSymbol("*") || p.isSymbol("/") || p.isSymbol("%") {
		var op BinaryOp
		switch p.tok.Val {
		case "*":
			op = MulOp
		case "/":
			op = DivOp
		default:
			op = ModOp
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.isSymbol("-") {
		if err := p.next(); err != nil {
			return nil, err
		}
		expr, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: NegateOp, Expr: expr}, nil
	}
	if p.isSymbol("+") {
		if err := p.next(); err != nil {
			return nil, err
		}
		return p.parseUnary()
	}
	return p.parsePrimary()
}

var aggregateNames = map[string]AggregateOp{
	"count": AggCount,
	"sum":   AggSum,
	"avg":   AggAvg,
	"min":   AggMin,
	"max":   AggMax,
}

var rankingNames = map[string]bool{
	"row_number": true,
	"rank":       true,
	"dense_rank": true,
}

func (p *parser) parsePrimary() (Expr, error) {
	switch p.tok.Kind {
	case TokenNumber:
		val := p.tok.Val
		kind := IntVal
		if strings.Contains(val, ".") {
			kind = DecimalVal
		}
		if err := p.next(); err != nil {
			return nil, err
		}
		return &Literal{Kind: kind, Val: val}, nil
	case TokenString:
		val := p.tok.Val
		if err := p.next(); err != nil {
			return nil, err
		}
		return NewStrLiteral(val), nil
	case TokenPlaceholder:
		name := p.tok.Val
		if err := p.next(); err != nil {
			return nil, err
		}
		return &Placeholder{Name: name}, nil
	case TokenKeyword:
		switch p.tok.Val {
		case "NULL":
			return &NullVal{}, p.next()
		case "TRUE":
			return &BoolVal{Val: true}, p.next()
		case "FALSE":
			return &BoolVal{Val: false}, p.next()
		case "CASE":
			return p.parseCase()
		case "CAST":
			return p.parseCast()
		case "CONVERT":
			return p.parseConvert()
		case "IIF":
			return p.parseIif()
		case "LEFT":
			// LEFT is both a join keyword and a string function
			if err := p.next(); err != nil {
				return nil, err
			}
			if !p.isSymbol("(") {
				return nil, NewPositionedErr("unexpected keyword LEFT", p.tok.Pos)
			}
			if err := p.next(); err != nil {
				return nil, err
			}
			fn := &FuncExpr{Name: "left"}
			for {
				arg, err := p.parseExpr()
				if err != nil {
					return nil, err
				}
				fn.Args = append(fn.Args, arg)
				comma, err := p.acceptSymbol(",")
				if err != nil {
					return nil, err
				}
				if !comma {
					break
				}
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return fn, nil
		case "EXISTS":
			if err := p.next(); err != nil {
				return nil, err
			}
			if err := p.expectSymbol("("); err != nil {
				return nil, err
			}
			sel, err := p.parseSubquerySelect()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return &ExistsExpr{Sub: &Subquery{Select: sel}}, nil
		}
		return nil, NewPositionedErr("unexpected keyword "+p.tok.Val, p.tok.Pos)
	case TokenSymbol:
		if p.tok.Val == "(" {
			if err := p.next(); err != nil {
				return nil, err
			}
			if p.isKeyword("SELECT") {
				sel, err := p.parseSubquerySelect()
				if err != nil {
					return nil, err
				}
				if err := p.expectSymbol(")"); err != nil {
					return nil, err
				}
				return &Subquery{Select: sel}, nil
			}
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if err := p.expectSymbol(")"); err != nil {
				return nil, err
			}
			return expr, nil
		}
	case TokenIdent:
		return p.parseIdentExpr()
	}
	return nil, NewPositionedErr("unexpected token", p.tok.Pos)
}

func (p *parser) parseIdentExpr() (Expr, error) {
	name := p.tok.Val
	if err := p.next(); err != nil {
		return nil, err
	}
	if p.isSymbol(".") {
		if err := p.next(); err != nil {
			return nil, err
		}
		if p.isSymbol("*") {
			if err := p.next(); err != nil {
				return nil, err
			}
			return &starMarker{qualifier: name}, nil
		}
		col, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		return &ColName{Qualifier: name, Name: col}, nil
	}
	if !p.isSymbol("(") {
		return &ColName{Name: name}, nil
	}
	// function call
	if err := p.next(); err != nil {
		return nil, err
	}
	lower := strings.ToLower(name)
	if op, isAgg := aggregateNames[lower]; isAgg {
		return p.parseAggregate(lower, op)
	}
	if rankingNames[lower] {
		if err := p.expectSymbol(")"); err != nil {
			return nil, err
		}
		return p.parseOver(lower, nil)
	}
	fn := &FuncExpr{Name: lower}
	if !p.isSymbol(")") {
		for {
			arg, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fn.Args = append(fn.Args, arg)
			comma, err := p.acceptSymbol(",")
			if err != nil {
				return nil, err
			}
			if !comma {
				break
			}
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return fn, nil
}

func (p *parser) parseAggregate(name string, op AggregateOp) (Expr, error) {
	agg := &AggregateExpr{Op: op}
	if op == AggCount && p.isSymbol("*") {
		agg.Op = AggCountStar
		if err := p.next(); err != nil {
			return nil, err
		}
	} else {
		var err error
		agg.Distinct, err = p.acceptKeyword("DISTINCT")
		if err != nil {
			return nil, err
		}
		agg.Expr, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	if p.isKeyword("OVER") {
		if agg.Distinct {
			return nil, NewPositionedErr("DISTINCT is not supported in window aggregates", p.tok.Pos)
		}
		return p.parseOver(name, agg.Expr)
	}
	return agg, nil
}

// parseOver parses the OVER clause of a window function whose name and
// operand were already consumed.
func (p *parser) parseOver(name string, operand Expr) (Expr, error) {
	if err := p.expectKeyword("OVER"); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	win := &WindowExpr{Name: name, Expr: operand}
	hasPartition, err := p.acceptKeyword("PARTITION")
	if err != nil {
		return nil, err
	}
	if hasPartition {
		if err := p.expectKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			expr, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			win.PartitionBy = append(win.PartitionBy, expr)
			comma, err := p.acceptSymbol(",")
			if err != nil {
				return nil, err
			}
			if !comma {
				break
			}
		}
	}
	win.OrderBy, err = p.parseOptionalOrderBy()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return win, nil
}

func (p *parser) parseCase() (Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	caseExpr := &CaseExpr{}
	if !p.isKeyword("WHEN") {
		operand, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		caseExpr.Operand = operand
	}
	for p.isKeyword("WHEN") {
		if err := p.next(); err != nil {
			return nil, err
		}
		cond, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expectKeyword("THEN"); err != nil {
			return nil, err
		}
		val, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		caseExpr.Whens = append(caseExpr.Whens, &When{Cond: cond, Val: val})
	}
	if len(caseExpr.Whens) == 0 {
		return nil, NewPositionedErr("CASE requires at least one WHEN", p.tok.Pos)
	}
	hasElse, err := p.acceptKeyword("ELSE")
	if err != nil {
		return nil, err
	}
	if hasElse {
		caseExpr.Else, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if err := p.expectKeyword("END"); err != nil {
		return nil, err
	}
	return caseExpr, nil
}

func (p *parser) parseCast() (Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectKeyword("AS"); err != nil {
		return nil, err
	}
	typ, typeName, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &CastExpr{Expr: expr, Type: typ, TypeName: typeName}, nil
}

// parseConvert handles the T-SQL argument order: CONVERT(type, expr). It
// builds the same CastExpr as CAST.
func (p *parser) parseConvert() (Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	typ, typeName, err := p.parseTypeName()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(","); err != nil {
		return nil, err
	}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &CastExpr{Expr: expr, Type: typ, TypeName: typeName}, nil
}

func (p *parser) parseIif() (Expr, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.expectSymbol("("); err != nil {
		return nil, err
	}
	cond, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(","); err != nil {
		return nil, err
	}
	whenTrue, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(","); err != nil {
		return nil, err
	}
	whenFalse, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if err := p.expectSymbol(")"); err != nil {
		return nil, err
	}
	return &IifExpr{Cond: cond, WhenTrue: whenTrue, WhenFalse: whenFalse}, nil
}

var typeNameMap = map[string]sqltypes.Type{
	"bit": sqltypes.Boolean, "bool": sqltypes.Boolean, "boolean": sqltypes.Boolean,
	"tinyint": sqltypes.Int64, "smallint": sqltypes.Int64, "int": sqltypes.Int64,
	"integer": sqltypes.Int64, "bigint": sqltypes.Int64,
	"decimal": sqltypes.Decimal, "numeric": sqltypes.Decimal, "money": sqltypes.Decimal,
	"float": sqltypes.Decimal, "real": sqltypes.Decimal,
	"char": sqltypes.Text, "nchar": sqltypes.Text, "varchar": sqltypes.Text,
	"nvarchar": sqltypes.Text, "text": sqltypes.Text, "string": sqltypes.Text,
	"date": sqltypes.DateTime, "datetime": sqltypes.DateTime, "datetime2": sqltypes.DateTime,
	"uniqueidentifier": sqltypes.Guid, "guid": sqltypes.Guid,
}

func (p *parser) parseTypeName() (sqltypes.Type, string, error) {
	pos := p.tok.Pos
	name, err := p.expectIdent()
	if err != nil {
		return sqltypes.Null, "", err
	}
	lower := strings.ToLower(name)
	typ, ok := typeNameMap[lower]
	if !ok {
		return sqltypes.Null, "", NewPositionedErr("unknown type name "+name, pos)
	}
	// swallow a length/precision suffix like varchar(100) or decimal(18, 2)
	spelled := lower
	hasParen, err := p.acceptSymbol("(")
	if err != nil {
		return sqltypes.Null, "", err
	}
	if hasParen {
		var parts []string
		for {
			if p.tok.Kind != TokenNumber {
				return sqltypes.Null, "", NewPositionedErr("expected number in type suffix", p.tok.Pos)
			}
			parts = append(parts, p.tok.Val)
			if err := p.next(); err != nil {
				return sqltypes.Null, "", err
			}
			comma, err := p.acceptSymbol(",")
			if err != nil {
				return sqltypes.Null, "", err
			}
			if !comma {
				break
			}
		}
		if err := p.expectSymbol(")"); err != nil {
			return sqltypes.Null, "", err
		}
		spelled = lower + "(" + strings.Join(parts, ", ") + ")"
	}
	return typ, spelled, nil
}
