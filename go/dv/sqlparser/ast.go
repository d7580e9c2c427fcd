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

// Package sqlparser implements the SQL subset accepted by dvsql: a
// hand-written tokenizer and recursive-descent parser producing a typed
// statement and expression AST, plus canonical rendering so that parsing the
// rendered form reproduces an equal AST.
package sqlparser

import "github.com/dvsql/dvsql/go/sqltypes"

// SQLNode is implemented by every AST node.
type SQLNode interface {
	Format(buf *TrackedBuffer)
}

// Statement is the tagged union of top-level statements.
type Statement interface {
	SQLNode
	iStatement()
}

func (*Select) iStatement() {}
func (*Union) iStatement()  {}
func (*Insert) iStatement() {}
func (*Update) iStatement() {}
func (*Delete) iStatement() {}

// Select represents a SELECT statement.
type Select struct {
	Distinct    bool
	Top         *Literal
	SelectExprs []*SelectExpr
	From        *AliasedTable
	Joins       []*Join
	Where       Expr
	GroupBy     []Expr
	Having      Expr
	OrderBy     []*Order
}

// SelectExpr is one projected column: a star, a qualified star, or an
// expression with an optional alias.
type SelectExpr struct {
	Star          bool
	StarQualifier string
	Expr          Expr
	As            string
}

// AliasedTable is a table reference with an optional alias.
type AliasedTable struct {
	Name  string
	Alias string
}

// QualifierName returns the name rows from this table are addressed by.
func (t *AliasedTable) QualifierName() string {
	if t.Alias != "" {
		return t.Alias
	}
	return t.Name
}

// JoinType distinguishes join flavors.
type JoinType int

const (
	InnerJoin JoinType = iota
	LeftJoin
)

// Join is one join clause.
type Join struct {
	Type  JoinType
	Table *AliasedTable
	On    Expr
}

// Order is one ORDER BY term.
type Order struct {
	Expr Expr
	Desc bool
}

// Union represents a chain of unioned selects. All[i] records whether the
// union between Queries[i] and Queries[i+1] was UNION ALL.
type Union struct {
	Queries []*Select
	All     []bool
	OrderBy []*Order
	Top     *Literal
}

// Insert represents an INSERT with either literal rows or a source query.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]Expr
	Source  *Select
}

// SetClause is one column assignment in an UPDATE.
type SetClause struct {
	Column string
	Expr   Expr
}

// Update represents an UPDATE statement. Where may be nil after parsing; the
// DML safety guard rejects that before execution.
type Update struct {
	Table *AliasedTable
	Set   []*SetClause
	Joins []*Join
	Where Expr
}

// Delete represents a DELETE statement. Where may be nil after parsing; the
// DML safety guard rejects that before execution.
type Delete struct {
	Table *AliasedTable
	Joins []*Join
	Where Expr
}

// Expr is the tagged union of expression nodes. Expressions are immutable
// trees: a parent exclusively owns its children and nothing aliases a
// subtree.
type Expr interface {
	SQLNode
	iExpr()
}

func (*Literal) iExpr()        {}
func (*NullVal) iExpr()        {}
func (*BoolVal) iExpr()        {}
func (*Placeholder) iExpr()    {}
func (*ColName) iExpr()        {}
func (*AndExpr) iExpr()        {}
func (*OrExpr) iExpr()         {}
func (*NotExpr) iExpr()        {}
func (*ComparisonExpr) iExpr() {}
func (*BinaryExpr) iExpr()     {}
func (*UnaryExpr) iExpr()      {}
func (*IsNullExpr) iExpr()     {}
func (*InExpr) iExpr()         {}
func (*ExistsExpr) iExpr()     {}
func (*FuncExpr) iExpr()       {}
func (*AggregateExpr) iExpr()  {}
func (*WindowExpr) iExpr()     {}
func (*CaseExpr) iExpr()       {}
func (*IifExpr) iExpr()        {}
func (*CastExpr) iExpr()       {}
func (*Subquery) iExpr()       {}

// LiteralKind distinguishes literal payloads.
type LiteralKind int

const (
	IntVal LiteralKind = iota
	DecimalVal
	StrVal
)

// Literal is a literal value. Val holds the source text of the payload
// without quotes.
type Literal struct {
	Kind LiteralKind
	Val  string
}

// NewIntLiteral builds an integer literal from source text.
func NewIntLiteral(val string) *Literal {
	return &Literal{Kind: IntVal, Val: val}
}

// NewStrLiteral builds a string literal.
func NewStrLiteral(val string) *Literal {
	return &Literal{Kind: StrVal, Val: val}
}

// NullVal is the NULL literal.
type NullVal struct{}

// BoolVal is a TRUE or FALSE literal.
type BoolVal struct {
	Val bool
}

// Placeholder is a named parameter, written :name or @name.
type Placeholder struct {
	Name string
}

// ColName references a column, optionally qualified by a table name or
// alias.
type ColName struct {
	Qualifier string
	Name      string
}

// AndExpr is a logical AND.
type AndExpr struct {
	Left, Right Expr
}

// OrExpr is a logical OR.
type OrExpr struct {
	Left, Right Expr
}

// NotExpr is a logical NOT.
type NotExpr struct {
	Expr Expr
}

// ComparisonOp enumerates comparison operators.
type ComparisonOp int

const (
	EqualOp ComparisonOp = iota
	NotEqualOp
	LessThanOp
	LessEqualOp
	GreaterThanOp
	GreaterEqualOp
	LikeOp
	NotLikeOp
)

var comparisonOpNames = map[ComparisonOp]string{
	EqualOp:        "=",
	NotEqualOp:     "<>",
	LessThanOp:     "<",
	LessEqualOp:    "<=",
	GreaterThanOp:  ">",
	GreaterEqualOp: ">=",
	LikeOp:         "like",
	NotLikeOp:      "not like",
}

func (op ComparisonOp) String() string {
	return comparisonOpNames[op]
}

// ComparisonExpr is a binary comparison.
type ComparisonExpr struct {
	Op          ComparisonOp
	Left, Right Expr
}

// BinaryOp enumerates arithmetic operators. "+" doubles as string
// concatenation when both operands are text.
type BinaryOp int

const (
	AddOp BinaryOp = iota
	SubOp
	MulOp
	DivOp
	ModOp
)

var binaryOpNames = map[BinaryOp]string{
	AddOp: "+",
	SubOp: "-",
	MulOp: "*",
	DivOp: "/",
	ModOp: "%",
}

func (op BinaryOp) String() string {
	return binaryOpNames[op]
}

// BinaryExpr is an arithmetic expression.
type BinaryExpr struct {
	Op          BinaryOp
	Left, Right Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	NegateOp UnaryOp = iota
)

// UnaryExpr is a unary arithmetic expression.
type UnaryExpr struct {
	Op   UnaryOp
	Expr Expr
}

// IsNullExpr is IS NULL / IS NOT NULL.
type IsNullExpr struct {
	Expr    Expr
	Negated bool
}

// InExpr is [NOT] IN over a literal list or a subquery. Exactly one of Exprs
// and Sub is set.
type InExpr struct {
	Left    Expr
	Exprs   []Expr
	Sub     *Subquery
	Negated bool
}

// ExistsExpr is EXISTS (subquery). Negation is expressed by a wrapping
// NotExpr.
type ExistsExpr struct {
	Sub *Subquery
}

// FuncExpr is a scalar function call.
type FuncExpr struct {
	Name string
	Args []Expr
}

// AggregateOp enumerates aggregate functions.
type AggregateOp int

const (
	AggCount AggregateOp = iota
	AggCountStar
	AggSum
	AggAvg
	AggMin
	AggMax
)

var aggregateOpNames = map[AggregateOp]string{
	AggCount:     "count",
	AggCountStar: "count",
	AggSum:       "sum",
	AggAvg:       "avg",
	AggMin:       "min",
	AggMax:       "max",
}

func (op AggregateOp) String() string {
	return aggregateOpNames[op]
}

// AggregateExpr is an aggregate. Expr is nil only for COUNT(*).
type AggregateExpr struct {
	Op       AggregateOp
	Expr     Expr
	Distinct bool
}

// WindowExpr is a window function: ROW_NUMBER/RANK/DENSE_RANK, or an
// aggregate over a window. Expr is nil for the ranking functions.
type WindowExpr struct {
	Name        string
	Expr        Expr
	PartitionBy []Expr
	OrderBy     []*Order
}

// When is one WHEN/THEN pair.
type When struct {
	Cond Expr
	Val  Expr
}

// CaseExpr is a CASE expression. Operand is set for the simple form
// (CASE x WHEN v THEN ...) and nil for the searched form.
type CaseExpr struct {
	Operand Expr
	Whens   []*When
	Else    Expr
}

// IifExpr is IIF(cond, whenTrue, whenFalse).
type IifExpr struct {
	Cond      Expr
	WhenTrue  Expr
	WhenFalse Expr
}

// CastExpr is CAST(expr AS type) or CONVERT(type, expr); both render as
// CAST.
type CastExpr struct {
	Expr Expr
	Type sqltypes.Type
	// TypeName preserves the source spelling (e.g. "varchar", "int") so
	// rendering round-trips.
	TypeName string
}

// Subquery wraps a nested SELECT used as an expression.
type Subquery struct {
	Select *Select
}

// String renders any node in canonical form.
func String(node SQLNode) string {
	if node == nil {
		return ""
	}
	buf := NewTrackedBuffer()
	node.Format(buf)
	return buf.String()
}
