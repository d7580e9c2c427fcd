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
	"fmt"
	"strings"
)

// TrackedBuffer accumulates the canonical rendering of an AST. Keywords are
// rendered lowercase; identifiers keep their case.
type TrackedBuffer struct {
	sb strings.Builder
}

// NewTrackedBuffer returns an empty buffer.
func NewTrackedBuffer() *TrackedBuffer {
	return &TrackedBuffer{}
}

// WriteString appends literal text.
func (buf *TrackedBuffer) WriteString(s string) {
	buf.sb.WriteString(s)
}

// astPrintf appends a format string where %v formats nested nodes and %s
// plain strings.
func (buf *TrackedBuffer) astPrintf(format string, args ...any) {
	end := len(format)
	argIdx := 0
	for i := 0; i < end; {
		ch := format[i]
		if ch != '%' {
			buf.sb.WriteByte(ch)
			i++
			continue
		}
		i++ // consume '%'
		verb := format[i]
		i++
		arg := args[argIdx]
		argIdx++
		switch verb {
		case 'v':
			arg.(SQLNode).Format(buf)
		case 's':
			buf.sb.WriteString(arg.(string))
		default:
			fmt.Fprintf(&buf.sb, "%"+string(verb), arg)
		}
	}
}

func (buf *TrackedBuffer) String() string {
	return buf.sb.String()
}

func formatExprList(buf *TrackedBuffer, exprs []Expr) {
	for i, e := range exprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		e.Format(buf)
	}
}

func formatOrderBy(buf *TrackedBuffer, orders []*Order) {
	buf.WriteString(" order by ")
	for i, o := range orders {
		if i > 0 {
			buf.WriteString(", ")
		}
		o.Expr.Format(buf)
		if o.Desc {
			buf.WriteString(" desc")
		}
	}
}

// Format renders the SELECT in canonical form.
func (node *Select) Format(buf *TrackedBuffer) {
	buf.WriteString("select ")
	if node.Distinct {
		buf.WriteString("distinct ")
	}
	if node.Top != nil {
		buf.astPrintf("top %v ", node.Top)
	}
	for i, se := range node.SelectExprs {
		if i > 0 {
			buf.WriteString(", ")
		}
		se.Format(buf)
	}
	if node.From != nil {
		buf.astPrintf(" from %v", node.From)
	}
	for _, j := range node.Joins {
		j.Format(buf)
	}
	if node.Where != nil {
		buf.astPrintf(" where %v", node.Where)
	}
	if len(node.GroupBy) > 0 {
		buf.WriteString(" group by ")
		formatExprList(buf, node.GroupBy)
	}
	if node.Having != nil {
		buf.astPrintf(" having %v", node.Having)
	}
	if len(node.OrderBy) > 0 {
		formatOrderBy(buf, node.OrderBy)
	}
}

func (node *SelectExpr) Format(buf *TrackedBuffer) {
	if node.Star {
		if node.StarQualifier != "" {
			buf.astPrintf("%s.*", node.StarQualifier)
			return
		}
		buf.WriteString("*")
		return
	}
	node.Expr.Format(buf)
	if node.As != "" {
		buf.astPrintf(" as %s", node.As)
	}
}

func (node *AliasedTable) Format(buf *TrackedBuffer) {
	buf.WriteString(node.Name)
	if node.Alias != "" {
		buf.astPrintf(" as %s", node.Alias)
	}
}

func (node *Join) Format(buf *TrackedBuffer) {
	switch node.Type {
	case LeftJoin:
		buf.WriteString(" left join ")
	default:
		buf.WriteString(" join ")
	}
	node.Table.Format(buf)
	if node.On != nil {
		buf.astPrintf(" on %v", node.On)
	}
}

func (node *Union) Format(buf *TrackedBuffer) {
	for i, q := range node.Queries {
		if i > 0 {
			if node.All[i-1] {
				buf.WriteString(" union all ")
			} else {
				buf.WriteString(" union ")
			}
		}
		q.Format(buf)
	}
	if len(node.OrderBy) > 0 {
		formatOrderBy(buf, node.OrderBy)
	}
	_ = node.Top // TOP on a union renders on the first branch at parse time
}

func (node *Insert) Format(buf *TrackedBuffer) {
	buf.astPrintf("insert into %s", node.Table)
	if len(node.Columns) > 0 {
		buf.WriteString(" (")
		buf.WriteString(strings.Join(node.Columns, ", "))
		buf.WriteString(")")
	}
	if node.Source != nil {
		buf.astPrintf(" %v", node.Source)
		return
	}
	buf.WriteString(" values ")
	for i, row := range node.Rows {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString("(")
		formatExprList(buf, row)
		buf.WriteString(")")
	}
}

func (node *Update) Format(buf *TrackedBuffer) {
	buf.astPrintf("update %v set ", node.Table)
	for i, sc := range node.Set {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.astPrintf("%s = %v", sc.Column, sc.Expr)
	}
	for _, j := range node.Joins {
		j.Format(buf)
	}
	if node.Where != nil {
		buf.astPrintf(" where %v", node.Where)
	}
}

func (node *Delete) Format(buf *TrackedBuffer) {
	buf.astPrintf("delete from %v", node.Table)
	for _, j := range node.Joins {
		j.Format(buf)
	}
	if node.Where != nil {
		buf.astPrintf(" where %v", node.Where)
	}
}

func (node *Literal) Format(buf *TrackedBuffer) {
	if node.Kind == StrVal {
		buf.WriteString("'")
		buf.WriteString(strings.ReplaceAll(node.Val, "'", "''"))
		buf.WriteString("'")
		return
	}
	buf.WriteString(node.Val)
}

func (node *NullVal) Format(buf *TrackedBuffer) {
	buf.WriteString("null")
}

func (node *BoolVal) Format(buf *TrackedBuffer) {
	if node.Val {
		buf.WriteString("true")
	} else {
		buf.WriteString("false")
	}
}

func (node *Placeholder) Format(buf *TrackedBuffer) {
	buf.astPrintf(":%s", node.Name)
}

func (node *ColName) Format(buf *TrackedBuffer) {
	if node.Qualifier != "" {
		buf.astPrintf("%s.", node.Qualifier)
	}
	buf.WriteString(node.Name)
}

func (node *AndExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("%v and %v", node.Left, node.Right)
}

func (node *OrExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("(%v or %v)", node.Left, node.Right)
}

func (node *NotExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("not %v", node.Expr)
}

func (node *ComparisonExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("%v %s %v", node.Left, node.Op.String(), node.Right)
}

// BinaryExpr and UnaryExpr always parenthesize so that re-parsing the
// rendering rebuilds the same tree regardless of operator precedence.
func (node *BinaryExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("(%v %s %v)", node.Left, node.Op.String(), node.Right)
}

func (node *UnaryExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("-(%v)", node.Expr)
}

func (node *IsNullExpr) Format(buf *TrackedBuffer) {
	if node.Negated {
		buf.astPrintf("%v is not null", node.Expr)
		return
	}
	buf.astPrintf("%v is null", node.Expr)
}

func (node *InExpr) Format(buf *TrackedBuffer) {
	node.Left.Format(buf)
	if node.Negated {
		buf.WriteString(" not in (")
	} else {
		buf.WriteString(" in (")
	}
	if node.Sub != nil {
		node.Sub.Select.Format(buf)
	} else {
		formatExprList(buf, node.Exprs)
	}
	buf.WriteString(")")
}

func (node *ExistsExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("exists (%v)", node.Sub.Select)
}

func (node *FuncExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("%s(", strings.ToLower(node.Name))
	formatExprList(buf, node.Args)
	buf.WriteString(")")
}

func (node *AggregateExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("%s(", node.Op.String())
	if node.Op == AggCountStar {
		buf.WriteString("*)")
		return
	}
	if node.Distinct {
		buf.WriteString("distinct ")
	}
	node.Expr.Format(buf)
	buf.WriteString(")")
}

func (node *WindowExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("%s(", strings.ToLower(node.Name))
	if node.Expr != nil {
		node.Expr.Format(buf)
	}
	buf.WriteString(") over (")
	needSpace := false
	if len(node.PartitionBy) > 0 {
		buf.WriteString("partition by ")
		formatExprList(buf, node.PartitionBy)
		needSpace = true
	}
	if len(node.OrderBy) > 0 {
		if needSpace {
			buf.WriteString(" ")
		}
		buf.WriteString("order by ")
		for i, o := range node.OrderBy {
			if i > 0 {
				buf.WriteString(", ")
			}
			o.Expr.Format(buf)
			if o.Desc {
				buf.WriteString(" desc")
			}
		}
	}
	buf.WriteString(")")
}

func (node *CaseExpr) Format(buf *TrackedBuffer) {
	buf.WriteString("case")
	if node.Operand != nil {
		buf.astPrintf(" %v", node.Operand)
	}
	for _, w := range node.Whens {
		buf.astPrintf(" when %v then %v", w.Cond, w.Val)
	}
	if node.Else != nil {
		buf.astPrintf(" else %v", node.Else)
	}
	buf.WriteString(" end")
}

func (node *IifExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("iif(%v, %v, %v)", node.Cond, node.WhenTrue, node.WhenFalse)
}

func (node *CastExpr) Format(buf *TrackedBuffer) {
	buf.astPrintf("cast(%v as %s)", node.Expr, node.TypeName)
}

func (node *Subquery) Format(buf *TrackedBuffer) {
	buf.astPrintf("(%v)", node.Select)
}
