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
	"github.com/dvsql/dvsql/go/dv/fetchxml"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// scanScope accumulates one native query: the root entity, its link
// entities keyed by alias, the selected attributes and the pushed filters.
// Scan output naming convention: root attributes keep their bare name, link
// attributes are exposed as "alias.name".
type scanScope struct {
	b     *builder
	table *sqlparser.AliasedTable
	fetch *fetchxml.Fetch
	links map[string]*fetchxml.LinkEntity
	// linkEntity maps a link alias to its logical entity name, for typing.
	linkEntity map[string]string
	seen       map[string]bool
	fields     []sqltypes.Field
}

func (b *builder) newScanScope(table *sqlparser.AliasedTable) *scanScope {
	return &scanScope{
		b:          b,
		table:      table,
		fetch:      &fetchxml.Fetch{Entity: &fetchxml.Entity{Name: table.Name}},
		links:      make(map[string]*fetchxml.LinkEntity),
		linkEntity: make(map[string]string),
		seen:       make(map[string]bool),
	}
}

// resolveColumn maps a column reference to its scan target: "" for the root
// entity, a link alias otherwise.
func (s *scanScope) resolveColumn(col *sqlparser.ColName) (string, string, bool) {
	qual := strings.ToLower(col.Qualifier)
	name := strings.ToLower(col.Name)
	if qual == "" || qual == strings.ToLower(s.table.QualifierName()) {
		return "", name, true
	}
	if _, ok := s.links[qual]; ok {
		return qual, name, true
	}
	return "", "", false
}

// addJoin turns one SQL join into a link entity. The ON condition must be a
// single equality between a column of the joined table and a column of an
// already-joined table; anything else has no native spelling.
func (s *scanScope) addJoin(join *sqlparser.Join) error {
	cmp, ok := join.On.(*sqlparser.ComparisonExpr)
	if !ok || cmp.Op != sqlparser.EqualOp {
		return dverrors.Errorf(dverrors.Planning,
			"join on %s must be a single equality between the joined tables", join.Table.Name)
	}
	left, lok := cmp.Left.(*sqlparser.ColName)
	right, rok := cmp.Right.(*sqlparser.ColName)
	if !lok || !rok {
		return dverrors.Errorf(dverrors.Planning,
			"join on %s must compare two columns", join.Table.Name)
	}
	alias := strings.ToLower(join.Table.QualifierName())
	var mine, theirs *sqlparser.ColName
	switch {
	case strings.EqualFold(left.Qualifier, alias):
		mine, theirs = left, right
	case strings.EqualFold(right.Qualifier, alias):
		mine, theirs = right, left
	default:
		return dverrors.Errorf(dverrors.Planning,
			"join condition does not reference %s", join.Table.QualifierName())
	}
	linkType := fetchxml.LinkInner
	if join.Type == sqlparser.LeftJoin {
		linkType = fetchxml.LinkOuter
	}
	link := &fetchxml.LinkEntity{
		Name:     join.Table.Name,
		From:     strings.ToLower(mine.Name),
		To:       strings.ToLower(theirs.Name),
		Alias:    alias,
		LinkType: linkType,
	}
	return s.attachLink(alias, join.Table.Name, theirs.Qualifier, link)
}

// attachLink places a link under the table the join condition references:
// the root entity, or an earlier link for chained joins.
func (s *scanScope) attachLink(alias, entityName, parentQual string, link *fetchxml.LinkEntity) error {
	if _, dup := s.links[alias]; dup {
		return dverrors.Errorf(dverrors.Planning, "duplicate table alias %q", alias)
	}
	pq := strings.ToLower(parentQual)
	if pq == "" || pq == strings.ToLower(s.table.QualifierName()) {
		s.fetch.Entity.Links = append(s.fetch.Entity.Links, link)
	} else if parent, ok := s.links[pq]; ok {
		parent.Links = append(parent.Links, link)
	} else {
		return dverrors.Errorf(dverrors.Planning, "unknown table alias %q in join condition", parentQual)
	}
	s.links[alias] = link
	s.linkEntity[alias] = entityName
	return nil
}

// addColumn ensures one base column is requested from the server and
// registered in the scan's output schema.
func (s *scanScope) addColumn(col *sqlparser.ColName) error {
	qual, name, ok := s.resolveColumn(col)
	if !ok {
		return dverrors.Errorf(dverrors.Planning, "unknown table alias %q", col.Qualifier)
	}
	key := qual + "\x00" + name
	if s.seen[key] {
		return nil
	}
	s.seen[key] = true
	attr := &fetchxml.Attribute{Name: name}
	fieldName := name
	entityName := s.table.Name
	if qual == "" {
		s.fetch.Entity.Attributes = append(s.fetch.Entity.Attributes, attr)
	} else {
		s.links[qual].Attributes = append(s.links[qual].Attributes, attr)
		fieldName = qual + "." + name
		entityName = s.linkEntity[qual]
	}
	s.fields = append(s.fields, sqltypes.Field{Name: fieldName, Type: s.b.attrType(entityName, name)})
	return nil
}

// placeAttribute appends a prepared attribute (aggregate or groupby) to the
// root entity or a link.
func (s *scanScope) placeAttribute(qual string, attr *fetchxml.Attribute) {
	if qual == "" {
		s.fetch.Entity.Attributes = append(s.fetch.Entity.Attributes, attr)
		return
	}
	s.links[qual].Attributes = append(s.links[qual].Attributes, attr)
}

// addColumns registers every base column referenced by an expression.
func (s *scanScope) addColumns(expr sqlparser.Expr) error {
	for _, col := range referencedColumns(expr) {
		if err := s.addColumn(col); err != nil {
			return err
		}
	}
	return nil
}

// selectAll requests every attribute of the root entity.
func (s *scanScope) selectAll() {
	s.fetch.Entity.AllAttributes = &fetchxml.AllAttrs{}
	s.fetch.Entity.Attributes = nil
}

// applyFilter merges one pushed filter into its target's filter tree.
func (s *scanScope) applyFilter(p pushedFilter) {
	var target **fetchxml.Filter
	if p.qualifier == "" {
		target = &s.fetch.Entity.Filter
	} else {
		target = &s.links[p.qualifier].Filter
	}
	if *target == nil {
		*target = p.filter
		return
	}
	if (*target).Type == fetchxml.FilterAnd {
		(*target).Filters = append((*target).Filters, p.filter)
		return
	}
	*target = &fetchxml.Filter{Type: fetchxml.FilterAnd, Filters: []*fetchxml.Filter{*target, p.filter}}
}

// pushOrder adds a server-side sort term for a root-entity column.
func (s *scanScope) pushOrder(name string, desc bool) {
	s.fetch.Entity.Orders = append(s.fetch.Entity.Orders, &fetchxml.Order{
		Attribute: strings.ToLower(name),
		Descending: desc,
	})
}

// attrType looks an attribute's type up in metadata, defaulting to text when
// the store cannot answer. Lookups are cached per entity.
func (b *builder) attrType(entity, attr string) sqltypes.Type {
	if b.attrTypes == nil {
		b.attrTypes = make(map[string]map[string]sqltypes.Type)
	}
	types, ok := b.attrTypes[entity]
	if !ok {
		types = make(map[string]sqltypes.Type)
		if b.meta != nil {
			if attrs, err := b.meta.Attributes(b.ctx, entity); err == nil {
				for _, a := range attrs {
					types[strings.ToLower(a.LogicalName)] = a.Type
				}
			}
		}
		b.attrTypes[entity] = types
	}
	if t, ok := types[strings.ToLower(attr)]; ok {
		return t
	}
	return sqltypes.Text
}

// referencedColumns collects every column reference in an expression,
// skipping subquery bodies: those are planned separately.
func referencedColumns(expr sqlparser.Expr) []*sqlparser.ColName {
	var cols []*sqlparser.ColName
	walk := func(children ...sqlparser.Expr) {
		for _, c := range children {
			cols = append(cols, referencedColumns(c)...)
		}
	}
	switch node := expr.(type) {
	case nil:
	case *sqlparser.ColName:
		cols = append(cols, node)
	case *sqlparser.AndExpr:
		walk(node.Left, node.Right)
	case *sqlparser.OrExpr:
		walk(node.Left, node.Right)
	case *sqlparser.NotExpr:
		walk(node.Expr)
	case *sqlparser.ComparisonExpr:
		walk(node.Left, node.Right)
	case *sqlparser.BinaryExpr:
		walk(node.Left, node.Right)
	case *sqlparser.UnaryExpr:
		walk(node.Expr)
	case *sqlparser.IsNullExpr:
		walk(node.Expr)
	case *sqlparser.InExpr:
		walk(node.Left)
		walk(node.Exprs...)
	case *sqlparser.FuncExpr:
		walk(node.Args...)
	case *sqlparser.AggregateExpr:
		walk(node.Expr)
	case *sqlparser.WindowExpr:
		walk(node.Expr)
		walk(node.PartitionBy...)
		for _, o := range node.OrderBy {
			walk(o.Expr)
		}
	case *sqlparser.CaseExpr:
		walk(node.Operand)
		for _, w := range node.Whens {
			walk(w.Cond, w.Val)
		}
		walk(node.Else)
	case *sqlparser.IifExpr:
		walk(node.Cond, node.WhenTrue, node.WhenFalse)
	case *sqlparser.CastExpr:
		walk(node.Expr)
	}
	return cols
}
