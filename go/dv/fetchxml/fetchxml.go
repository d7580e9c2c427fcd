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

// Package fetchxml models the restricted XML query language the record store
// executes natively. The planner builds these documents; the native transport
// serializes them over the wire. The model covers exactly what the server
// grammar covers: flat attribute lists, and/or condition filters, link
// entities for joins, coarse date grouping and a capped aggregate mode.
package fetchxml

import (
	"encoding/xml"
	"fmt"
	"time"
)

// AggregateLimit is the server's hard per-request row cap for aggregate
// queries. Plans that would exceed it must partition.
const AggregateLimit = 50000

// PageSize is the default page size requested from the server.
const PageSize = 5000

// Fetch is the document root.
type Fetch struct {
	XMLName      xml.Name `xml:"fetch"`
	Top          int      `xml:"top,attr,omitempty"`
	Count        int      `xml:"count,attr,omitempty"`
	Page         int      `xml:"page,attr,omitempty"`
	PagingCookie string   `xml:"paging-cookie,attr,omitempty"`
	Aggregate    bool     `xml:"aggregate,attr,omitempty"`
	Distinct     bool     `xml:"distinct,attr,omitempty"`
	Entity       *Entity  `xml:"entity"`
}

// Entity is the root entity of a fetch.
type Entity struct {
	Name          string        `xml:"name,attr"`
	AllAttributes *AllAttrs     `xml:"all-attributes,omitempty"`
	Attributes    []*Attribute  `xml:"attribute"`
	Orders        []*Order      `xml:"order"`
	Filter        *Filter       `xml:"filter,omitempty"`
	Links         []*LinkEntity `xml:"link-entity"`
}

// AllAttrs marks an entity as selecting every attribute.
type AllAttrs struct{}

// Attribute selects one attribute, optionally aggregated or grouped.
type Attribute struct {
	Name         string `xml:"name,attr"`
	Alias        string `xml:"alias,attr,omitempty"`
	Aggregate    string `xml:"aggregate,attr,omitempty"`
	GroupBy      bool   `xml:"groupby,attr,omitempty"`
	DateGrouping string `xml:"dategrouping,attr,omitempty"`
	Distinct     bool   `xml:"distinct,attr,omitempty"`
}

// Aggregate spellings the server accepts.
const (
	AggCount       = "count"
	AggCountColumn = "countcolumn"
	AggSum         = "sum"
	AggAvg         = "avg"
	AggMin         = "min"
	AggMax         = "max"
)

// Date grouping granularities the server accepts.
const (
	DateGroupYear  = "year"
	DateGroupMonth = "month"
	DateGroupDay   = "day"
)

// Order is a server-side sort term.
type Order struct {
	Attribute  string `xml:"attribute,attr,omitempty"`
	Alias      string `xml:"alias,attr,omitempty"`
	Descending bool   `xml:"descending,attr,omitempty"`
}

// Filter groups conditions with and/or semantics. Filters nest.
type Filter struct {
	Type       string       `xml:"type,attr"`
	Conditions []*Condition `xml:"condition"`
	Filters    []*Filter    `xml:"filter"`
}

// Filter types.
const (
	FilterAnd = "and"
	FilterOr  = "or"
)

// Condition is a single attribute comparison. Multi-valued operators (in)
// carry their operands as child values; single-valued ones use the Value
// attribute.
type Condition struct {
	Attribute string   `xml:"attribute,attr"`
	Operator  string   `xml:"operator,attr"`
	Value     string   `xml:"value,attr,omitempty"`
	Values    []string `xml:"value,omitempty"`
}

// Condition operators the server accepts.
const (
	OpEqual        = "eq"
	OpNotEqual     = "ne"
	OpLess         = "lt"
	OpLessEqual    = "le"
	OpGreater      = "gt"
	OpGreaterEqual = "ge"
	OpLike         = "like"
	OpNotLike      = "not-like"
	OpNull         = "null"
	OpNotNull      = "not-null"
	OpIn           = "in"
	OpNotIn        = "not-in"
	OpOnOrAfter    = "on-or-after"
	OpOnOrBefore   = "on-or-before"
)

// LinkEntity is a join expressed in the native grammar.
type LinkEntity struct {
	Name          string        `xml:"name,attr"`
	From          string        `xml:"from,attr"`
	To            string        `xml:"to,attr"`
	Alias         string        `xml:"alias,attr,omitempty"`
	LinkType      string        `xml:"link-type,attr,omitempty"`
	Attributes    []*Attribute  `xml:"attribute"`
	Filter        *Filter       `xml:"filter,omitempty"`
	Links         []*LinkEntity `xml:"link-entity"`
	AllAttributes *AllAttrs     `xml:"all-attributes,omitempty"`
}

// Link types.
const (
	LinkInner = "inner"
	LinkOuter = "outer"
)

// FormatTime renders a timestamp the way the server's condition values
// expect it.
func FormatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05Z")
}

// Marshal renders the document.
func (f *Fetch) Marshal() (string, error) {
	if f.Entity == nil {
		return "", fmt.Errorf("fetchxml: fetch has no entity")
	}
	out, err := xml.Marshal(f)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Clone deep-copies the document so partitioned scans can specialize their
// own copies without sharing nodes.
func (f *Fetch) Clone() *Fetch {
	if f == nil {
		return nil
	}
	out := *f
	out.Entity = f.Entity.clone()
	return &out
}

func (e *Entity) clone() *Entity {
	if e == nil {
		return nil
	}
	out := *e
	out.Attributes = cloneAttrs(e.Attributes)
	out.Orders = make([]*Order, len(e.Orders))
	for i, o := range e.Orders {
		c := *o
		out.Orders[i] = &c
	}
	out.Filter = e.Filter.clone()
	out.Links = cloneLinks(e.Links)
	return &out
}

func cloneAttrs(attrs []*Attribute) []*Attribute {
	out := make([]*Attribute, len(attrs))
	for i, a := range attrs {
		c := *a
		out[i] = &c
	}
	return out
}

func cloneLinks(links []*LinkEntity) []*LinkEntity {
	out := make([]*LinkEntity, len(links))
	for i, l := range links {
		c := *l
		c.Attributes = cloneAttrs(l.Attributes)
		c.Filter = l.Filter.clone()
		c.Links = cloneLinks(l.Links)
		out[i] = &c
	}
	return out
}

func (f *Filter) clone() *Filter {
	if f == nil {
		return nil
	}
	out := &Filter{Type: f.Type}
	for _, c := range f.Conditions {
		cc := *c
		cc.Values = append([]string(nil), c.Values...)
		out.Conditions = append(out.Conditions, &cc)
	}
	for _, sub := range f.Filters {
		out.Filters = append(out.Filters, sub.clone())
	}
	return out
}

// AddCondition appends a condition to the entity's top-level and-filter,
// creating it if needed.
func (e *Entity) AddCondition(cond *Condition) {
	if e.Filter == nil {
		e.Filter = &Filter{Type: FilterAnd}
	}
	if e.Filter.Type != FilterAnd {
		// wrap an existing or-filter so the new condition is conjunctive
		e.Filter = &Filter{Type: FilterAnd, Filters: []*Filter{e.Filter}}
	}
	e.Filter.Conditions = append(e.Filter.Conditions, cond)
}
