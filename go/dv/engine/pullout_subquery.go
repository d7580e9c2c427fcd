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

package engine

import (
	"context"
	"io"
	"strings"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/evalengine"
	"github.com/dvsql/dvsql/go/dv/fetchxml"
	"github.com/dvsql/dvsql/go/dv/log"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// DefaultInlineLimit is the largest subquery result that still gets inlined
// into the outer native query as an IN condition.
const DefaultInlineLimit = 2000

// PulloutSubquery handles an IN or NOT IN subquery the rewrite rules could
// not turn into a join. The subquery runs first and is fully materialized.
// A small value set is inlined into the outer scan as a server-side IN
// condition; a large one degrades to a client-side hash membership filter
// over the unmodified outer scan.
type PulloutSubquery struct {
	Subquery Primitive
	// Outer is the template scan; the inline path specializes a clone of
	// its query, the fallback path runs it as is.
	Outer *FetchScan
	// OuterAttr is the attribute tested, in both the inlined condition and
	// the client filter.
	OuterAttr   string
	Negated     bool
	InlineLimit int
	Why         string
}

var _ Primitive = (*PulloutSubquery)(nil)

func (p *PulloutSubquery) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	sub, err := p.Subquery.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	values, hasNull, err := drainSingleColumn(sub)
	if err != nil {
		return nil, err
	}

	limit := p.InlineLimit
	if limit <= 0 {
		limit = DefaultInlineLimit
	}
	if len(values) <= limit && !(p.Negated && hasNull) {
		return p.execInline(ctx, pctx, values)
	}
	if log.V(2) {
		log.Infof("subquery produced %d values, filtering %s client side", len(values), p.OuterAttr)
	}
	return p.execClientFilter(ctx, pctx, values, hasNull)
}

// execInline pushes the value set into the outer query as an IN / NOT IN
// condition. NULL subquery values are dropped from the set: they can never
// match, and the NOT IN poison case is routed to the client path by Exec.
func (p *PulloutSubquery) execInline(ctx context.Context, pctx *PlanContext, values []sqltypes.Value) (RowStream, error) {
	op := fetchxml.OpIn
	if p.Negated {
		op = fetchxml.OpNotIn
	}
	cond := &fetchxml.Condition{Attribute: p.OuterAttr, Operator: op}
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		cond.Values = append(cond.Values, v.RawText())
	}
	if len(cond.Values) == 0 && !p.Negated {
		// IN over an empty set matches nothing
		return newSliceStream(nil, nil), nil
	}
	specialized := &FetchScan{
		Query:    p.Outer.Query.Clone(),
		Estimate: p.Outer.Estimate,
		NodeName: p.Outer.NodeName,
	}
	if len(cond.Values) > 0 {
		specialized.Query.Entity.AddCondition(cond)
	}
	return specialized.Exec(ctx, pctx)
}

// execClientFilter streams the unrestricted outer scan through a hash
// membership test.
func (p *PulloutSubquery) execClientFilter(ctx context.Context, pctx *PlanContext, values []sqltypes.Value, hasNull bool) (RowStream, error) {
	set := make(map[evalengine.HashCode][]sqltypes.Value, len(values))
	for _, v := range values {
		if v.IsNull() {
			continue
		}
		code := evalengine.HashValue(v)
		set[code] = append(set[code], v)
	}
	out, err := p.Outer.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	col, err := columnIndex(out.Fields(), p.OuterAttr)
	if err != nil {
		out.Close()
		return nil, err
	}
	return newTransformStream(out.Fields(), out, func(row sqltypes.Row) (sqltypes.Row, error) {
		v := row[col]
		// a NULL probe value compares Unknown either way
		if v.IsNull() {
			return nil, nil
		}
		match := false
		for _, member := range set[evalengine.HashValue(v)] {
			cmp, err := sqltypes.NullsafeCompare(v, member)
			if err != nil {
				return nil, err
			}
			if cmp == 0 {
				match = true
				break
			}
		}
		if p.Negated {
			// NOT IN with a NULL member is Unknown for every non-match
			if match || hasNull {
				return nil, nil
			}
			return row, nil
		}
		if !match {
			return nil, nil
		}
		return row, nil
	}), nil
}

func drainSingleColumn(stream RowStream) ([]sqltypes.Value, bool, error) {
	defer stream.Close()
	var values []sqltypes.Value
	hasNull := false
	for {
		row, err := stream.Next()
		if err == io.EOF {
			return values, hasNull, nil
		}
		if err != nil {
			return nil, false, err
		}
		if len(row) != 1 {
			return nil, false, dverrors.Errorf(dverrors.Internal, "subquery produced %d columns, want 1", len(row))
		}
		if row[0].IsNull() {
			hasNull = true
		}
		values = append(values, row[0])
	}
}

func columnIndex(fields []sqltypes.Field, name string) (int, error) {
	for i, f := range fields {
		if strings.EqualFold(f.Name, name) {
			return i, nil
		}
	}
	return 0, dverrors.Errorf(dverrors.Internal, "column %q not found in scan output", name)
}

func (p *PulloutSubquery) EstimatedRows() int64 {
	return EstimateUnknown
}

func (p *PulloutSubquery) Inputs() []Primitive {
	return []Primitive{p.Subquery, p.Outer}
}

func (p *PulloutSubquery) Description() PrimitiveDescription {
	variant := "in"
	if p.Negated {
		variant = "not-in"
	}
	entity := ""
	if p.Outer != nil && p.Outer.Query.Entity != nil {
		entity = p.Outer.Query.Entity.Name
	}
	return PrimitiveDescription{
		OperatorType:  "PulloutSubquery",
		Variant:       variant,
		Entity:        entity,
		EstimatedRows: EstimateUnknown,
		Why:           p.Why,
		Other:         map[string]string{"Attribute": p.OuterAttr},
	}
}
