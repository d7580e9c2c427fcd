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
	"github.com/dvsql/dvsql/go/dv/engine"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// checkFiltered is the DML safety guard's first gate: a Delete or Update
// with no WHERE clause is blocked outright unless the caller explicitly
// overrides. The block happens at plan time, before any remote call.
func (b *builder) checkFiltered(kind string, table string, where sqlparser.Expr) error {
	if where != nil || b.opts.DML.AllowUnfiltered {
		return nil
	}
	return dverrors.Errorf(dverrors.DMLBlocked,
		"%s on %s has no WHERE clause; add a filter or set AllowUnfiltered to confirm a full-table write",
		kind, table)
}

// buildDMLSource plans the retrieve phase shared by Update and Delete: a
// scan of the affected rows carrying the primary id plus the listed extra
// columns. The primary id is always output column 0.
func (b *builder) buildDMLSource(table *sqlparser.AliasedTable, joins []*sqlparser.Join, where sqlparser.Expr, extra []sqlparser.Expr) (engine.Primitive, *scanScope, error) {
	scope := b.newScanScope(table)
	for _, join := range joins {
		if err := scope.addJoin(join); err != nil {
			return nil, nil, err
		}
	}
	idCol := &sqlparser.ColName{Name: b.primaryIDName(table.Name)}
	if err := scope.addColumn(idCol); err != nil {
		return nil, nil, err
	}
	remaining, pullout, err := b.rewriteSubqueries(scope, where)
	if err != nil {
		return nil, nil, err
	}
	if pullout != nil {
		return nil, nil, dverrors.New(dverrors.Planning,
			"subquery predicates in DML must be rewritable to joins")
	}
	pushed, residue := scope.splitPredicate(remaining)
	for _, p := range pushed {
		scope.applyFilter(p)
	}
	if err := scope.addColumns(residue); err != nil {
		return nil, nil, err
	}
	for _, e := range extra {
		if err := scope.addColumns(e); err != nil {
			return nil, nil, err
		}
	}
	var prim engine.Primitive = &engine.FetchScan{
		Query:    scope.fetch,
		Estimate: engine.EstimateUnknown,
		NodeName: "DMLSource",
	}
	if residue != nil {
		prim = &engine.Filter{Predicate: residue, Input: prim}
	}
	return prim, scope, nil
}

func (b *builder) buildUpdate(upd *sqlparser.Update) (engine.Primitive, error) {
	if _, ok := metadataTableKind(upd.Table.Name); ok {
		return nil, dverrors.Errorf(dverrors.Planning, "catalog table %s is read-only", upd.Table.Name)
	}
	if err := b.checkFiltered("UPDATE", upd.Table.Name, upd.Where); err != nil {
		return nil, err
	}
	extra := make([]sqlparser.Expr, 0, len(upd.Set))
	sets := make([]engine.SetExpr, 0, len(upd.Set))
	for _, sc := range upd.Set {
		extra = append(extra, sc.Expr)
		sets = append(sets, engine.SetExpr{Attr: strings.ToLower(sc.Column), Expr: sc.Expr})
	}
	source, _, err := b.buildDMLSource(upd.Table, upd.Joins, upd.Where, extra)
	if err != nil {
		return nil, err
	}
	why := ""
	if upd.Where == nil {
		why = "unfiltered update allowed by explicit override"
	}
	return &engine.DMLExecute{
		Op:           engine.DMLUpdate,
		Entity:       upd.Table.Name,
		PrimaryIDCol: 0,
		Source:       source,
		Sets:         sets,
		Batch:        b.opts.DML.Batch,
		MaxRows:      b.dmlMaxRows(),
		Why:          why,
	}, nil
}

func (b *builder) buildDelete(del *sqlparser.Delete) (engine.Primitive, error) {
	if _, ok := metadataTableKind(del.Table.Name); ok {
		return nil, dverrors.Errorf(dverrors.Planning, "catalog table %s is read-only", del.Table.Name)
	}
	if err := b.checkFiltered("DELETE", del.Table.Name, del.Where); err != nil {
		return nil, err
	}
	source, _, err := b.buildDMLSource(del.Table, del.Joins, del.Where, nil)
	if err != nil {
		return nil, err
	}
	why := ""
	if del.Where == nil {
		why = "unfiltered delete allowed by explicit override"
	}
	return &engine.DMLExecute{
		Op:           engine.DMLDelete,
		Entity:       del.Table.Name,
		PrimaryIDCol: 0,
		Source:       source,
		Batch:        b.opts.DML.Batch,
		MaxRows:      b.dmlMaxRows(),
		Why:          why,
	}, nil
}

func (b *builder) buildInsert(ins *sqlparser.Insert) (engine.Primitive, error) {
	if len(ins.Columns) == 0 {
		return nil, dverrors.Errorf(dverrors.Planning, "INSERT into %s requires a column list", ins.Table)
	}
	cols := make([]string, len(ins.Columns))
	for i, c := range ins.Columns {
		cols[i] = strings.ToLower(c)
	}
	var source engine.Primitive
	if ins.Source != nil {
		branchCols, countable := branchColumnCount(ins.Source)
		if countable && branchCols != len(cols) {
			return nil, dverrors.Errorf(dverrors.Planning,
				"INSERT names %d columns but the source query selects %d", len(cols), branchCols)
		}
		var err error
		source, err = b.buildSelect(ins.Source)
		if err != nil {
			return nil, err
		}
	} else {
		fields := make([]sqltypes.Field, len(cols))
		for i, c := range cols {
			fields[i] = sqltypes.Field{Name: c, Type: b.attrType(ins.Table, c)}
		}
		for _, row := range ins.Rows {
			if len(row) != len(cols) {
				return nil, dverrors.Errorf(dverrors.Planning,
					"INSERT row has %d values, want %d", len(row), len(cols))
			}
		}
		source = &engine.LiteralRows{OutputFields: fields, Exprs: ins.Rows}
	}
	return &engine.DMLExecute{
		Op:         engine.DMLInsert,
		Entity:     ins.Table,
		Source:     source,
		InsertCols: cols,
		Batch:      b.opts.DML.Batch,
	}, nil
}

// dmlMaxRows is the affected-row ceiling enforced while collecting the
// write set.
func (b *builder) dmlMaxRows() int64 {
	return b.opts.dmlCap()
}
