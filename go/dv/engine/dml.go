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
	"fmt"
	"io"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/evalengine"
	"github.com/dvsql/dvsql/go/dv/log"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// DMLOp is the write kind of a DMLExecute node.
type DMLOp int

const (
	DMLInsert DMLOp = iota
	DMLUpdate
	DMLDelete
)

func (op DMLOp) String() string {
	switch op {
	case DMLInsert:
		return "insert"
	case DMLUpdate:
		return "update"
	case DMLDelete:
		return "delete"
	}
	return "unknown"
}

// SetExpr is one SET assignment, evaluated per retrieved row.
type SetExpr struct {
	Attr string
	Expr sqlparser.Expr
}

// DMLExecute turns a DML statement into bulk write traffic. Updates and
// deletes run in two strict phases: the source scan is drained completely
// before the first write is issued, so writes can never perturb the scan's
// paging. The single output row carries the affected-row count.
type DMLExecute struct {
	Op     DMLOp
	Entity string
	// PrimaryIDCol locates the primary id in the source rows; unused for
	// inserts.
	PrimaryIDCol int
	Source       Primitive
	Sets         []SetExpr
	// InsertCols aligns target attributes with source columns.
	InsertCols []string
	Batch      dataverse.BatchOptions
	// MaxRows aborts the write when the source matches more rows than the
	// caller allowed. Zero means unlimited.
	MaxRows int64
	Why     string
}

var _ Primitive = (*DMLExecute)(nil)

var rowsAffectedFields = []sqltypes.Field{{Name: "rowsaffected", Type: sqltypes.Int64}}

func (d *DMLExecute) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	if pctx.Bulk == nil {
		return nil, dverrors.New(dverrors.Planning, "bulk writer is not configured")
	}
	src, err := d.Source.Exec(ctx, pctx)
	if err != nil {
		return nil, err
	}
	entities, err := d.collect(src, pctx)
	if err != nil {
		return nil, err
	}
	var writeOp dataverse.WriteOp
	switch d.Op {
	case DMLInsert:
		writeOp = dataverse.WriteCreate
	case DMLUpdate:
		writeOp = dataverse.WriteUpdate
	case DMLDelete:
		writeOp = dataverse.WriteDelete
	default:
		return nil, dverrors.Errorf(dverrors.Internal, "unknown dml op %v", d.Op)
	}
	log.Infof("%s %s: writing %d records", d.Op, d.Entity, len(entities))
	progress, err := pctx.Bulk.Write(ctx, writeOp, entities, d.Batch)
	if err != nil {
		if ctx.Err() != nil {
			return nil, dverrors.WithCode(dverrors.Cancelled, err)
		}
		return nil, dverrors.Wrap(dverrors.WithCode(dverrors.Transport, err), "bulk write")
	}
	if progress.Failed > 0 {
		pctx.Warn(fmt.Sprintf("%d of %d writes failed", progress.Failed, progress.Failed+progress.Succeeded))
	}
	pctx.Stats.AddRows("DMLExecute", progress.Succeeded)
	rows := []sqltypes.Row{{sqltypes.NewInt64(progress.Succeeded)}}
	return newSliceStream(rowsAffectedFields, rows), nil
}

// collect drains the source and builds the write set. Phase one of two.
func (d *DMLExecute) collect(src RowStream, pctx *PlanContext) ([]dataverse.Entity, error) {
	defer src.Close()
	env := evalengine.NewEnv(src.Fields())
	env.Params = pctx.Params
	var entities []dataverse.Entity
	for {
		row, err := src.Next()
		if err == io.EOF {
			return entities, nil
		}
		if err != nil {
			return nil, err
		}
		if d.MaxRows > 0 && int64(len(entities)) >= d.MaxRows {
			return nil, dverrors.Errorf(dverrors.DMLBlocked,
				"%s on %s matches more than %d rows; raise the row limit to proceed", d.Op, d.Entity, d.MaxRows)
		}
		entity, err := d.buildEntity(env, row)
		if err != nil {
			return nil, err
		}
		entities = append(entities, entity)
	}
}

func (d *DMLExecute) buildEntity(env *evalengine.Env, row sqltypes.Row) (dataverse.Entity, error) {
	entity := dataverse.Entity{LogicalName: d.Entity}
	switch d.Op {
	case DMLInsert:
		entity.Attributes = make(map[string]sqltypes.Value, len(d.InsertCols))
		if len(row) != len(d.InsertCols) {
			return entity, dverrors.Errorf(dverrors.Planning,
				"insert source has %d columns, want %d", len(row), len(d.InsertCols))
		}
		for i, col := range d.InsertCols {
			entity.Attributes[col] = row[i]
		}
	case DMLUpdate:
		entity.ID = row[d.PrimaryIDCol].RawText()
		entity.Attributes = make(map[string]sqltypes.Value, len(d.Sets))
		env.Row = row
		for _, set := range d.Sets {
			v, err := env.Eval(set.Expr)
			if err != nil {
				return entity, err
			}
			entity.Attributes[set.Attr] = v
		}
	case DMLDelete:
		entity.ID = row[d.PrimaryIDCol].RawText()
	}
	return entity, nil
}

func (d *DMLExecute) EstimatedRows() int64 {
	return 1
}

func (d *DMLExecute) Inputs() []Primitive {
	return []Primitive{d.Source}
}

func (d *DMLExecute) Description() PrimitiveDescription {
	return PrimitiveDescription{
		OperatorType:  "DMLExecute",
		Variant:       d.Op.String(),
		Entity:        d.Entity,
		EstimatedRows: 1,
		Why:           d.Why,
	}
}
