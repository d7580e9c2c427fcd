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

// Package planbuilder lowers a parsed statement to a tree of engine
// primitives. All rewrite decisions happen here: predicate pushdown into the
// native query, subquery-to-join rewriting, aggregate-limit partitioning,
// date-unit GROUP BY pushdown, accelerated-transport routing and the DML
// safety guard. The planner may probe the metadata store (row counts, time
// ranges) but never touches record data.
package planbuilder

import (
	"context"
	"fmt"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/engine"
	"github.com/dvsql/dvsql/go/dv/log"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

const (
	// DefaultPartitionTarget is the per-partition row goal for partitioned
	// aggregate scans.
	DefaultPartitionTarget = 40000
	// partitionSafetyMargin is the estimate above which a single aggregate
	// scan is considered at risk of hitting the server's row cap.
	partitionSafetyMargin = 45000
	// DefaultDMLCap is the affected-row ceiling for Update and Delete
	// unless the caller raises it.
	DefaultDMLCap = 10000
)

// DMLOptions tunes the write path.
type DMLOptions struct {
	// AllowUnfiltered lets an Update or Delete without a WHERE clause
	// through the safety guard. Off by default.
	AllowUnfiltered bool
	// MaxAffected caps affected rows; zero means DefaultDMLCap.
	MaxAffected int64
	Batch       dataverse.BatchOptions
}

// PlanOptions controls planning.
type PlanOptions struct {
	// Parallelism bounds ParallelPartition fan-out. Callers usually seed
	// it from the pool's recommended parallelism.
	Parallelism int
	// Accelerate routes compatible read-only statements to the tabular
	// protocol endpoint.
	Accelerate  bool
	ExplainOnly bool
	// RowLimit caps the rows returned to the caller; zero means no cap.
	RowLimit int64
	// PartitionTarget is the per-partition row goal; zero means
	// DefaultPartitionTarget.
	PartitionTarget int64
	FailurePolicy   engine.FailurePolicy
	DML             DMLOptions
}

func (opts *PlanOptions) partitionTarget() int64 {
	if opts.PartitionTarget > 0 {
		return opts.PartitionTarget
	}
	return DefaultPartitionTarget
}

func (opts *PlanOptions) dmlCap() int64 {
	if opts.DML.MaxAffected > 0 {
		return opts.DML.MaxAffected
	}
	return DefaultDMLCap
}

// Plan is the output of Build: an executable primitive tree plus the
// warnings the rewrite rules emitted while building it.
type Plan struct {
	Original     sqlparser.Statement
	Instructions engine.Primitive
	Warnings     []string
}

// builder carries planning state. The metadata store backs the planner's
// probes; ctx bounds them.
type builder struct {
	ctx      context.Context
	opts     *PlanOptions
	meta     dataverse.MetadataStore
	warnings []string

	// attrTypes caches metadata attribute types per entity.
	attrTypes map[string]map[string]sqltypes.Type
}

func (b *builder) warnf(format string, args ...any) {
	b.warnings = append(b.warnings, fmt.Sprintf(format, args...))
}

// Build lowers stmt to a plan. Planning errors surface here, before any
// record-store call is made.
func Build(ctx context.Context, stmt sqlparser.Statement, opts *PlanOptions, meta dataverse.MetadataStore) (*Plan, error) {
	if opts == nil {
		opts = &PlanOptions{}
	}
	b := &builder{ctx: ctx, opts: opts, meta: meta}

	var prim engine.Primitive
	var err error
	switch node := stmt.(type) {
	case *sqlparser.Select:
		prim, err = b.buildSelect(node)
	case *sqlparser.Union:
		prim, err = b.buildUnion(node)
	case *sqlparser.Insert:
		prim, err = b.buildInsert(node)
	case *sqlparser.Update:
		prim, err = b.buildUpdate(node)
	case *sqlparser.Delete:
		prim, err = b.buildDelete(node)
	default:
		err = dverrors.Errorf(dverrors.Planning, "unsupported statement type %T", stmt)
	}
	if err != nil {
		return nil, err
	}
	if opts.RowLimit > 0 {
		switch stmt.(type) {
		case *sqlparser.Select, *sqlparser.Union:
			prim = &engine.Limit{Count: opts.RowLimit, Input: prim}
		}
	}
	log.V(2).Infof("planned %s", sqlparser.TruncateForLog(sqlparser.String(stmt)))
	return &Plan{Original: stmt, Instructions: prim, Warnings: b.warnings}, nil
}
