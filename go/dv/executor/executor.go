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

// Package executor is the caller-facing surface: SQL text in, row stream
// out. Routing decisions made underneath (acceleration, partitioning,
// pushdown) are invisible here; the observable results are identical
// whichever path the planner picks.
package executor

import (
	"context"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/engine"
	"github.com/dvsql/dvsql/go/dv/log"
	"github.com/dvsql/dvsql/go/dv/planbuilder"
	"github.com/dvsql/dvsql/go/dv/sqlparser"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// Executor wires the engine to its external collaborators.
type Executor struct {
	Pool     dataverse.ConnectionPool
	TDS      dataverse.TDSTransport
	Bulk     dataverse.BulkWriter
	Metadata dataverse.MetadataStore
}

// ExecuteOptions carries per-statement settings.
type ExecuteOptions struct {
	Plan   planbuilder.PlanOptions
	Params map[string]sqltypes.Value
}

// Execute parses, plans and starts sql, returning a lazy row stream. Rows
// already yielded are final; a mid-stream evaluation error aborts the stream
// with its error code intact. The caller must close the stream.
func (e *Executor) Execute(ctx context.Context, sql string, opts *ExecuteOptions) (engine.RowStream, error) {
	if opts == nil {
		opts = &ExecuteOptions{}
	}
	plan, err := e.plan(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	pctx := &engine.PlanContext{
		Pool:             e.Pool,
		TDS:              e.TDS,
		Bulk:             e.Bulk,
		Metadata:         e.Metadata,
		Params:           opts.Params,
		Stats:            engine.NewStats(),
		OnPartitionError: opts.Plan.FailurePolicy,
	}
	for _, w := range plan.Warnings {
		pctx.Warn(w)
	}
	return plan.Instructions.Exec(ctx, pctx)
}

// ExecuteToResult drains the stream into one result.
func (e *Executor) ExecuteToResult(ctx context.Context, sql string, opts *ExecuteOptions) (*sqltypes.Result, error) {
	stream, err := e.Execute(ctx, sql, opts)
	if err != nil {
		return nil, err
	}
	return engine.Drain(stream)
}

// Explain plans sql without executing it and renders the operator tree,
// with per-node estimates and the planner's why/fallback annotations.
func (e *Executor) Explain(ctx context.Context, sql string, opts *ExecuteOptions) (string, error) {
	if opts == nil {
		opts = &ExecuteOptions{}
	}
	opts.Plan.ExplainOnly = true
	plan, err := e.plan(ctx, sql, opts)
	if err != nil {
		return "", err
	}
	out := engine.DescribeString(plan.Instructions)
	for _, w := range plan.Warnings {
		out += "warning: " + w + "\n"
	}
	return out, nil
}

func (e *Executor) plan(ctx context.Context, sql string, opts *ExecuteOptions) (*planbuilder.Plan, error) {
	stmt, err := sqlparser.Parse(sql)
	if err != nil {
		return nil, err
	}
	if opts.Plan.Parallelism <= 0 && e.Pool != nil {
		opts.Plan.Parallelism = e.Pool.RecommendedParallelism()
	}
	plan, err := planbuilder.Build(ctx, stmt, &opts.Plan, e.Metadata)
	if err != nil {
		log.Warningf("planning failed for %s: %v", sqlparser.TruncateForLog(sql), err)
		return nil, err
	}
	return plan, nil
}
