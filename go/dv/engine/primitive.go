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

// Package engine implements the plan operators. A plan is a tree of
// Primitives; execution is pull-based: a parent opens its inputs and draws
// rows on demand, so memory stays bounded by the narrowest streaming point
// of the tree. Distinct, Window and client-key MemorySort are the deliberate
// exceptions that materialize their whole input before emitting anything.
package engine

import (
	"context"
	"io"
	"sync"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// EstimateUnknown marks a node with no row estimate.
const EstimateUnknown = int64(-1)

// MaxMaterializedRows caps how many rows a materializing operator (distinct,
// client-side sort, window) will hold in memory before aborting the plan.
const MaxMaterializedRows = 1_000_000

func errTooManyRows(op string) error {
	return dverrors.Errorf(dverrors.RemoteLimit, "%s materialized more than %d rows; add a filter or TOP to reduce the input", op, MaxMaterializedRows)
}

// Primitive is one plan operator. The tree is exclusively owned: every node
// has exactly one parent and owns its inputs.
type Primitive interface {
	// Exec opens the operator and returns its row stream. The stream is
	// single-pass, forward-only and not restartable.
	Exec(ctx context.Context, pctx *PlanContext) (RowStream, error)
	// EstimatedRows is the planner's row estimate, EstimateUnknown if none.
	EstimatedRows() int64
	// Inputs returns the child operators.
	Inputs() []Primitive
	// Description renders the node for explain output.
	Description() PrimitiveDescription
}

// RowStream delivers rows one at a time. Next returns io.EOF after the last
// row. Close releases underlying resources and is safe to call more than
// once; it must be called even after an error.
type RowStream interface {
	Fields() []sqltypes.Field
	Next() (sqltypes.Row, error)
	Close()
}

// FailurePolicy decides what a plan does when a single partition of a
// parallel scan fails.
type FailurePolicy int

const (
	// FailPlan aborts the whole plan on any partition failure.
	FailPlan FailurePolicy = iota
	// DegradePartial drops the failed partition, records a warning and
	// lets the surviving partitions complete. Aggregate coverage becomes
	// partial.
	DegradePartial
)

// PlanContext carries per-execution state into every operator. It is created
// once per statement execution and discarded afterwards.
type PlanContext struct {
	Pool     dataverse.ConnectionPool
	TDS      dataverse.TDSTransport
	Bulk     dataverse.BulkWriter
	Metadata dataverse.MetadataStore

	Params map[string]sqltypes.Value

	Stats            *Stats
	OnPartitionError FailurePolicy

	mu       sync.Mutex
	warnings []string
}

// Warn records an execution warning (e.g. partial aggregate coverage).
// Safe for concurrent use by partitions.
func (pctx *PlanContext) Warn(msg string) {
	pctx.mu.Lock()
	defer pctx.mu.Unlock()
	pctx.warnings = append(pctx.warnings, msg)
}

// Warnings returns the warnings recorded so far.
func (pctx *PlanContext) Warnings() []string {
	pctx.mu.Lock()
	defer pctx.mu.Unlock()
	out := make([]string, len(pctx.warnings))
	copy(out, pctx.warnings)
	return out
}

// Stats is the statistics sink. Partitions increment it concurrently, so
// every method takes the lock.
type Stats struct {
	mu   sync.Mutex
	rows map[string]int64
}

// NewStats returns an empty sink.
func NewStats() *Stats {
	return &Stats{rows: make(map[string]int64)}
}

// AddRows records rows produced by the named node.
func (s *Stats) AddRows(node string, n int64) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[node] += n
}

// Rows reports the count recorded for the named node.
func (s *Stats) Rows(node string) int64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[node]
}

// Drain pulls every row out of a stream into a Result and closes it.
func Drain(stream RowStream) (*sqltypes.Result, error) {
	defer stream.Close()
	result := &sqltypes.Result{Fields: stream.Fields()}
	for {
		row, err := stream.Next()
		if err == io.EOF {
			return result, nil
		}
		if err != nil {
			return nil, err
		}
		result.AppendRow(row)
	}
}
