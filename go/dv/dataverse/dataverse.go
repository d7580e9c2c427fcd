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

// Package dataverse declares the contracts of the external collaborators the
// engine executes against: the connection pool, the native and accelerated
// transports, the bulk write pipeline and the metadata store. The engine
// consumes these interfaces and never their implementations; the in-package
// fakes back the test suites.
package dataverse

import (
	"context"
	"time"

	"github.com/dvsql/dvsql/go/sqltypes"
)

// PagingState carries server paging position between requests.
type PagingState struct {
	Page   int
	Cookie string
	// Count is the requested page size; zero lets the transport choose.
	Count int
}

// FetchPage is one page of a native-query result.
type FetchPage struct {
	Result      *sqltypes.Result
	MoreRecords bool
	Cookie      string
}

// Connection executes native queries. A connection is borrowed from the pool
// for the duration of one scan and released exactly once.
type Connection interface {
	// ExecuteFetch sends a fetchxml document and returns one page.
	ExecuteFetch(ctx context.Context, fetchXML string, paging PagingState) (*FetchPage, error)
	Release()
}

// ConnectionPool supplies ready-to-use connections.
type ConnectionPool interface {
	// Get may suspend until a connection is available.
	Get(ctx context.Context) (Connection, error)
	// RecommendedParallelism bounds parallel partition fan-out.
	RecommendedParallelism() int
}

// TDSTransport is the accelerated tabular-protocol endpoint, usable only for
// the compatible read-only subset.
type TDSTransport interface {
	Query(ctx context.Context, sql string) (*sqltypes.Result, error)
}

// WriteOp is a bulk write operation kind.
type WriteOp int

const (
	WriteCreate WriteOp = iota
	WriteUpdate
	WriteDelete
)

func (op WriteOp) String() string {
	switch op {
	case WriteCreate:
		return "create"
	case WriteUpdate:
		return "update"
	case WriteDelete:
		return "delete"
	}
	return "unknown"
}

// Entity is one record handed to the bulk writer: the target logical name,
// the primary id (empty for creates) and the attribute values to write.
type Entity struct {
	LogicalName string
	ID          string
	Attributes  map[string]sqltypes.Value
}

// BatchOptions tunes the bulk write pipeline.
type BatchOptions struct {
	BatchSize   int
	Parallelism int
}

// Progress reports bulk write completion.
type Progress struct {
	Succeeded int64
	Failed    int64
}

// BulkWriter performs batched create/update/delete against the store.
type BulkWriter interface {
	Write(ctx context.Context, op WriteOp, entities []Entity, opts BatchOptions) (Progress, error)
}

// AttributeMeta describes one attribute of an entity.
type AttributeMeta struct {
	LogicalName string
	Type        sqltypes.Type
	IsPrimaryID bool
}

// EntityMeta describes one entity.
type EntityMeta struct {
	LogicalName   string
	PrimaryID     string
	PrimaryName   string
	CreatedAtName string
}

// OptionMeta is one option-set member.
type OptionMeta struct {
	Entity    string
	Attribute string
	Value     int64
	Label     string
}

// MetadataStore answers introspection queries. RowCount and TimeRange back
// the planner's probes: the fast COUNT(*) path and aggregate partition
// sizing.
type MetadataStore interface {
	Entities(ctx context.Context) ([]EntityMeta, error)
	Entity(ctx context.Context, logicalName string) (*EntityMeta, error)
	Attributes(ctx context.Context, entity string) ([]AttributeMeta, error)
	OptionSets(ctx context.Context, entity string) ([]OptionMeta, error)
	RowCount(ctx context.Context, entity string) (int64, error)
	// TimeRange reports the min and max of a datetime attribute across the
	// entity, for partition range computation.
	TimeRange(ctx context.Context, entity, attribute string) (time.Time, time.Time, error)
}
