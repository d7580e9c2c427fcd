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

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/sqltypes"
)

// MetadataScanKind selects which catalog the scan reads.
type MetadataScanKind int

const (
	ScanEntities MetadataScanKind = iota
	ScanAttributes
	ScanOptionSets
)

// MetadataScan serves catalog pseudo-tables (metadata.entity and friends)
// from the metadata store, no record transport involved.
type MetadataScan struct {
	Kind   MetadataScanKind
	Entity string
	// Attribute qualifies ScanOptionSets.
	Attribute string
}

var _ Primitive = (*MetadataScan)(nil)

// CatalogFields returns the output schema of a metadata scan kind. The
// planner uses it to type projections over catalog pseudo-tables.
func CatalogFields(kind MetadataScanKind) []sqltypes.Field {
	var fields []sqltypes.Field
	switch kind {
	case ScanEntities:
		fields = entityCatalogFields
	case ScanAttributes:
		fields = attributeCatalogFields
	case ScanOptionSets:
		fields = optionCatalogFields
	}
	return append([]sqltypes.Field(nil), fields...)
}

var (
	entityCatalogFields = []sqltypes.Field{
		{Name: "logicalname", Type: sqltypes.Text},
		{Name: "primaryidattribute", Type: sqltypes.Text},
		{Name: "primarynameattribute", Type: sqltypes.Text},
	}
	attributeCatalogFields = []sqltypes.Field{
		{Name: "entitylogicalname", Type: sqltypes.Text},
		{Name: "logicalname", Type: sqltypes.Text},
		{Name: "attributetype", Type: sqltypes.Text},
	}
	optionCatalogFields = []sqltypes.Field{
		{Name: "value", Type: sqltypes.Int64},
		{Name: "label", Type: sqltypes.Text},
	}
)

func (m *MetadataScan) Exec(ctx context.Context, pctx *PlanContext) (RowStream, error) {
	switch m.Kind {
	case ScanEntities:
		entities, err := pctx.Metadata.Entities(ctx)
		if err != nil {
			return nil, dverrors.Wrap(err, "reading entity catalog")
		}
		rows := make([]sqltypes.Row, 0, len(entities))
		for _, e := range entities {
			rows = append(rows, sqltypes.Row{
				sqltypes.NewText(e.LogicalName),
				sqltypes.NewText(e.PrimaryID),
				sqltypes.NewText(e.PrimaryName),
			})
		}
		return newSliceStream(entityCatalogFields, rows), nil
	case ScanAttributes:
		attrs, err := pctx.Metadata.Attributes(ctx, m.Entity)
		if err != nil {
			return nil, dverrors.Wrap(err, "reading attribute catalog")
		}
		rows := make([]sqltypes.Row, 0, len(attrs))
		for _, a := range attrs {
			rows = append(rows, sqltypes.Row{
				sqltypes.NewText(m.Entity),
				sqltypes.NewText(a.LogicalName),
				sqltypes.NewText(a.Type.String()),
			})
		}
		return newSliceStream(attributeCatalogFields, rows), nil
	case ScanOptionSets:
		opts, err := pctx.Metadata.OptionSets(ctx, m.Entity)
		if err != nil {
			return nil, dverrors.Wrap(err, "reading option set catalog")
		}
		rows := make([]sqltypes.Row, 0, len(opts))
		for _, o := range opts {
			if m.Attribute != "" && o.Attribute != m.Attribute {
				continue
			}
			rows = append(rows, sqltypes.Row{
				sqltypes.NewInt64(o.Value),
				sqltypes.NewText(o.Label),
			})
		}
		return newSliceStream(optionCatalogFields, rows), nil
	}
	return nil, dverrors.Errorf(dverrors.Internal, "unknown metadata scan kind %d", m.Kind)
}

func (m *MetadataScan) EstimatedRows() int64 {
	return EstimateUnknown
}

func (m *MetadataScan) Inputs() []Primitive {
	return nil
}

func (m *MetadataScan) Description() PrimitiveDescription {
	variant := "entities"
	switch m.Kind {
	case ScanAttributes:
		variant = "attributes"
	case ScanOptionSets:
		variant = "optionsets"
	}
	return PrimitiveDescription{
		OperatorType:  "MetadataScan",
		Variant:       variant,
		Entity:        m.Entity,
		EstimatedRows: EstimateUnknown,
	}
}
