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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dverrors"
	"github.com/dvsql/dvsql/go/dv/engine"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func TestBuildMetadataEntityScan(t *testing.T) {
	plan := buildPlan(t, "select logicalname from metadata.entity", nil, testMeta())

	proj, ok := plan.Instructions.(*engine.Projection)
	require.True(t, ok, "want Projection, got %T", plan.Instructions)
	scan, ok := proj.Input.(*engine.MetadataScan)
	require.True(t, ok, "want MetadataScan, got %T", proj.Input)
	assert.Equal(t, engine.ScanEntities, scan.Kind)
	require.Len(t, proj.OutputFields, 1)
	assert.Equal(t, sqltypes.Field{Name: "logicalname", Type: sqltypes.Text}, proj.OutputFields[0])
}

func TestBuildMetadataStarWithFilter(t *testing.T) {
	plan := buildPlan(t, "select * from metadata.entity where logicalname like 'a%'", nil, testMeta())

	// catalog predicates run client side above the scan
	filter, ok := plan.Instructions.(*engine.Filter)
	require.True(t, ok, "want Filter, got %T", plan.Instructions)
	scan, ok := filter.Input.(*engine.MetadataScan)
	require.True(t, ok, "want MetadataScan, got %T", filter.Input)
	assert.Equal(t, engine.ScanEntities, scan.Kind)
}

func TestBuildMetadataAttributes(t *testing.T) {
	plan := buildPlan(t,
		"select logicalname, attributetype from metadata.attribute where entitylogicalname = 'Account' and attributetype = 'decimal'",
		nil, testMeta())

	proj := plan.Instructions.(*engine.Projection)
	filter, ok := proj.Input.(*engine.Filter)
	require.True(t, ok, "want Filter, got %T", proj.Input)
	scan := filter.Input.(*engine.MetadataScan)
	assert.Equal(t, engine.ScanAttributes, scan.Kind)
	// the entity qualifier is consumed by the scan, the rest stays client side
	assert.Equal(t, "account", scan.Entity)
}

func TestBuildMetadataAttributesRequireEntity(t *testing.T) {
	err := buildErr(t, "select logicalname from metadata.attribute", nil, testMeta())
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "entitylogicalname")
}

func TestBuildMetadataOptionSets(t *testing.T) {
	plan := buildPlan(t,
		"select value, label from metadata.optionset where entitylogicalname = 'account' and attributelogicalname = 'statecode'",
		nil, testMeta())

	proj := plan.Instructions.(*engine.Projection)
	scan, ok := proj.Input.(*engine.MetadataScan)
	require.True(t, ok, "want MetadataScan, got %T", proj.Input)
	assert.Equal(t, engine.ScanOptionSets, scan.Kind)
	assert.Equal(t, "account", scan.Entity)
	assert.Equal(t, "statecode", scan.Attribute)
	require.Len(t, proj.OutputFields, 2)
	assert.Equal(t, sqltypes.Int64, proj.OutputFields[0].Type)
	assert.Equal(t, sqltypes.Text, proj.OutputFields[1].Type)
}

func TestBuildMetadataOrderAndTop(t *testing.T) {
	plan := buildPlan(t, "select top 2 logicalname from metadata.entity order by logicalname desc", nil, testMeta())

	limit, ok := plan.Instructions.(*engine.Limit)
	require.True(t, ok, "want Limit, got %T", plan.Instructions)
	sort, ok := limit.Input.(*engine.MemorySort)
	require.True(t, ok, "want MemorySort, got %T", limit.Input)
	require.Len(t, sort.Keys, 1)
	assert.Equal(t, engine.SortKey{Col: 0, Desc: true}, sort.Keys[0])
	assert.Equal(t, int64(2), limit.Count)
}

func TestBuildMetadataNoAggregation(t *testing.T) {
	err := buildErr(t, "select count(*) from metadata.entity", nil, testMeta())
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "does not support joins or aggregation")
}

func TestBuildMetadataReadOnly(t *testing.T) {
	err := buildErr(t, "update metadata.entity set logicalname = 'x' where logicalname = 'y'", nil, testMeta())
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "read-only")

	err = buildErr(t, "delete from metadata.optionset where entitylogicalname = 'account'", nil, testMeta())
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "read-only")
}
