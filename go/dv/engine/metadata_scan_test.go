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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dvsql/dvsql/go/dv/dataverse"
	"github.com/dvsql/dvsql/go/sqltypes"
)

func metadataContext() *PlanContext {
	return &PlanContext{
		Metadata: &dataverse.FakeMetadata{
			EntityList: []dataverse.EntityMeta{
				{LogicalName: "account", PrimaryID: "accountid", PrimaryName: "name"},
				{LogicalName: "contact", PrimaryID: "contactid", PrimaryName: "fullname"},
			},
			AttrsByEnt: map[string][]dataverse.AttributeMeta{
				"account": {
					{LogicalName: "accountid", Type: sqltypes.Guid, IsPrimaryID: true},
					{LogicalName: "revenue", Type: sqltypes.Decimal},
				},
			},
			Options: []dataverse.OptionMeta{
				{Entity: "account", Attribute: "statecode", Value: 0, Label: "Active"},
				{Entity: "account", Attribute: "statecode", Value: 1, Label: "Inactive"},
				{Entity: "account", Attribute: "industrycode", Value: 3, Label: "Consulting"},
			},
		},
		Stats: NewStats(),
	}
}

func TestMetadataScanEntities(t *testing.T) {
	result := runPrimitive(t, &MetadataScan{Kind: ScanEntities}, metadataContext())
	expected := sqltypes.MakeTestResult(
		sqltypes.MakeTestFields("logicalname|primaryidattribute|primarynameattribute", "text|text|text"),
		"account|accountid|name",
		"contact|contactid|fullname",
	)
	assert.Equal(t, expected.Fields, result.Fields)
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestMetadataScanAttributes(t *testing.T) {
	result := runPrimitive(t, &MetadataScan{Kind: ScanAttributes, Entity: "account"}, metadataContext())
	expected := sqltypes.MakeTestResult(
		sqltypes.MakeTestFields("entitylogicalname|logicalname|attributetype", "text|text|text"),
		"account|accountid|guid",
		"account|revenue|decimal",
	)
	assert.Equal(t, expected.Rows, result.Rows)
}

func TestMetadataScanOptionSets(t *testing.T) {
	// the attribute qualifier narrows the option list
	result := runPrimitive(t, &MetadataScan{Kind: ScanOptionSets, Entity: "account", Attribute: "statecode"}, metadataContext())
	expected := sqltypes.MakeTestResult(
		sqltypes.MakeTestFields("value|label", "int64|text"),
		"0|Active",
		"1|Inactive",
	)
	require.Equal(t, expected.Rows, result.Rows)
}
