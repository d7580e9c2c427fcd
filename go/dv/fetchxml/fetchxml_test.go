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

package fetchxml

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshal(t *testing.T) {
	testcases := []struct {
		name  string
		fetch *Fetch
		want  string
	}{{
		name: "simple scan",
		fetch: &Fetch{
			Entity: &Entity{
				Name: "account",
				Attributes: []*Attribute{
					{Name: "name"},
					{Name: "revenue"},
				},
			},
		},
		want: `<fetch><entity name="account"><attribute name="name"></attribute><attribute name="revenue"></attribute></entity></fetch>`,
	}, {
		name: "top and filter",
		fetch: &Fetch{
			Top: 10,
			Entity: &Entity{
				Name:       "account",
				Attributes: []*Attribute{{Name: "name"}},
				Filter: &Filter{
					Type: FilterAnd,
					Conditions: []*Condition{
						{Attribute: "statecode", Operator: OpEqual, Value: "0"},
						{Attribute: "revenue", Operator: OpGreater, Value: "100000"},
					},
				},
				Orders: []*Order{{Attribute: "revenue", Descending: true}},
			},
		},
		want: `<fetch top="10"><entity name="account"><attribute name="name"></attribute><order attribute="revenue" descending="true"></order><filter type="and"><condition attribute="statecode" operator="eq" value="0"></condition><condition attribute="revenue" operator="gt" value="100000"></condition></filter></entity></fetch>`,
	}, {
		name: "aggregate with date grouping",
		fetch: &Fetch{
			Aggregate: true,
			Entity: &Entity{
				Name: "opportunity",
				Attributes: []*Attribute{
					{Name: "createdon", Alias: "yr", GroupBy: true, DateGrouping: DateGroupYear},
					{Name: "estimatedvalue", Alias: "total", Aggregate: AggSum},
				},
			},
		},
		want: `<fetch aggregate="true"><entity name="opportunity"><attribute name="createdon" alias="yr" groupby="true" dategrouping="year"></attribute><attribute name="estimatedvalue" alias="total" aggregate="sum"></attribute></entity></fetch>`,
	}, {
		name: "link entity join",
		fetch: &Fetch{
			Distinct: true,
			Entity: &Entity{
				Name:       "account",
				Attributes: []*Attribute{{Name: "name"}},
				Links: []*LinkEntity{{
					Name:     "contact",
					From:     "parentcustomerid",
					To:       "accountid",
					Alias:    "c",
					LinkType: LinkInner,
					Filter: &Filter{
						Type:       FilterAnd,
						Conditions: []*Condition{{Attribute: "statecode", Operator: OpEqual, Value: "0"}},
					},
				}},
			},
		},
		want: `<fetch distinct="true"><entity name="account"><attribute name="name"></attribute><link-entity name="contact" from="parentcustomerid" to="accountid" alias="c" link-type="inner"><filter type="and"><condition attribute="statecode" operator="eq" value="0"></condition></filter></link-entity></entity></fetch>`,
	}, {
		name: "in condition with child values",
		fetch: &Fetch{
			Entity: &Entity{
				Name:       "account",
				Attributes: []*Attribute{{Name: "name"}},
				Filter: &Filter{
					Type: FilterAnd,
					Conditions: []*Condition{
						{Attribute: "statecode", Operator: OpIn, Values: []string{"0", "1"}},
					},
				},
			},
		},
		want: `<fetch><entity name="account"><attribute name="name"></attribute><filter type="and"><condition attribute="statecode" operator="in"><value>0</value><value>1</value></condition></filter></entity></fetch>`,
	}, {
		name: "paging attributes",
		fetch: &Fetch{
			Count:        5000,
			Page:         3,
			PagingCookie: "<cookie page=\"2\"/>",
			Entity:       &Entity{Name: "contact", AllAttributes: &AllAttrs{}},
		},
		want: `<fetch count="5000" page="3" paging-cookie="&lt;cookie page=&#34;2&#34;/&gt;"><entity name="contact"><all-attributes></all-attributes></entity></fetch>`,
	}}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.fetch.Marshal()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	t.Run("missing entity", func(t *testing.T) {
		_, err := (&Fetch{}).Marshal()
		require.Error(t, err)
	})
}

func TestClone(t *testing.T) {
	orig := &Fetch{
		Aggregate: true,
		Entity: &Entity{
			Name: "account",
			Attributes: []*Attribute{
				{Name: "revenue", Alias: "total", Aggregate: AggSum},
			},
			Filter: &Filter{
				Type: FilterAnd,
				Conditions: []*Condition{
					{Attribute: "statecode", Operator: OpIn, Values: []string{"0"}},
				},
				Filters: []*Filter{{
					Type:       FilterOr,
					Conditions: []*Condition{{Attribute: "name", Operator: OpLike, Value: "a%"}},
				}},
			},
			Links: []*LinkEntity{{
				Name: "contact", From: "parentcustomerid", To: "accountid", Alias: "c",
				Attributes: []*Attribute{{Name: "fullname"}},
				Links:      []*LinkEntity{{Name: "systemuser", From: "systemuserid", To: "ownerid"}},
			}},
		},
	}

	clone := orig.Clone()
	require.Equal(t, orig, clone)

	// mutating the clone must leave the original untouched
	clone.Entity.AddCondition(&Condition{Attribute: "createdon", Operator: OpOnOrAfter, Value: "2024-01-01T00:00:00Z"})
	clone.Entity.Attributes[0].Alias = "changed"
	clone.Entity.Filter.Filters[0].Conditions[0].Value = "b%"
	clone.Entity.Links[0].Attributes[0].Name = "emailaddress1"
	clone.Entity.Links[0].Links[0].Name = "team"

	assert.Len(t, orig.Entity.Filter.Conditions, 1)
	assert.Equal(t, "total", orig.Entity.Attributes[0].Alias)
	assert.Equal(t, "a%", orig.Entity.Filter.Filters[0].Conditions[0].Value)
	assert.Equal(t, "fullname", orig.Entity.Links[0].Attributes[0].Name)
	assert.Equal(t, "systemuser", orig.Entity.Links[0].Links[0].Name)
}

func TestAddCondition(t *testing.T) {
	t.Run("creates and filter", func(t *testing.T) {
		e := &Entity{Name: "account"}
		e.AddCondition(&Condition{Attribute: "statecode", Operator: OpEqual, Value: "0"})
		require.NotNil(t, e.Filter)
		assert.Equal(t, FilterAnd, e.Filter.Type)
		assert.Len(t, e.Filter.Conditions, 1)
	})

	t.Run("wraps or filter conjunctively", func(t *testing.T) {
		e := &Entity{
			Name: "account",
			Filter: &Filter{
				Type: FilterOr,
				Conditions: []*Condition{
					{Attribute: "statecode", Operator: OpEqual, Value: "0"},
					{Attribute: "statecode", Operator: OpEqual, Value: "1"},
				},
			},
		}
		e.AddCondition(&Condition{Attribute: "revenue", Operator: OpGreater, Value: "5"})
		assert.Equal(t, FilterAnd, e.Filter.Type)
		require.Len(t, e.Filter.Filters, 1)
		assert.Equal(t, FilterOr, e.Filter.Filters[0].Type)
		assert.Len(t, e.Filter.Conditions, 1)
	})
}

func TestFormatTime(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	ts := time.Date(2024, 3, 15, 10, 30, 0, 0, loc)
	assert.Equal(t, "2024-03-15T05:30:00Z", FormatTime(ts))
}
