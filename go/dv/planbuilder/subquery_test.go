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
	"github.com/dvsql/dvsql/go/dv/fetchxml"
)

func TestBuildInSubqueryBecomesLink(t *testing.T) {
	plan := buildPlan(t,
		"select name from account where accountid in (select parentcustomerid from contact where fullname like 'a%')",
		nil, testMeta())

	// uncorrelated single-column IN with a pushable filter joins server side
	proj := plan.Instructions.(*engine.Projection)
	scan, ok := proj.Input.(*engine.FetchScan)
	require.True(t, ok, "want FetchScan, got %T", proj.Input)
	require.Len(t, scan.Query.Entity.Links, 1)
	link := scan.Query.Entity.Links[0]
	assert.Equal(t, "contact", link.Name)
	assert.Equal(t, "parentcustomerid", link.From)
	assert.Equal(t, "accountid", link.To)
	require.NotNil(t, link.Filter)
	assert.True(t, scan.Query.Distinct)
}

func TestBuildInSubqueryPullout(t *testing.T) {
	// TOP in the subquery defeats the join rewrite
	plan := buildPlan(t,
		"select name from account where accountid in (select top 10 parentcustomerid from contact)",
		nil, testMeta())

	proj := plan.Instructions.(*engine.Projection)
	pullout, ok := proj.Input.(*engine.PulloutSubquery)
	require.True(t, ok, "want PulloutSubquery, got %T", proj.Input)
	assert.Equal(t, "accountid", pullout.OuterAttr)
	assert.False(t, pullout.Negated)
	assert.Contains(t, pullout.Why, "no join rewrite")
}

func TestBuildNotInPullout(t *testing.T) {
	plan := buildPlan(t,
		"select name from account where accountid not in (select parentcustomerid from contact)",
		nil, testMeta())

	proj := plan.Instructions.(*engine.Projection)
	pullout, ok := proj.Input.(*engine.PulloutSubquery)
	require.True(t, ok, "want PulloutSubquery, got %T", proj.Input)
	assert.True(t, pullout.Negated)
	assert.Contains(t, pullout.Why, "null semantics")
}

func TestBuildTwoPulloutsRejected(t *testing.T) {
	err := buildErr(t,
		"select name from account where accountid not in (select parentcustomerid from contact) and accountid not in (select top 5 parentcustomerid from contact)",
		nil, testMeta())
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "at most one subquery predicate")
}

func TestBuildInSubqueryMultiColumn(t *testing.T) {
	err := buildErr(t,
		"select name from account where accountid in (select contactid, fullname from contact)",
		nil, testMeta())
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "exactly one column")
}

func TestBuildJoin(t *testing.T) {
	plan := buildPlan(t,
		"select a.name, c.fullname from account a join contact c on c.parentcustomerid = a.accountid",
		nil, testMeta())

	proj := plan.Instructions.(*engine.Projection)
	scan := proj.Input.(*engine.FetchScan)
	require.Len(t, scan.Query.Entity.Links, 1)
	link := scan.Query.Entity.Links[0]
	assert.Equal(t, "contact", link.Name)
	assert.Equal(t, "c", link.Alias)
	assert.Equal(t, fetchxml.LinkInner, link.LinkType)
	// the linked column rides on the link entity
	require.Len(t, link.Attributes, 1)
	assert.Equal(t, "fullname", link.Attributes[0].Name)
}

func TestBuildLeftJoin(t *testing.T) {
	plan := buildPlan(t,
		"select a.name from account a left join contact c on c.parentcustomerid = a.accountid",
		nil, testMeta())

	proj := plan.Instructions.(*engine.Projection)
	scan := proj.Input.(*engine.FetchScan)
	require.Len(t, scan.Query.Entity.Links, 1)
	assert.Equal(t, fetchxml.LinkOuter, scan.Query.Entity.Links[0].LinkType)
}

func TestBuildJoinBadCondition(t *testing.T) {
	err := buildErr(t,
		"select a.name from account a join contact c on c.parentcustomerid > a.accountid",
		nil, testMeta())
	assert.Equal(t, dverrors.Planning, dverrors.CodeOf(err))
	assert.ErrorContains(t, err, "single equality")
}
