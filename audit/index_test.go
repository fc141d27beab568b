// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deps.dev/vet/criteria"
	"deps.dev/vet/semver"
)

func testLattice(t *testing.T) *criteria.Lattice {
	t.Helper()
	l, err := criteria.NewLattice(criteria.Table{})
	require.NoError(t, err)
	return l
}

func TestAddFullUnknownCriterionIsError(t *testing.T) {
	ix := NewIndex(testLattice(t))
	err := ix.AddFull("foo", FullAudit{Version: semver.MustParse("1.0.0"), Criteria: "does-not-exist"})
	require.Error(t, err)
}

func TestViolationsMaskingMatchesByRequirement(t *testing.T) {
	l := testLattice(t)
	ix := NewIndex(l)
	require.NoError(t, ix.AddViolation("foo", Violation{
		Requirement: semver.MustParseRequirement("<2.0.0"),
		Criteria:    criteria.SafeToRun,
	}))

	masked := ix.ViolationsMasking("foo", semver.MustParse("1.5.0"))
	assert.True(t, l.Contains(masked, criteria.SafeToRun))

	notMasked := ix.ViolationsMasking("foo", semver.MustParse("2.5.0"))
	assert.True(t, notMasked.IsEmpty())
}

func TestMatchingViolationsReturnsAllMatches(t *testing.T) {
	ix := NewIndex(testLattice(t))
	require.NoError(t, ix.AddViolation("foo", Violation{
		Requirement: semver.MustParseRequirement("<2.0.0"),
		Criteria:    criteria.SafeToRun,
		Who:         "alice",
	}))
	require.NoError(t, ix.AddViolation("foo", Violation{
		Requirement: semver.MustParseRequirement("<2.0.0"),
		Criteria:    criteria.SafeToDeploy,
		Who:         "bob",
	}))

	matches := ix.MatchingViolations("foo", semver.MustParse("1.0.0"))
	require.Len(t, matches, 2)
}

func TestUnusedUnauditedReportsEntriesNeverMarkedUsed(t *testing.T) {
	ix := NewIndex(testLattice(t))
	require.NoError(t, ix.AddUnaudited("foo", UnauditedEntry{
		Version:  semver.MustParse("1.0.0"),
		Criteria: criteria.SafeToRun,
	}))
	require.NoError(t, ix.AddUnaudited("foo", UnauditedEntry{
		Version:  semver.MustParse("2.0.0"),
		Criteria: criteria.SafeToRun,
	}))
	ix.MarkEntryUsed("unaudited", "foo", 0)

	warnings := ix.UnusedUnaudited()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "2.0.0")
}

func TestAddImportedRemapsDependencyCriteriaKeys(t *testing.T) {
	l, err := criteria.NewLattice(criteria.Table{"internal-reviewed": criteria.Def{}})
	require.NoError(t, err)
	ix := NewIndex(l)

	err = ix.AddImported("upstream-source", "foo", RawEntries{
		Full: []FullAudit{{
			Version:            semver.MustParse("1.0.0"),
			Criteria:           "internal-reviewed",
			DependencyOverride: DependencyCriteria{"upstream-name": {"internal-reviewed"}},
		}},
	}, map[string]string{"upstream-name": "local-name"})
	require.NoError(t, err)

	full := ix.FullAudits("foo")
	require.Len(t, full, 1)
	_, hasOld := full[0].DependencyOverride["upstream-name"]
	_, hasNew := full[0].DependencyOverride["local-name"]
	assert.False(t, hasOld)
	assert.True(t, hasNew)
}

func TestUnusedImportSourcesReportsContributionlessSources(t *testing.T) {
	ix := NewIndex(testLattice(t))
	require.NoError(t, ix.AddImported("stale-source", "foo", RawEntries{
		Full: []FullAudit{{Version: semver.MustParse("1.0.0"), Criteria: criteria.SafeToRun}},
	}, nil))
	require.NoError(t, ix.AddImported("live-source", "bar", RawEntries{
		Full: []FullAudit{{Version: semver.MustParse("1.0.0"), Criteria: criteria.SafeToRun}},
	}, nil))
	ix.MarkEntryUsed("full", "bar", 0)

	warnings := ix.UnusedImportSources()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0].Message, "stale-source")
}

func TestDeltaAuditIsNoop(t *testing.T) {
	v := semver.MustParse("1.0.0")
	d := DeltaAudit{From: v, To: v}
	assert.True(t, d.IsNoop())

	d2 := DeltaAudit{From: v, To: semver.MustParse("2.0.0")}
	assert.False(t, d2.IsNoop())
}
