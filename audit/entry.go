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

// Package audit ingests recorded audit evidence — full audits, delta
// audits, violations, and unaudited exemptions — and indexes it per package
// name for the resolver's reachability search.
package audit

import (
	"deps.dev/vet/criteria"
	"deps.dev/vet/semver"
)

// DependencyCriteria overrides, for a single audit entry, what criteria a
// named dependency must meet for that entry to be usable. Keys are
// dependency package names.
type DependencyCriteria map[string][]string

// FullAudit asserts that a package at an exact version meets Criteria,
// assuming its dependencies meet DependencyOverride (or the default, the
// same criterion, when a dependency has no override).
type FullAudit struct {
	Version            semver.Version
	Criteria           string
	DependencyOverride DependencyCriteria
	Who                string
	Notes              string

	effective criteria.Set
}

// DeltaAudit asserts that moving from From to To preserves Criteria, under
// the same dependency-override rules as FullAudit.
type DeltaAudit struct {
	From, To           semver.Version
	Criteria           string
	DependencyOverride DependencyCriteria
	Who                string
	Notes              string

	effective criteria.Set
}

// IsNoop reports whether the delta is a version moved to itself: legal by
// construction, vacuous, and not warned about.
func (d DeltaAudit) IsNoop() bool { return d.From.Equal(d.To) }

// Violation asserts that any version matching Requirement fails Criteria,
// masking it regardless of any positive evidence.
type Violation struct {
	Requirement semver.Requirement
	Criteria    string
	Who         string
	Notes       string

	effective criteria.Set
}

// Matches reports whether v falls within the violation's requirement.
func (v Violation) Matches(ver semver.Version) bool { return v.Requirement.Matches(ver) }

// UnauditedEntry is an exemption: the package at Version is assumed to meet
// Criteria without audit evidence. Suggest hints whether the tool should
// suggest upgrading the exemption away.
type UnauditedEntry struct {
	Version  semver.Version
	Criteria string
	Suggest  bool
	Notes    string

	effective criteria.Set
}
