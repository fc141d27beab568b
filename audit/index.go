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
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"deps.dev/vet/criteria"
	"deps.dev/vet/report"
	"deps.dev/vet/semver"
)

// entryKind distinguishes which slice an entryKey indexes into.
type entryKind string

const (
	entryFull      entryKind = "full"
	entryDelta     entryKind = "delta"
	entryViolation entryKind = "violation"
	entryUnaudited entryKind = "unaudited"
)

// entryKey identifies a single audit entry for usage tracking, regardless
// of which of the four slices it lives in.
type entryKey struct {
	kind entryKind
	name string
	idx  int
}

// Index holds every audit entry and unaudited exemption, partitioned per
// package name.
type Index struct {
	lattice *criteria.Lattice

	full      map[string][]FullAudit
	delta     map[string][]DeltaAudit
	violation map[string][]Violation
	unaudited map[string][]UnauditedEntry

	used    map[entryKey]bool
	origin  map[entryKey]string // import source name, empty for local entries
	sources map[string]bool    // every import source name ever seen
}

// NewIndex returns an empty Index bound to the given Lattice. The Lattice
// is used to compute each entry's implication-closed effective criteria
// set at ingestion time.
func NewIndex(l *criteria.Lattice) *Index {
	return &Index{
		lattice:   l,
		full:      map[string][]FullAudit{},
		delta:     map[string][]DeltaAudit{},
		violation: map[string][]Violation{},
		unaudited: map[string][]UnauditedEntry{},
		used:      map[entryKey]bool{},
		origin:    map[entryKey]string{},
		sources:   map[string]bool{},
	}
}

// AddFull ingests a full audit for the named package. It returns a
// configuration error if the entry's criterion is unknown to the lattice.
func (ix *Index) AddFull(name string, a FullAudit) error {
	return ix.addFull(name, a, "")
}

func (ix *Index) addFull(name string, a FullAudit, origin string) error {
	if !ix.lattice.Has(a.Criteria) {
		return fmt.Errorf("audit: package %q: unknown criterion %q", name, a.Criteria)
	}
	a.effective = ix.lattice.Expand(a.Criteria)
	idx := len(ix.full[name])
	ix.full[name] = append(ix.full[name], a)
	ix.recordOrigin(entryFull, name, idx, origin)
	return nil
}

// AddDelta ingests a delta audit for the named package.
func (ix *Index) AddDelta(name string, d DeltaAudit) error {
	return ix.addDelta(name, d, "")
}

func (ix *Index) addDelta(name string, d DeltaAudit, origin string) error {
	if !ix.lattice.Has(d.Criteria) {
		return fmt.Errorf("audit: package %q: unknown criterion %q", name, d.Criteria)
	}
	d.effective = ix.lattice.Expand(d.Criteria)
	idx := len(ix.delta[name])
	ix.delta[name] = append(ix.delta[name], d)
	ix.recordOrigin(entryDelta, name, idx, origin)
	return nil
}

// AddViolation ingests a violation for the named package.
func (ix *Index) AddViolation(name string, v Violation) error {
	return ix.addViolation(name, v, "")
}

func (ix *Index) addViolation(name string, v Violation, origin string) error {
	if !ix.lattice.Has(v.Criteria) {
		return fmt.Errorf("audit: package %q: unknown criterion %q", name, v.Criteria)
	}
	v.effective = ix.lattice.Expand(v.Criteria)
	idx := len(ix.violation[name])
	ix.violation[name] = append(ix.violation[name], v)
	ix.recordOrigin(entryViolation, name, idx, origin)
	return nil
}

// AddUnaudited ingests an unaudited exemption for the named third-party
// package. Unaudited entries attach to third-party names only; that
// invariant is enforced by the caller, which knows which names are
// first-party.
func (ix *Index) AddUnaudited(name string, u UnauditedEntry) error {
	if !ix.lattice.Has(u.Criteria) {
		return fmt.Errorf("audit: package %q: unknown criterion %q", name, u.Criteria)
	}
	u.effective = ix.lattice.Expand(u.Criteria)
	ix.unaudited[name] = append(ix.unaudited[name], u)
	return nil
}

func (ix *Index) recordOrigin(kind entryKind, name string, idx int, origin string) {
	if origin == "" {
		return
	}
	ix.origin[entryKey{kind: kind, name: name, idx: idx}] = origin
	ix.sources[origin] = true
}

// AddImported ingests entries arriving from a named foreign import source,
// applying that source's dependency-criteria-remap translation table to
// each entry's DependencyOverride keys before indexing. Imported
// entries are otherwise indistinguishable from local ones except that
// their usage counts toward sourceName's UnusedImportSources accounting.
func (ix *Index) AddImported(sourceName, name string, entries RawEntries, remap map[string]string) error {
	ix.sources[sourceName] = true
	var errs error
	for _, f := range entries.Full {
		f.DependencyOverride = remapKeys(f.DependencyOverride, remap)
		if err := ix.addFull(name, f, sourceName); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, d := range entries.Delta {
		d.DependencyOverride = remapKeys(d.DependencyOverride, remap)
		if err := ix.addDelta(name, d, sourceName); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	for _, v := range entries.Violation {
		if err := ix.addViolation(name, v, sourceName); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	return errs
}

func remapKeys(dc DependencyCriteria, remap map[string]string) DependencyCriteria {
	if len(remap) == 0 || len(dc) == 0 {
		return dc
	}
	out := make(DependencyCriteria, len(dc))
	for k, v := range dc {
		if nk, ok := remap[k]; ok {
			k = nk
		}
		out[k] = v
	}
	return out
}

// RawEntries groups the three audit-entry shapes as they arrive for a
// single package name, mirroring the on-disk audit file's layout.
type RawEntries struct {
	Full      []FullAudit
	Delta     []DeltaAudit
	Violation []Violation
}

// Lattice returns the Lattice the Index was built with.
func (ix *Index) Lattice() *criteria.Lattice { return ix.lattice }

// FullAudits returns the full audits recorded for name, in the order they
// were ingested.
func (ix *Index) FullAudits(name string) []FullAudit { return ix.full[name] }

// DeltaAudits returns the delta audits recorded for name.
func (ix *Index) DeltaAudits(name string) []DeltaAudit { return ix.delta[name] }

// Violations returns the violations recorded for name.
func (ix *Index) Violations(name string) []Violation { return ix.violation[name] }

// Unaudited returns the unaudited exemptions recorded for name.
func (ix *Index) Unaudited(name string) []UnauditedEntry { return ix.unaudited[name] }

// ViolationsMasking returns the union of criteria for which v is masked by
// a recorded violation: the set of criteria c such that some violation for
// this name matches v and has c in its effective criteria. Every matching
// violation is marked used, since it was consulted while determining a
// verdict regardless of outcome.
func (ix *Index) ViolationsMasking(name string, v semver.Version) criteria.Set {
	var s criteria.Set
	for i, viol := range ix.violation[name] {
		if viol.Matches(v) {
			s = s.Union(viol.effective)
			ix.used[entryKey{kind: entryViolation, name: name, idx: i}] = true
		}
	}
	return s
}

// MatchingViolations returns every violation for name that masks v,
// regardless of criterion, for use in diagnosing a FAIL-VIOLATION verdict.
func (ix *Index) MatchingViolations(name string, v semver.Version) []Violation {
	var out []Violation
	for i, viol := range ix.violation[name] {
		if viol.Matches(v) {
			out = append(out, viol)
			ix.used[entryKey{kind: entryViolation, name: name, idx: i}] = true
		}
	}
	return out
}

// MarkEntryUsed records that the full, delta or unaudited entry at the
// given index (as returned by FullAudits/DeltaAudits/Unaudited) contributed
// to a package's achieved set, so it is not reported as unused.
func (ix *Index) MarkEntryUsed(kind, name string, idx int) {
	ix.used[entryKey{kind: entryKind(kind), name: name, idx: idx}] = true
}

// UnusedUnaudited returns a warning for every unaudited entry that never
// contributed to any package's verdict.
func (ix *Index) UnusedUnaudited() []report.Warning {
	var names []string
	for name := range ix.unaudited {
		names = append(names, name)
	}
	sort.Strings(names)

	var warnings []report.Warning
	for _, name := range names {
		for i, u := range ix.unaudited[name] {
			if ix.used[entryKey{kind: entryUnaudited, name: name, idx: i}] {
				continue
			}
			warnings = append(warnings, report.Warning{
				Kind:    report.WarnUnusedUnaudited,
				Package: name,
				Message: fmt.Sprintf("unaudited entry for %s@%s (%s) was not needed by any verdict", name, u.Version, u.Criteria),
			})
		}
	}
	return warnings
}

// UnusedImportSources returns a warning for every import source whose
// entries never contributed to any package's verdict.
func (ix *Index) UnusedImportSources() []report.Warning {
	var sources []string
	for s := range ix.sources {
		sources = append(sources, s)
	}
	sort.Strings(sources)

	usedSource := make(map[string]bool, len(ix.sources))
	for key := range ix.used {
		if origin, ok := ix.origin[key]; ok {
			usedSource[origin] = true
		}
	}

	var warnings []report.Warning
	for _, s := range sources {
		if usedSource[s] {
			continue
		}
		warnings = append(warnings, report.Warning{
			Kind:    report.WarnUnusedImport,
			Message: fmt.Sprintf("import source %q contributed no entry used by any verdict", s),
		})
	}
	return warnings
}
