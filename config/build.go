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

package config

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"

	"deps.dev/vet/audit"
	"deps.dev/vet/criteria"
	"deps.dev/vet/depgraph"
	"deps.dev/vet/policy"
	"deps.dev/vet/semver"
)

// BuildGraph turns a decoded GraphFile into a depgraph.Graph.
func BuildGraph(f *GraphFile) (*depgraph.Graph, error) {
	g := depgraph.NewGraph()
	var errs error

	ids := make(map[string]depgraph.NodeID, len(f.Node))
	for _, n := range f.Node {
		v, err := semver.Parse(n.Version)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config: node %s: %w", n.Name, err))
			continue
		}
		id, err := g.AddNode(depgraph.Node{
			Package:      depgraph.PackageID{Name: n.Name, Version: v},
			IsRoot:       n.Root,
			IsFirstParty: n.FirstParty,
		})
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config: node %s@%s: %w", n.Name, n.Version, err))
			continue
		}
		ids[n.Name+"@"+n.Version] = id
	}
	if errs != nil {
		return nil, errs
	}

	addEdges := func(from depgraph.NodeID, refs []string, kind depgraph.Kind) {
		for _, ref := range refs {
			to, ok := ids[ref]
			if !ok {
				errs = multierror.Append(errs, fmt.Errorf("config: dependency %q not found among graph nodes", ref))
				continue
			}
			if err := g.AddEdge(from, to, kind); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	for _, n := range f.Node {
		from, ok := ids[n.Name+"@"+n.Version]
		if !ok {
			continue
		}
		addEdges(from, n.Normal, depgraph.Normal)
		addEdges(from, n.Build, depgraph.Build)
		addEdges(from, n.Dev, depgraph.Dev)
	}
	if errs != nil {
		return nil, errs
	}
	return g, nil
}

// BuildLattice turns a decoded CriteriaFile into a criteria.Lattice.
func BuildLattice(f *CriteriaFile) (*criteria.Lattice, error) {
	table := make(criteria.Table, len(f.Criteria))
	for name, def := range f.Criteria {
		table[name] = criteria.Def{Implies: def.Implies, Description: def.Description}
	}
	return criteria.NewLattice(table)
}

// BuildIndex turns a decoded AuditsFile, a ConfigFile's unaudited section,
// and zero or more imported audit sets into an audit.Index. firstParty
// identifies which package names are first-party, so unaudited entries
// naming one can be rejected per the invariant that exemptions attach to
// third-party packages only.
func BuildIndex(lattice *criteria.Lattice, audits *AuditsFile, cfg *ConfigFile, firstParty map[string]bool, imports map[string]*ImportsFile) (*audit.Index, error) {
	ix := audit.NewIndex(lattice)
	var errs error

	names := sortedKeys(audits.Audits)
	for _, name := range names {
		pa := audits.Audits[name]
		for _, a := range pa.Full {
			v, err := semver.Parse(a.Version)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("config: %s: full audit: %w", name, err))
				continue
			}
			if err := ix.AddFull(name, audit.FullAudit{
				Version:            v,
				Criteria:           a.Criteria,
				DependencyOverride: audit.DependencyCriteria(a.DependencyCriteria),
				Who:                a.Who,
				Notes:              a.Notes,
			}); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		for _, d := range pa.Delta {
			from, err := semver.Parse(d.From)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("config: %s: delta audit: %w", name, err))
				continue
			}
			to, err := semver.Parse(d.To)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("config: %s: delta audit: %w", name, err))
				continue
			}
			if err := ix.AddDelta(name, audit.DeltaAudit{
				From:               from,
				To:                 to,
				Criteria:           d.Criteria,
				DependencyOverride: audit.DependencyCriteria(d.DependencyCriteria),
				Who:                d.Who,
				Notes:              d.Notes,
			}); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
		for _, v := range pa.Violation {
			req, err := semver.ParseRequirement(v.Requirement)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("config: %s: violation: %w", name, err))
				continue
			}
			if err := ix.AddViolation(name, audit.Violation{
				Requirement: req,
				Criteria:    v.Criteria,
				Who:         v.Who,
				Notes:       v.Notes,
			}); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	for _, name := range sortedKeys(cfg.Unaudited) {
		if firstParty[name] {
			errs = multierror.Append(errs, fmt.Errorf("config: %s: unaudited entries may not name a first-party package", name))
			continue
		}
		for _, u := range cfg.Unaudited[name] {
			v, err := semver.Parse(u.Version)
			if err != nil {
				errs = multierror.Append(errs, fmt.Errorf("config: %s: unaudited entry: %w", name, err))
				continue
			}
			if err := ix.AddUnaudited(name, audit.UnauditedEntry{
				Version:  v,
				Criteria: u.Criteria,
				Suggest:  u.Suggest,
				Notes:    u.Notes,
			}); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	for _, sourceName := range sortedKeys(imports) {
		src, ok := cfg.Imports[sourceName]
		if !ok {
			errs = multierror.Append(errs, fmt.Errorf("config: imported audit set %q has no matching [imports.%s] entry", sourceName, sourceName))
			continue
		}
		imported := imports[sourceName]
		for _, name := range sortedKeys(imported.Audits) {
			pa := imported.Audits[name]
			raw, err := toRawEntries(name, pa)
			if err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
			if err := ix.AddImported(sourceName, name, raw, src.CriteriaMap); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}

	return ix, errs
}

func toRawEntries(name string, pa PackageAudits) (audit.RawEntries, error) {
	var out audit.RawEntries
	var errs error
	for _, a := range pa.Full {
		v, err := semver.Parse(a.Version)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config: %s: imported full audit: %w", name, err))
			continue
		}
		out.Full = append(out.Full, audit.FullAudit{
			Version:            v,
			Criteria:           a.Criteria,
			DependencyOverride: audit.DependencyCriteria(a.DependencyCriteria),
			Who:                a.Who,
			Notes:              a.Notes,
		})
	}
	for _, d := range pa.Delta {
		from, err1 := semver.Parse(d.From)
		to, err2 := semver.Parse(d.To)
		if err1 != nil || err2 != nil {
			errs = multierror.Append(errs, fmt.Errorf("config: %s: imported delta audit: invalid version", name))
			continue
		}
		out.Delta = append(out.Delta, audit.DeltaAudit{
			From:               from,
			To:                 to,
			Criteria:           d.Criteria,
			DependencyOverride: audit.DependencyCriteria(d.DependencyCriteria),
			Who:                d.Who,
			Notes:              d.Notes,
		})
	}
	for _, v := range pa.Violation {
		req, err := semver.ParseRequirement(v.Requirement)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config: %s: imported violation: %w", name, err))
			continue
		}
		out.Violation = append(out.Violation, audit.Violation{
			Requirement: req,
			Criteria:    v.Criteria,
			Who:         v.Who,
			Notes:       v.Notes,
		})
	}
	return out, errs
}

// BuildPolicy turns a decoded ConfigFile's policy section into a
// policy.Table.
func BuildPolicy(cfg *ConfigFile) *policy.Table {
	t := policy.NewTable(cfg.DefaultCriteria)
	for name, e := range cfg.Policy {
		t.Entries[name] = policy.Entry{
			SelfCriteria:        e.Criteria,
			BuildAndDevCriteria: e.BuildAndDevCriteria,
			DependencyCriteria:  e.DependencyCriteria,
			Targets:             e.Targets,
		}
	}
	return t
}

func sortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
