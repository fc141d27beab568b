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

// Package resolver implements the audit resolver: the engine that decides,
// for a resolved dependency graph, whether every third-party package
// reaches the criteria level its first-party consumers demand.
//
// The algorithm runs in two passes over the graph's reverse-topological
// order. The first pass computes each third-party package's achieved
// criteria set bottom-up, since it depends only on the achieved sets of
// that package's own dependencies. The second pass computes each
// package's required criteria set top-down, in the reverse order, since a
// package's demand on its dependencies flows from its consumers. Because
// the resolved graph is acyclic, a single pass in each direction is
// sufficient.
package resolver

import (
	"fmt"
	"sort"

	"deps.dev/vet/audit"
	"deps.dev/vet/criteria"
	"deps.dev/vet/depgraph"
	"deps.dev/vet/policy"
	"deps.dev/vet/report"
	"deps.dev/vet/semver"
)

// Options tunes optional resolver behaviour.
type Options struct {
	// IncludeBuildAndDev, when true, propagates a consuming first-party
	// package's BuildAndDevCriteria demand along Build and Dev edges, in
	// addition to the always-active Normal-edge demand. It defaults to
	// false: build/dev extensions live behind this flag.
	IncludeBuildAndDev bool
}

// Resolver runs the audit resolution algorithm over a fixed set of inputs.
// Resolve leaves Graph, Lattice and Policy unchanged, but it records entry
// usage marks in Index (for the unused-entry warnings), and those marks
// persist across calls. Resolvers that share an Index must therefore not
// run concurrently; Resolvers with distinct inputs may.
type Resolver struct {
	Graph   *depgraph.Graph
	Lattice *criteria.Lattice
	Index   *audit.Index
	Policy  *policy.Table
	Options Options
}

// nodeState accumulates the per-node working data threaded between the two
// passes of Resolve.
type nodeState struct {
	achieved criteria.Set
	// witnessReq[c] is the dependency requirement declared by whichever
	// audit-graph edge first proved criterion c, for third-party nodes.
	witnessReq map[string]audit.DependencyCriteria
	// optimisticReq[c] is the dependency requirement declared by the edge
	// that would prove criterion c assuming every dependency already met
	// whatever it's asked for, regardless of whether that is actually
	// true. It is computed unpruned so that a demand blocked only by an
	// unmet dependency (not by a total absence of evidence on this node)
	// still has a requirement to propagate further down the graph.
	optimisticReq map[string]audit.DependencyCriteria
	// usedEntries[c] lists the audit entries that contributed to proving
	// criterion c, for usage accounting.
	usedEntries map[string][]entryRef
	// reachedVers[c] lists every version reached while searching for c,
	// whether or not the target version itself was among them. It is the
	// candidate anchor set for suggestion generation.
	reachedVers map[string][]semver.Version

	self     criteria.Set // first-party nodes only
	required criteria.Set // third-party nodes only
}

// Resolve runs the resolver and returns the structured report.
func (r *Resolver) Resolve() (*report.Report, error) {
	leafFirst, err := r.Graph.ReverseTopological()
	if err != nil {
		return nil, fmt.Errorf("resolver: %w", err)
	}

	states := make([]nodeState, len(r.Graph.Nodes))
	graphCache := map[string]*auditGraph{}

	// Pass 1: achieved sets, dependencies before dependents.
	for _, id := range leafFirst {
		node := r.Graph.Nodes[id]
		if node.IsFirstParty {
			continue
		}
		ag := graphCache[node.Package.Name]
		if ag == nil {
			ag = buildAuditGraph(node.Package.Name, r.Index)
			graphCache[node.Package.Name] = ag
		}
		states[id] = r.computeAchieved(id, node, ag, states)
	}

	// Pass 2: required sets and first-party self-criteria, consumers
	// before their dependencies (the reverse of pass 1's order).
	rootFirst := make([]depgraph.NodeID, len(leafFirst))
	for i, id := range leafFirst {
		rootFirst[len(leafFirst)-1-i] = id
	}
	for _, id := range rootFirst {
		r.computeRequiredAndPropagate(id, states)
	}

	rep := r.buildReport(leafFirst, states)
	rep.Warnings = append(rep.Warnings, r.unknownDependencyOverrideWarnings()...)
	return rep, nil
}

// unknownDependencyOverrideWarnings checks every full and delta audit
// entry's DependencyOverride against the actual dependency names its
// package has in the graph, and warns about any key that names a
// dependency the package does not have. Such a key is a structural error
// (spec class 2): the override for it is treated as if it were absent,
// which the lookups in computeAchieved and computeRequiredAndPropagate
// already do implicitly by falling back to the searched criterion itself
// when a name isn't present in the map.
func (r *Resolver) unknownDependencyOverrideWarnings() []report.Warning {
	depNames := map[string]map[string]bool{}
	for _, n := range r.Graph.Nodes {
		if !n.IsFirstParty {
			if depNames[n.Package.Name] == nil {
				depNames[n.Package.Name] = map[string]bool{}
			}
		}
	}
	for _, e := range r.Graph.Edges {
		from := r.Graph.Nodes[e.From]
		if from.IsFirstParty {
			continue
		}
		depNames[from.Package.Name][r.Graph.Nodes[e.To].Package.Name] = true
	}

	var warnings []report.Warning
	seen := map[[2]string]bool{}
	check := func(name string, dc audit.DependencyCriteria) {
		for dep := range dc {
			if depNames[name][dep] {
				continue
			}
			key := [2]string{name, dep}
			if seen[key] {
				continue
			}
			seen[key] = true
			warnings = append(warnings, report.Warning{
				Kind:    report.WarnUnknownDependencyOverride,
				Package: name,
				Message: fmt.Sprintf("dependency-criteria override names %q, which %s does not depend on in this graph; treated as absent", dep, name),
			})
		}
	}
	for name := range depNames {
		for _, a := range r.Index.FullAudits(name) {
			check(name, a.DependencyOverride)
		}
		for _, d := range r.Index.DeltaAudits(name) {
			check(name, d.DependencyOverride)
		}
	}

	sort.SliceStable(warnings, func(i, j int) bool {
		if warnings[i].Package != warnings[j].Package {
			return warnings[i].Package < warnings[j].Package
		}
		return warnings[i].Message < warnings[j].Message
	})
	return warnings
}

func (r *Resolver) computeAchieved(id depgraph.NodeID, node depgraph.Node, ag *auditGraph, states []nodeState) nodeState {
	st := nodeState{
		achieved:      criteria.Set{},
		witnessReq:    map[string]audit.DependencyCriteria{},
		optimisticReq: map[string]audit.DependencyCriteria{},
		usedEntries:   map[string][]entryRef{},
		reachedVers:   map[string][]semver.Version{},
	}

	deps := r.Graph.Dependencies(id)
	// masked blocks an edge outright if a violation covers any criterion
	// the edge would grant: granting one member of an implication-closed
	// effective set grants all of it, so a violation on any member makes
	// the whole edge unusable, not just queries for the violated name
	// itself.
	masked := func(name string) func(semver.Version, criteria.Set) bool {
		return func(v semver.Version, effective criteria.Set) bool {
			return !r.Index.ViolationsMasking(name, v).Intersect(effective).IsEmpty()
		}
	}
	usable := func(c string) func(audit.DependencyCriteria) bool {
		return func(override audit.DependencyCriteria) bool {
			for _, e := range deps {
				depNode := r.Graph.Nodes[e.To]
				if depNode.IsFirstParty {
					continue
				}
				names := override[depNode.Package.Name]
				if len(names) == 0 {
					names = []string{c}
				}
				need := r.Lattice.ExpandAll(names)
				if !states[e.To].achieved.ContainsAll(need) {
					return false
				}
			}
			return true
		}
	}

	m := masked(node.Package.Name)
	for _, c := range r.Lattice.Names() {
		res := ag.search(c, r.Lattice, node.Package.Version, m, usable(c))
		st.reachedVers[c] = res.reachedVers
		if res.reached {
			st.achieved = st.achieved.Union(r.Lattice.Expand(c))
			st.witnessReq[c] = res.requirement
			st.usedEntries[c] = res.usedEntries
		}

		optimistic := ag.search(c, r.Lattice, node.Package.Version, m, nil)
		if optimistic.reached {
			st.optimisticReq[c] = optimistic.requirement
		}
	}
	return st
}

func (r *Resolver) computeRequiredAndPropagate(id depgraph.NodeID, states []nodeState) {
	node := r.Graph.Nodes[id]
	st := &states[id]

	if node.IsFirstParty {
		entry, hasEntry := r.Policy.Lookup(node.Package.Name)
		switch {
		case hasEntry && len(entry.SelfCriteria) > 0:
			st.self = r.Lattice.ExpandAll(entry.SelfCriteria)
		case node.IsRoot:
			st.self = r.Lattice.Expand(r.Policy.DefaultCriteria)
		default:
			// Inherited from parents' demand, already accumulated in
			// st.required by the time we reach this node (consumers are
			// processed before their dependencies in this pass).
			st.self = st.required
		}

		for _, e := range r.Graph.Dependencies(id) {
			var demand criteria.Set
			if e.Kind == depgraph.Normal {
				demand = demandForDependency(r.Lattice, entry, hasEntry, st.self, r.Graph.Nodes[e.To].Package.Name)
			} else {
				if !r.Options.IncludeBuildAndDev {
					continue
				}
				if !hasEntry || len(entry.BuildAndDevCriteria) == 0 {
					continue
				}
				demand = r.Lattice.ExpandAll(entry.BuildAndDevCriteria)
			}
			r.propagate(e.To, demand, states)
		}
		return
	}

	// Third-party node: st.required was accumulated by earlier
	// (consumer-side) iterations of this same pass. Propagate onward to
	// this node's own dependencies for every criterion required of this
	// node that has *some* witness — achieved or merely optimistic — since
	// an optimistic-only witness means the demand is blocked further down
	// the graph, not absent here, and that blocking dependency must still
	// receive the demand to surface its own verdict correctly.
	for _, c := range r.Lattice.Names() {
		if !r.Lattice.Contains(st.required, c) {
			continue
		}
		override, ok := st.witnessReq[c]
		if ok {
			for _, ref := range st.usedEntries[c] {
				r.Index.MarkEntryUsed(ref.kind, node.Package.Name, ref.idx)
			}
		} else {
			override, ok = st.optimisticReq[c]
		}
		if !ok {
			continue
		}
		for _, e := range r.Graph.Dependencies(id) {
			names := override[r.Graph.Nodes[e.To].Package.Name]
			if len(names) == 0 {
				names = []string{c}
			}
			r.propagate(e.To, r.Lattice.ExpandAll(names), states)
		}
	}
}

// propagate records a demand arriving at a node. For both first- and
// third-party targets it accumulates into required: for a first-party
// target this is the raw material computeRequiredAndPropagate reads when
// it reaches that node in the same pass (required and self coincide for
// an inherited non-root), and for a third-party target it is R(p) itself.
func (r *Resolver) propagate(to depgraph.NodeID, demand criteria.Set, states []nodeState) {
	if demand.IsEmpty() {
		return
	}
	states[to].required = states[to].required.Union(demand)
}

// demandForDependency returns what a first-party package demands of one
// named Normal-edge dependency: the policy's per-dependency override if
// declared, otherwise the package's resolved self-criteria.
func demandForDependency(l *criteria.Lattice, entry policy.Entry, hasEntry bool, self criteria.Set, depName string) criteria.Set {
	if hasEntry {
		if override, ok := entry.DependencyCriteria[depName]; ok {
			return l.ExpandAll(override)
		}
	}
	return self
}
