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

package resolver

import (
	"deps.dev/vet/audit"
	"deps.dev/vet/criteria"
	"deps.dev/vet/semver"
)

// auditEdge is one edge of a package name's audit graph: a full audit or
// an unaudited entry from the virtual root ⊥, or a delta
// audit from one version to another.
type auditEdge struct {
	fromBottom bool
	from       semver.Version
	to         semver.Version
	effective  criteria.Set
	override   audit.DependencyCriteria

	// entryKind/entryIdx identify this edge's backing audit entry ("full",
	// "delta" or "unaudited", and its index in that name's slice), so a
	// successful traversal can mark it used.
	entryKind string
	entryIdx  int
}

// auditGraph is the audit graph for a single package name: every version
// mentioned by any audit entry or unaudited exemption for that name, and
// the edges connecting them.
type auditGraph struct {
	name  string
	edges []auditEdge
}

func buildAuditGraph(name string, ix *audit.Index) *auditGraph {
	g := &auditGraph{name: name}
	for i, a := range ix.FullAudits(name) {
		g.edges = append(g.edges, auditEdge{
			fromBottom: true,
			to:         a.Version,
			effective:  lookupEffective(ix, name, "full", a.Criteria),
			override:   a.DependencyOverride,
			entryKind:  "full",
			entryIdx:   i,
		})
	}
	for i, u := range ix.Unaudited(name) {
		g.edges = append(g.edges, auditEdge{
			fromBottom: true,
			to:         u.Version,
			effective:  lookupEffective(ix, name, "unaudited", u.Criteria),
			entryKind:  "unaudited",
			entryIdx:   i,
		})
	}
	for i, d := range ix.DeltaAudits(name) {
		g.edges = append(g.edges, auditEdge{
			from:      d.From,
			to:        d.To,
			effective: lookupEffective(ix, name, "delta", d.Criteria),
			override:  d.DependencyOverride,
			entryKind: "delta",
			entryIdx:  i,
		})
	}
	return g
}

// lookupEffective re-derives an entry's effective (implication-closed)
// criteria set. The Index computes this once at ingestion time; entries
// don't expose it directly, so the resolver recomputes it from the raw
// criterion name via the same Lattice, which is cheap (a single map
// lookup) and keeps auditEdge free of an audit-package-internal field.
func lookupEffective(ix *audit.Index, name, kind, criterionName string) criteria.Set {
	// The Index already validated the criterion name at ingestion; Expand
	// is safe to call directly here.
	return ix.Lattice().Expand(criterionName)
}

// entryRef identifies one audit entry that contributed an edge to a
// successful search.
type entryRef struct {
	kind string
	idx  int
}

// reachability holds, for a single (name, criterion) query, the result of
// searching the audit graph: whether the target version is reached, every
// version that was reached along the way (candidate suggestion anchors),
// and — if reached — the dependency requirement declared by the edge that
// first reached the target version.
type reachability struct {
	reached     bool
	reachedVers []semver.Version
	requirement audit.DependencyCriteria
	usedEntries []entryRef
}

// search runs the per-criterion reachability search for a single target
// version, given the masking function and a usability predicate (whether
// an edge's per-dependency requirements are currently met). A nil usable
// treats every edge as usable regardless of its dependency requirements:
// the optimistic search used to find what a node's dependencies would need
// to be demanded, independent of whether they currently meet that demand.
//
// masked receives an edge's full effective criteria set, not just the
// criterion being searched for: a violation against any criterion that
// edge would grant blocks the edge outright, since granting one member of
// an implication-closed set means granting all of it, including whichever
// member is under violation.
func (g *auditGraph) search(c string, lattice *criteria.Lattice, target semver.Version, masked func(semver.Version, criteria.Set) bool, usable func(audit.DependencyCriteria) bool) reachability {
	type visitedNode struct {
		seen bool
		via  *auditEdge
	}
	visited := map[string]*visitedNode{}
	key := func(v semver.Version) string { return v.String() }

	var queue []semver.Version
	var order []semver.Version
	var usedEntries []entryRef

	tryEdge := func(e *auditEdge) {
		if !lattice.Contains(e.effective, c) {
			return
		}
		if masked(e.to, e.effective) {
			return
		}
		if usable != nil && !usable(e.override) {
			return
		}
		k := key(e.to)
		if vn, ok := visited[k]; ok && vn.seen {
			return
		}
		visited[k] = &visitedNode{seen: true, via: e}
		queue = append(queue, e.to)
		order = append(order, e.to)
		usedEntries = append(usedEntries, entryRef{kind: e.entryKind, idx: e.entryIdx})
	}

	// Seed with every ⊥-rooted edge.
	for i := range g.edges {
		if g.edges[i].fromBottom {
			tryEdge(&g.edges[i])
		}
	}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i := range g.edges {
			e := &g.edges[i]
			if e.fromBottom || !e.from.Equal(cur) {
				continue
			}
			tryEdge(e)
		}
	}

	r := reachability{}
	if vn, ok := visited[key(target)]; ok && vn.seen {
		r.reached = true
		r.requirement = vn.via.override
		// Only the entries on the witness path from ⊥ to the target count
		// as used, not every entry the search happened to visit.
		for e := vn.via; e != nil; {
			r.usedEntries = append(r.usedEntries, entryRef{kind: e.entryKind, idx: e.entryIdx})
			if e.fromBottom {
				break
			}
			prev, ok := visited[key(e.from)]
			if !ok {
				break
			}
			e = prev.via
		}
	}
	r.reachedVers = order
	return r
}

