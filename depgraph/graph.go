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

// Package depgraph models the resolved dependency graph the resolver
// operates on: a DAG of concrete (name, version) packages, each flagged
// first-party or third-party, connected by typed dependency edges.
//
// It is adapted from deps.dev/util/resolve's Graph/Node/Edge model, trimmed
// to a single implicit packaging system (this domain's PackageID carries no
// ecosystem tag) and given a genuine reverse-topological traversal, since
// the resolver (unlike an installer) needs dependencies finalised strictly
// before their dependents rather than a creator-tree walk.
package depgraph

import (
	"fmt"
	"sort"

	"deps.dev/vet/semver"
)

// PackageID identifies a resolved package: a name and a concrete version.
// A resolved graph may contain multiple versions of the same name.
type PackageID struct {
	Name    string
	Version semver.Version
}

func (p PackageID) String() string {
	return fmt.Sprintf("%s@%s", p.Name, p.Version)
}

// Kind indicates the kind of a dependency edge. The resolver treats every
// Kind as a dependency for reachability purposes; Build and Dev edges are
// additionally tracked as a separate policy channel.
type Kind byte

const (
	// Normal is an ordinary runtime dependency.
	Normal Kind = iota
	// Build is a dependency needed only to build the package.
	Build
	// Dev is a dependency needed only to develop or test the package.
	Dev
)

func (k Kind) String() string {
	switch k {
	case Build:
		return "build"
	case Dev:
		return "dev"
	default:
		return "normal"
	}
}

// IsExtension reports whether the edge kind is one of the build/dev
// extensions that live behind the build-and-dev policy channel, rather
// than the default normal-dependency channel.
func (k Kind) IsExtension() bool { return k == Build || k == Dev }

// NodeID identifies a node in a Graph: an index into Graph.Nodes.
type NodeID int

// Node is one resolved package in the graph.
type Node struct {
	Package      PackageID
	IsRoot       bool
	IsFirstParty bool
}

// IsThirdParty reports whether the node is a registry (non-first-party)
// package.
func (n Node) IsThirdParty() bool { return !n.IsFirstParty }

// Edge is a dependency relationship from an importer node to an imported
// node of the given Kind.
type Edge struct {
	From NodeID
	To   NodeID
	Kind Kind
}

// Graph is a resolved dependency graph: a DAG over PackageIDs, annotated
// with first/third-party flags and edge kinds.
type Graph struct {
	Nodes []Node
	Edges []Edge

	byPackage map[PackageID]NodeID
	out       [][]Edge // adjacency, From -> edges
	in        [][]Edge // adjacency, To -> edges
}

// NewGraph returns an empty Graph ready for AddNode/AddEdge.
func NewGraph() *Graph {
	return &Graph{byPackage: make(map[PackageID]NodeID)}
}

// AddNode inserts a node into the graph. It is an error to add the same
// PackageID twice.
func (g *Graph) AddNode(n Node) (NodeID, error) {
	if _, ok := g.byPackage[n.Package]; ok {
		return 0, fmt.Errorf("depgraph: duplicate package in graph: %v", n.Package)
	}
	id := NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, n)
	g.byPackage[n.Package] = id
	g.out = append(g.out, nil)
	g.in = append(g.in, nil)
	return id, nil
}

// AddEdge inserts a dependency edge between two nodes already present in
// the graph.
func (g *Graph) AddEdge(from, to NodeID, kind Kind) error {
	if !g.contains(from) {
		return fmt.Errorf("depgraph: node not in graph: %v", from)
	}
	if !g.contains(to) {
		return fmt.Errorf("depgraph: node not in graph: %v", to)
	}
	e := Edge{From: from, To: to, Kind: kind}
	g.Edges = append(g.Edges, e)
	g.out[from] = append(g.out[from], e)
	g.in[to] = append(g.in[to], e)
	return nil
}

func (g *Graph) contains(n NodeID) bool { return n >= 0 && int(n) < len(g.Nodes) }

// NodeByPackage looks up the NodeID for an exact PackageID, if present.
func (g *Graph) NodeByPackage(p PackageID) (NodeID, bool) {
	id, ok := g.byPackage[p]
	return id, ok
}

// NodesByName returns every node in the graph whose package has the given
// name, regardless of version.
func (g *Graph) NodesByName(name string) []NodeID {
	var out []NodeID
	for i, n := range g.Nodes {
		if n.Package.Name == name {
			out = append(out, NodeID(i))
		}
	}
	return out
}

// Dependencies returns the edges leaving n, in deterministic order (sorted
// by destination package name then version).
func (g *Graph) Dependencies(n NodeID) []Edge {
	edges := append([]Edge(nil), g.out[n]...)
	g.sortEdges(edges)
	return edges
}

// Dependents returns the edges arriving at n, in deterministic order.
func (g *Graph) Dependents(n NodeID) []Edge {
	edges := append([]Edge(nil), g.in[n]...)
	g.sortEdges(edges)
	return edges
}

func (g *Graph) sortEdges(edges []Edge) {
	sort.Slice(edges, func(i, j int) bool {
		pi, pj := g.Nodes[edges[i].To].Package, g.Nodes[edges[j].To].Package
		if pi.Name != pj.Name {
			return pi.Name < pj.Name
		}
		if c := pi.Version.Compare(pj.Version); c != 0 {
			return c < 0
		}
		return edges[i].Kind < edges[j].Kind
	})
}

// ReverseTopological returns the node IDs of the graph in reverse
// topological order: every node appears after all of its dependencies, so
// a consumer scanning the order left to right always has a dependency's
// result available before it needs to process that dependency's consumer.
// Resolved dependency graphs are acyclic by construction; if a
// cycle is nonetheless present this returns an error rather than an
// incomplete order.
func (g *Graph) ReverseTopological() ([]NodeID, error) {
	// remaining[n] counts n's not-yet-ordered dependencies. A node becomes
	// ready once every dependency it has is already in the order, i.e. it
	// is a leaf of what remains. This is Kahn's algorithm run from the
	// leaves upward, which is exactly "dependencies before dependents".
	remaining := make([]int, len(g.Nodes))
	for i := range g.Nodes {
		remaining[i] = len(g.out[i])
	}

	var ready []NodeID
	for i, r := range remaining {
		if r == 0 {
			ready = append(ready, NodeID(i))
		}
	}

	var order []NodeID
	for len(ready) > 0 {
		g.sortNodeIDs(ready) // deterministic tie-break
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)
		for _, e := range g.in[n] {
			remaining[e.From]--
			if remaining[e.From] == 0 {
				ready = append(ready, e.From)
			}
		}
	}

	if len(order) != len(g.Nodes) {
		return nil, fmt.Errorf("depgraph: cycle detected, only ordered %d of %d nodes", len(order), len(g.Nodes))
	}
	return order, nil
}

func (g *Graph) sortNodeIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := g.Nodes[ids[i]].Package, g.Nodes[ids[j]].Package
		if pi.Name != pj.Name {
			return pi.Name < pj.Name
		}
		return pi.Version.Compare(pj.Version) < 0
	})
}
