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

package depgraph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"deps.dev/vet/semver"
)

func node(name, version string, firstParty, root bool) Node {
	return Node{
		Package:      PackageID{Name: name, Version: semver.MustParse(version)},
		IsFirstParty: firstParty,
		IsRoot:       root,
	}
}

// buildDiamond constructs:
//
//	root -> mid -> leaf
//	root -> leaf
func buildDiamond(t *testing.T) (*Graph, NodeID, NodeID, NodeID) {
	t.Helper()
	g := NewGraph()
	root, err := g.AddNode(node("root", "1.0.0", true, true))
	require.NoError(t, err)
	mid, err := g.AddNode(node("mid", "1.0.0", false, false))
	require.NoError(t, err)
	leaf, err := g.AddNode(node("leaf", "1.0.0", false, false))
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(root, mid, Normal))
	require.NoError(t, g.AddEdge(mid, leaf, Normal))
	require.NoError(t, g.AddEdge(root, leaf, Normal))
	return g, root, mid, leaf
}

func TestAddNodeDuplicateIsError(t *testing.T) {
	g := NewGraph()
	_, err := g.AddNode(node("a", "1.0.0", false, false))
	require.NoError(t, err)
	_, err = g.AddNode(node("a", "1.0.0", false, false))
	require.Error(t, err)
}

func TestAddEdgeUnknownNodeIsError(t *testing.T) {
	g := NewGraph()
	a, err := g.AddNode(node("a", "1.0.0", false, false))
	require.NoError(t, err)
	require.Error(t, g.AddEdge(a, NodeID(99), Normal))
	require.Error(t, g.AddEdge(NodeID(99), a, Normal))
}

func TestReverseTopologicalOrdersDependenciesFirst(t *testing.T) {
	g, root, mid, leaf := buildDiamond(t)
	order, err := g.ReverseTopological()
	require.NoError(t, err)
	require.Len(t, order, 3)

	pos := make(map[NodeID]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	if pos[leaf] > pos[mid] || pos[mid] > pos[root] {
		t.Fatalf("expected leaf before mid before root, got order %v (leaf=%d mid=%d root=%d)", order, pos[leaf], pos[mid], pos[root])
	}
}

func TestReverseTopologicalDeterministic(t *testing.T) {
	g, _, _, _ := buildDiamond(t)
	a, err := g.ReverseTopological()
	require.NoError(t, err)
	b, err := g.ReverseTopological()
	require.NoError(t, err)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("ReverseTopological not deterministic (-first +second):\n%s", diff)
	}
}

func TestReverseTopologicalCycleIsError(t *testing.T) {
	g := NewGraph()
	a, err := g.AddNode(node("a", "1.0.0", false, false))
	require.NoError(t, err)
	b, err := g.AddNode(node("b", "1.0.0", false, false))
	require.NoError(t, err)
	require.NoError(t, g.AddEdge(a, b, Normal))
	require.NoError(t, g.AddEdge(b, a, Normal))

	_, err = g.ReverseTopological()
	require.Error(t, err)
}

func TestDependenciesSortedDeterministically(t *testing.T) {
	g := NewGraph()
	root, err := g.AddNode(node("root", "1.0.0", true, true))
	require.NoError(t, err)
	z, err := g.AddNode(node("zeta", "1.0.0", false, false))
	require.NoError(t, err)
	a, err := g.AddNode(node("alpha", "1.0.0", false, false))
	require.NoError(t, err)

	require.NoError(t, g.AddEdge(root, z, Normal))
	require.NoError(t, g.AddEdge(root, a, Normal))

	deps := g.Dependencies(root)
	require.Len(t, deps, 2)
	if g.Nodes[deps[0].To].Package.Name != "alpha" {
		t.Fatalf("expected alpha before zeta, got %v", deps)
	}
}

func TestNodesByName(t *testing.T) {
	g := NewGraph()
	v1, err := g.AddNode(node("foo", "1.0.0", false, false))
	require.NoError(t, err)
	v2, err := g.AddNode(node("foo", "2.0.0", false, false))
	require.NoError(t, err)
	_, err = g.AddNode(node("bar", "1.0.0", false, false))
	require.NoError(t, err)

	ids := g.NodesByName("foo")
	require.ElementsMatch(t, []NodeID{v1, v2}, ids)
}

func TestKindIsExtension(t *testing.T) {
	require.False(t, Normal.IsExtension())
	require.True(t, Build.IsExtension())
	require.True(t, Dev.IsExtension())
}
