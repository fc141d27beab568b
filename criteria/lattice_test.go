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

package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLatticeBuiltins(t *testing.T) {
	l, err := NewLattice(Table{})
	require.NoError(t, err)
	assert.True(t, l.Has(SafeToRun))
	assert.True(t, l.Has(SafeToDeploy))

	// safe-to-deploy implies safe-to-run.
	expanded := l.Expand(SafeToDeploy)
	assert.True(t, l.Contains(expanded, SafeToRun))
	assert.True(t, l.Contains(expanded, SafeToDeploy))
}

func TestNewLatticeCustomImplication(t *testing.T) {
	l, err := NewLattice(Table{
		"reviewed":      Def{Implies: []string{"weak-reviewed"}},
		"weak-reviewed": Def{},
	})
	require.NoError(t, err)

	expanded := l.Expand("reviewed")
	assert.True(t, l.Contains(expanded, "reviewed"))
	assert.True(t, l.Contains(expanded, "weak-reviewed"))

	weak := l.Expand("weak-reviewed")
	assert.False(t, l.Contains(weak, "reviewed"))
}

func TestNewLatticeUnknownImplicationIsError(t *testing.T) {
	_, err := NewLattice(Table{
		"reviewed": Def{Implies: []string{"does-not-exist"}},
	})
	require.Error(t, err)
}

func TestNewLatticeCycleIsError(t *testing.T) {
	_, err := NewLattice(Table{
		"a": Def{Implies: []string{"b"}},
		"b": Def{Implies: []string{"a"}},
	})
	require.Error(t, err)
}

func TestNewLatticeAggregatesErrors(t *testing.T) {
	_, err := NewLattice(Table{
		"a": Def{Implies: []string{"missing-1"}},
		"b": Def{Implies: []string{"missing-2"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing-1")
	assert.Contains(t, err.Error(), "missing-2")
}

func TestLatticeExpandUnknownNameIsEmpty(t *testing.T) {
	l, err := NewLattice(Table{})
	require.NoError(t, err)
	assert.True(t, l.Expand("nonexistent").IsEmpty())
}

func TestLatticeNamesSorted(t *testing.T) {
	l, err := NewLattice(Table{"zeta": Def{}, "alpha": Def{}})
	require.NoError(t, err)
	names := l.Names()
	for i := 1; i < len(names); i++ {
		assert.LessOrEqual(t, names[i-1], names[i])
	}
}
