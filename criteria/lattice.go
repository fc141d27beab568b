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

// Package criteria implements the criteria lattice: a set of named trust
// labels ordered by an implication relation, and the closed sets of labels
// ("CriteriaSet") that the rest of the resolver reasons about.
//
// Criteria are interned to small integer indices when a Lattice is built, so
// that a CriteriaSet can be represented as a bitset and implication, union,
// and intersection are simple word operations.
package criteria

import (
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// Built-in criteria present by default when a criteria table does not
// declare them. SafeToDeploy implies SafeToRun.
const (
	SafeToRun    = "safe-to-run"
	SafeToDeploy = "safe-to-deploy"
)

// Def is one entry of the criteria table: a criterion's description and the
// criteria it directly implies.
type Def struct {
	Implies     []string
	Description string
}

// Table is the raw criteria table, as decoded from configuration: criterion
// name to its definition.
type Table map[string]Def

// Lattice is the reflexive-transitive closure of a criteria table's
// implication relation, with criteria interned to small integer indices.
type Lattice struct {
	index  map[string]int // name -> bit index
	names  []string       // bit index -> name
	expand []Set          // bit index -> {self} ∪ transitively implied
}

// NewLattice builds a Lattice from a criteria table, applying the built-in
// defaults (SafeToRun, SafeToDeploy) when the table does not declare them.
//
// It returns a configuration error if any implication names a criterion
// not present in the table, or if the implication relation contains a
// cycle. Errors of each kind are collected via a multierror, so a caller
// sees every unknown implication at once, or else every cycle; cycle
// detection runs only when no implication names an unknown criterion.
func NewLattice(table Table) (*Lattice, error) {
	t := withBuiltins(table)

	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic indexing across runs

	l := &Lattice{
		index: make(map[string]int, len(names)),
		names: names,
	}
	for i, name := range names {
		l.index[name] = i
	}

	var errs error
	for name, def := range t {
		for _, imp := range def.Implies {
			if _, ok := l.index[imp]; !ok {
				errs = multierror.Append(errs, fmt.Errorf(
					"criteria: %q implies unknown criterion %q", name, imp))
			}
		}
	}
	if errs != nil {
		return nil, errs
	}

	l.expand = make([]Set, len(names))
	visiting := make([]uint8, len(names)) // 0=unvisited 1=visiting 2=done
	var visit func(i int) (Set, error)
	visit = func(i int) (Set, error) {
		if visiting[i] == 2 {
			return l.expand[i], nil
		}
		if visiting[i] == 1 {
			return Set{}, fmt.Errorf("criteria: implication cycle involving %q", names[i])
		}
		visiting[i] = 1
		s := Set{}.with(l, i)
		for _, imp := range t[names[i]].Implies {
			j := l.index[imp]
			sub, err := visit(j)
			if err != nil {
				return Set{}, err
			}
			s = s.Union(sub)
		}
		visiting[i] = 2
		l.expand[i] = s
		return s, nil
	}
	for i := range names {
		if _, err := visit(i); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}

	return l, nil
}

func withBuiltins(table Table) Table {
	t := make(Table, len(table)+2)
	for k, v := range table {
		t[k] = v
	}
	if _, ok := t[SafeToRun]; !ok {
		t[SafeToRun] = Def{Description: "the package can be run in a sandboxed or trusted context"}
	}
	if _, ok := t[SafeToDeploy]; !ok {
		t[SafeToDeploy] = Def{
			Implies:     []string{SafeToRun},
			Description: "the package can be deployed to production",
		}
	}
	return t
}

// Has reports whether name is a criterion known to the lattice.
func (l *Lattice) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}

// Len returns the number of criteria in the lattice.
func (l *Lattice) Len() int { return len(l.names) }

// Names returns the criteria names in a stable, sorted order.
func (l *Lattice) Names() []string {
	out := make([]string, len(l.names))
	copy(out, l.names)
	return out
}

// Expand returns {name} ∪ transitively-implied, as a Set. It returns the
// empty Set if name is unknown to the lattice.
func (l *Lattice) Expand(name string) Set {
	i, ok := l.index[name]
	if !ok {
		return Set{}
	}
	return l.expand[i]
}

// ExpandAll returns the union of Expand(name) for every name in names.
func (l *Lattice) ExpandAll(names []string) Set {
	var s Set
	for _, n := range names {
		s = s.Union(l.Expand(n))
	}
	return s
}

// Contains reports whether the named criterion is a member of s. This is a
// plain bit test, distinct from Set.ContainsAll which compares two sets.
func (l *Lattice) Contains(s Set, name string) bool {
	i, ok := l.index[name]
	if !ok {
		return false
	}
	return s.hasBit(i)
}
