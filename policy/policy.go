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

// Package policy holds, for each first-party package, the criteria it and
// its dependencies are required to meet.
package policy

// Entry is one first-party package's declared policy.
type Entry struct {
	// SelfCriteria is what this package itself must meet — and, absent a
	// per-dependency override, what it demands of each of its
	// dependencies.
	SelfCriteria []string
	// BuildAndDevCriteria is the demand propagated along build/dev edges
	// only, a separate channel from SelfCriteria.
	BuildAndDevCriteria []string
	// DependencyCriteria overrides SelfCriteria for specific named
	// dependencies.
	DependencyCriteria map[string][]string
	// Targets records the target filters (e.g. build targets or
	// platforms) declared for the policy. The resolver does not read it: a
	// policy applies to every node of its package whatever Targets holds,
	// and depgraph.Node carries no target a node was resolved for.
	Targets []string
}

// Table is the policy table: a first-party package name to its declared
// Entry, plus the global default criterion applied to roots that declare
// no policy.
type Table struct {
	DefaultCriteria string
	Entries         map[string]Entry
}

// NewTable returns a Table with the given default criterion and no
// declared entries.
func NewTable(defaultCriteria string) *Table {
	return &Table{DefaultCriteria: defaultCriteria, Entries: map[string]Entry{}}
}

// Lookup returns the declared Entry for a first-party package name, and
// whether one was declared at all.
func (t *Table) Lookup(name string) (Entry, bool) {
	e, ok := t.Entries[name]
	return e, ok
}

