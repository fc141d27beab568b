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
	"sort"
	"strings"
)

const wordBits = 64

// Set is a canonicalised set of criteria: downward-closed under
// implication, represented as a bitset over a Lattice's interned indices.
// The zero Set is the empty set.
type Set struct {
	words []uint64
}

func (s Set) with(l *Lattice, i int) Set {
	return s.withBit(i)
}

func (s Set) withBit(i int) Set {
	w := i / wordBits
	if w >= len(s.words) {
		words := make([]uint64, w+1)
		copy(words, s.words)
		s.words = words
	} else {
		words := make([]uint64, len(s.words))
		copy(words, s.words)
		s.words = words
	}
	s.words[w] |= 1 << uint(i%wordBits)
	return s
}

func (s Set) hasBit(i int) bool {
	w := i / wordBits
	if w >= len(s.words) {
		return false
	}
	return s.words[w]&(1<<uint(i%wordBits)) != 0
}

// Union returns the union of s and o.
func (s Set) Union(o Set) Set {
	n := len(s.words)
	if len(o.words) > n {
		n = len(o.words)
	}
	words := make([]uint64, n)
	for i := range words {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(o.words) {
			b = o.words[i]
		}
		words[i] = a | b
	}
	return Set{words: words}
}

// Intersect returns the intersection of s and o.
func (s Set) Intersect(o Set) Set {
	n := len(s.words)
	if len(o.words) < n {
		n = len(o.words)
	}
	words := make([]uint64, n)
	for i := range words {
		words[i] = s.words[i] & o.words[i]
	}
	return Set{words: words}.trim()
}

// Without returns s with every criterion in o removed.
func (s Set) Without(o Set) Set {
	words := make([]uint64, len(s.words))
	for i := range words {
		w := s.words[i]
		if i < len(o.words) {
			w &^= o.words[i]
		}
		words[i] = w
	}
	return Set{words: words}.trim()
}

func (s Set) trim() Set {
	n := len(s.words)
	for n > 0 && s.words[n-1] == 0 {
		n--
	}
	s.words = s.words[:n]
	return s
}

// IsEmpty reports whether s has no criteria.
func (s Set) IsEmpty() bool {
	for _, w := range s.words {
		if w != 0 {
			return false
		}
	}
	return true
}

// ContainsAll reports whether s is a superset of required: s ⊇ required.
func (s Set) ContainsAll(required Set) bool {
	for i, w := range required.words {
		var have uint64
		if i < len(s.words) {
			have = s.words[i]
		}
		if have&w != w {
			return false
		}
	}
	return true
}

// Equal reports whether s and o contain exactly the same criteria.
func (s Set) Equal(o Set) bool {
	return s.ContainsAll(o) && o.ContainsAll(s)
}

// Names returns the sorted criterion names contained in s, per the given
// Lattice.
func (s Set) Names(l *Lattice) []string {
	var out []string
	for name, i := range l.index {
		if s.hasBit(i) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// SetFromNames builds a Set directly from a list of criterion names,
// expanding each through the lattice's implication closure. Unknown names
// are silently ignored by the Lattice's Expand, which is the caller's
// signal to have validated names earlier via Lattice.Has.
func SetFromNames(l *Lattice, names []string) Set {
	return l.ExpandAll(names)
}

// String renders s as a sorted, comma-joined list of criterion names. It
// requires a Lattice to resolve indices back to names.
func (s Set) String(l *Lattice) string {
	return strings.Join(s.Names(l), ",")
}
