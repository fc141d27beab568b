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

// Package semver provides the version and version-requirement types used
// throughout the audit resolver.
//
// A Version is an ordinary semver.org version: major.minor.patch with
// optional pre-release and build metadata, ordered by the standard semver
// total order. A Requirement is a constraint expression ("=1.2.3",
// ">=1.0.0, <2.0.0", "*") matched against a Version, used by violation
// entries to mask a range of versions from a criterion.
//
// Parsing and ordering are delegated to github.com/Masterminds/semver/v3;
// this package narrows that library's API to the two operations the
// resolver needs and gives them names that match the vocabulary of the
// rest of this module.
package semver

import (
	"fmt"

	mmsemver "github.com/Masterminds/semver/v3"
)

// Version is a parsed semantic version.
type Version struct {
	raw string
	v   *mmsemver.Version
}

// Parse parses s as a semantic version. Leading "v" is tolerated, matching
// common registry practice.
func Parse(s string) (Version, error) {
	v, err := mmsemver.NewVersion(s)
	if err != nil {
		return Version{}, fmt.Errorf("semver: invalid version %q: %w", s, err)
	}
	return Version{raw: s, v: v}, nil
}

// MustParse is like Parse but panics on error. It is intended for tests and
// for constructing literal versions in fixtures.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String returns the original, unnormalized version string.
func (v Version) String() string {
	if v.v == nil {
		return v.raw
	}
	return v.raw
}

// IsZero reports whether v is the zero Version (no version parsed).
func (v Version) IsZero() bool { return v.v == nil }

// Compare returns -1, 0 or 1 depending on whether v sorts before, equal to,
// or after o, using the standard semver total order (pre-release versions
// sort before their release, build metadata is ignored).
func (v Version) Compare(o Version) int {
	return v.v.Compare(o.v)
}

// Less reports whether v sorts strictly before o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// Equal reports whether v and o denote the same version for ordering
// purposes (build metadata aside).
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Distance returns a non-negative measure of how far apart two versions
// are, used to rank candidate audit anchors by "cost". It sums the
// absolute differences of major, minor and patch components, weighted
// 1,000,000, 1,000 and 1 respectively, so that a major bump is judged
// further than any minor or patch difference below those weights.
func (v Version) Distance(o Version) int64 {
	const (
		majorWeight = 1_000_000
		minorWeight = 1_000
	)
	d := func(a, b uint64) int64 {
		if a > b {
			return int64(a - b)
		}
		return int64(b - a)
	}
	// The zero Version (no anchor, "needs a full audit from scratch") is
	// treated as 0.0.0 for distance purposes.
	var vMaj, vMin, vPat, oMaj, oMin, oPat uint64
	if v.v != nil {
		vMaj, vMin, vPat = v.v.Major(), v.v.Minor(), v.v.Patch()
	}
	if o.v != nil {
		oMaj, oMin, oPat = o.v.Major(), o.v.Minor(), o.v.Patch()
	}
	return majorWeight*d(vMaj, oMaj) +
		minorWeight*d(vMin, oMin) +
		d(vPat, oPat)
}

// Requirement is a version-requirement expression, used by violation
// entries to describe the range of versions a violation masks.
type Requirement struct {
	raw string
	c   *mmsemver.Constraints
}

// ParseRequirement parses a version-requirement expression such as
// "=1.2.3", ">=1.0.0, <2.0.0" or "*".
func ParseRequirement(s string) (Requirement, error) {
	c, err := mmsemver.NewConstraint(s)
	if err != nil {
		return Requirement{}, fmt.Errorf("semver: invalid version requirement %q: %w", s, err)
	}
	return Requirement{raw: s, c: c}, nil
}

// MustParseRequirement is like ParseRequirement but panics on error.
func MustParseRequirement(s string) Requirement {
	r, err := ParseRequirement(s)
	if err != nil {
		panic(err)
	}
	return r
}

// String returns the original requirement text.
func (r Requirement) String() string { return r.raw }

// Matches reports whether v satisfies the requirement.
func (r Requirement) Matches(v Version) bool {
	if r.c == nil {
		return false
	}
	return r.c.Check(v.v)
}
