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
	"fmt"
	"sort"

	"deps.dev/vet/criteria"
	"deps.dev/vet/depgraph"
	"deps.dev/vet/report"
	"deps.dev/vet/semver"
)

// buildReport assembles the final Report from the per-node state left by
// the two resolution passes, walking nodes in the same reverse-topological
// order pass 1 used.
func (r *Resolver) buildReport(order []depgraph.NodeID, states []nodeState) *report.Report {
	rep := &report.Report{Success: true}

	var suggestions []report.Suggestion
	for _, id := range order {
		node := r.Graph.Nodes[id]
		st := &states[id]

		var pr report.PackageReport
		if node.IsFirstParty {
			pr = r.packageReportFirstParty(id, node, st, states)
		} else {
			pr, suggestions = r.packageReportThirdParty(node, st, suggestions)
		}
		if pr.Verdict != report.Pass {
			rep.Success = false
		}
		rep.Packages = append(rep.Packages, pr)
	}

	sort.Slice(suggestions, func(i, j int) bool {
		a, b := suggestions[i], suggestions[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		if a.Criteria != b.Criteria {
			return a.Criteria < b.Criteria
		}
		if a.Cost != b.Cost {
			return a.Cost < b.Cost
		}
		return a.To < b.To
	})
	rep.Suggestions = suggestions
	rep.Warnings = append(rep.Warnings, r.Index.UnusedUnaudited()...)
	rep.Warnings = append(rep.Warnings, r.Index.UnusedImportSources()...)

	return rep
}

func (r *Resolver) packageReportFirstParty(id depgraph.NodeID, node depgraph.Node, st *nodeState, states []nodeState) report.PackageReport {
	pr := report.PackageReport{
		Name:     node.Package.Name,
		Version:  node.Package.Version.String(),
		Required: st.self.Names(r.Lattice),
	}

	entry, hasEntry := r.Policy.Lookup(node.Package.Name)
	var missing []string
	for _, e := range r.Graph.Dependencies(id) {
		var demand criteria.Set
		if e.Kind == depgraph.Normal {
			demand = demandForDependency(r.Lattice, entry, hasEntry, st.self, r.Graph.Nodes[e.To].Package.Name)
		} else {
			if !r.Options.IncludeBuildAndDev || !hasEntry || len(entry.BuildAndDevCriteria) == 0 {
				continue
			}
			demand = r.Lattice.ExpandAll(entry.BuildAndDevCriteria)
		}
		depNode := r.Graph.Nodes[e.To]
		if depNode.IsFirstParty {
			continue
		}
		gap := demand.Without(states[e.To].achieved)
		if gap.IsEmpty() {
			continue
		}
		for _, c := range gap.Names(r.Lattice) {
			missing = append(missing, fmt.Sprintf("%s: %s", depNode.Package.Name, c))
		}
	}

	if len(missing) > 0 {
		pr.Verdict = report.FailPolicy
		pr.Missing = missing
	} else {
		pr.Verdict = report.Pass
	}
	return pr
}

func (r *Resolver) packageReportThirdParty(node depgraph.Node, st *nodeState, suggestions []report.Suggestion) (report.PackageReport, []report.Suggestion) {
	pr := report.PackageReport{
		Name:         node.Package.Name,
		Version:      node.Package.Version.String(),
		IsThirdParty: true,
		Achieved:     st.achieved.Names(r.Lattice),
		Required:     st.required.Names(r.Lattice),
	}

	missing := st.required.Without(st.achieved)
	if missing.IsEmpty() {
		pr.Verdict = report.Pass
		return pr, suggestions
	}
	missingNames := missing.Names(r.Lattice)
	pr.Missing = missingNames

	var masked []string
	for _, c := range missingNames {
		if r.Lattice.Contains(r.Index.ViolationsMasking(node.Package.Name, node.Package.Version), c) {
			masked = append(masked, c)
		}
	}

	if len(masked) > 0 {
		pr.Verdict = report.FailViolation
		for _, v := range r.Index.MatchingViolations(node.Package.Name, node.Package.Version) {
			pr.MaskedBy = append(pr.MaskedBy, report.ViolationRef{
				Criteria:    v.Criteria,
				Requirement: v.Requirement.String(),
				Who:         v.Who,
				Notes:       v.Notes,
			})
		}
		return pr, suggestions
	}

	pr.Verdict = report.FailMissing
	for _, c := range missingNames {
		suggestions = append(suggestions, suggestionFor(node.Package.Name, node.Package.Version, c, st.reachedVers[c]))
	}
	return pr, suggestions
}

// suggestionFor picks the cheapest audit that would close a single missing
// criterion: a delta from the nearest version already reachable for that
// criterion, or a fresh full audit if none was reachable at all. Ties on
// cost are broken by the lexicographically smaller version string, so the
// result doesn't depend on the order the audit graph's BFS happened to
// visit candidates in.
func suggestionFor(name string, target semver.Version, criterion string, reached []semver.Version) report.Suggestion {
	s := report.Suggestion{Name: name, To: target.String(), Criteria: criterion}

	var anchor semver.Version
	haveAnchor := false
	for _, v := range reached {
		d := v.Distance(target)
		switch {
		case !haveAnchor, d < s.Cost:
			haveAnchor = true
			anchor = v
			s.Cost = d
		case d == s.Cost && v.String() < anchor.String():
			anchor = v
		}
	}
	if haveAnchor {
		s.From = anchor.String()
	} else {
		s.Cost = target.Distance(semver.Version{})
	}
	return s
}
