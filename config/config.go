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

// Package config defines the on-disk schema of the resolver's four input
// files — the criteria table, the audits file, the policy/config file, and
// an imported audits file — and decodes them with
// github.com/BurntSushi/toml. Decoding itself is ambient plumbing; the
// resolver only ever consumes the already-built criteria.Lattice,
// audit.Index, and policy.Table these structs are turned into by the
// Build* functions.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// CriteriaFile is the decoded shape of a criteria table file.
type CriteriaFile struct {
	Criteria map[string]CriteriaDef `toml:"criteria"`
}

// CriteriaDef is one named criterion's definition.
type CriteriaDef struct {
	Description string   `toml:"description"`
	Implies     []string `toml:"implies"`
}

// PackageAudits groups every audit entry recorded for one package name.
type PackageAudits struct {
	Full      []FullAuditEntry  `toml:"full"`
	Delta     []DeltaAuditEntry `toml:"delta"`
	Violation []ViolationEntry  `toml:"violation"`
}

// FullAuditEntry is the on-disk shape of a full audit.
type FullAuditEntry struct {
	Version            string              `toml:"version"`
	Criteria           string              `toml:"criteria"`
	DependencyCriteria map[string][]string `toml:"dependency-criteria,omitempty"`
	Who                string              `toml:"who,omitempty"`
	Notes              string              `toml:"notes,omitempty"`
}

// DeltaAuditEntry is the on-disk shape of a delta audit.
type DeltaAuditEntry struct {
	From               string              `toml:"delta-from"`
	To                 string              `toml:"version"`
	Criteria           string              `toml:"criteria"`
	DependencyCriteria map[string][]string `toml:"dependency-criteria,omitempty"`
	Who                string              `toml:"who,omitempty"`
	Notes              string              `toml:"notes,omitempty"`
}

// ViolationEntry is the on-disk shape of a violation.
type ViolationEntry struct {
	Requirement string `toml:"version"`
	Criteria    string `toml:"criteria"`
	Who         string `toml:"who,omitempty"`
	Notes       string `toml:"notes,omitempty"`
}

// AuditsFile is the decoded shape of the local audits file: every recorded
// audit entry, keyed by package name.
type AuditsFile struct {
	Audits map[string]PackageAudits `toml:"audits"`
}

// UnauditedEntry is the on-disk shape of an exemption.
type UnauditedEntry struct {
	Version  string `toml:"version"`
	Criteria string `toml:"criteria"`
	Suggest  bool   `toml:"suggest"`
	Notes    string `toml:"notes,omitempty"`
}

// PolicyEntry is the on-disk shape of one first-party package's policy.
type PolicyEntry struct {
	Criteria            []string            `toml:"criteria,omitempty"`
	BuildAndDevCriteria []string            `toml:"dev-criteria,omitempty"`
	DependencyCriteria  map[string][]string `toml:"dependency-criteria,omitempty"`
	Targets             []string            `toml:"targets,omitempty"`
}

// ImportSource names a foreign audit set to trust. CriteriaMap renames the
// dependency package names used as keys of its entries' dependency-criteria
// overrides into this project's own names; criterion names are not
// translated.
type ImportSource struct {
	URL         string            `toml:"url"`
	CriteriaMap map[string]string `toml:"criteria-map,omitempty"`
}

// ConfigFile is the decoded shape of the main config file: the default
// criterion, first-party policy, unaudited exemptions, and import sources.
type ConfigFile struct {
	DefaultCriteria string                      `toml:"default-criteria"`
	Policy          map[string]PolicyEntry      `toml:"policy"`
	Unaudited       map[string][]UnauditedEntry `toml:"unaudited"`
	Imports         map[string]ImportSource     `toml:"imports"`
}

// ImportsFile is the decoded shape of a fetched import source's audit set,
// structurally identical to AuditsFile.
type ImportsFile struct {
	Audits map[string]PackageAudits `toml:"audits"`
}

// GraphFile is a standalone snapshot of a resolved dependency graph: the
// shape a real build tool's lockfile would produce, simplified to what the
// resolver needs. No input file of the four decoded above describes graph
// shape; this is ambient plumbing that BuildGraph turns into a
// depgraph.Graph.
type GraphFile struct {
	Node []GraphNode `toml:"node"`
}

// GraphNode is one package in a GraphFile, plus the dependencies it reaches
// by edge kind, addressed as "name@version".
type GraphNode struct {
	Name       string   `toml:"name"`
	Version    string   `toml:"version"`
	FirstParty bool     `toml:"first-party"`
	Root       bool     `toml:"root"`
	Normal     []string `toml:"normal,omitempty"`
	Build      []string `toml:"build,omitempty"`
	Dev        []string `toml:"dev,omitempty"`
}

// LoadCriteriaFile decodes a criteria table from path.
func LoadCriteriaFile(path string) (*CriteriaFile, error) {
	var f CriteriaFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: reading criteria file %s: %w", path, err)
	}
	return &f, nil
}

// LoadAuditsFile decodes an audits file from path.
func LoadAuditsFile(path string) (*AuditsFile, error) {
	var f AuditsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: reading audits file %s: %w", path, err)
	}
	return &f, nil
}

// LoadConfigFile decodes the main config file from path.
func LoadConfigFile(path string) (*ConfigFile, error) {
	var f ConfigFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: reading config file %s: %w", path, err)
	}
	return &f, nil
}

// LoadImportsFile decodes an imported audit set from path.
func LoadImportsFile(path string) (*ImportsFile, error) {
	var f ImportsFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: reading imports file %s: %w", path, err)
	}
	return &f, nil
}

// LoadGraphFile decodes a GraphFile from path.
func LoadGraphFile(path string) (*GraphFile, error) {
	var f GraphFile
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("config: reading graph file %s: %w", path, err)
	}
	return &f, nil
}
