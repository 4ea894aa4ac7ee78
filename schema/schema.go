// Package schema has descriptors, results and constants for all parts of corpusci.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"
)

// RepositoryDescriptor identifies one indexed third-party repository along
// with its pinned compatibility commits and incremental commit sequences.
// Descriptors are created at index-load time and read-only thereafter.
type RepositoryDescriptor struct {
	Path          string                     `json:"path"`       // Checkout directory, relative to the workspace root
	Repository    RepositoryKind             `json:"repository"` // Source-control kind; only Git is supported
	URL           string                     `json:"url"`
	Branch        string                     `json:"branch,omitempty"`
	Platforms     []string                   `json:"platforms,omitempty"` // Allow-list of host platforms (Darwin, Linux)
	Compatibility map[string]CompatibilityPin `json:"compatibility,omitempty"`
	Incremental   map[string]IncrementalSpec  `json:"incremental,omitempty"`
	Actions       []ActionDescriptor          `json:"actions"`
}

// CompatibilityPin maps a toolchain version label to a known-good commit.
type CompatibilityPin struct {
	Commit string `json:"commit"`
}

// IncrementalSpec declares an ordered commit sequence for incremental-build
// verification, with optional per-commit expected stats and an optional
// field-based limit filter matched against the action descriptor.
type IncrementalSpec struct {
	Commits []CommitStep      `json:"commits"`
	Limit   map[string]string `json:"limit,omitempty"`
}

// CommitStep is one entry of an incremental commit sequence. In the index it
// is either a bare sha string or an object {"commit": sha, "stats": {...}}.
type CommitStep struct {
	Commit string
	Stats  map[string]int64
}

// UnmarshalJSON accepts both the string and the object form.
func (s *CommitStep) UnmarshalJSON(data []byte) error {
	var sha string
	if err := json.Unmarshal(data, &sha); err == nil {
		s.Commit = sha
		s.Stats = nil
		return nil
	}
	var obj struct {
		Commit string           `json:"commit"`
		Stats  map[string]int64 `json:"stats,omitempty"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("commit step must be a sha string or an object: %w", err)
	}
	if obj.Commit == "" {
		return fmt.Errorf("commit step object is missing the commit field")
	}
	s.Commit = obj.Commit
	s.Stats = obj.Stats
	return nil
}

// ActionDescriptor declares one build-or-test operation against a repository.
// Kind-specific fields are left empty when they do not apply.
type ActionDescriptor struct {
	Action        ActionKind  `json:"action"`
	Configuration string      `json:"configuration,omitempty"`
	Destination   string      `json:"destination,omitempty"`
	Project       string      `json:"project,omitempty"`
	Workspace     string      `json:"workspace,omitempty"`
	Scheme        string      `json:"scheme,omitempty"`
	Target        string      `json:"target,omitempty"`
	Tags          string      `json:"tags,omitempty"`
	Xfail         *XfailTable `json:"xfail,omitempty"`
}

// ContainerPath returns the workspace or project path for Xcode actions.
func (a *ActionDescriptor) ContainerPath() string {
	if a.Workspace != "" {
		return a.Workspace
	}
	return a.Project
}

// SchemeOrTarget returns the scheme name when present, else the target name.
func (a *ActionDescriptor) SchemeOrTarget() string {
	if a.Scheme != "" {
		return a.Scheme
	}
	return a.Target
}

// UsesWorkspace reports whether the action addresses an Xcode workspace.
func (a *ActionDescriptor) UsesWorkspace() bool {
	return strings.Contains(string(a.Action), "Workspace")
}

// UsesScheme reports whether the action addresses an Xcode scheme.
func (a *ActionDescriptor) UsesScheme() bool {
	return strings.Contains(string(a.Action), "Scheme")
}

// Fields exposes the flat field mapping used by predicate filters and by
// incremental limit clauses. Only string-valued declared fields appear.
func (a *ActionDescriptor) Fields() map[string]string {
	m := map[string]string{"action": string(a.Action)}
	put := func(k, v string) {
		if v != "" {
			m[k] = v
		}
	}
	put("configuration", a.Configuration)
	put("destination", a.Destination)
	put("project", a.Project)
	put("workspace", a.Workspace)
	put("scheme", a.Scheme)
	put("target", a.Target)
	put("tags", a.Tags)
	return m
}

// Fields exposes the flat field mapping used by repository predicates.
func (r *RepositoryDescriptor) Fields() map[string]string {
	m := map[string]string{
		"path":       r.Path,
		"repository": string(r.Repository),
		"url":        r.URL,
	}
	if r.Branch != "" {
		m["branch"] = r.Branch
	}
	return m
}

// XfailTable is the nested expected-failure lookup attached to an action,
// keyed by compatibility version.
type XfailTable struct {
	Compatibility map[string]XfailEntry `json:"compatibility"`
}

// XfailEntry holds the wildcard and per-branch/per-platform bug mappings for
// one compatibility version. Each value is a bug reference; only the first
// whitespace-separated token is the bug identifier.
type XfailEntry struct {
	Any      string            `json:"*,omitempty"`
	Branch   map[string]string `json:"branch,omitempty"`
	Platform map[string]string `json:"platform,omitempty"`
}

// Lookup resolves a bug identifier for the given compatibility version,
// host platform and toolchain branch. Precedence, highest first: top-level
// wildcard, branch wildcard, platform wildcard, exact branch, exact
// platform. Returns the empty string when nothing matches.
func (t *XfailTable) Lookup(version, platform, branch string) string {
	if t == nil {
		return ""
	}
	entry, ok := t.Compatibility[version]
	if !ok {
		return ""
	}
	candidates := []string{
		entry.Any,
		entry.Branch["*"],
		entry.Platform["*"],
		entry.Branch[branch],
		entry.Platform[platform],
	}
	for _, c := range candidates {
		if c != "" {
			return strings.Fields(c)[0]
		}
	}
	return ""
}
