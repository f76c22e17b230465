// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import (
	"net/url"
	"strings"
)

// NormalizeURL reduces a URL to scheme + host + path for deduplication:
// lowercased scheme and host, query string, fragment, and trailing slash
// dropped. Unparseable URLs are returned trimmed but otherwise untouched so
// they still dedup against identical strings.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	path := strings.TrimSuffix(u.Path, "/")
	return scheme + "://" + strings.ToLower(u.Host) + path
}

// FindingSet is an append-only collection of findings deduplicated by
// normalized URL. It is exclusively owned by the orchestrator: other
// components receive read snapshots or return new findings to be merged,
// never mutate it directly. Not safe for concurrent use.
type FindingSet struct {
	findings []Finding
	byURL    map[string]int
}

// NewFindingSet returns an empty finding set.
func NewFindingSet() *FindingSet {
	return &FindingSet{byURL: make(map[string]int)}
}

// Add appends f unless a finding with the same normalized URL is already
// present. It reports whether the finding was added; on collision the
// first-seen finding wins and f is discarded.
func (fs *FindingSet) Add(f Finding) bool {
	key := NormalizeURL(f.URL)
	if _, ok := fs.byURL[key]; ok {
		return false
	}
	fs.byURL[key] = len(fs.findings)
	fs.findings = append(fs.findings, f)
	return true
}

// Has reports whether a finding with the same normalized URL exists.
func (fs *FindingSet) Has(rawURL string) bool {
	_, ok := fs.byURL[NormalizeURL(rawURL)]
	return ok
}

// Len returns the number of findings.
func (fs *FindingSet) Len() int {
	return len(fs.findings)
}

// All returns the findings in insertion order. The returned slice is a copy;
// the findings themselves are immutable by convention.
func (fs *FindingSet) All() []Finding {
	out := make([]Finding, len(fs.findings))
	copy(out, fs.findings)
	return out
}

// Snapshot returns a read-only view of the set for use by parallel research
// calls. The snapshot shares no mutable state with the live set.
func (fs *FindingSet) Snapshot() Snapshot {
	urls := make(map[string]struct{}, len(fs.byURL))
	for k := range fs.byURL {
		urls[k] = struct{}{}
	}
	return Snapshot{urls: urls, findings: fs.All()}
}

// Snapshot is an immutable view of a FindingSet taken at a stage boundary.
type Snapshot struct {
	urls     map[string]struct{}
	findings []Finding
}

// Has reports whether the snapshot contained the normalized URL.
func (s Snapshot) Has(rawURL string) bool {
	_, ok := s.urls[NormalizeURL(rawURL)]
	return ok
}

// All returns the findings captured by the snapshot.
func (s Snapshot) All() []Finding {
	return s.findings
}

// Len returns the number of findings captured by the snapshot.
func (s Snapshot) Len() int {
	return len(s.findings)
}
