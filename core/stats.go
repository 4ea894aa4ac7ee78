package core

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/corpusci/corpusci/schema"
)

// statsKey identifies one build within a commit sequence.
type statsKey struct {
	seq int
	sha string
}

// StatsSummary accumulates compiler counters emitted as JSON files into a
// stats output directory, keyed by the (sequence index, commit) of the
// build that emitted them. Timer values carry a "time." prefix and are
// skipped at ingest since wall-clock numbers are not reproducible.
type StatsSummary struct {
	commits map[statsKey]map[string]int64
}

// NewStatsSummary returns an empty summary.
func NewStatsSummary() *StatsSummary {
	return &StatsSummary{commits: make(map[statsKey]map[string]int64)}
}

// AddFromDir ingests every *.json stats file under dir, recursively, into
// the counters for one build. Numeric values are truncated to integers;
// non-numeric fields are ignored.
func (s *StatsSummary) AddFromDir(seq int, sha, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var values map[string]any
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("malformed stats file %s: %w", entry.Name(), err)
		}
		counters := s.countersFor(seq, sha)
		for key, raw := range values {
			if strings.HasPrefix(key, "time.") {
				continue
			}
			if v, ok := raw.(float64); ok {
				counters[key] += int64(v)
			}
		}
		return nil
	})
}

// countersFor returns the counter map for one build, creating it on first use.
func (s *StatsSummary) countersFor(seq int, sha string) map[string]int64 {
	key := statsKey{seq: seq, sha: sha}
	counters, ok := s.commits[key]
	if !ok {
		counters = make(map[string]int64)
		s.commits[key] = counters
	}
	return counters
}

// Get returns the accumulated value of one counter for one build.
func (s *StatsSummary) Get(seq int, sha, key string) int64 {
	return s.commits[statsKey{seq: seq, sha: sha}][key]
}

// CheckExpected compares one build's counters against its per-commit
// ceilings. A counter exceeding its expectation yields a hard failure
// result and the sequence must stop; nil means everything is within bounds.
func (s *StatsSummary) CheckExpected(identifier string, seq int, sha string, expected map[string]int64) *schema.Result {
	counters := s.commits[statsKey{seq: seq, sha: sha}]
	if counters == nil {
		return nil
	}
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		got, ok := counters[key]
		if !ok {
			continue
		}
		if limit := expected[key]; limit < got {
			text := fmt.Sprintf("FAIL: %s, %.7s, stat %s expected at most %d, got %d",
				identifier, sha, key, limit, got)
			res := schema.Result{Kind: schema.Fail, Text: text}
			return &res
		}
	}
	return nil
}

// commitStats is the per-build dump shape.
type commitStats struct {
	Commit string           `json:"commit"`
	Stats  map[string]int64 `json:"stats"`
}

// Dump writes counters matching pattern to w as indented JSON, one entry
// per build in sequence order.
func (s *StatsSummary) Dump(w io.Writer, pattern *regexp.Regexp) error {
	keys := make([]statsKey, 0, len(s.commits))
	for k := range s.commits {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].seq != keys[j].seq {
			return keys[i].seq < keys[j].seq
		}
		return keys[i].sha < keys[j].sha
	})

	out := make([]commitStats, 0, len(keys))
	for _, k := range keys {
		selected := make(map[string]int64)
		for key, value := range s.commits[k] {
			if pattern == nil || pattern.MatchString(key) {
				selected[key] = value
			}
		}
		out = append(out, commitStats{Commit: k.sha, Stats: selected})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
