package predicate

import "fmt"

// Rules holds compiled include and exclude predicate lists for one element
// class (repositories or actions).
type Rules struct {
	include []*Predicate
	exclude []*Predicate
}

// CompileRules parses both predicate lists. A malformed expression is a
// configuration error reported before any work starts.
func CompileRules(include, exclude []string) (*Rules, error) {
	r := &Rules{}
	for _, src := range include {
		p, err := Parse(src)
		if err != nil {
			return nil, fmt.Errorf("invalid include predicate %q: %w", src, err)
		}
		r.include = append(r.include, p)
	}
	for _, src := range exclude {
		p, err := Parse(src)
		if err != nil {
			return nil, fmt.Errorf("invalid exclude predicate %q: %w", src, err)
		}
		r.exclude = append(r.exclude, p)
	}
	return r, nil
}

// Included decides element inclusion: no exclude predicate may match, and
// either the include list is empty or some include predicate matches.
// Exclusion takes precedence over inclusion.
func (r *Rules) Included(fields map[string]string) bool {
	if r == nil {
		return true
	}
	for _, p := range r.exclude {
		if p.Eval(fields) {
			return false
		}
	}
	if len(r.include) == 0 {
		return true
	}
	for _, p := range r.include {
		if p.Eval(fields) {
			return true
		}
	}
	return false
}
