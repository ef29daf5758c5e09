// Package match classifies log excerpts with ordered regular-expression lists
// before any model call is made.
package match

import (
	"fmt"
	"regexp"

	"github.com/mesh-intelligence/logtriage/pkg/types"
)

// Verdict is a fast-path classification.
type Verdict struct {
	Status  string // types.StatusSuccess or types.StatusFailure.
	Pattern string // Source of the pattern that matched.
}

// Detail renders the verdict as a report detail string.
func (v Verdict) Detail() string {
	kind := "failure"
	if v.Status == types.StatusSuccess {
		kind = "success"
	}
	return fmt.Sprintf("matched %s pattern %q", kind, v.Pattern)
}

// Matcher holds compiled success and failure patterns. List order is
// priority order. A Matcher is safe for concurrent use.
type Matcher struct {
	success []*regexp.Regexp
	failure []*regexp.Regexp
}

// New compiles both pattern lists.
func New(success, failure []string) (*Matcher, error) {
	s, err := compileAll(success)
	if err != nil {
		return nil, fmt.Errorf("success patterns: %w", err)
	}
	f, err := compileAll(failure)
	if err != nil {
		return nil, fmt.Errorf("failure patterns: %w", err)
	}
	return &Matcher{success: s, failure: f}, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", types.ErrBadPattern, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Classify evaluates content against the success list, then the failure
// list. The first match wins; failure patterns are not consulted once a
// success pattern matched. ok is false when nothing matched.
func (m *Matcher) Classify(content string) (Verdict, bool) {
	if m == nil {
		return Verdict{}, false
	}
	for _, re := range m.success {
		if re.MatchString(content) {
			return Verdict{Status: types.StatusSuccess, Pattern: re.String()}, true
		}
	}
	for _, re := range m.failure {
		if re.MatchString(content) {
			return Verdict{Status: types.StatusFailure, Pattern: re.String()}, true
		}
	}
	return Verdict{}, false
}

// Len returns the total number of patterns.
func (m *Matcher) Len() int {
	if m == nil {
		return 0
	}
	return len(m.success) + len(m.failure)
}
