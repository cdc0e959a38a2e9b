// Package registry selects which configured connections take part in a run.
//
// Filters are matched against the composite key (ENV_LOC_VER), never the
// display name, so the same filter always selects the same connections.
package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kamusis/envdiff/internal/config"
)

// FilterConfigurationError reports a filter that cannot be applied.
type FilterConfigurationError struct {
	Reason string
	Err    error
}

func (e *FilterConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("filter configuration: %s: %v", e.Reason, e.Err)
	}
	return "filter configuration: " + e.Reason
}

func (e *FilterConfigurationError) Unwrap() error { return e.Err }

// FilterSpec is either include/exclude substrings or a single regex.
type FilterSpec struct {
	Include []string
	Exclude []string
	Regex   string
}

// FromConfig converts the loaded filter settings.
func FromConfig(f config.Filter) FilterSpec {
	return FilterSpec{Include: f.Include, Exclude: f.Exclude, Regex: f.Regex}
}

// Mode describes the active filtering mode for listings and logs.
func (s FilterSpec) Mode() string {
	switch {
	case s.Regex != "":
		return "regex"
	case len(s.Include) > 0 || len(s.Exclude) > 0:
		return "patterns"
	default:
		return "none"
	}
}

func (s FilterSpec) String() string {
	switch s.Mode() {
	case "regex":
		return "regex " + s.Regex
	case "patterns":
		return fmt.Sprintf("include [%s] exclude [%s]", strings.Join(s.Include, ", "), strings.Join(s.Exclude, ", "))
	default:
		return "all connections"
	}
}

// compile validates the spec and returns a predicate over composite keys.
func (s FilterSpec) compile() (func(string) bool, error) {
	if s.Regex != "" {
		if len(s.Include) > 0 || len(s.Exclude) > 0 {
			return nil, &FilterConfigurationError{Reason: "regex cannot be combined with include/exclude patterns"}
		}
		re, err := regexp.Compile(`^(?:` + s.Regex + `)$`)
		if err != nil {
			return nil, &FilterConfigurationError{Reason: fmt.Sprintf("invalid regex %q", s.Regex), Err: err}
		}
		return re.MatchString, nil
	}
	for _, p := range append(append([]string{}, s.Include...), s.Exclude...) {
		if p == "" {
			return nil, &FilterConfigurationError{Reason: "empty pattern"}
		}
	}
	include, exclude := s.Include, s.Exclude
	return func(key string) bool {
		for _, p := range include {
			if !strings.Contains(key, p) {
				return false
			}
		}
		for _, p := range exclude {
			if strings.Contains(key, p) {
				return false
			}
		}
		return true
	}, nil
}

// Validate reports a FilterConfigurationError for contradictory or malformed specs.
func (s FilterSpec) Validate() error {
	_, err := s.compile()
	return err
}

// Select returns the connections matching spec in declaration order.
// An empty result is not an error.
func Select(all []config.Connection, spec FilterSpec) ([]config.Connection, error) {
	selected, _, err := Partition(all, spec)
	return selected, err
}

// Partition splits all into selected and excluded, both in declaration order.
func Partition(all []config.Connection, spec FilterSpec) (selected, excluded []config.Connection, err error) {
	match, err := spec.compile()
	if err != nil {
		return nil, nil, err
	}
	selected = make([]config.Connection, 0, len(all))
	for _, conn := range all {
		if match(conn.ID()) {
			selected = append(selected, conn)
		} else {
			excluded = append(excluded, conn)
		}
	}
	return selected, excluded, nil
}
