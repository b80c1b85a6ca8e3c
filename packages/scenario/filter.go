package scenario

import "strings"

// Filter narrows a set of scenarios by name pattern, tags and platform.
type Filter struct {
	// Name supports a leading and/or trailing * wildcard.
	Name     string
	Tags     []string
	Platform string
}

// Select returns the scenarios of files that pass f, in file order. When
// any scenario is marked only, the rest are dropped.
func (f Filter) Select(files []*File) []*Scenario {
	var all []*Scenario
	hasOnly := false
	for _, file := range files {
		for _, s := range file.Scenarios {
			all = append(all, s)
			if s.Only {
				hasOnly = true
			}
		}
	}

	var out []*Scenario
	for _, s := range all {
		if f.shouldRun(s, hasOnly) {
			out = append(out, s)
		}
	}
	return out
}

func (f Filter) shouldRun(s *Scenario, hasOnly bool) bool {
	if hasOnly && !s.Only {
		return false
	}

	if f.Name != "" && !matchesPattern(s.Name, f.Name) {
		return false
	}

	if len(f.Tags) > 0 && !hasAnyTag(s.Tags, f.Tags) {
		return false
	}

	if f.Platform != "" && s.Platform != "" && !strings.EqualFold(s.Platform, f.Platform) {
		return false
	}

	return true
}

func matchesPattern(name, pattern string) bool {
	if pattern == "" {
		return true
	}

	if len(pattern) > 1 && pattern[0] == '*' && pattern[len(pattern)-1] == '*' {
		return strings.Contains(name, pattern[1:len(pattern)-1])
	}

	if pattern[0] == '*' {
		return strings.HasSuffix(name, pattern[1:])
	}

	if pattern[len(pattern)-1] == '*' {
		return strings.HasPrefix(name, pattern[:len(pattern)-1])
	}

	return name == pattern
}

func hasAnyTag(tags []string, filters []string) bool {
	for _, filter := range filters {
		for _, tag := range tags {
			if tag == filter {
				return true
			}
		}
	}
	return false
}
