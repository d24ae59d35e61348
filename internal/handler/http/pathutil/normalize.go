// Package pathutil turns ID-bearing request paths into fixed templates for
// metric labels.
package pathutil

import (
	"regexp"
	"strings"
)

type pattern struct {
	re       *regexp.Regexp
	template string
}

// Track IDs are numeric catalog IDs, so \d+ covers every dynamic segment
// this API has.
var patterns = []pattern{
	{re: regexp.MustCompile(`^/recommendations/\d+$`), template: "/recommendations/:id"},
	{re: regexp.MustCompile(`^/tracks/\d+$`), template: "/tracks/:id"},
	{re: regexp.MustCompile(`^/tracks/\d+/similar$`), template: "/tracks/:id/similar"},
}

// NormalizePath maps a request path onto its route template, leaving static
// paths like /search or /identify untouched. Query strings and trailing
// slashes are stripped first.
func NormalizePath(path string) string {
	if idx := strings.IndexByte(path, '?'); idx != -1 {
		path = path[:idx]
	}
	if len(path) > 1 && path[len(path)-1] == '/' {
		path = path[:len(path)-1]
	}
	for _, p := range patterns {
		if p.re.MatchString(path) {
			return p.template
		}
	}
	return path
}

// GetExpectedCardinality estimates how many distinct path labels the
// metrics can carry after normalization, for alerting on label growth.
func GetExpectedCardinality() int {
	const staticEndpoints = 8
	return len(patterns) + staticEndpoints
}
