package gate

import (
	"fmt"
	"strings"

	pathToRegexp "github.com/soongo/path-to-regexp"
)

// Pattern is a compiled path-to-regexp route such as "/admin/:path*". A
// parameter is ":name" for exactly one path segment, ":name*" for zero or
// more and ":name+" for one or more. A trailing slash is optional.
type Pattern struct {
	raw   string
	match func(string) (*pathToRegexp.MatchResult, error)
}

func Compile(pattern string) (*Pattern, error) {
	if !strings.HasPrefix(pattern, "/") {
		return nil, fmt.Errorf("gate: pattern %q must start with /", pattern)
	}

	match, err := pathToRegexp.Match(pattern, nil)
	if err != nil {
		return nil, fmt.Errorf("gate: pattern %q: %w", pattern, err)
	}

	return &Pattern{raw: pattern, match: match}, nil
}

func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Pattern) String() string {
	return p.raw
}

// Match reports whether path matches and returns the captured parameters.
// Repeating parameters capture their segments joined by "/"; one that matched
// nothing is left out.
func (p *Pattern) Match(path string) (map[string]string, bool) {
	res, err := p.match(path)
	if err != nil || res == nil {
		return nil, false
	}

	params := make(map[string]string, len(res.Params))
	for k, v := range res.Params {
		params[fmt.Sprint(k)] = paramString(v)
	}

	return params, true
}

func paramString(v any) string {
	switch v := v.(type) {
	case string:
		return v
	case []string:
		return strings.Join(v, "/")
	case []any:
		parts := make([]string, 0, len(v))
		for _, s := range v {
			parts = append(parts, fmt.Sprint(s))
		}
		return strings.Join(parts, "/")
	default:
		return fmt.Sprint(v)
	}
}
