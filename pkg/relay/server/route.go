package server

import (
	"strings"

	"github.com/samber/lo"

	"github.com/yourusername/relay/pkg/relay/cgi"
	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/static"
)

// MatcherKind distinguishes the three ways a route can match a path.
type MatcherKind uint8

const (
	// MatchExact matches the literal route path.
	MatchExact MatcherKind = iota

	// MatchDynamic matches parameterised paths: segments starting with
	// ':' bind any one segment, the rest match literally, segment
	// counts must agree.
	MatchDynamic

	// MatchStaticFile matches when the route's static root contains the
	// request path as a file.
	MatchStaticFile
)

// Matcher decides whether a request path selects a route.
type Matcher struct {
	kind     MatcherKind
	exact    string
	segments []string
	files    *static.ServerStaticFiles
}

// MatcherFromPath builds the matcher for a configured route path:
// dynamic when the path carries ':' placeholders, exact otherwise.
func MatcherFromPath(path string) *Matcher {
	if strings.Contains(path, ":") {
		return &Matcher{kind: MatchDynamic, segments: splitSegments(path)}
	}
	return &Matcher{kind: MatchExact, exact: path}
}

// StaticFileMatcher builds the fallback matcher over a static root.
func StaticFileMatcher(files *static.ServerStaticFiles) *Matcher {
	return &Matcher{kind: MatchStaticFile, files: files}
}

// Matches reports whether path selects this matcher.
func (m *Matcher) Matches(path string) bool {
	switch m.kind {
	case MatchExact:
		return m.exact == path
	case MatchDynamic:
		got := splitSegments(path)
		if len(got) != len(m.segments) {
			return false
		}
		for i, want := range m.segments {
			if !strings.HasPrefix(want, ":") && want != got[i] {
				return false
			}
		}
		return true
	case MatchStaticFile:
		return m.files != nil && m.files.ContainsFile(path)
	}
	return false
}

// ExtractParams binds the ':name' placeholders of a dynamic matcher to
// the corresponding request segments.
func (m *Matcher) ExtractParams(path string) map[string]string {
	params := map[string]string{}
	if m.kind != MatchDynamic {
		return params
	}
	got := splitSegments(path)
	for i, want := range m.segments {
		if strings.HasPrefix(want, ":") && i < len(got) {
			params[want[1:]] = got[i]
		}
	}
	return params
}

func splitSegments(path string) []string {
	return lo.Filter(strings.Split(strings.TrimSuffix(path, "/"), "/"),
		func(s string, _ int) bool { return s != "" })
}

// Route is one configured route of a host.
type Route struct {
	Path            string
	Methods         []http11.Method
	StaticFiles     *static.ServerStaticFiles
	CGI             *cgi.Executor
	Redirect        string
	SessionRequired bool
	SessionRedirect string
	Matcher         *Matcher
}

// MethodAllowed reports whether the request method passes the route's
// method set. An empty set allows every method.
func (r *Route) MethodAllowed(m http11.Method) bool {
	if len(r.Methods) == 0 {
		return true
	}
	return lo.Contains(r.Methods, m)
}
