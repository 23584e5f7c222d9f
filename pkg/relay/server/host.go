package server

import (
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/metrics"
	"github.com/yourusername/relay/pkg/relay/session"
	"github.com/yourusername/relay/pkg/relay/upload"
)

// Host is one virtual host: its listening endpoints, its routes, and
// the services its handlers need. Connections refer to hosts by name,
// never by owning reference, so teardown stays acyclic.
type Host struct {
	ServerName    string
	ServerAddress string
	Listeners     []*Listener
	Routes        []*Route

	SessionManager *session.Manager
	Uploader       *upload.Registry

	// ErrorPages maps status code strings to pages relative to
	// ErrorPageRoot.
	ErrorPages    map[string]string
	ErrorPageRoot string

	// MaxBodySize caps one buffered request on this host's connections.
	MaxBodySize int

	// MetricsEnabled mounts GET /metrics on this host.
	MetricsEnabled bool

	log *zap.Logger
}

// NewHost builds a host and binds one listener per port.
func NewHost(address, name string, ports []string, log *zap.Logger) (*Host, error) {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Host{
		ServerName:    name,
		ServerAddress: address,
		MaxBodySize:   http11.DefaultMaxRequestSize,
		log:           log.With(zap.String("host", name)),
	}
	for _, port := range ports {
		l, err := NewListener(address, port)
		if err != nil {
			for _, open := range h.Listeners {
				open.Close()
			}
			return nil, err
		}
		h.Listeners = append(h.Listeners, l)
		h.log.Info("listener bound", zap.String("addr", address+":"+port), zap.Int("fd", l.FD))
	}
	return h, nil
}

// AddRoute appends a route, deriving its matcher from the path when the
// caller did not set one.
func (h *Host) AddRoute(r *Route) {
	if r.Matcher == nil {
		r.Matcher = MatcherFromPath(r.Path)
	}
	h.Routes = append(h.Routes, r)
}

// AddSessionAPI mounts the session endpoints a session-configured host
// exposes: create (no session needed) and delete (session required).
func (h *Host) AddSessionAPI() {
	h.AddRoute(&Route{
		Path:    "/api/session/create",
		Methods: []http11.Method{http11.MethodPOST},
	})
	h.AddRoute(&Route{
		Path:            "/api/session/delete",
		Methods:         []http11.Method{http11.MethodDELETE},
		SessionRequired: true,
	})
}

// MatchListener reports whether fd is one of this host's listeners.
func (h *Host) MatchListener(fd int) bool {
	for _, l := range h.Listeners {
		if l.FD == fd {
			return true
		}
	}
	return false
}

// GetListener returns the listener bound to fd, nil when absent.
func (h *Host) GetListener(fd int) *Listener {
	for _, l := range h.Listeners {
		if l.FD == fd {
			return l
		}
	}
	return nil
}

// GetRoute selects the route for a request path, in order: exact match,
// parameterised match, then a static-files fallback whose root contains
// the path as a file. Returns nil when nothing matches.
func (h *Host) GetRoute(path string) *Route {
	for _, r := range h.Routes {
		if r.Matcher.kind == MatchExact && r.Matcher.Matches(path) {
			return r
		}
	}
	for _, r := range h.Routes {
		if r.Matcher.kind == MatchDynamic && r.Matcher.Matches(path) {
			return r
		}
	}
	for _, r := range h.Routes {
		if r.StaticFiles != nil && r.StaticFiles.ContainsFile(path) {
			return r
		}
	}
	return nil
}

// RouteRequest dispatches a matched route: redirects, the method
// filter, the session middleware, then the handler picked by URI prefix
// and route configuration.
func (h *Host) RouteRequest(req *http11.Request, route *Route, m *metrics.Metrics) (*http11.Response, error) {
	req.Params = route.Matcher.ExtractParams(req.URI)

	// A redirect route answers 301 for its exact path, unless the
	// static fallback would serve the URI as a real file.
	if req.URI == route.Path && route.Redirect != "" {
		if route.StaticFiles == nil || !route.StaticFiles.ContainsFile(req.URI) {
			h.log.Debug("redirect", zap.String("from", req.URI), zap.String("to", route.Redirect))
			return http11.RedirectResponse(http11.StatusMovedPermanently, route.Redirect), nil
		}
	}

	if !route.MethodAllowed(req.Method) {
		return nil, methodNotAllowed()
	}

	var cookieHeader string
	if c := req.Header(http11.HeaderCookie); c != nil {
		cookieHeader = c.Value
	}
	if _, err := session.Middleware(h.SessionManager, route.SessionRequired,
		route.SessionRedirect, cookieHeader); err != nil {
		return nil, err
	}

	switch {
	case strings.HasPrefix(req.URI, "/api/files"):
		if h.Uploader == nil {
			return nil, serviceUnavailable("file upload service is not available")
		}
		return (&FileAPIHandler{Registry: h.Uploader}).ServeHTTP(req, route)

	case strings.HasPrefix(req.URI, "/api/session"):
		if h.SessionManager == nil {
			return nil, serviceUnavailable("session service is not available")
		}
		return (&SessionHandler{Manager: h.SessionManager}).ServeHTTP(req, route)

	case h.MetricsEnabled && req.URI == "/metrics" && m != nil:
		return (&MetricsHandler{Metrics: m}).ServeHTTP(req, route)

	case route.CGI != nil:
		return (&CGIHandler{Executor: route.CGI}).ServeHTTP(req, route)

	case route.StaticFiles != nil:
		return (&StaticFileHandler{Files: route.StaticFiles}).ServeHTTP(req, route)
	}
	return nil, notFound("no handler for " + req.URI)
}
