// Package static resolves request paths inside a site root and serves
// files, directory listings, the default landing page and error pages.
package static

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/yourusername/relay/pkg/relay/http11"
)

// Typed static-file errors (spec error taxonomy).

// NotFoundError marks a path that resolves to no regular file.
type NotFoundError struct{ Path string }

func (e *NotFoundError) Error() string { return "static: file not found: " + e.Path }

// AccessDeniedError marks a path that escapes the site root or a
// directory hit with listing disabled.
type AccessDeniedError struct{ Path string }

func (e *AccessDeniedError) Error() string { return "static: directory access denied: " + e.Path }

// Result is a resolved static response: content, media type and the
// status it should be served with (the custom 404 page keeps status 404).
type Result struct {
	Content []byte
	MIME    string
	Status  http11.StatusCode
}

// ServerStaticFiles serves files under one site root. It borrows the
// host's error-pages map read-only.
type ServerStaticFiles struct {
	root       string
	index      string
	listDir    bool
	errorPages map[string]string // status code string → path relative to root
	log        *zap.Logger
}

// New validates the root (and index, when given) and builds the server.
func New(directory, index string, listDirectory bool, errorPages map[string]string, log *zap.Logger) (*ServerStaticFiles, error) {
	if log == nil {
		log = zap.NewNop()
	}
	abs, err := filepath.Abs(directory)
	if err != nil {
		return nil, fmt.Errorf("static: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("static: root is not a directory: %s", directory)
	}
	if index != "" {
		if _, err := os.Stat(filepath.Join(abs, index)); err != nil {
			return nil, fmt.Errorf("static: index file not found: %s", index)
		}
	}
	return &ServerStaticFiles{
		root:       abs,
		index:      index,
		listDir:    listDirectory,
		errorPages: errorPages,
		log:        log,
	}, nil
}

// Root returns the absolute site root.
func (s *ServerStaticFiles) Root() string { return s.root }

// ContainsFile reports whether path (request form, leading slash
// allowed) names an existing regular file under the root. Used by the
// router's static-file fallback matcher.
func (s *ServerStaticFiles) ContainsFile(path string) bool {
	candidate, ok := s.resolve(path)
	if !ok {
		return false
	}
	info, err := os.Stat(candidate)
	return err == nil && info.Mode().IsRegular()
}

// resolve joins the request path to the root and confines the result.
// Any resolved path not prefixed by the root is rejected.
func (s *ServerStaticFiles) resolve(path string) (string, bool) {
	candidate := filepath.Join(s.root, strings.TrimPrefix(path, "/"))
	candidate = filepath.Clean(candidate)
	if candidate != s.root && !strings.HasPrefix(candidate, s.root+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}

// Serve resolves a request path:
//
//  1. directory + listing enabled → regenerated directory listing
//  2. directory + configured index (listing disabled) → the index file
//  3. empty path, no index → built-in landing page
//  4. any other directory → AccessDeniedError
//  5. otherwise → the file itself, or the 404 page
func (s *ServerStaticFiles) Serve(path string) (*Result, error) {
	candidate, ok := s.resolve(path)
	if !ok {
		return nil, &AccessDeniedError{Path: path}
	}

	if info, err := os.Stat(candidate); err == nil && info.IsDir() {
		if s.listDir {
			page, err := s.renderListing(candidate)
			if err != nil {
				return nil, err
			}
			return &Result{Content: page, MIME: "text/html", Status: http11.StatusOK}, nil
		}
		if s.index != "" {
			return s.serveFile(filepath.Join(candidate, s.index))
		}
		if strings.Trim(path, "/") == "" {
			return &Result{
				Content: []byte(defaultLandingPage),
				MIME:    "text/html",
				Status:  http11.StatusOK,
			}, nil
		}
		return nil, &AccessDeniedError{Path: path}
	}

	return s.serveFile(candidate)
}

// serveFile reads a regular file; a missing one falls through to the
// 404 page machinery.
func (s *ServerStaticFiles) serveFile(path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return s.notFound(path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return s.notFound(path)
	}
	return &Result{Content: content, MIME: MimeType(path), Status: http11.StatusOK}, nil
}

// notFound serves the host's custom 404 page when one is mapped, else
// the built-in template, always with status 404.
func (s *ServerStaticFiles) notFound(path string) (*Result, error) {
	if page, ok := s.ErrorPage(http11.StatusNotFound); ok {
		return &Result{Content: page, MIME: "text/html", Status: http11.StatusNotFound}, nil
	}
	s.log.Debug("no custom 404 page", zap.String("path", path))
	return &Result{
		Content: DefaultErrorPage(http11.StatusNotFound, "The requested resource was not found."),
		MIME:    "text/html",
		Status:  http11.StatusNotFound,
	}, nil
}

// ErrorPage loads the custom page mapped for a status, relative to the
// site root. Missing mapping or unreadable file reports false.
func (s *ServerStaticFiles) ErrorPage(status http11.StatusCode) ([]byte, bool) {
	rel, ok := s.errorPages[fmt.Sprintf("%d", int(status))]
	if !ok {
		return nil, false
	}
	candidate, ok := s.resolve(rel)
	if !ok {
		return nil, false
	}
	content, err := os.ReadFile(candidate)
	if err != nil {
		s.log.Warn("custom error page unreadable",
			zap.Int("status", int(status)), zap.String("path", rel), zap.Error(err))
		return nil, false
	}
	return content, true
}
