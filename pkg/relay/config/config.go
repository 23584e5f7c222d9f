// Package config loads and validates the server configuration file the
// core consumes: hosts, routes, session and error-page settings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/samber/lo"
)

// DefaultMaxBodySize applies when client_max_body_size is absent.
const DefaultMaxBodySize = 10 * 1024 * 1024

// File is the top-level configuration document.
type File struct {
	Servers []Host `json:"servers"`
}

// Host configures one virtual host.
type Host struct {
	ServerAddress     string            `json:"server_address"`
	ServerName        string            `json:"server_name"`
	Ports             []string          `json:"ports"`
	Routes            []Route           `json:"routes"`
	ErrorPages        map[string]string `json:"error_pages"`
	ClientMaxBodySize string            `json:"client_max_body_size"`
	Session           *Session          `json:"session"`
	Metrics           bool              `json:"metrics"`
}

// Route configures one route of a host.
type Route struct {
	Path             string   `json:"path"`
	Methods          []string `json:"methods"`
	Root             string   `json:"root"`
	DefaultPage      string   `json:"default_page"`
	DirectoryListing bool     `json:"directory_listing"`
	CGI              *CGI     `json:"cgi"`
	Redirect         string   `json:"redirect"`
	SessionRequired  bool     `json:"session_required"`
	SessionRedirect  string   `json:"session_redirect"`
	UploadDir        string   `json:"upload_dir"`
}

// CGI configures a route's CGI script.
type CGI struct {
	ScriptFileName string `json:"script_file_name"`
	Interpreter    string `json:"interpreter"`
}

// Session configures a host's session cookie.
type Session struct {
	Name    string          `json:"name"`
	Options *SessionOptions `json:"options"`
}

// SessionOptions are the cookie attributes. Expires is seconds from
// cookie creation.
type SessionOptions struct {
	HTTPOnly bool   `json:"http_only"`
	Secure   bool   `json:"secure"`
	MaxAge   *int64 `json:"max_age"`
	Path     string `json:"path"`
	Expires  *int64 `json:"expires"`
	Domain   string `json:"domain"`
	SameSite string `json:"same_site"`
}

// Severity classifies a validation finding.
type Severity uint8

const (
	// Warning findings are logged; the host still starts.
	Warning Severity = iota

	// Critical findings reject the host.
	Critical
)

// Finding is one validation result, attributed to a host.
type Finding struct {
	Severity Severity
	Host     string
	Message  string
}

func (f Finding) String() string {
	sev := "warning"
	if f.Severity == Critical {
		sev = "critical"
	}
	return fmt.Sprintf("[%s] host %q: %s", sev, f.Host, f.Message)
}

// Load reads and decodes the configuration file.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &f, nil
}

// Validate checks every host and splits them into the survivors and the
// aggregated findings. Callers refuse to start when no host survives.
func (f *File) Validate() ([]Host, []Finding) {
	var findings []Finding
	seen := map[string]bool{}

	hosts := lo.Filter(f.Servers, func(h Host, _ int) bool {
		critical := false
		name := h.ServerName

		if h.ServerName == "" {
			findings = append(findings, Finding{Critical, name, "server_name is required"})
			critical = true
		}
		if seen[h.ServerName] {
			findings = append(findings, Finding{Critical, name, "duplicate server_name"})
			critical = true
		}
		seen[h.ServerName] = true

		if len(h.Ports) == 0 {
			findings = append(findings, Finding{Critical, name, "at least one port is required"})
			critical = true
		}
		if len(lo.Uniq(h.Ports)) != len(h.Ports) {
			findings = append(findings, Finding{Warning, name, "duplicate ports collapse to one listener"})
		}
		for _, port := range h.Ports {
			if n, err := strconv.Atoi(port); err != nil || n < 1 || n > 65535 {
				findings = append(findings, Finding{Critical, name, "invalid port: " + port})
				critical = true
			}
		}

		if h.ServerAddress == "" {
			findings = append(findings, Finding{Warning, name, "server_address empty, binding 0.0.0.0"})
		}

		if _, err := ParseBodySize(h.ClientMaxBodySize); err != nil {
			findings = append(findings, Finding{Warning, name,
				"unparseable client_max_body_size, using default: " + h.ClientMaxBodySize})
		}

		if h.Session != nil && h.Session.Name == "" {
			findings = append(findings, Finding{Critical, name, "session block requires a cookie name"})
			critical = true
		}

		for _, r := range h.Routes {
			if r.Path == "" {
				findings = append(findings, Finding{Critical, name, "route without a path"})
				critical = true
				continue
			}
			if !strings.HasPrefix(r.Path, "/") {
				findings = append(findings, Finding{Critical, name, "route path must start with '/': " + r.Path})
				critical = true
			}
			for _, m := range r.Methods {
				if !knownMethod(m) {
					findings = append(findings, Finding{Warning, name,
						fmt.Sprintf("route %s: unknown method %q ignored", r.Path, m)})
				}
			}
			if r.Root == "" && r.CGI == nil && r.Redirect == "" && r.UploadDir == "" {
				findings = append(findings, Finding{Warning, name,
					"route " + r.Path + " has no root, cgi, redirect or upload_dir"})
			}
			if r.SessionRequired && h.Session == nil {
				findings = append(findings, Finding{Critical, name,
					"route " + r.Path + " requires sessions but the host has no session block"})
				critical = true
			}
		}

		return !critical
	})

	return hosts, findings
}

// MaxBodySize resolves the host's body cap in bytes.
func (h *Host) MaxBodySize() int {
	size, err := ParseBodySize(h.ClientMaxBodySize)
	if err != nil {
		return DefaultMaxBodySize
	}
	return size
}

// ParseBodySize interprets a size literal: suffix 'k' → KiB, 'm' → MiB,
// bare number → bytes, empty → default.
func ParseBodySize(s string) (int, error) {
	if s == "" {
		return DefaultMaxBodySize, nil
	}
	lower := strings.ToLower(strings.TrimSpace(s))
	mult := 1
	switch {
	case strings.HasSuffix(lower, "k"):
		mult = 1024
		lower = strings.TrimSuffix(lower, "k")
	case strings.HasSuffix(lower, "m"):
		mult = 1024 * 1024
		lower = strings.TrimSuffix(lower, "m")
	}
	n, err := strconv.Atoi(lower)
	if err != nil || n <= 0 {
		return DefaultMaxBodySize, fmt.Errorf("config: invalid size %q", s)
	}
	return n * mult, nil
}

func knownMethod(m string) bool {
	switch strings.ToUpper(m) {
	case "GET", "POST", "DELETE", "PUT", "PATCH", "OPTIONS", "HEAD", "CONNECT", "TRACE":
		return true
	}
	return false
}
