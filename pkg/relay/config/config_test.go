package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"servers": [{
			"server_address": "127.0.0.1",
			"server_name": "example",
			"ports": ["8080", "8081"],
			"client_max_body_size": "2m",
			"error_pages": { "404": "404.html" },
			"session": { "name": "SID", "options": { "http_only": true, "max_age": 60 } },
			"routes": [
				{ "path": "/", "methods": ["GET"], "root": "site", "default_page": "index.html" },
				{ "path": "/run", "methods": ["GET", "POST"], "cgi": { "script_file_name": "run.py" } },
				{ "path": "/secret", "methods": ["GET"], "root": "site", "session_required": true, "session_redirect": "/login" }
			]
		}]
	}`), 0o644))

	f, err := Load(path)
	require.NoError(t, err)
	require.Len(t, f.Servers, 1)

	h := f.Servers[0]
	assert.Equal(t, "example", h.ServerName)
	assert.Equal(t, []string{"8080", "8081"}, h.Ports)
	assert.Equal(t, 2*1024*1024, h.MaxBodySize())
	assert.Equal(t, "404.html", h.ErrorPages["404"])
	require.NotNil(t, h.Session)
	assert.Equal(t, "SID", h.Session.Name)
	require.NotNil(t, h.Session.Options.MaxAge)
	assert.Equal(t, int64(60), *h.Session.Options.MaxAge)

	require.Len(t, h.Routes, 3)
	assert.Equal(t, "/run", h.Routes[1].Path)
	require.NotNil(t, h.Routes[1].CGI)
	assert.Equal(t, "run.py", h.Routes[1].CGI.ScriptFileName)
	assert.True(t, h.Routes[2].SessionRequired)
}

func TestLoadRejectsBadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{nope"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestParseBodySize(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", DefaultMaxBodySize, false},
		{"1024", 1024, false},
		{"8k", 8 * 1024, false},
		{"8K", 8 * 1024, false},
		{"10m", 10 * 1024 * 1024, false},
		{"2M", 2 * 1024 * 1024, false},
		{"lots", DefaultMaxBodySize, true},
		{"-4k", DefaultMaxBodySize, true},
	}
	for _, tt := range tests {
		got, err := ParseBodySize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
		} else {
			assert.NoError(t, err, tt.in)
		}
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestValidateSplitsCriticalAndWarning(t *testing.T) {
	f := &File{Servers: []Host{
		{
			ServerName: "good",
			Ports:      []string{"8080"},
			Routes:     []Route{{Path: "/", Root: "site"}},
		},
		{
			// Critical: no ports.
			ServerName: "portless",
			Routes:     []Route{{Path: "/", Root: "site"}},
		},
		{
			// Warning only: aimless route still starts.
			ServerName: "aimless",
			Ports:      []string{"8081"},
			Routes:     []Route{{Path: "/nothing"}},
		},
	}}

	hosts, findings := f.Validate()
	names := make([]string, 0, len(hosts))
	for _, h := range hosts {
		names = append(names, h.ServerName)
	}
	assert.Equal(t, []string{"good", "aimless"}, names)

	var criticals, warnings int
	for _, fd := range findings {
		if fd.Severity == Critical {
			criticals++
		} else {
			warnings++
		}
	}
	assert.Equal(t, 1, criticals)
	assert.GreaterOrEqual(t, warnings, 1)
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name string
		host Host
	}{
		{"missing name", Host{Ports: []string{"8080"}}},
		{"bad port", Host{ServerName: "h", Ports: []string{"eighty"}}},
		{"port out of range", Host{ServerName: "h", Ports: []string{"70000"}}},
		{"route without path", Host{ServerName: "h", Ports: []string{"8080"}, Routes: []Route{{}}}},
		{"relative route path", Host{ServerName: "h", Ports: []string{"8080"}, Routes: []Route{{Path: "oops"}}}},
		{"session cookie unnamed", Host{ServerName: "h", Ports: []string{"8080"}, Session: &Session{}}},
		{"session required without session", Host{ServerName: "h", Ports: []string{"8080"},
			Routes: []Route{{Path: "/s", SessionRequired: true}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &File{Servers: []Host{tt.host}}
			hosts, findings := f.Validate()
			assert.Empty(t, hosts)
			assert.NotEmpty(t, findings)
		})
	}
}

func TestValidateDuplicateServerName(t *testing.T) {
	f := &File{Servers: []Host{
		{ServerName: "dup", Ports: []string{"8080"}},
		{ServerName: "dup", Ports: []string{"8081"}},
	}}
	hosts, _ := f.Validate()
	require.Len(t, hosts, 1)
}
