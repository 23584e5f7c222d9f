package server

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/relay/pkg/relay/cgi"
	"github.com/yourusername/relay/pkg/relay/config"
	"github.com/yourusername/relay/pkg/relay/http11"
	"github.com/yourusername/relay/pkg/relay/session"
	"github.com/yourusername/relay/pkg/relay/static"
	"github.com/yourusername/relay/pkg/relay/upload"
)

// BuildHosts wires validated configuration hosts into runnable ones:
// listeners bound, static roots opened, CGI executors and the session
// and upload services constructed. Hosts that fail to bind or wire are
// dropped with a log line; the caller refuses to start when none
// survive.
func BuildHosts(cfgHosts []config.Host, sitesDir string, log *zap.Logger, now func() time.Time) []*Host {
	if log == nil {
		log = zap.NewNop()
	}
	var hosts []*Host
	for _, hc := range cfgHosts {
		h, err := buildHost(hc, sitesDir, log, now)
		if err != nil {
			log.Error("host rejected", zap.String("host", hc.ServerName), zap.Error(err))
			continue
		}
		hosts = append(hosts, h)
	}
	return hosts
}

func buildHost(hc config.Host, sitesDir string, log *zap.Logger, now func() time.Time) (*Host, error) {
	h, err := NewHost(hc.ServerAddress, hc.ServerName, hc.Ports, log)
	if err != nil {
		return nil, err
	}
	h.MaxBodySize = hc.MaxBodySize()
	h.ErrorPages = hc.ErrorPages
	h.MetricsEnabled = hc.Metrics

	if hc.Session != nil {
		h.SessionManager = session.NewManager(sessionConfig(hc.Session), nil, log, now)
	}

	for _, rc := range hc.Routes {
		route := &Route{
			Path:            rc.Path,
			Redirect:        rc.Redirect,
			SessionRequired: rc.SessionRequired,
			SessionRedirect: rc.SessionRedirect,
		}
		for _, m := range rc.Methods {
			if id := http11.ParseMethodString(m); id != http11.MethodUnknown {
				route.Methods = append(route.Methods, id)
			}
		}

		if rc.Root != "" {
			root := resolvePath(sitesDir, rc.Root)
			files, err := static.New(root, rc.DefaultPage, rc.DirectoryListing, hc.ErrorPages, log)
			if err != nil {
				log.Warn("static root unusable",
					zap.String("host", hc.ServerName),
					zap.String("route", rc.Path),
					zap.Error(err))
			} else {
				route.StaticFiles = files
				if h.ErrorPageRoot == "" {
					h.ErrorPageRoot = files.Root()
				}
			}
		}

		if rc.CGI != nil {
			script := filepath.Join(resolvePath(sitesDir, rc.Root), "cgi-bin", rc.CGI.ScriptFileName)
			cfg := cgi.NewConfig(script)
			if rc.CGI.Interpreter != "" {
				cfg.Interpreter = rc.CGI.Interpreter
			}
			route.CGI = cgi.NewExecutor(cfg, log)
		}

		if rc.UploadDir != "" && h.Uploader == nil {
			reg, err := upload.NewRegistry(resolvePath(sitesDir, rc.UploadDir), log)
			if err != nil {
				log.Warn("upload directory unusable",
					zap.String("host", hc.ServerName), zap.Error(err))
			} else {
				if err := reg.Watch(); err != nil {
					log.Warn("upload watcher unavailable", zap.Error(err))
				}
				h.Uploader = reg
			}
		}

		h.AddRoute(route)
	}

	if h.MetricsEnabled {
		h.AddRoute(&Route{Path: "/metrics", Methods: []http11.Method{http11.MethodGET}})
	}
	if h.SessionManager != nil {
		h.AddSessionAPI()
	}
	return h, nil
}

// sessionConfig maps the configuration cookie block to the manager's.
func sessionConfig(sc *config.Session) session.Config {
	cfg := session.Config{CookieName: sc.Name}
	if sc.Options == nil {
		return cfg
	}
	opts := http11.CookieOptions{
		HTTPOnly:    sc.Options.HTTPOnly,
		Secure:      sc.Options.Secure,
		MaxAge:      sc.Options.MaxAge,
		Path:        sc.Options.Path,
		Domain:      sc.Options.Domain,
		SameSite:    http11.ParseSameSite(sc.Options.SameSite),
		SameSiteSet: true,
	}
	if sc.Options.Expires != nil {
		exp := time.Now().Add(time.Duration(*sc.Options.Expires) * time.Second)
		opts.Expires = &exp
	}
	cfg.Options = opts
	return cfg
}

func resolvePath(sitesDir, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(sitesDir, p)
}
