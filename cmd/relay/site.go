package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/yourusername/relay/pkg/relay/config"
)

// siteIndexPage seeds a freshly scaffolded site root.
const siteIndexPage = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>%s</title></head>
<body>
  <h1>%s</h1>
  <p>Scaffolded by relay. Drop your files here.</p>
</body>
</html>
`

func newSiteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Create and list local sites",
	}
	cmd.AddCommand(newSiteCreateCmd())
	cmd.AddCommand(newSiteListCmd())
	return cmd
}

func newSiteCreateCmd() *cobra.Command {
	var (
		name    string
		address string
		ports   string
		cgiBin  bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Scaffold a site directory and register its host",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if name == "" {
				return fmt.Errorf("--name is required")
			}

			siteDir := filepath.Join(defaultSitesDir(), name)
			if err := os.MkdirAll(siteDir, 0o755); err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Join(siteDir, "upload"), 0o755); err != nil {
				return err
			}
			if cgiBin {
				if err := os.MkdirAll(filepath.Join(siteDir, "cgi-bin"), 0o755); err != nil {
					return err
				}
			}
			indexPath := filepath.Join(siteDir, "index.html")
			if _, err := os.Stat(indexPath); os.IsNotExist(err) {
				page := fmt.Sprintf(siteIndexPage, name, name)
				if err := os.WriteFile(indexPath, []byte(page), 0o644); err != nil {
					return err
				}
			}

			host := config.Host{
				ServerAddress: address,
				ServerName:    name,
				Ports:         splitPorts(ports),
				Routes: []config.Route{{
					Path:        "/",
					Methods:     []string{"GET"},
					Root:        name,
					DefaultPage: "index.html",
					UploadDir:   filepath.Join(name, "upload"),
				}},
			}
			if err := appendHost(host); err != nil {
				return err
			}

			fmt.Printf("site %q created at %s\n", name, siteDir)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "server name")
	cmd.Flags().StringVarP(&address, "address", "a", "127.0.0.1", "server address")
	cmd.Flags().StringVarP(&ports, "ports", "p", "8080", "comma-separated ports")
	cmd.Flags().BoolVar(&cgiBin, "cgi-bin", false, "create a cgi-bin directory")
	return cmd
}

func newSiteListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the configured sites",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadOrEmptyConfig()
			if err != nil {
				return err
			}
			if len(cfg.Servers) == 0 {
				fmt.Println("no sites configured")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tADDRESS\tPORTS\tROUTES")
			for _, h := range cfg.Servers {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n",
					h.ServerName, h.ServerAddress, strings.Join(h.Ports, ","), len(h.Routes))
			}
			return w.Flush()
		},
	}
}

// appendHost adds a host to the shared config file, creating it on
// first use. An existing host with the same name is replaced.
func appendHost(host config.Host) error {
	cfg, err := loadOrEmptyConfig()
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range cfg.Servers {
		if existing.ServerName == host.ServerName {
			cfg.Servers[i] = host
			replaced = true
			break
		}
	}
	if !replaced {
		cfg.Servers = append(cfg.Servers, host)
	}

	if err := os.MkdirAll(relayHome(), 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(defaultConfigPath(), raw, 0o644)
}

// splitPorts turns a comma-separated ports flag value into a slice,
// trimming whitespace and dropping empty entries.
func splitPorts(s string) []string {
	var ports []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			ports = append(ports, p)
		}
	}
	return ports
}

func loadOrEmptyConfig() (*config.File, error) {
	cfg, err := config.Load(defaultConfigPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &config.File{}, nil
		}
		return nil, err
	}
	return cfg, nil
}
