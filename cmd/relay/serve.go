package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/relay/pkg/relay/config"
	"github.com/yourusername/relay/pkg/relay/metrics"
	"github.com/yourusername/relay/pkg/relay/server"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		sitesDir   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Load the configuration and run the reactor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer log.Sync()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			valid, findings := cfg.Validate()
			for _, f := range findings {
				if f.Severity == config.Critical {
					log.Error("config", zap.String("finding", f.String()))
				} else {
					log.Warn("config", zap.String("finding", f.String()))
				}
			}

			hosts := server.BuildHosts(valid, sitesDir, log, time.Now)
			if len(hosts) == 0 {
				return fmt.Errorf("no host survived configuration validation")
			}

			srv, err := server.New(log, metrics.New(), time.Now)
			if err != nil {
				return err
			}
			defer srv.Close()
			for _, h := range hosts {
				if err := srv.AddHost(h); err != nil {
					return err
				}
			}

			printBanner(hosts, sitesDir)
			return srv.Run()
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "configuration file")
	cmd.Flags().StringVarP(&sitesDir, "sites", "s", defaultSitesDir(), "site roots directory")
	return cmd
}

func printBanner(hosts []*server.Host, sitesDir string) {
	fmt.Printf(`
  ═══════════════════════════════════════════
   relay — single-threaded HTTP/1.1 reactor
   started:   %s
   hosts:     %d
   sites dir: %s
  ═══════════════════════════════════════════
`, time.Now().Format("2006-01-02 15:04:05"), len(hosts), sitesDir)
	for _, h := range hosts {
		for _, l := range h.Listeners {
			fmt.Printf("   %-20s http://%s:%s\n", h.ServerName, addrOrWildcard(l.Addr), l.Port)
		}
	}
	fmt.Println()
}

func addrOrWildcard(addr string) string {
	if addr == "" {
		return "0.0.0.0"
	}
	return addr
}
