// Command relay runs the multi-host HTTP/1.1 server and scaffolds the
// per-site directories it serves.
package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var verbose bool

func main() {
	root := &cobra.Command{
		Use:           "relay",
		Short:         "Multi-host HTTP/1.1 server over a single-threaded reactor",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newServeCmd())
	root.AddCommand(newSiteCmd())

	if err := root.Execute(); err != nil {
		// A fatal bind or reactor error exits non-zero; normal
		// operation never returns.
		zap.NewExample().Error("relay failed", zap.Error(err))
		os.Exit(1)
	}
}

// newLogger builds the process logger; debug level with --verbose.
func newLogger() (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	return cfg.Build()
}

// relayHome is the per-user state directory: config and site roots.
func relayHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".relay"
	}
	return filepath.Join(home, ".relay")
}

func defaultConfigPath() string { return filepath.Join(relayHome(), "config.json") }

func defaultSitesDir() string { return filepath.Join(relayHome(), "sites") }
