// Package cli implements the kestrel command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kestrelgraph/kestrel-go/driver"
	"github.com/kestrelgraph/kestrel-go/internal/config"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Address    string // overrides the config file when set
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kestrel CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kestrel",
		Short: "Kestrel - graph-query engine client",
		Long:  "Command-line client for the Kestrel graph-query engine: database administration and query execution.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			driver.InitLogging(opts.Verbose)
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Address, "address", "", "engine address (overrides config)")

	cmd.AddCommand(NewDatabasesCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))

	return cmd
}

// loadConfig resolves the effective configuration from the config file,
// defaults, and flag overrides.
func loadConfig(opts *RootOptions) (*config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "loading config", err)
		}
		cfg = loaded
	}
	if opts.Address != "" {
		cfg.Address = opts.Address
	}
	return cfg, nil
}

// openDriver connects to the engine named by the effective configuration.
func openDriver(opts *RootOptions) (*driver.Driver, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	return openConfigured(cfg)
}

// openConfigured connects using an already-resolved configuration. The
// worker count sizes the process-wide pool; a one-shot CLI process always
// connects before any query runs, so the hint takes effect here.
func openConfigured(cfg *config.Config) (*driver.Driver, error) {
	driver.SetWorkers(cfg.Workers)
	d, err := driver.OpenWithTLS(cfg.Address, cfg.Username, cfg.Password, cfg.TLS.Enabled, cfg.TLS.RootCA)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "connecting to "+cfg.Address, err)
	}
	return d, nil
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
