// Package cli implements repairctl, a headless driver for repair sessions.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/repairdesk/internal/config"
	"github.com/JonMunkholm/repairdesk/internal/logging"
	"github.com/JonMunkholm/repairdesk/internal/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	Remote     string

	cfg *config.Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for repairctl.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "repairctl",
		Short: "Repair dirty table cells from the command line",
		Long: `repairctl drives a repair session without the web UI.

It ingests a CSV, JSONL or XLSX file, sends the filtered cells of one column
to the repair service, and can commit the proposals, record the audit batch
and write the repaired table.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", os.Getenv(config.FileEnv), "path to a YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Remote, "remote", "", "repair service URL (overrides config)")

	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewLogNameCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// load reads configuration and points logging at stderr so stdout stays
// clean for command output.
func (o *RootOptions) load() error {
	cfg, err := config.LoadFile(o.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.Remote != "" {
		cfg.Remote.BaseURL = o.Remote
	}
	level := cfg.Logging.Level
	if o.Verbose {
		level = "debug"
	}
	logging.SetupWriter(os.Stderr, level, cfg.Logging.Format)
	o.cfg = cfg
	return nil
}

func (o *RootOptions) client() *remote.Client {
	return remote.New(o.cfg.Remote.BaseURL)
}
