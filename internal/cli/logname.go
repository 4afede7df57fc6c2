package cli

import (
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/repairdesk/internal/dataset"
)

// NewLogNameCommand creates the logname command.
func NewLogNameCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logname <file>",
		Short: "Print the audit log name a file's repairs are recorded under",
		Example: `  repairctl logname orders_dirty.csv
  history_log_orders`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := dataset.LogName(args[0])
			p := &Printer{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return p.Success(map[string]string{"file": args[0], "logName": name}, name)
		},
	}
}
