package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/repairdesk/internal/repair"
)

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "catalog",
		Short:         "List the reasoners and search indexes the repair service offers",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), rootOpts.cfg.Remote.CatalogTimeout)
			defer cancel()

			s := repair.NewSession(rootOpts.client(), nil, repair.Options{})
			cat, err := s.LoadCatalog(ctx)
			if err != nil {
				return WrapExitError(ExitFailure, "failed to load catalog", err)
			}

			p := &Printer{Format: rootOpts.Format, Writer: cmd.OutOrStdout()}
			return p.Success(cat, fmt.Sprintf("models:  %s\nindexes: %s",
				strings.Join(cat.Models, ", "), strings.Join(cat.Indexes, ", ")))
		},
	}
}
