package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hstin/xy2osm/internal/db"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "history",
		Short: "List recent extractions from the ledger",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, args []string) error {
			if a.cfg.Ledger.Path == "" {
				return errors.New("no ledger configured, set --ledger or ledger.path")
			}

			ledger, err := db.Open(a.cfg.Ledger.Path)
			if err != nil {
				return fmt.Errorf("failed to open ledger: %w", err)
			}
			defer ledger.Close()

			rows, err := ledger.Recent(c.Context(), limit)
			if err != nil {
				return fmt.Errorf("failed to read ledger: %w", err)
			}

			tab := tabwriter.NewWriter(c.OutOrStdout(), 0, 8, 2, ' ', 0)
			fmt.Fprintf(tab, "ID\tWHEN\tTILE\tOUTPUT\tEXIT\tDURATION\tBOX\n")
			for _, r := range rows {
				fmt.Fprintf(tab, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.ID, r.CreatedAt.Local().Format(time.DateTime), r.Tile, r.Output,
					r.ExitCode, r.Duration, r.Padded)
			}
			return tab.Flush()
		},
	}

	c.Flags().IntVar(&limit, "limit", 20, "number of rows to show")
	return c
}
