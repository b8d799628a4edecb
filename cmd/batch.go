package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hstin/xy2osm/internal/extract"
)

func newBatchCmd(a *app) *cobra.Command {
	c := &cobra.Command{
		Use:   "batch [flags] <input.osm> <tiles.txt>",
		Short: "Extract every tile listed in a file",
		Long: `Reads one "x y" pair per line from tiles.txt and extracts each tile from
input.osm into <out-dir>/<x>_<y>.osm. Lines starting with # are ignored.`,
		Args: func(c *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &extract.UsageError{Reason: fmt.Sprintf("expected 2 arguments (input.osm tiles.txt), got %d", len(args))}
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			list, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open tile list: %w", err)
			}
			defer list.Close()

			reqs, err := extract.ReadTileList(list, args[0], a.cfg.Batch.OutDir, a.cfg.Lenient)
			if err != nil {
				return fmt.Errorf("failed to read tile list: %w", err)
			}
			if err := os.MkdirAll(a.cfg.Batch.OutDir, 0755); err != nil {
				return err
			}

			svc, m, closeLedger, err := a.service()
			if err != nil {
				return err
			}
			defer closeLedger()

			a.log.Info("starting batch", "tiles", len(reqs), "workers", a.cfg.Batch.Workers)
			outcomes, runErr := svc.RunBatch(c.Context(), reqs, a.cfg.Batch.Workers)
			a.writeMetrics(m)

			failed := 0
			for _, out := range outcomes {
				if out.Failed() {
					failed++
				}
			}
			fmt.Fprintf(c.OutOrStdout(), "%d tiles, %d failed\n", len(reqs), failed)

			return runErr
		},
	}

	f := c.Flags()
	f.String("out-dir", ".", "directory for the extracted files")
	f.Int("workers", 0, "parallel osmosis runs (default: all available CPUs)")
	if err := a.v.BindPFlag("batch.out_dir", f.Lookup("out-dir")); err != nil {
		panic(err)
	}
	if err := a.v.BindPFlag("batch.workers", f.Lookup("workers")); err != nil {
		panic(err)
	}

	return c
}
