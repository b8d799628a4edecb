package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"hstin/xy2osm/internal/config"
	"hstin/xy2osm/internal/extract"
	"hstin/xy2osm/internal/geo"
)

func newLocateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "locate <lat> <lon>",
		Short: "Print the x_tile and y_tile whose box contains a point",
		Example: `  xy2osm locate 50.0875 14.4213
  xy2osm locate -- -33.8688 151.2093`,
		Args: func(c *cobra.Command, args []string) error {
			if len(args) != 2 {
				return &extract.UsageError{Reason: fmt.Sprintf("expected 2 arguments (lat lon), got %d", len(args))}
			}
			return nil
		},
		RunE: func(c *cobra.Command, args []string) error {
			lat, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return &extract.UsageError{Reason: fmt.Sprintf("invalid latitude %q", args[0])}
			}
			lon, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return &extract.UsageError{Reason: fmt.Sprintf("invalid longitude %q", args[1])}
			}

			tile := geo.Locate(lat, lon, config.ExtractZoom)
			raw, padded := extract.NewService(nil, a.options(), a.log).Box(tile)

			out := c.OutOrStdout()
			fmt.Fprintf(out, "%d %d\n", tile.X, tile.Y)
			fmt.Fprintf(out, "raw:    %s\n", raw)
			fmt.Fprintf(out, "padded: %s\n", padded)
			return nil
		},
	}
}
