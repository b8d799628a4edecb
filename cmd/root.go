package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"hstin/xy2osm/internal/colormap"
	"hstin/xy2osm/internal/config"
	"hstin/xy2osm/internal/db"
	"hstin/xy2osm/internal/extract"
	"hstin/xy2osm/internal/logging"
	"hstin/xy2osm/internal/metrics"
	"hstin/xy2osm/internal/osmosis"
	"hstin/xy2osm/internal/preview"
)

// Deps are the outside world the commands talk to.
type Deps struct {
	NewExtractor func(cfg *config.Config, log *slog.Logger) extract.Extractor
	Stdout       io.Writer
	Stderr       io.Writer
}

func DefaultDeps() Deps {
	return Deps{
		NewExtractor: func(cfg *config.Config, log *slog.Logger) extract.Extractor {
			r := osmosis.NewRunner(cfg.Osmosis.Path, cfg.Osmosis.Timeout)
			r.Log = log
			return r
		},
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
}

type app struct {
	deps    Deps
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
}

func newRootCmd(deps Deps) (*cobra.Command, *app) {
	a := &app{deps: deps, v: config.New()}

	root := &cobra.Command{
		Use:   "xy2osm [flags] <input.osm> <output.osm> <x_tile> <y_tile>",
		Short: "Clip an OSM file to a padded zoom 12 tile",
		Long: `Clips input.osm to the bounding box of a zoom 12 tile and writes output.osm
using osmosis. The box spans tile column x and the two rows 2y and 2y+1,
grown by the padding fraction (30% by default) on every side.`,
		Example: `  xy2osm czech.osm prague.osm 2210 697
  xy2osm world.osm west.osm -5 3
  xy2osm --ledger extracts.db --preview prague.webp czech.osm prague.osm 2210 697`,
		Args:              cobra.ArbitraryArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runExtract,
	}

	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &extract.UsageError{Reason: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./xy2osm.yaml or ./configs/xy2osm.yaml)")
	pf.Bool("lenient", false, "read tile coordinates by their leading number (fraction truncated, none gives 0) instead of failing")
	pf.Bool("symmetric-padding", false, "pad every edge by the fraction of the original span")
	pf.Float64("padding", config.DefaultPadding, "padding fraction added around the tile")
	pf.String("osmosis", config.DefaultOsmosis, "path of the osmosis binary")
	pf.Duration("timeout", 0, "kill osmosis after this long (0 waits forever)")
	pf.Bool("fail-on-error", false, "exit non-zero when osmosis fails")
	pf.String("ledger", "", "SQLite file recording every extraction")
	pf.String("metrics-file", "", "write Prometheus metrics to this textfile")
	pf.String("log-level", "info", "debug, info, warn or error")
	pf.String("log-format", "text", "text or json")

	f := root.Flags()
	// Flags end at input.osm so a negative x_tile or y_tile stays positional.
	f.SetInterspersed(false)
	f.String("preview", "", "write a WebP preview of the box to this path")
	f.String("palette", "", "palette file for the preview")

	bindings := map[string]string{
		"lenient":           "lenient",
		"symmetric-padding": "padding.symmetric",
		"padding":           "padding.fraction",
		"osmosis":           "osmosis.path",
		"timeout":           "osmosis.timeout",
		"fail-on-error":     "osmosis.fail_on_error",
		"ledger":            "ledger.path",
		"metrics-file":      "metrics.file",
		"log-level":         "log.level",
		"log-format":        "log.format",
	}
	for flag, key := range bindings {
		if err := a.v.BindPFlag(key, pf.Lookup(flag)); err != nil {
			panic(err)
		}
	}
	if err := a.v.BindPFlag("preview.path", f.Lookup("preview")); err != nil {
		panic(err)
	}
	if err := a.v.BindPFlag("preview.palette", f.Lookup("palette")); err != nil {
		panic(err)
	}

	root.AddCommand(newLocateCmd(a), newBatchCmd(a), newHistoryCmd(a))

	return root, a
}

func (a *app) setup(c *cobra.Command, args []string) error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = logging.Setup(cfg.Log.Level, cfg.Log.Format, a.deps.Stderr)
	return nil
}

func (a *app) options() extract.Options {
	return extract.Options{
		Padding:     a.cfg.Padding.Fraction,
		Symmetric:   a.cfg.Padding.Symmetric,
		FailOnError: a.cfg.Osmosis.FailOnError,
	}
}

// service wires the extractor, ledger and metrics. The returned func closes
// the ledger.
func (a *app) service() (*extract.Service, *metrics.Extraction, func(), error) {
	svc := extract.NewService(a.deps.NewExtractor(a.cfg, a.log), a.options(), a.log)
	m := metrics.New()
	svc.WithMetrics(m)

	closer := func() {}
	if a.cfg.Ledger.Path != "" {
		ledger, err := db.Open(a.cfg.Ledger.Path)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to open ledger: %w", err)
		}
		svc.WithRecorder(ledger)
		closer = func() { ledger.Close() }
	}
	return svc, m, closer, nil
}

func (a *app) writeMetrics(m *metrics.Extraction) {
	if a.cfg.Metrics.File == "" {
		return
	}
	if err := m.WriteFile(a.cfg.Metrics.File); err != nil {
		a.log.Warn("failed to write metrics", "file", a.cfg.Metrics.File, "error", err)
	}
}

func (a *app) runExtract(c *cobra.Command, args []string) error {
	req, err := extract.ParseRequest(args, a.cfg.Lenient)
	if err != nil {
		return err
	}

	svc, m, closeLedger, err := a.service()
	if err != nil {
		return err
	}
	defer closeLedger()

	out, runErr := svc.Run(c.Context(), req)
	a.writeMetrics(m)

	if a.cfg.Preview.Path != "" {
		if err := a.writePreview(out); err != nil {
			a.log.Warn("failed to write preview", "path", a.cfg.Preview.Path, "error", err)
		}
	}

	return runErr
}

func (a *app) writePreview(out extract.Outcome) error {
	palette := colormap.Default()
	if a.cfg.Preview.Palette != "" {
		p, err := colormap.Load(a.cfg.Preview.Palette)
		if err != nil {
			return err
		}
		palette = p
	}
	return preview.WriteFile(a.cfg.Preview.Path, out.Raw, out.Padded, out.Request.Tile.Zoom, a.cfg.Preview.Quality, palette)
}

// Execute runs the command line and returns the process exit code.
func Execute(args []string, deps Deps) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, _ := newRootCmd(deps)
	root.SetArgs(args)

	c, err := root.ExecuteContextC(ctx)
	if err == nil {
		return 0
	}
	if c == nil {
		c = root
	}

	var usage *extract.UsageError
	if errors.As(err, &usage) {
		fmt.Fprintf(deps.Stderr, "Error: %v\n\n", usage)
		fmt.Fprint(deps.Stderr, c.UsageString())
		return 1
	}

	fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
	return 1
}
