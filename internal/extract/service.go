package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"hstin/xy2osm/internal/db"
	"hstin/xy2osm/internal/geo"
	"hstin/xy2osm/internal/osmosis"
	"hstin/xy2osm/parser"
)

// Extractor clips input to box and writes output.
type Extractor interface {
	Extract(ctx context.Context, input, output string, box geo.BoundingBox) (osmosis.Result, error)
}

// Recorder stores finished extractions.
type Recorder interface {
	Record(ctx context.Context, e db.Extract) error
}

// MetricsSink observes finished extractions.
type MetricsSink interface {
	ObserveExtraction(exitCode int, d time.Duration)
}

// Options tune the box computation and failure policy.
type Options struct {
	Padding     float64
	Symmetric   bool
	FailOnError bool
}

// Outcome describes one finished Run.
type Outcome struct {
	Request  Request
	Raw      geo.BoundingBox
	Padded   geo.BoundingBox
	Result   osmosis.Result
	Duration time.Duration
	// StartErr is set when the tool could not be run at all.
	StartErr error
}

// Failed reports whether the tool did not run or exited non-zero.
func (o Outcome) Failed() bool {
	return o.StartErr != nil || o.Result.ExitCode != 0
}

// ToolError is returned by Run when FailOnError is set and the tool failed.
type ToolError struct {
	ExitCode int
	Err      error
}

func (e *ToolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("osmosis failed to run: %v", e.Err)
	}
	return fmt.Sprintf("osmosis exited with status %d", e.ExitCode)
}

func (e *ToolError) Unwrap() error { return e.Err }

type Service struct {
	extractor Extractor
	opts      Options
	recorder  Recorder
	metrics   MetricsSink
	log       *slog.Logger
}

func NewService(extractor Extractor, opts Options, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{extractor: extractor, opts: opts, log: log}
}

// WithRecorder makes the service store every outcome in r.
func (s *Service) WithRecorder(r Recorder) *Service {
	s.recorder = r
	return s
}

func (s *Service) WithMetrics(m MetricsSink) *Service {
	s.metrics = m
	return s
}

// Box returns the raw and padded boxes for t.
func (s *Service) Box(t geo.TileCoordinate) (raw, padded geo.BoundingBox) {
	raw = geo.ComputeBoundingBox(t)
	if s.opts.Symmetric {
		return raw, geo.ApplySymmetricPadding(raw, s.opts.Padding)
	}
	return raw, geo.ApplyPadding(raw, s.opts.Padding)
}

// Run extracts one request. A failing tool is logged and recorded; it only
// becomes an error when FailOnError is set.
func (s *Service) Run(ctx context.Context, req Request) (Outcome, error) {
	raw, padded := s.Box(req.Tile)
	log := s.log.With("tile", req.Tile.String(), "input", req.Input, "output", req.Output)
	log.Debug("computed bounding box", "raw", raw.String(), "padded", padded.String())

	s.checkInput(log, req.Input, padded)

	start := time.Now()
	res, err := s.extractor.Extract(ctx, req.Input, req.Output, padded)
	if err != nil {
		// the tool never ran
		res.ExitCode = -1
	}
	out := Outcome{
		Request:  req,
		Raw:      raw,
		Padded:   padded,
		Result:   res,
		Duration: time.Since(start),
		StartErr: err,
	}

	switch {
	case err != nil:
		log.Error("osmosis did not run", "error", err)
	case res.ExitCode != 0:
		log.Warn("osmosis exited with non-zero status", "exit_code", res.ExitCode, "output", string(res.Output))
	default:
		log.Info("extraction finished", "duration", out.Duration)
	}

	if s.metrics != nil {
		s.metrics.ObserveExtraction(res.ExitCode, out.Duration)
	}

	if s.recorder != nil {
		if rerr := s.recorder.Record(ctx, toRecord(out)); rerr != nil {
			return out, fmt.Errorf("record extraction: %w", rerr)
		}
	}

	if s.opts.FailOnError && out.Failed() {
		return out, &ToolError{ExitCode: res.ExitCode, Err: err}
	}
	return out, nil
}

// checkInput warns when the input declares bounds that do not cover box.
// Only regular files are read; a pipe or device is left for osmosis alone.
func (s *Service) checkInput(log *slog.Logger, input string, box geo.BoundingBox) {
	fi, err := os.Stat(input)
	if err != nil || !fi.Mode().IsRegular() {
		return
	}
	declared, err := parser.ReadBounds(input)
	if err != nil {
		if !errors.Is(err, parser.ErrNoBounds) {
			log.Debug("could not inspect input", "error", err)
		}
		return
	}
	if !declared.Contains(box) {
		log.Warn("padded box extends past the input bounds", "input_bounds", declared.String())
	}
}

func toRecord(o Outcome) db.Extract {
	rec := db.Extract{
		Input:    o.Request.Input,
		Output:   o.Request.Output,
		Tile:     o.Request.Tile,
		Raw:      o.Raw,
		Padded:   o.Padded,
		ExitCode: o.Result.ExitCode,
		Duration: o.Duration,
	}
	if o.StartErr != nil {
		rec.Error = o.StartErr.Error()
	}
	return rec
}
