package osmosis

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os/exec"
	"strconv"
	"time"

	"hstin/xy2osm/internal/geo"
)

// Result is what the tool left behind. ExitCode is -1 when it never ran.
type Result struct {
	ExitCode int
	Output   []byte
}

// Args returns the osmosis argument vector that clips input to box.
func Args(input, output string, box geo.BoundingBox) []string {
	return []string{
		"--read-xml", "file=" + input,
		"--bounding-box",
		"top=" + formatDegree(box.MaxLat),
		"left=" + formatDegree(box.MinLon),
		"bottom=" + formatDegree(box.MinLat),
		"right=" + formatDegree(box.MaxLon),
		"--write-xml", "file=" + output,
	}
}

func formatDegree(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Runner starts the osmosis binary at Path. Arguments go straight to the
// process, no shell is involved.
type Runner struct {
	Path    string
	Timeout time.Duration // 0 waits for the tool indefinitely
	Log     *slog.Logger
}

func NewRunner(path string, timeout time.Duration) *Runner {
	return &Runner{Path: path, Timeout: timeout, Log: slog.Default()}
}

// Extract runs osmosis and waits for it. A non-zero exit is reported in the
// Result only; err is set when the process could not be started or was
// killed by ctx.
func (r *Runner) Extract(ctx context.Context, input, output string, box geo.BoundingBox) (Result, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	args := Args(input, output, box)
	if r.Log != nil {
		r.Log.Debug("starting osmosis", "path", r.Path, "args", args)
	}

	var buf bytes.Buffer
	cmd := exec.CommandContext(ctx, r.Path, args...)
	cmd.Stdout = &buf
	cmd.Stderr = &buf

	err := cmd.Run()
	if err == nil {
		return Result{ExitCode: 0, Output: buf.Bytes()}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{ExitCode: -1, Output: buf.Bytes()}, ctxErr
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return Result{ExitCode: exitErr.ExitCode(), Output: buf.Bytes()}, nil
	}
	return Result{ExitCode: -1, Output: buf.Bytes()}, err
}
