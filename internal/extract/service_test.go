package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hstin/xy2osm/internal/db"
	"hstin/xy2osm/internal/geo"
	"hstin/xy2osm/internal/osmosis"
)

type call struct {
	input, output string
	box           geo.BoundingBox
}

type stubExtractor struct {
	mu     sync.Mutex
	calls  []call
	result osmosis.Result
	err    error
}

func (s *stubExtractor) Extract(_ context.Context, input, output string, box geo.BoundingBox) (osmosis.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call{input, output, box})
	return s.result, s.err
}

type memRecorder struct {
	mu   sync.Mutex
	rows []db.Extract
	err  error
}

func (m *memRecorder) Record(_ context.Context, e db.Extract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, e)
	return m.err
}

type countingSink struct {
	mu    sync.Mutex
	codes []int
}

func (c *countingSink) ObserveExtraction(exitCode int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes = append(c.codes, exitCode)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunPassesPaddedBox(t *testing.T) {
	ext := &stubExtractor{}
	rec := &memRecorder{}
	sink := &countingSink{}
	svc := NewService(ext, Options{Padding: 0.3}, quietLogger()).WithRecorder(rec).WithMetrics(sink)

	req := Request{Input: "in.osm", Output: "out.osm", Tile: geo.TileCoordinate{X: 2048, Y: 1024, Zoom: 12}}
	out, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	require.False(t, out.Failed())

	raw := geo.ComputeBoundingBox(req.Tile)
	want := geo.ApplyPadding(raw, 0.3)

	require.Len(t, ext.calls, 1)
	require.Equal(t, call{"in.osm", "out.osm", want}, ext.calls[0])
	require.Equal(t, raw, out.Raw)
	require.Equal(t, want, out.Padded)

	require.Len(t, rec.rows, 1)
	require.Equal(t, req.Tile, rec.rows[0].Tile)
	require.Equal(t, want, rec.rows[0].Padded)
	require.Equal(t, []int{0}, sink.codes)
}

func TestBoxSymmetric(t *testing.T) {
	tile := geo.TileCoordinate{X: 10, Y: 20, Zoom: 12}
	raw := geo.ComputeBoundingBox(tile)

	_, ordered := NewService(nil, Options{Padding: 0.3}, nil).Box(tile)
	_, symmetric := NewService(nil, Options{Padding: 0.3, Symmetric: true}, nil).Box(tile)

	require.Equal(t, geo.ApplyPadding(raw, 0.3), ordered)
	require.Equal(t, geo.ApplySymmetricPadding(raw, 0.3), symmetric)
	require.Greater(t, ordered.MaxLat, symmetric.MaxLat)
	require.Equal(t, ordered.MinLat, symmetric.MinLat)
}

func TestRunToolFailureIsNotAnError(t *testing.T) {
	ext := &stubExtractor{result: osmosis.Result{ExitCode: 2, Output: []byte("bad xml")}}
	rec := &memRecorder{}
	svc := NewService(ext, Options{Padding: 0.3}, quietLogger()).WithRecorder(rec)

	out, err := svc.Run(context.Background(), Request{Input: "i", Output: "o", Tile: geo.TileCoordinate{Zoom: 12}})
	require.NoError(t, err)
	require.True(t, out.Failed())
	require.Equal(t, 2, rec.rows[0].ExitCode)
}

func TestRunFailOnError(t *testing.T) {
	startErr := errors.New("exec: \"osmosis\": executable file not found in $PATH")
	ext := &stubExtractor{result: osmosis.Result{ExitCode: -1}, err: startErr}
	rec := &memRecorder{}
	svc := NewService(ext, Options{Padding: 0.3, FailOnError: true}, quietLogger()).WithRecorder(rec)

	_, err := svc.Run(context.Background(), Request{Input: "i", Output: "o", Tile: geo.TileCoordinate{Zoom: 12}})
	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	require.Equal(t, -1, toolErr.ExitCode)
	require.ErrorIs(t, err, startErr)
	require.Equal(t, startErr.Error(), rec.rows[0].Error)

	ext = &stubExtractor{result: osmosis.Result{ExitCode: 1}}
	_, err = NewService(ext, Options{FailOnError: true}, quietLogger()).Run(context.Background(), Request{})
	require.EqualError(t, err, "osmosis exited with status 1")
}

func TestRunStartErrorRecordsMinusOne(t *testing.T) {
	ext := &stubExtractor{err: errors.New("fork/exec osmosis: permission denied")}
	rec := &memRecorder{}
	sink := &countingSink{}
	svc := NewService(ext, Options{Padding: 0.3}, quietLogger()).WithRecorder(rec).WithMetrics(sink)

	out, err := svc.Run(context.Background(), Request{Input: "i", Output: "o", Tile: geo.TileCoordinate{Zoom: 12}})
	require.NoError(t, err)
	require.True(t, out.Failed())
	require.Equal(t, -1, out.Result.ExitCode)
	require.Equal(t, -1, rec.rows[0].ExitCode)
	require.Equal(t, []int{-1}, sink.codes)
}

func TestRunRecorderError(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	svc := NewService(&stubExtractor{}, Options{}, quietLogger()).WithRecorder(rec)

	_, err := svc.Run(context.Background(), Request{})
	require.ErrorContains(t, err, "record extraction: disk full")
}

func TestRunWarnsWhenInputTooSmall(t *testing.T) {
	input := filepath.Join(t.TempDir(), "small.osm")
	require.NoError(t, os.WriteFile(input, []byte(`<osm version="0.6"><bounds minlat="0" minlon="0" maxlat="0.001" maxlon="0.001"/></osm>`), 0o644))

	var buf syncBuffer
	log := slog.New(slog.NewTextHandler(&buf, nil))
	svc := NewService(&stubExtractor{}, Options{Padding: 0.3}, log)

	_, err := svc.Run(context.Background(), Request{Input: input, Output: "o", Tile: geo.TileCoordinate{X: 2048, Y: 1024, Zoom: 12}})
	require.NoError(t, err)
	require.Contains(t, buf.String(), "padded box extends past the input bounds")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf []byte
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
