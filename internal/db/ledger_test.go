package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hstin/xy2osm/internal/geo"
)

func TestLedgerRecordAndRecent(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "extracts.db")

	l, err := Open(path)
	require.NoError(t, err)

	raw := geo.BoundingBox{MinLat: 10, MaxLat: 20, MinLon: 30, MaxLon: 40}
	padded := geo.ApplyPadding(raw, 0.3)
	when := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, l.Record(ctx, Extract{
		Input: "cz.osm", Output: "a.osm",
		Tile: geo.TileCoordinate{X: 1, Y: 2, Zoom: 12},
		Raw:  raw, Padded: padded,
		Duration:  1500 * time.Millisecond,
		CreatedAt: when,
	}))
	require.NoError(t, l.Record(ctx, Extract{
		Input: "cz.osm", Output: "b.osm",
		Tile:     geo.TileCoordinate{X: 3, Y: 4, Zoom: 12},
		ExitCode: -1, Error: "exec: not found",
	}))
	require.NoError(t, l.Close())

	// Reopening keeps earlier rows.
	l, err = Open(path)
	require.NoError(t, err)
	defer l.Close()

	rows, err := l.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "b.osm", rows[0].Output)
	require.Equal(t, -1, rows[0].ExitCode)
	require.Equal(t, "exec: not found", rows[0].Error)

	first := rows[1]
	require.Equal(t, geo.TileCoordinate{X: 1, Y: 2, Zoom: 12}, first.Tile)
	require.Equal(t, raw, first.Raw)
	require.Equal(t, padded, first.Padded)
	require.Equal(t, 1500*time.Millisecond, first.Duration)
	require.True(t, when.Equal(first.CreatedAt))

	rows, err = l.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	name, err := l.Metadata(ctx, "name")
	require.NoError(t, err)
	require.Equal(t, "xy2osm extracts", name)

	last, err := l.Metadata(ctx, "last_extract")
	require.NoError(t, err)
	require.NotEmpty(t, last)
}
