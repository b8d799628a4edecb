package extract

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"hstin/xy2osm/internal/geo"
)

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest([]string{"in.osm", "out.osm", "2210", "697"}, false)
	require.NoError(t, err)
	require.Equal(t, Request{
		Input:  "in.osm",
		Output: "out.osm",
		Tile:   geo.TileCoordinate{X: 2210, Y: 697, Zoom: 12},
	}, req)
}

func TestParseRequestArgCount(t *testing.T) {
	for _, args := range [][]string{
		nil,
		{"in.osm"},
		{"in.osm", "out.osm", "1"},
		{"in.osm", "out.osm", "1", "2", "3"},
	} {
		_, err := ParseRequest(args, true)
		var usage *UsageError
		require.True(t, errors.As(err, &usage), "args %q", args)
	}
}

func TestParseRequestStrict(t *testing.T) {
	_, err := ParseRequest([]string{"in.osm", "out.osm", "abc", "1"}, false)
	var usage *UsageError
	require.ErrorAs(t, err, &usage)
	require.Contains(t, usage.Error(), "x_tile")

	_, err = ParseRequest([]string{"in.osm", "out.osm", "1", "2.5"}, false)
	require.ErrorAs(t, err, &usage)
	require.Contains(t, usage.Error(), "y_tile")
}

func TestParseRequestLenient(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"12", 12},
		{" 12", 12},
		{"12abc", 12},
		{"abc", 0},
		{"", 0},
		{"-3", -3},
		{"+7", 7},
		{"2.9", 2},
		{"-", 0},
		{"-2.9", -2},
		{"1e3", 1000},
		{"2.5e1x", 25},
		{"1e", 1},
		{".5", 0},
		{"7.", 7},
		{"-.", 0},
		{"0x1A", 0},
		{"99999999999999999999999", math.MaxInt},
		{"-1e400", math.MinInt},
	}
	for _, tc := range cases {
		req, err := ParseRequest([]string{"i", "o", tc.in, tc.in}, true)
		require.NoError(t, err, tc.in)
		require.Equal(t, tc.want, req.Tile.X, tc.in)
		require.Equal(t, tc.want, req.Tile.Y, tc.in)
	}
}
