package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestObserveExtraction(t *testing.T) {
	m := New()
	m.ObserveExtraction(0, 2*time.Second)
	m.ObserveExtraction(0, time.Second)
	m.ObserveExtraction(1, time.Second)

	require.Equal(t, 2.0, testutil.ToFloat64(m.Runs.WithLabelValues("0")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.Runs.WithLabelValues("1")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.LastExitCode))

	expected := `
# HELP xy2osm_last_exit_code Exit code of the most recent osmosis run, -1 if it did not start.
# TYPE xy2osm_last_exit_code gauge
xy2osm_last_exit_code 1
`
	require.NoError(t, testutil.GatherAndCompare(m.Gatherer(), strings.NewReader(expected), "xy2osm_last_exit_code"))
}

func TestWriteFile(t *testing.T) {
	m := New()
	m.ObserveExtraction(-1, 0)

	path := filepath.Join(t.TempDir(), "xy2osm.prom")
	require.NoError(t, m.WriteFile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), `xy2osm_extractions_total{exit_code="-1"} 1`)
	require.Contains(t, string(data), "xy2osm_extraction_duration_seconds_count 1")
}
