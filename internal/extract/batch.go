package extract

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"hstin/xy2osm/internal/config"
	"hstin/xy2osm/internal/geo"
)

type batchJob struct {
	index int
	req   Request
}

// ProgressInterval is how often RunBatch logs progress.
var ProgressInterval = 2 * time.Second

// RunBatch runs reqs on workers goroutines. Outcomes come back in the order of
// reqs. The first error returned by Run (recording or FailOnError) is
// returned after every job has finished.
func (s *Service) RunBatch(ctx context.Context, reqs []Request, workers int) ([]Outcome, error) {
	if workers <= 0 {
		workers = 1
	}

	outcomes := make([]Outcome, len(reqs))
	jobQueue := make(chan batchJob)

	var (
		wg        sync.WaitGroup
		completed int64
		failed    int64
		errOnce   sync.Once
		firstErr  error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobQueue {
				out, err := s.Run(ctx, job.req)
				outcomes[job.index] = out
				if out.Failed() {
					atomic.AddInt64(&failed, 1)
				}
				if err != nil {
					errOnce.Do(func() { firstErr = err })
				}
				atomic.AddInt64(&completed, 1)
			}
		}()
	}

	total := int64(len(reqs))
	startTime := time.Now()
	done := make(chan struct{})
	ticker := time.NewTicker(ProgressInterval)

	go func() {
		defer ticker.Stop()
		lastCompleted := int64(0)

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				current := atomic.LoadInt64(&completed)
				if current == lastCompleted {
					continue
				}
				elapsed := time.Since(startTime).Seconds()
				s.log.Info("batch progress",
					"completed", current,
					"total", total,
					"failed", atomic.LoadInt64(&failed),
					"tiles_per_sec", float64(current)/elapsed)
				lastCompleted = current
			}
		}
	}()

feed:
	for i, req := range reqs {
		select {
		case <-ctx.Done():
			break feed
		case jobQueue <- batchJob{index: i, req: req}:
		}
	}

	close(jobQueue)
	wg.Wait()
	close(done)

	s.log.Info("batch finished",
		"completed", atomic.LoadInt64(&completed),
		"total", total,
		"failed", atomic.LoadInt64(&failed),
		"elapsed", time.Since(startTime))

	if firstErr != nil {
		return outcomes, firstErr
	}
	return outcomes, ctx.Err()
}

// ReadTileList parses one "x y" pair per line. Blank lines and lines starting
// with # are skipped. Each pair becomes a Request writing to
// outDir/<x>_<y>.osm.
func ReadTileList(r io.Reader, input, outDir string, lenient bool) ([]Request, error) {
	var reqs []Request
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(strings.ReplaceAll(line, ",", " "))
		if len(fields) != 2 {
			return nil, fmt.Errorf("line %d: expected \"x y\", got %q", lineNo, line)
		}

		x, err := parseCoord(fields[0], lenient)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid x %q: %w", lineNo, fields[0], err)
		}
		y, err := parseCoord(fields[1], lenient)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid y %q: %w", lineNo, fields[1], err)
		}

		reqs = append(reqs, Request{
			Input:  input,
			Output: filepath.Join(outDir, strconv.Itoa(x)+"_"+strconv.Itoa(y)+".osm"),
			Tile:   geo.TileCoordinate{X: x, Y: y, Zoom: config.ExtractZoom},
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return reqs, nil
}
