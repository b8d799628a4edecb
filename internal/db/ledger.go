package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"hstin/xy2osm/internal/geo"
)

// Extract is one row of the ledger.
type Extract struct {
	ID        int64
	Input     string
	Output    string
	Tile      geo.TileCoordinate
	Raw       geo.BoundingBox
	Padded    geo.BoundingBox
	ExitCode  int
	Error     string
	Duration  time.Duration
	CreatedAt time.Time
}

// Ledger appends extractions to a SQLite file.
type Ledger struct {
	db *sql.DB
}

const schema = `
	CREATE TABLE IF NOT EXISTS extracts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		input TEXT NOT NULL,
		output TEXT NOT NULL,
		tile_x INTEGER NOT NULL,
		tile_y INTEGER NOT NULL,
		zoom_level INTEGER NOT NULL,
		raw_top REAL, raw_left REAL, raw_bottom REAL, raw_right REAL,
		pad_top REAL, pad_left REAL, pad_bottom REAL, pad_right REAL,
		exit_code INTEGER NOT NULL,
		error TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS metadata (
		name TEXT,
		value TEXT,
		PRIMARY KEY (name)
	);
	CREATE INDEX IF NOT EXISTS idx_extracts_tile on extracts (zoom_level, tile_x, tile_y);
`

// Open creates the ledger at dbPath if needed. Existing rows are kept.
func Open(dbPath string) (*Ledger, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err = db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	_, err = db.Exec(`
		INSERT OR IGNORE INTO metadata VALUES
		('name', 'xy2osm extracts'),
		('version', '1.0'),
		('description', 'OSM extracts clipped to padded zoom 12 tiles');
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends e. CreatedAt defaults to now.
func (l *Ledger) Record(ctx context.Context, e Extract) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO extracts (
			input, output, tile_x, tile_y, zoom_level,
			raw_top, raw_left, raw_bottom, raw_right,
			pad_top, pad_left, pad_bottom, pad_right,
			exit_code, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Input, e.Output, e.Tile.X, e.Tile.Y, e.Tile.Zoom,
		e.Raw.MaxLat, e.Raw.MinLon, e.Raw.MinLat, e.Raw.MaxLon,
		e.Padded.MaxLat, e.Padded.MinLon, e.Padded.MinLat, e.Padded.MaxLon,
		e.ExitCode, e.Error, e.Duration.Milliseconds(), e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return err
	}
	return l.setMetadata(ctx, "last_extract", e.CreatedAt.UTC().Format(time.RFC3339))
}

// Recent returns up to limit rows, newest first.
func (l *Ledger) Recent(ctx context.Context, limit int) ([]Extract, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, input, output, tile_x, tile_y, zoom_level,
			raw_top, raw_left, raw_bottom, raw_right,
			pad_top, pad_left, pad_bottom, pad_right,
			exit_code, error, duration_ms, created_at
		FROM extracts ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Extract
	for rows.Next() {
		var (
			e          Extract
			durationMs int64
			createdAt  string
		)
		err := rows.Scan(&e.ID, &e.Input, &e.Output, &e.Tile.X, &e.Tile.Y, &e.Tile.Zoom,
			&e.Raw.MaxLat, &e.Raw.MinLon, &e.Raw.MinLat, &e.Raw.MaxLon,
			&e.Padded.MaxLat, &e.Padded.MinLon, &e.Padded.MinLat, &e.Padded.MaxLon,
			&e.ExitCode, &e.Error, &durationMs, &createdAt)
		if err != nil {
			return nil, err
		}
		e.Duration = time.Duration(durationMs) * time.Millisecond
		if e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("row %d: bad created_at %q: %w", e.ID, createdAt, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (l *Ledger) Metadata(ctx context.Context, name string) (string, error) {
	var value string
	err := l.db.QueryRowContext(ctx, "SELECT value FROM metadata WHERE name = ?", name).Scan(&value)
	return value, err
}

func (l *Ledger) setMetadata(ctx context.Context, name, value string) error {
	_, err := l.db.ExecContext(ctx,
		"INSERT INTO metadata (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		name, value)
	return err
}
