package preview

import (
	"bytes"
	"image"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/chai2010/webp"

	"hstin/xy2osm/internal/colormap"
	"hstin/xy2osm/internal/config"
	"hstin/xy2osm/internal/geo"
)

// margin is the share of the padded span shown around it on every side.
const margin = 0.1

// Render draws the padded box, the raw tile box and the zoom grid in web
// Mercator. The view is the padded box plus a small margin.
func Render(raw, padded geo.BoundingBox, zoom, size int, p colormap.Palette) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	minMX, minMY := geo.LatLonToMercator(padded.MinLat, padded.MinLon)
	maxMX, maxMY := geo.LatLonToMercator(padded.MaxLat, padded.MaxLon)
	dx := (maxMX - minMX) * margin
	dy := (maxMY - minMY) * margin
	minMX, maxMX = minMX-dx, maxMX+dx
	minMY, maxMY = minMY-dy, maxMY+dy

	sx := (maxMX - minMX) / float64(size)
	sy := (maxMY - minMY) / float64(size)

	// Tile column per pixel column and tile row per pixel row.
	n := math.Pow(2, float64(zoom))
	cols := make([]int, size)
	lons := make([]float64, size)
	for px := 0; px < size; px++ {
		_, lon := geo.MercatorToLatLon(minMX+(float64(px)+0.5)*sx, 0)
		lons[px] = lon
		cols[px] = int(math.Floor((lon + 180) / 360 * n))
	}
	rows := make([]int, size)
	lats := make([]float64, size)
	for py := 0; py < size; py++ {
		mercY := maxMY - (float64(py)+0.5)*sy
		lat, _ := geo.MercatorToLatLon(0, mercY)
		lats[py] = lat
		rows[py] = int(math.Floor((config.OffsetWM - mercY) / config.WorldSizeWM * n))
	}

	inside := func(b geo.BoundingBox, px, py int) bool {
		return lats[py] >= b.MinLat && lats[py] <= b.MaxLat &&
			lons[px] >= b.MinLon && lons[px] <= b.MaxLon
	}

	for py := 0; py < size; py++ {
		rowOffset := py * img.Stride
		for px := 0; px < size; px++ {
			role := colormap.Background
			switch {
			case inside(raw, px, py):
				role = colormap.Tile
				if isEdge(raw, inside, px, py, size) {
					role = colormap.Border
				}
			case inside(padded, px, py):
				role = colormap.Padding
			}
			if role != colormap.Border &&
				((px > 0 && cols[px] != cols[px-1]) || (py > 0 && rows[py] != rows[py-1])) {
				role = colormap.Grid
			}

			c := p.Color(role)
			idx := rowOffset + px*4
			img.Pix[idx] = c.R
			img.Pix[idx+1] = c.G
			img.Pix[idx+2] = c.B
			img.Pix[idx+3] = c.A
		}
	}

	return img
}

// isEdge reports whether an inside pixel has a neighbour outside b.
func isEdge(b geo.BoundingBox, inside func(geo.BoundingBox, int, int) bool, px, py, size int) bool {
	for _, d := range [4][2]int{{-1, 0}, {1, 0}, {0, -1}, {0, 1}} {
		x, y := px+d[0], py+d[1]
		if x < 0 || y < 0 || x >= size || y >= size || !inside(b, x, y) {
			return true
		}
	}
	return false
}

func Encode(w io.Writer, img image.Image, quality int) error {
	options := &webp.Options{Lossless: false, Quality: float32(quality)}
	return webp.Encode(w, img, options)
}

// WriteFile renders the preview and stores it as WebP at path.
func WriteFile(path string, raw, padded geo.BoundingBox, zoom, quality int, p colormap.Palette) error {
	var buf bytes.Buffer
	if err := Encode(&buf, Render(raw, padded, zoom, config.TileSize, p), quality); err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
