package geo

import (
	"fmt"
	"math"

	"hstin/xy2osm/internal/config"
)

// TileCoordinate addresses a slippy-map tile. The extractor reads Y as a
// half-tile row: one unit of Y spans two rows at Zoom.
type TileCoordinate struct {
	X    int
	Y    int
	Zoom int
}

func (t TileCoordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", t.Zoom, t.X, t.Y)
}

// BoundingBox holds edges in degrees. Ranges are not enforced.
type BoundingBox struct {
	MinLat float64
	MaxLat float64
	MinLon float64
	MaxLon float64
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("top=%g left=%g bottom=%g right=%g", b.MaxLat, b.MinLon, b.MinLat, b.MaxLon)
}

// Contains reports whether o lies inside b, edges included.
func (b BoundingBox) Contains(o BoundingBox) bool {
	return o.MinLat >= b.MinLat && o.MaxLat <= b.MaxLat &&
		o.MinLon >= b.MinLon && o.MaxLon <= b.MaxLon
}

func TileToLongitude(x, zoom int) float64 {
	return float64(x)/math.Pow(2, float64(zoom))*360 - 180
}

func TileToLatitude(y, zoom int) float64 {
	n := math.Pi - 2*math.Pi*float64(y)/math.Pow(2, float64(zoom))
	return 180 / math.Pi * math.Atan(0.5*(math.Exp(n)-math.Exp(-n)))
}

// ComputeBoundingBox returns the raw box of a tile. Latitude is taken at
// rows 2y and 2(y+1) while longitude steps one column, so the box covers
// two vertical tiles at zoom.
func ComputeBoundingBox(t TileCoordinate) BoundingBox {
	return BoundingBox{
		MaxLat: TileToLatitude(2*t.Y, t.Zoom),
		MinLon: TileToLongitude(t.X, t.Zoom),
		MinLat: TileToLatitude(2*(t.Y+1), t.Zoom),
		MaxLon: TileToLongitude(t.X+1, t.Zoom),
	}
}

// ApplyPadding grows every edge of b outward. The steps run in order and the
// top and right edges read the already moved bottom and left edges, so they
// grow by more than fraction of the original span.
func ApplyPadding(b BoundingBox, fraction float64) BoundingBox {
	b.MinLat -= (b.MaxLat - b.MinLat) * fraction
	b.MinLon -= (b.MaxLon - b.MinLon) * fraction
	b.MaxLat += (b.MaxLat - b.MinLat) * fraction
	b.MaxLon += (b.MaxLon - b.MinLon) * fraction
	return b
}

// ApplySymmetricPadding grows each edge by fraction of the original span.
func ApplySymmetricPadding(b BoundingBox, fraction float64) BoundingBox {
	dLat := (b.MaxLat - b.MinLat) * fraction
	dLon := (b.MaxLon - b.MinLon) * fraction
	return BoundingBox{
		MinLat: b.MinLat - dLat,
		MaxLat: b.MaxLat + dLat,
		MinLon: b.MinLon - dLon,
		MaxLon: b.MaxLon + dLon,
	}
}

func MercatorToLatLon(mercX, mercY float64) (float64, float64) {
	lon := (mercX / config.EarthRadius) * 180.0 / math.Pi
	lat := (math.Asin(math.Tanh(mercY / config.EarthRadius))) * 180.0 / math.Pi
	return lat, lon
}

func LatLonToMercator(lat, lon float64) (float64, float64) {
	lat = clampLat(lat)
	x := lon * math.Pi / 180.0 * config.EarthRadius
	y := math.Atanh(math.Sin(lat*math.Pi/180.0)) * config.EarthRadius
	return x, y
}

func LatLonToTile(lat, lon float64, zoom int) (int, int) {
	lat = clampLat(lat)

	if lon < -180 {
		lon = -180
	} else if lon > 180 {
		lon = 180
	}

	n := math.Pow(2.0, float64(zoom))
	x := int(math.Floor((lon + 180.0) / 360.0 * n))

	if x >= int(n) {
		x = int(n) - 1
	}

	latRad := lat * math.Pi / 180.0
	y := int(math.Floor((1.0 - math.Log(math.Tan(latRad)+1.0/math.Cos(latRad))/math.Pi) / 2.0 * n))

	if y < 0 {
		y = 0
	} else if y >= int(n) {
		y = int(n) - 1
	}

	return x, y
}

// Locate returns the extractor coordinate whose box contains lat/lon.
func Locate(lat, lon float64, zoom int) TileCoordinate {
	x, y := LatLonToTile(lat, lon, zoom)
	return TileCoordinate{X: x, Y: y / 2, Zoom: zoom}
}

func clampLat(lat float64) float64 {
	if lat < -config.MaxMercatorLat {
		return -config.MaxMercatorLat
	} else if lat > config.MaxMercatorLat {
		return config.MaxMercatorLat
	}
	return lat
}
