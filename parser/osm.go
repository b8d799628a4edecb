package parser

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"hstin/xy2osm/internal/geo"
)

// ErrNoBounds is returned when the header carries no bounds element.
var ErrNoBounds = errors.New("osm file declares no bounds")

// OSMHeader is the part of an OSM XML file before the first entity.
type OSMHeader struct {
	Version   string
	Generator string
	Bounds    geo.BoundingBox
	HasBounds bool
}

// ReadBounds returns the bounds declared in the OSM XML file at path.
func ReadBounds(path string) (geo.BoundingBox, error) {
	f, err := os.Open(path)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	defer f.Close()

	h, err := ReadHeader(f)
	if err != nil {
		return geo.BoundingBox{}, err
	}
	if !h.HasBounds {
		return geo.BoundingBox{}, ErrNoBounds
	}
	return h.Bounds, nil
}

// ReadHeader scans r up to the first node, way or relation. Both the
// <bounds minlat=...> form and the older <bound box="s,w,n,e"> form are read.
func ReadHeader(r io.Reader) (OSMHeader, error) {
	var h OSMHeader
	dec := xml.NewDecoder(r)

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return h, nil
		}
		if err != nil {
			return h, fmt.Errorf("failed to read osm header: %w", err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch start.Name.Local {
		case "osm":
			h.Version = attr(start, "version")
			h.Generator = attr(start, "generator")
		case "bounds":
			b, err := parseBounds(start)
			if err != nil {
				return h, err
			}
			h.Bounds, h.HasBounds = b, true
		case "bound":
			b, err := parseBox(attr(start, "box"))
			if err != nil {
				return h, err
			}
			h.Bounds, h.HasBounds = b, true
		case "node", "way", "relation":
			return h, nil
		}
	}
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func parseBounds(e xml.StartElement) (geo.BoundingBox, error) {
	var vals [4]float64
	for i, name := range [4]string{"minlat", "minlon", "maxlat", "maxlon"} {
		v, err := strconv.ParseFloat(attr(e, name), 64)
		if err != nil {
			return geo.BoundingBox{}, fmt.Errorf("invalid bounds %s: %w", name, err)
		}
		vals[i] = v
	}
	return geo.BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}, nil
}

func parseBox(box string) (geo.BoundingBox, error) {
	parts := strings.Split(box, ",")
	if len(parts) != 4 {
		return geo.BoundingBox{}, fmt.Errorf("invalid bound box %q", box)
	}
	var vals [4]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return geo.BoundingBox{}, fmt.Errorf("invalid bound box %q: %w", box, err)
		}
		vals[i] = v
	}
	return geo.BoundingBox{MinLat: vals[0], MinLon: vals[1], MaxLat: vals[2], MaxLon: vals[3]}, nil
}
