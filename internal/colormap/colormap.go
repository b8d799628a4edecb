package colormap

import (
	"bufio"
	"fmt"
	"image/color"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Palette roles used by the preview renderer.
const (
	Background = "background"
	Padding    = "padding"
	Tile       = "tile"
	Border     = "border"
	Grid       = "grid"
)

type Palette map[string]color.RGBA

var defaultColor = color.RGBA{13, 26, 43, 255}

func Default() Palette {
	return Palette{
		Background: defaultColor,
		Padding:    {244, 178, 35, 160},
		Tile:       {46, 134, 222, 220},
		Border:     {255, 255, 255, 255},
		Grid:       {90, 100, 120, 255},
	}
}

// Load reads a palette file over the defaults. Each line is
// "role r g b a"; blank lines and # comments are skipped.
func Load(filename string) (Palette, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("error opening palette file: %v", err)
	}
	defer file.Close()

	return Parse(file)
}

func Parse(r io.Reader) (Palette, error) {
	p := Default()
	scanner := bufio.NewScanner(r)
	valid := 0

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			slog.Warn("invalid line in palette file", "line", line)
			continue
		}

		var rgba [4]uint8
		ok := true
		for i, f := range fields[1:5] {
			v, err := strconv.ParseUint(f, 10, 8)
			if err != nil {
				slog.Warn("invalid color component in palette file", "line", line, "value", f)
				ok = false
				break
			}
			rgba[i] = uint8(v)
		}
		if !ok {
			continue
		}

		p[strings.ToLower(fields[0])] = color.RGBA{rgba[0], rgba[1], rgba[2], rgba[3]}
		valid++
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if valid == 0 {
		return nil, fmt.Errorf("no valid entries found in palette file")
	}
	return p, nil
}

// Color returns the color for role, falling back to the background.
func (p Palette) Color(role string) color.RGBA {
	if c, ok := p[role]; ok {
		return c
	}
	if c, ok := p[Background]; ok {
		return c
	}
	return defaultColor
}
