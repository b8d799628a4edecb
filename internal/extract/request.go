package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"hstin/xy2osm/internal/config"
	"hstin/xy2osm/internal/geo"
)

// Request is one extraction: clip Input to the padded box of Tile into Output.
type Request struct {
	Input  string
	Output string
	Tile   geo.TileCoordinate
}

// UsageError means the command line could not be turned into a Request.
// Nothing has been computed or started when it is returned.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string {
	return e.Reason
}

// ParseRequest builds a Request from input, output, x and y.
// In lenient mode a coordinate is read from its leading number and one
// without any reads as 0.
func ParseRequest(args []string, lenient bool) (Request, error) {
	if len(args) != 4 {
		return Request{}, &UsageError{Reason: fmt.Sprintf("expected 4 arguments (input.osm output.osm x_tile y_tile), got %d", len(args))}
	}

	x, err := parseCoord(args[2], lenient)
	if err != nil {
		return Request{}, &UsageError{Reason: fmt.Sprintf("invalid x_tile %q: %v", args[2], err)}
	}
	y, err := parseCoord(args[3], lenient)
	if err != nil {
		return Request{}, &UsageError{Reason: fmt.Sprintf("invalid y_tile %q: %v", args[3], err)}
	}

	return Request{
		Input:  args[0],
		Output: args[1],
		Tile:   geo.TileCoordinate{X: x, Y: y, Zoom: config.ExtractZoom},
	}, nil
}

func parseCoord(s string, lenient bool) (int, error) {
	if !lenient {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, err.(*strconv.NumError).Err
		}
		return v, nil
	}
	return coerceInt(s), nil
}

// coerceInt reads the longest leading decimal number after whitespace:
// sign, digits, an optional fraction and an optional exponent, so "2.9" is 2
// and "1e3" is 1000. The fraction is truncated toward zero, values beyond the
// int range saturate, and no digits at all gives 0.
func coerceInt(s string) int {
	s = strings.TrimLeft(s, " \t\n\r\v\f")
	end := 0
	if end < len(s) && (s[end] == '+' || s[end] == '-') {
		end++
	}
	intDigits := scanDigits(s, end)
	end += intDigits
	fracDigits := 0
	if end < len(s) && s[end] == '.' {
		fracDigits = scanDigits(s, end+1)
		if intDigits > 0 || fracDigits > 0 {
			end += 1 + fracDigits
		}
	}
	if intDigits == 0 && fracDigits == 0 {
		return 0
	}
	if end < len(s) && (s[end] == 'e' || s[end] == 'E') {
		exp := end + 1
		if exp < len(s) && (s[exp] == '+' || s[exp] == '-') {
			exp++
		}
		if n := scanDigits(s, exp); n > 0 {
			end = exp + n
		}
	}

	// ParseFloat returns ±Inf alongside its range error.
	v, _ := strconv.ParseFloat(s[:end], 64)
	switch {
	case v >= math.MaxInt:
		return math.MaxInt
	case v <= math.MinInt:
		return math.MinInt
	}
	return int(v)
}

func scanDigits(s string, from int) int {
	n := 0
	for from+n < len(s) && s[from+n] >= '0' && s[from+n] <= '9' {
		n++
	}
	return n
}
