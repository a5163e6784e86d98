// Package polyline encodes and decodes the encoded polyline format used by
// OpenRouteService and Google for route geometries.
// Format reference: https://developers.google.com/maps/documentation/utilities/polylinealgorithm
package polyline

import (
	"errors"
	"math"
)

// DefaultPrecision is the number of decimal places used by ORS geometries.
const DefaultPrecision = 5

// ErrTruncated is returned when the input ends in the middle of a value.
var ErrTruncated = errors.New("polyline: truncated input")

// ErrInvalidCharacter is returned for bytes outside the polyline alphabet.
var ErrInvalidCharacter = errors.New("polyline: invalid character")

// Point is a decoded latitude/longitude pair.
type Point struct {
	Lat float64
	Lon float64
}

// Decode decodes a precision-5 polyline.
func Decode(encoded string) ([]Point, error) {
	return DecodePrecision(encoded, DefaultPrecision)
}

// DecodePrecision decodes a polyline encoded with the given number of decimals.
func DecodePrecision(encoded string, precision int) ([]Point, error) {
	if encoded == "" {
		return nil, nil
	}
	factor := math.Pow10(precision)

	points := make([]Point, 0, len(encoded)/4)
	var lat, lon int64
	for i := 0; i < len(encoded); {
		dLat, next, err := readVarint(encoded, i)
		if err != nil {
			return nil, err
		}
		dLon, next, err := readVarint(encoded, next)
		if err != nil {
			return nil, err
		}
		i = next
		lat += dLat
		lon += dLon
		points = append(points, Point{
			Lat: float64(lat) / factor,
			Lon: float64(lon) / factor,
		})
	}
	return points, nil
}

// Encode encodes points as a precision-5 polyline.
func Encode(points []Point) string {
	return EncodePrecision(points, DefaultPrecision)
}

// EncodePrecision encodes points with the given number of decimals.
func EncodePrecision(points []Point, precision int) string {
	if len(points) == 0 {
		return ""
	}
	factor := math.Pow10(precision)

	out := make([]byte, 0, len(points)*6)
	var prevLat, prevLon int64
	for _, p := range points {
		lat := int64(math.Round(p.Lat * factor))
		lon := int64(math.Round(p.Lon * factor))
		out = appendVarint(out, lat-prevLat)
		out = appendVarint(out, lon-prevLon)
		prevLat, prevLon = lat, lon
	}
	return string(out)
}

// readVarint reads one zig-zag encoded value starting at i.
func readVarint(s string, i int) (int64, int, error) {
	var result int64
	var shift uint
	for {
		if i >= len(s) {
			return 0, i, ErrTruncated
		}
		b := int64(s[i]) - 63
		if b < 0 || b > 0x3f {
			return 0, i, ErrInvalidCharacter
		}
		i++
		result |= (b & 0x1f) << shift
		shift += 5
		if b < 0x20 {
			break
		}
	}
	if result&1 != 0 {
		return ^(result >> 1), i, nil
	}
	return result >> 1, i, nil
}

func appendVarint(out []byte, v int64) []byte {
	u := v << 1
	if v < 0 {
		u = ^u
	}
	for u >= 0x20 {
		out = append(out, byte((0x20|(u&0x1f))+63))
		u >>= 5
	}
	return append(out, byte(u+63))
}
