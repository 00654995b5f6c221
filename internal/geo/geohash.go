package geo

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/mmcloughlin/geohash"
)

// RepeaterPrecision is the geohash length used to key repeater rows (~19m cells).
const RepeaterPrecision = 8

const (
	alphabet     = "0123456789bcdefghjkmnpqrstuvwxyz"
	maxPrecision = 12
)

var (
	ErrInvalidGeohash  = errors.New("invalid geohash")
	ErrInvalidLocation = errors.New("invalid location")
)

// Encode returns the geohash of p with the given number of characters.
func Encode(p Point, precision uint) string {
	return geohash.EncodeWithPrecision(p.Lat, p.Lon, precision)
}

// Geohash8 returns the 8 character geohash used as the repeater location key.
func Geohash8(p Point) string {
	return Encode(p, RepeaterPrecision)
}

// PointFromGeohash decodes hash to the center of its cell.
func PointFromGeohash(hash string) (Point, error) {
	if hash == "" || len(hash) > maxPrecision {
		return Point{}, fmt.Errorf("%w: %q", ErrInvalidGeohash, hash)
	}
	for i := 0; i < len(hash); i++ {
		if strings.IndexByte(alphabet, hash[i]) < 0 {
			return Point{}, fmt.Errorf("%w: %q", ErrInvalidGeohash, hash)
		}
	}
	lat, lon := geohash.DecodeCenter(hash)
	return Point{Lat: lat, Lon: lon}, nil
}

// ParseLocation parses textual coordinates and checks they are in range.
func ParseLocation(lat, lon string) (Point, error) {
	la, err := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: latitude %q", ErrInvalidLocation, lat)
	}
	lo, err := strconv.ParseFloat(strings.TrimSpace(lon), 64)
	if err != nil {
		return Point{}, fmt.Errorf("%w: longitude %q", ErrInvalidLocation, lon)
	}
	p := Point{Lat: la, Lon: lo}
	if !IsValidLocation(p) {
		return Point{}, fmt.Errorf("%w: [%v, %v] out of range", ErrInvalidLocation, la, lo)
	}
	return p, nil
}
