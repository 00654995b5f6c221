// Package geo holds the coordinate helpers shared by the overlap engine,
// the coverage range check and the repeater put path.
package geo

import (
	"github.com/golang/geo/s2"
)

const (
	EarthRadiusMiles = 3958.8
	EarthRadiusKm    = 6371.0
)

// Point is a WGS 84 latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// HaversineMiles returns the great-circle distance between a and b in miles.
func HaversineMiles(a, b Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Lat, a.Lon)
	p2 := s2.LatLngFromDegrees(b.Lat, b.Lon)
	return p1.Distance(p2).Radians() * EarthRadiusMiles
}

// IsValidLocation reports whether p lies within latitude [-90, 90] and
// longitude [-180, 180]. NaN coordinates are invalid.
func IsValidLocation(p Point) bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}
