// Package geo holds the small amount of geodesy parcelgrid needs: a
// latitude-dependent meters-per-degree conversion and vertex helpers over
// [orb.Ring].
//
// The conversion is a local equirectangular approximation. It is only valid
// for small displacements near the reference latitude, which is the extent
// of a single parcel row; it is not a map projection.
package geo

import (
	"math"

	"github.com/mmcloughlin/geohash"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Coefficients of the WGS84-derived series for the length of one degree.
const (
	latSeriesA = 111132.954
	latSeriesB = 559.822
	latSeriesC = 1.175
	lonSeriesA = 111132.954
)

// MetersPerDegree returns the length in meters of one degree of latitude
// and one degree of longitude at the given latitude in degrees.
func MetersPerDegree(lat float64) (latMeters, lonMeters float64) {
	phi := lat * math.Pi / 180
	latMeters = latSeriesA - latSeriesB*math.Cos(2*phi) + latSeriesC*math.Cos(4*phi)
	lonMeters = lonSeriesA * math.Cos(phi)
	return latMeters, lonMeters
}

// Scale converts meter displacements to degree-equivalents around a single
// reference latitude. X is easting (longitude), Y is northing (latitude).
type Scale struct {
	Latitude  float64 // reference latitude in degrees
	LatMeters float64 // meters per degree of latitude
	LonMeters float64 // meters per degree of longitude
}

// NewScale computes the scale at the reference latitude.
func NewScale(lat float64) Scale {
	m, n := MetersPerDegree(lat)
	return Scale{Latitude: lat, LatMeters: m, LonMeters: n}
}

// DegreesX converts an east-west distance in meters to degrees of longitude.
func (s Scale) DegreesX(meters float64) float64 { return meters / s.LonMeters }

// DegreesY converts a north-south distance in meters to degrees of latitude.
func (s Scale) DegreesY(meters float64) float64 { return meters / s.LatMeters }

// MetersX converts degrees of longitude to meters.
func (s Scale) MetersX(deg float64) float64 { return deg * s.LonMeters }

// MetersY converts degrees of latitude to meters.
func (s Scale) MetersY(deg float64) float64 { return deg * s.LatMeters }

// ToMeters maps a ring into a local planar frame in meters, with origin at
// the ring's first vertex.
func (s Scale) ToMeters(r orb.Ring) orb.Ring {
	if len(r) == 0 {
		return nil
	}
	origin := r[0]
	out := make(orb.Ring, len(r))
	for i, p := range r {
		out[i] = orb.Point{s.MetersX(p[0] - origin[0]), s.MetersY(p[1] - origin[1])}
	}
	return out
}

// AreaMeters returns the planar area of the ring in square meters.
func (s Scale) AreaMeters(r orb.Ring) float64 {
	if len(r) < 3 {
		return 0
	}
	return math.Abs(planar.Area(s.ToMeters(r)))
}

// UsableVertices returns the distinct vertices of a ring: non-finite points
// are dropped, consecutive repeats are collapsed, and the closing vertex is
// removed when it repeats the first one.
func UsableVertices(r orb.Ring) []orb.Point {
	out := make([]orb.Point, 0, len(r))
	for _, p := range r {
		if !finite(p) {
			continue
		}
		if n := len(out); n > 0 && out[n-1] == p {
			continue
		}
		out = append(out, p)
	}
	if n := len(out); n > 1 && out[0] == out[n-1] {
		out = out[:n-1]
	}
	return out
}

// Centroid is the arithmetic mean of the ring's usable vertices (not area
// weighted). ok is false when the ring has no usable vertex.
func Centroid(r orb.Ring) (c orb.Point, ok bool) {
	pts := UsableVertices(r)
	if len(pts) == 0 {
		return orb.Point{}, false
	}
	var sx, sy float64
	for _, p := range pts {
		sx += p[0]
		sy += p[1]
	}
	n := float64(len(pts))
	return orb.Point{sx / n, sy / n}, true
}

// MinX returns the smallest finite x among the ring's vertices.
func MinX(r orb.Ring) (float64, bool) {
	pts := UsableVertices(r)
	if len(pts) == 0 {
		return 0, false
	}
	return orb.MultiPoint(pts).Bound().Min[0], true
}

// Geohash encodes a point (x = longitude, y = latitude) at the given
// character precision.
func Geohash(p orb.Point, chars uint) string {
	return geohash.EncodeWithPrecision(p[1], p[0], chars)
}

func finite(p orb.Point) bool {
	return !math.IsNaN(p[0]) && !math.IsNaN(p[1]) && !math.IsInf(p[0], 0) && !math.IsInf(p[1], 0)
}
