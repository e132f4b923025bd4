// Package geo holds the small amount of coordinate math the engine needs:
// a point type, a bounding box, and the lat/lon <-> normalized-plane
// projection used by map viewports.
//
// The projection maps the globe onto the unit square [0,1)x[0,1):
// x grows east from the antimeridian, y grows south from ~85.05°N
// (the standard Web-Mercator cutoff). Callers convert a viewport to a
// BBox themselves; nothing here talks to the network or the store.
package geo

import "math"

// MaxLatitude is the Mercator latitude cutoff. Latitudes beyond it clamp
// to the edge of the plane instead of diverging.
const MaxLatitude = 85.05112878

// Point is a WGS84 coordinate pair.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// BBox is a geographic bounding box. MinLat <= MaxLat and MinLon <= MaxLon;
// boxes crossing the antimeridian are not supported.
type BBox struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// World covers every coordinate the store can hold.
func World() BBox {
	return BBox{MinLat: -90, MinLon: -180, MaxLat: 90, MaxLon: 180}
}

// Contains reports whether p falls inside (or on the edge of) the box.
func (b BBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// Project converts a coordinate to normalized plane coordinates in [0,1).
func Project(p Point) (x, y float64) {
	lat := math.Max(-MaxLatitude, math.Min(MaxLatitude, p.Lat))
	x = (p.Lon + 180) / 360
	sinLat := math.Sin(lat * math.Pi / 180)
	y = 0.5 - math.Log((1+sinLat)/(1-sinLat))/(4*math.Pi)
	return x, y
}

// Unproject is the inverse of Project.
func Unproject(x, y float64) Point {
	lon := x*360 - 180
	n := math.Pi - 2*math.Pi*y
	lat := 180 / math.Pi * math.Atan(math.Sinh(n))
	return Point{Lat: lat, Lon: lon}
}
