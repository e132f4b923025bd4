package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProjectKnownPoints(t *testing.T) {
	x, y := Project(Point{Lat: 0, Lon: 0})
	assert.InDelta(t, 0.5, x, 1e-12)
	assert.InDelta(t, 0.5, y, 1e-12)

	x, y = Project(Point{Lat: 0, Lon: -180})
	assert.InDelta(t, 0.0, x, 1e-12)
	assert.InDelta(t, 0.5, y, 1e-12)

	// The Mercator cutoff pins the top edge of the plane.
	_, y = Project(Point{Lat: MaxLatitude, Lon: 0})
	assert.InDelta(t, 0.0, y, 1e-9)
	_, y = Project(Point{Lat: -MaxLatitude, Lon: 0})
	assert.InDelta(t, 1.0, y, 1e-9)
}

func TestProjectClampsPolarLatitudes(t *testing.T) {
	_, yPole := Project(Point{Lat: 90, Lon: 0})
	_, yCutoff := Project(Point{Lat: MaxLatitude, Lon: 0})
	assert.Equal(t, yCutoff, yPole)
}

func TestProjectUnprojectRoundTrip(t *testing.T) {
	points := []Point{
		{Lat: 48.8566, Lon: 2.3522},
		{Lat: -33.8688, Lon: 151.2093},
		{Lat: 64.1466, Lon: -21.9426},
		{Lat: 0.0001, Lon: -0.0001},
	}
	for _, p := range points {
		x, y := Project(p)
		got := Unproject(x, y)
		assert.InDelta(t, p.Lat, got.Lat, 1e-9, "lat of %+v", p)
		assert.InDelta(t, p.Lon, got.Lon, 1e-9, "lon of %+v", p)
	}
}

func TestBBoxContains(t *testing.T) {
	box := BBox{MinLat: 40, MinLon: -10, MaxLat: 60, MaxLon: 20}

	assert.True(t, box.Contains(Point{Lat: 48.85, Lon: 2.35}))
	assert.True(t, box.Contains(Point{Lat: 40, Lon: -10}), "edges are inclusive")
	assert.False(t, box.Contains(Point{Lat: 39.99, Lon: 0}))
	assert.False(t, box.Contains(Point{Lat: 50, Lon: 20.01}))

	world := World()
	assert.True(t, world.Contains(Point{Lat: 90, Lon: 180}))
	assert.True(t, world.Contains(Point{Lat: -90, Lon: -180}))
}
