package testutil

import (
	"github.com/roach88/brickbook/internal/ir"
)

// Fixture returns a building with id and the given whitelisted fields, plus
// a 0.001 degree square geometry anchored at (id/1000, 51.5).
// geometry_id equals id.
func Fixture(id int64, fields ir.Object) (ir.Geometry, ir.Building) {
	lng := float64(id) / 1000
	g := ir.Geometry{
		ID:     id,
		MinLng: lng,
		MinLat: 51.5,
		MaxLng: lng + 0.001,
		MaxLat: 51.501,
	}
	b := ir.Building{
		ID:         id,
		GeometryID: id,
		Fields:     fields.Clone(),
	}
	return g, b
}

// Centre returns a point inside the geometry Fixture creates for id.
func Centre(id int64) ir.Point {
	return ir.Point{Lng: float64(id)/1000 + 0.0005, Lat: 51.5005}
}
