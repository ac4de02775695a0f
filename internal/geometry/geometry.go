// Package geometry holds the planar predicates shared by the region filter
// and the zone resolver.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/paulmach/orb/project"
)

// ErrNotPolygonal is returned for geometries other than polygons and multipolygons
var ErrNotPolygonal = errors.New("geometry is not a polygon or multipolygon")

// Check validates that g is a non-empty polygon or multipolygon with finite
// coordinates.
func Check(g orb.Geometry) error {
	switch v := g.(type) {
	case orb.Polygon:
		return checkPolygon(v)
	case orb.MultiPolygon:
		if len(v) == 0 {
			return errors.New("empty multipolygon")
		}
		for i, p := range v {
			if err := checkPolygon(p); err != nil {
				return fmt.Errorf("part %d: %w", i, err)
			}
		}
		return nil
	case nil:
		return errors.New("missing geometry")
	}
	return fmt.Errorf("%w: %s", ErrNotPolygonal, g.GeoJSONType())
}

func checkPolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return errors.New("polygon has no exterior ring")
	}
	// A closed ring needs three distinct vertices plus the closing one
	if len(p[0]) < 4 {
		return fmt.Errorf("exterior ring has %d coordinates, need at least 4", len(p[0]))
	}
	for _, ring := range p {
		for _, pt := range ring {
			if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
				return errors.New("polygon has non-finite coordinates")
			}
		}
	}
	return nil
}

// Contains reports whether the polygonal geometry contains the point. Points
// on the boundary count as inside.
func Contains(g orb.Geometry, point orb.Point) bool {
	switch v := g.(type) {
	case orb.Polygon:
		return planar.PolygonContains(v, point)
	case orb.MultiPolygon:
		for _, poly := range v {
			if planar.PolygonContains(poly, point) {
				return true
			}
		}
	}
	return false
}

// ContainsStrictly reports whether point lies in the interior of the
// polygonal geometry. Points on a ring are not contained.
func ContainsStrictly(g orb.Geometry, point orb.Point) bool {
	return Contains(g, point) && DistanceToBoundary(point, g) > 0
}

// WithinDistance reports whether a disk of the given radius around point
// intersects the polygonal geometry.
func WithinDistance(g orb.Geometry, point orb.Point, radius float64) bool {
	if !g.Bound().Pad(radius).Contains(point) {
		return false
	}
	if Contains(g, point) {
		return true
	}
	return DistanceToBoundary(point, g) <= radius
}

// DistanceToBoundary returns the minimum distance from point to any ring of g
func DistanceToBoundary(point orb.Point, g orb.Geometry) float64 {
	switch v := g.(type) {
	case orb.Polygon:
		return distanceToPolygon(point, v)
	case orb.MultiPolygon:
		minDist := math.MaxFloat64
		for _, poly := range v {
			if d := distanceToPolygon(point, poly); d < minDist {
				minDist = d
			}
		}
		return minDist
	}
	return math.MaxFloat64
}

func distanceToPolygon(point orb.Point, poly orb.Polygon) float64 {
	minDist := math.MaxFloat64
	for _, ring := range poly {
		for i := 0; i < len(ring)-1; i++ {
			if d := distanceToSegment(point, ring[i], ring[i+1]); d < minDist {
				minDist = d
			}
		}
	}
	return minDist
}

func distanceToSegment(p, a, b orb.Point) float64 {
	dx := b[0] - a[0]
	dy := b[1] - a[1]
	if dx == 0 && dy == 0 {
		return planar.Distance(p, a)
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	switch {
	case t < 0:
		return planar.Distance(p, a)
	case t > 1:
		return planar.Distance(p, b)
	}
	return planar.Distance(p, orb.Point{a[0] + t*dx, a[1] + t*dy})
}

// IntersectsBound reports whether the polygonal geometry shares any point
// with the rectangle b.
func IntersectsBound(g orb.Geometry, b orb.Bound) bool {
	if !g.Bound().Intersects(b) {
		return false
	}
	switch v := g.(type) {
	case orb.Polygon:
		return polygonIntersectsBound(v, b)
	case orb.MultiPolygon:
		for _, poly := range v {
			if polygonIntersectsBound(poly, b) {
				return true
			}
		}
	}
	return false
}

func polygonIntersectsBound(poly orb.Polygon, b orb.Bound) bool {
	if len(poly) == 0 {
		return false
	}
	// A vertex of the exterior ring inside the box
	for _, pt := range poly[0] {
		if b.Contains(pt) {
			return true
		}
	}
	// The box lies inside the polygon
	if planar.PolygonContains(poly, b.Center()) {
		return true
	}
	// Edges crossing the box
	corners := []orb.Point{b.Min, {b.Max[0], b.Min[1]}, b.Max, {b.Min[0], b.Max[1]}}
	for _, ring := range poly {
		for i := 0; i < len(ring)-1; i++ {
			for j := range corners {
				if segmentsIntersect(ring[i], ring[i+1], corners[j], corners[(j+1)%4]) {
					return true
				}
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := cross(p3, p4, p1)
	d2 := cross(p3, p4, p2)
	d3 := cross(p1, p2, p3)
	d4 := cross(p1, p2, p4)
	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return (d1 == 0 && onSegment(p3, p4, p1)) ||
		(d2 == 0 && onSegment(p3, p4, p2)) ||
		(d3 == 0 && onSegment(p1, p2, p3)) ||
		(d4 == 0 && onSegment(p1, p2, p4))
}

func cross(a, b, c orb.Point) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// Reproject returns a copy of g with every coordinate passed through proj.
// The input geometry is left untouched.
func Reproject(g orb.Geometry, proj orb.Projection) orb.Geometry {
	if g == nil {
		return nil
	}
	return project.Geometry(orb.Clone(g), proj)
}
