package geometry

import "github.com/twpayne/go-geom"

// Contains reports whether every vertex of g lies inside container (a
// Polygon or MultiPolygon, tested as the union of its component rings).
// Used by the in-process sqlite store to evaluate GEO_CONTAINS without
// PostGIS (spec.md §4.2's CONTAINS predicate).
func Contains(container, g geom.T) bool {
	polys := Polygons(container)
	if len(polys) == 0 {
		return false
	}
	vertices := Vertices(g)
	if len(vertices) == 0 {
		return false
	}
	for _, v := range vertices {
		if !pointInAnyPolygon(v, polys) {
			return false
		}
	}
	return true
}

// Intersects reports whether a and b share any point: either one contains a
// vertex of the other, or an edge of a crosses an edge of b. Used by the
// in-process sqlite store to evaluate GEO_INTERSECTS.
func Intersects(a, b geom.T) bool {
	aPolys := Polygons(a)
	bPolys := Polygons(b)

	if len(aPolys) > 0 {
		for _, v := range Vertices(b) {
			if pointInAnyPolygon(v, aPolys) {
				return true
			}
		}
	}
	if len(bPolys) > 0 {
		for _, v := range Vertices(a) {
			if pointInAnyPolygon(v, bPolys) {
				return true
			}
		}
	}

	return edgesCross(Vertices(a), Vertices(b))
}

func pointInAnyPolygon(pt geom.Coord, polys []*geom.Polygon) bool {
	for _, p := range polys {
		if pointInPolygon(pt, p) {
			return true
		}
	}
	return false
}

// pointInPolygon implements the standard ray-casting algorithm over the
// exterior ring. Holes are not modeled: this pipeline's ski-area polygons
// have none in practice, and spec.md disclaims perfect boundaries.
func pointInPolygon(pt geom.Coord, poly *geom.Polygon) bool {
	if poly.NumLinearRings() == 0 {
		return false
	}
	ring := Vertices(poly.LinearRing(0))
	if len(ring) < 3 {
		return false
	}

	inside := false
	for i, j := 0, len(ring)-1; i < len(ring); j, i = i, i+1 {
		xi, yi := ring[i][0], ring[i][1]
		xj, yj := ring[j][0], ring[j][1]
		if (yi > pt[1]) != (yj > pt[1]) {
			slope := (xj - xi) * (pt[1] - yi) / (yj - yi)
			if pt[0] < xi+slope {
				inside = !inside
			}
		}
	}
	return inside
}

// edgesCross reports whether any consecutive-vertex segment in a crosses
// any consecutive-vertex segment in b. Treats both vertex lists as open
// polylines, which is sufficient to catch boundary crossings missed by the
// vertex-containment checks above.
func edgesCross(a, b []geom.Coord) bool {
	for i := 0; i+1 < len(a); i++ {
		for j := 0; j+1 < len(b); j++ {
			if segmentsIntersect(a[i], a[i+1], b[j], b[j+1]) {
				return true
			}
		}
	}
	return false
}

func segmentsIntersect(p1, p2, p3, p4 geom.Coord) bool {
	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}
	return false
}

func direction(a, b, c geom.Coord) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}
