package geometry

import "github.com/twpayne/go-geom"

// Centroid computes the vertex-averaged centroid across a heterogeneous
// collection of geometries (spec.md §4.1: "must accept heterogeneous
// geometry collections"). For a Polygon or MultiPolygon, each ring's
// closing coordinate (the repeat of its first) is counted only once.
// Geometries with no vertices are skipped. Returns nil if the collection
// yields no vertices at all.
func Centroid(geoms []geom.T) *geom.Point {
	var sumLon, sumLat float64
	var n int

	for _, g := range geoms {
		for _, v := range Vertices(g) {
			sumLon += v[0]
			sumLat += v[1]
			n++
		}
		for _, p := range Polygons(g) {
			for i := 0; i < p.NumLinearRings(); i++ {
				r := p.LinearRing(i)
				last := r.NumCoords() - 1
				if last > 0 && coordEqual(r.Coord(0), r.Coord(last)) {
					sumLon -= r.Coord(last)[0]
					sumLat -= r.Coord(last)[1]
					n--
				}
			}
		}
	}
	if n == 0 {
		return nil
	}

	return geom.NewPointFlat(geom.XY, []float64{sumLon / float64(n), sumLat / float64(n)})
}

// CentroidOf is a convenience wrapper for a single geometry.
func CentroidOf(g geom.T) *geom.Point {
	return Centroid([]geom.T{g})
}
