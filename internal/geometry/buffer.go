// Package geometry provides the geodesic buffer, centroid, and run-convention
// primitives the traversal core and phase drivers use. All three are pure
// functions of their geometry inputs, following the teacher's WKB/go-geom
// conventions in wkb.go.
package geometry

import (
	"math"

	"github.com/twpayne/go-geom"
)

const (
	earthRadiusKM = 6371.0
	// bufferSegments is the number of directions sampled around each vertex
	// when approximating a geodesic offset; the convex hull of the sampled
	// points is the returned buffer. Coarser than a true geodesic buffer but
	// sufficient for the heuristic clustering this engine performs (spec
	// explicitly disclaims perfect boundaries).
	bufferSegments = 16
)

// Buffer expands geometry outward by km on a geodesic approximation,
// returning a Polygon (or nil for degenerate/empty input). The
// approximation is a Minkowski-sum-style convex hull: every vertex of the
// input geometry is surrounded by bufferSegments sample points at distance
// km, and the convex hull of all sample points is returned.
func Buffer(g geom.T, km float64) geom.T {
	if g == nil || km <= 0 {
		return nil
	}

	vertices := Vertices(g)
	if len(vertices) == 0 {
		return nil
	}

	samples := make([]geom.Coord, 0, len(vertices)*bufferSegments)
	for _, v := range vertices {
		samples = append(samples, destinationRing(v, km)...)
	}

	hull := ConvexHull(samples)
	if len(hull) < 3 {
		return nil
	}

	ring := make([]float64, 0, (len(hull)+1)*2)
	for _, c := range hull {
		ring = append(ring, c[0], c[1])
	}
	// close the ring
	ring = append(ring, hull[0][0], hull[0][1])

	poly := geom.NewPolygon(geom.XY)
	linRing := geom.NewLinearRingFlat(geom.XY, ring)
	if err := poly.Push(linRing); err != nil {
		return nil
	}
	return poly.SetSRID(g.SRID())
}

// destinationRing returns bufferSegments points at distance km from center,
// evenly spaced by bearing, using the standard spherical destination-point
// formula (good enough at ski-area scale; spec disclaims higher precision).
func destinationRing(center geom.Coord, km float64) []geom.Coord {
	lon := center[0] * math.Pi / 180
	lat := center[1] * math.Pi / 180
	angularDist := km / earthRadiusKM

	points := make([]geom.Coord, 0, bufferSegments)
	for i := 0; i < bufferSegments; i++ {
		bearing := 2 * math.Pi * float64(i) / float64(bufferSegments)

		destLat := math.Asin(math.Sin(lat)*math.Cos(angularDist) +
			math.Cos(lat)*math.Sin(angularDist)*math.Cos(bearing))
		destLon := lon + math.Atan2(
			math.Sin(bearing)*math.Sin(angularDist)*math.Cos(lat),
			math.Cos(angularDist)-math.Sin(lat)*math.Sin(destLat),
		)

		points = append(points, geom.Coord{
			destLon * 180 / math.Pi,
			destLat * 180 / math.Pi,
		})
	}
	return points
}
