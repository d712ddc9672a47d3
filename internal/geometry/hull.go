package geometry

import (
	"sort"

	"github.com/twpayne/go-geom"
)

// ConvexHull computes the convex hull of points via Andrew's monotone chain
// algorithm, returning hull vertices in counter-clockwise order. Duplicate
// points are tolerated; fewer than 3 distinct points yields those points,
// deduplicated and sorted (callers treat a short hull as degenerate).
func ConvexHull(points []geom.Coord) []geom.Coord {
	pts := dedupeSorted(points)
	if len(pts) < 3 {
		return pts
	}

	lower := buildChain(pts)
	upper := buildChain(reversed(pts))

	hull := make([]geom.Coord, 0, len(lower)+len(upper)-2)
	hull = append(hull, lower[:len(lower)-1]...)
	hull = append(hull, upper[:len(upper)-1]...)
	return hull
}

func buildChain(pts []geom.Coord) []geom.Coord {
	chain := make([]geom.Coord, 0, len(pts))
	for _, p := range pts {
		for len(chain) >= 2 && cross(chain[len(chain)-2], chain[len(chain)-1], p) <= 0 {
			chain = chain[:len(chain)-1]
		}
		chain = append(chain, p)
	}
	return chain
}

func cross(o, a, b geom.Coord) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

func dedupeSorted(points []geom.Coord) []geom.Coord {
	sorted := append([]geom.Coord(nil), points...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	out := sorted[:0]
	for i, p := range sorted {
		if i == 0 || !coordEqual(p, sorted[i-1]) {
			out = append(out, p)
		}
	}
	return out
}

func coordEqual(a, b geom.Coord) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func reversed(pts []geom.Coord) []geom.Coord {
	out := make([]geom.Coord, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
