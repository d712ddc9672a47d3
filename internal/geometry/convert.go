package geometry

import "github.com/twpayne/go-geom"

// Vertices flattens any of the GeoJSON geometry types the ingestion layer
// emits (Point, LineString, Polygon, MultiPolygon, and their collections)
// into a flat list of coordinates. Unknown geometry types yield nil.
func Vertices(g geom.T) []geom.Coord {
	switch t := g.(type) {
	case *geom.Point:
		return []geom.Coord{t.Coords()}
	case *geom.MultiPoint:
		return flatCoordsN(t.FlatCoords(), t.Layout().Stride())
	case *geom.LineString:
		return flatCoordsN(t.FlatCoords(), t.Layout().Stride())
	case *geom.LinearRing:
		return flatCoordsN(t.FlatCoords(), t.Layout().Stride())
	case *geom.MultiLineString:
		return flatCoordsN(t.FlatCoords(), t.Layout().Stride())
	case *geom.Polygon:
		return flatCoordsN(t.FlatCoords(), t.Layout().Stride())
	case *geom.MultiPolygon:
		return flatCoordsN(t.FlatCoords(), t.Layout().Stride())
	case *geom.GeometryCollection:
		var out []geom.Coord
		for _, child := range t.Geoms() {
			out = append(out, Vertices(child)...)
		}
		return out
	default:
		return nil
	}
}

func flatCoordsN(flat []float64, stride int) []geom.Coord {
	if stride <= 0 {
		return nil
	}
	out := make([]geom.Coord, 0, len(flat)/stride)
	for i := 0; i+stride <= len(flat); i += stride {
		out = append(out, geom.Coord{flat[i], flat[i+1]})
	}
	return out
}

// Polygons folds a geometry down to its component polygons: a *geom.Polygon
// yields itself, a *geom.MultiPolygon yields each of its polygons, anything
// else yields nil. Used by the traversal core's MultiPolygon fold (§4.3).
func Polygons(g geom.T) []*geom.Polygon {
	switch t := g.(type) {
	case *geom.Polygon:
		return []*geom.Polygon{t}
	case *geom.MultiPolygon:
		polys := make([]*geom.Polygon, t.NumPolygons())
		for i := 0; i < t.NumPolygons(); i++ {
			polys[i] = t.Polygon(i)
		}
		return polys
	default:
		return nil
	}
}

// IsDegenerate reports whether g carries no usable coordinates.
func IsDegenerate(g geom.T) bool {
	return g == nil || len(Vertices(g)) == 0
}
