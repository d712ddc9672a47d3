package geometry

import (
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/model"
)

// RunConvention derives the regional run-difficulty colour convention from
// a geometry's centroid. It is a pure function of position (spec.md §4.1),
// grounded on the same latitude/longitude-band classification style as the
// teacher's pure centroid/distance classifiers.
func RunConvention(g geom.T) model.RunConvention {
	c := CentroidOf(g)
	if c == nil {
		return model.ConventionNorthAmerica
	}

	lon, lat := c.X(), c.Y()

	switch {
	case lon >= 122 && lon <= 148 && lat >= 24 && lat <= 46:
		return model.ConventionJapan
	case lon >= -25 && lon <= 45 && lat >= 34 && lat <= 72:
		return model.ConventionEurope
	default:
		return model.ConventionNorthAmerica
	}
}
