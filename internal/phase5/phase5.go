// Package phase5 augments every surviving ski area with statistics, a
// centroid geometry, its run convention, and (best-effort) a geocoded
// location. Grounded on spec.md §4.4 P5; the summarizer and geocoder are
// external collaborators the caller injects, following the teacher's
// interface-typed-client constructor pattern.
package phase5

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/geocode"
	"github.com/yuletide/openskidata-processor/internal/geometry"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/phase"
	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/stats"
)

// Run augments every ski area in the store, removing memberless non-registry
// ones and recomputing the rest's statistics, geometry, and location.
// concurrency bounds how many ski areas are augmented at once.
func Run(ctx context.Context, store skistore.Store, summarizer stats.Summarizer, geocoder geocode.Geocoder, concurrency int) (phase.Stats, error) {
	var result phase.Stats
	var mu sync.Mutex

	cursor, err := store.SkiAreas(ctx, skistore.SkiAreaFilter{})
	if err != nil {
		return result, eris.Wrap(err, "phase5: list ski areas")
	}
	areas, err := skistore.Collect(ctx, cursor)
	if err != nil {
		return result, eris.Wrap(err, "phase5: collect ski areas")
	}

	err = phase.Concurrent(ctx, concurrency, areas, func(ctx context.Context, s model.Object) error {
		mu.Lock()
		result.Examined++
		mu.Unlock()

		members, err := store.Members(ctx, s.ID)
		if err != nil {
			return eris.Wrapf(err, "phase5: members of %s", s.ID)
		}

		if len(members) == 0 && !hasRegistrySource(s) {
			if err := store.Remove(ctx, s.Key); err != nil {
				return eris.Wrapf(err, "phase5: remove memberless %s", s.Key)
			}
			mu.Lock()
			result.Removed++
			mu.Unlock()
			return nil
		}

		return augment(ctx, store, summarizer, geocoder, s, members)
	})

	return result, err
}

func augment(ctx context.Context, store skistore.Store, summarizer stats.Summarizer, geocoder geocode.Geocoder, s model.Object, members []model.Object) error {
	if s.SkiArea == nil {
		s.SkiArea = &model.SkiAreaProperties{}
	}

	summary, err := summarizer.Summarize(ctx, members)
	if err != nil {
		return eris.Wrapf(err, "phase5: summarize %s", s.ID)
	}
	s.SkiArea.Statistics = &summary

	if len(members) > 0 {
		s.Geometry = geometry.Centroid(memberGeometries(members))
	}
	s.SkiArea.IsPolygon = false
	s.SkiArea.RunConvention = geometry.RunConvention(s.Geometry)

	if geocoder != nil {
		if c := geometry.CentroidOf(s.Geometry); c != nil {
			location, err := geocoder.Reverse(ctx, c.X(), c.Y())
			if err != nil {
				zap.L().Warn("phase5: geocode failed, leaving location unchanged",
					zap.String("ski_area", string(s.ID)),
					zap.Error(err),
				)
			} else if location != nil {
				s.SkiArea.Location = location
			}
		}
	}

	if err := store.Update(ctx, s); err != nil {
		return eris.Wrapf(err, "phase5: update %s", s.ID)
	}
	return nil
}

// hasRegistrySource reports whether s has a registry source, checking the
// merged Sources list (populated by merge.DefaultComposer) rather than just
// the discriminator field, since a merged survivor's Source may be
// CROWDSOURCED while REGISTRY is still one of the sources it absorbed.
func hasRegistrySource(s model.Object) bool {
	if s.Source == model.SourceRegistry {
		return true
	}
	if s.SkiArea == nil {
		return false
	}
	for _, src := range s.SkiArea.Sources {
		if src == model.SourceRegistry {
			return true
		}
	}
	return false
}

func memberGeometries(members []model.Object) []geom.T {
	geoms := make([]geom.T, 0, len(members))
	for _, m := range members {
		geoms = append(geoms, m.Geometry)
	}
	return geoms
}
