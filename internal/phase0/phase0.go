// Package phase0 implements the ambiguous-duplicate removal pass: a
// crowdsourced polygon that encloses more than one registry ski area's
// centroid is a shared-ticketing super-relation, not a resort, and is
// removed before any other phase runs. Grounded on the teacher's
// package-level XPhase(ctx, deps...) functions in internal/pipeline/crawl.go.
package phase0

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/geometry"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/phase"
	"github.com/yuletide/openskidata-processor/internal/skistore"
)

// Run removes every crowdsourced polygon ski area enclosing more than one
// registry ski area's centroid. concurrency bounds how many polygons are
// examined at once, per spec.md §5's within-batch parallelism; pass 1 for
// strictly sequential processing.
func Run(ctx context.Context, store skistore.Store, concurrency int) (phase.Stats, error) {
	var stats phase.Stats
	var mu sync.Mutex

	crowdsourced := model.SourceCrowdsourced
	polyCursor, err := store.SkiAreas(ctx, skistore.SkiAreaFilter{Source: &crowdsourced, OnlyPolygons: true})
	if err != nil {
		return stats, eris.Wrap(err, "phase0: list crowdsourced polygons")
	}
	polygons, err := skistore.Collect(ctx, polyCursor)
	if err != nil {
		return stats, eris.Wrap(err, "phase0: collect crowdsourced polygons")
	}

	registry := model.SourceRegistry
	registryCursor, err := store.SkiAreas(ctx, skistore.SkiAreaFilter{Source: &registry})
	if err != nil {
		return stats, eris.Wrap(err, "phase0: list registry ski areas")
	}
	registryAreas, err := skistore.Collect(ctx, registryCursor)
	if err != nil {
		return stats, eris.Wrap(err, "phase0: collect registry ski areas")
	}

	err = phase.Concurrent(ctx, concurrency, polygons, func(ctx context.Context, a model.Object) error {
		enclosed := 0
		for _, r := range registryAreas {
			centroid := geometry.CentroidOf(r.Geometry)
			if centroid == nil {
				continue
			}
			if geometry.Contains(a.Geometry, centroid) {
				enclosed++
			}
		}

		mu.Lock()
		stats.Examined++
		mu.Unlock()

		if enclosed <= 1 {
			return nil
		}

		if err := store.Remove(ctx, a.Key); err != nil {
			return eris.Wrapf(err, "phase0: remove %s", a.Key)
		}

		mu.Lock()
		stats.Removed++
		mu.Unlock()

		zap.L().Info("phase0: removed ambiguous super-relation",
			zap.String("ski_area", string(a.ID)),
			zap.Int("enclosed_registry_areas", enclosed),
		)
		return nil
	})

	return stats, err
}
