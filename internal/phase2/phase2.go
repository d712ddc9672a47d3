// Package phase2 implements the buffered pass over crowdsourced ski areas:
// the same traversal as phase1 but growing outward by half-kilometre hops
// instead of a single polygon containment query, and without phase1's
// removal rules. Grounded on spec.md §4.4 P2.
package phase2

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/phase"
	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/traverse"
)

// Run processes every crowdsourced ski area (polygon or point) with a
// buffered traversal, excluding objects already claimed by a polygon pass.
// concurrency bounds how many ski areas are processed at once.
func Run(ctx context.Context, store skistore.Store, concurrency int) (phase.Stats, error) {
	var stats phase.Stats
	var mu sync.Mutex

	crowdsourced := model.SourceCrowdsourced
	cursor, err := store.SkiAreas(ctx, skistore.SkiAreaFilter{Source: &crowdsourced})
	if err != nil {
		return stats, eris.Wrap(err, "phase2: list crowdsourced ski areas")
	}
	areas, err := skistore.Collect(ctx, cursor)
	if err != nil {
		return stats, eris.Wrap(err, "phase2: collect crowdsourced ski areas")
	}

	tv := traverse.New(store)

	err = phase.Concurrent(ctx, concurrency, areas, func(ctx context.Context, a model.Object) error {
		mu.Lock()
		stats.Examined++
		mu.Unlock()

		vc := &traverse.Context{
			SkiAreaID:               a.ID,
			Activities:              a.Activities.Clone(),
			ExcludeInSkiAreaPolygon: true,
			AlreadyVisited: map[model.ObjectKey]bool{
				a.Key: true,
			},
		}

		visited, err := tv.Run(ctx, vc, a)
		if err != nil {
			return eris.Wrapf(err, "phase2: traverse %s", a.ID)
		}

		members := make([]model.Object, 0, len(visited))
		for _, o := range visited {
			if o.IsMember() {
				members = append(members, o)
			}
		}
		if len(members) == 0 {
			return nil
		}

		if err := store.MarkSkiArea(ctx, a.ID, false, members); err != nil {
			return eris.Wrapf(err, "phase2: mark %s", a.ID)
		}

		mu.Lock()
		stats.Assigned += len(members)
		mu.Unlock()
		return nil
	})

	return stats, err
}
