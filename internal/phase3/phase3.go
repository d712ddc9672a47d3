// Package phase3 implements the registry pass: registry ski areas either
// get absorbed into a cross-source merge with a nearby crowdsourced area,
// or traverse for members exactly like phase2. Grounded on spec.md §4.4 P3.
package phase3

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/geometry"
	"github.com/yuletide/openskidata-processor/internal/merge"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/phase"
	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/traverse"
)

// mergeCandidateBufferKM is the radius §4.4 P3 uses to discover nearby
// objects that already reference a different-source ski area.
const mergeCandidateBufferKM = 0.25

// Run processes every registry ski area: merge it with cross-source
// neighbors when any exist, otherwise traverse for members. concurrency
// bounds how many registry areas are examined at once; the merge step
// itself is serialized against a shared lock since two concurrently
// discovered merge groups could otherwise both claim the same survivor.
func Run(ctx context.Context, store skistore.Store, merger *merge.Merger, concurrency int) (phase.Stats, error) {
	var stats phase.Stats
	var mu, mergeMu sync.Mutex

	registry := model.SourceRegistry
	cursor, err := store.SkiAreas(ctx, skistore.SkiAreaFilter{Source: &registry})
	if err != nil {
		return stats, eris.Wrap(err, "phase3: list registry ski areas")
	}
	areas, err := skistore.Collect(ctx, cursor)
	if err != nil {
		return stats, eris.Wrap(err, "phase3: collect registry ski areas")
	}

	tv := traverse.New(store)

	err = phase.Concurrent(ctx, concurrency, areas, func(ctx context.Context, b model.Object) error {
		mu.Lock()
		stats.Examined++
		mu.Unlock()

		candidates, err := mergeCandidates(ctx, store, b)
		if err != nil {
			return eris.Wrapf(err, "phase3: merge candidates for %s", b.ID)
		}

		if len(candidates) > 0 {
			mergeMu.Lock()
			group := append([]model.Object{b}, candidates...)
			_, ok, err := merger.Merge(ctx, group)
			mergeMu.Unlock()
			if err != nil {
				return eris.Wrapf(err, "phase3: merge %s", b.ID)
			}
			if ok {
				mu.Lock()
				stats.Merged += len(group)
				mu.Unlock()
				zap.L().Info("phase3: merged cross-source ski areas",
					zap.String("ski_area", string(b.ID)),
					zap.Int("candidates", len(candidates)),
				)
			}
			return nil
		}

		vc := &traverse.Context{
			SkiAreaID:               b.ID,
			Activities:              b.Activities.Clone(),
			ExcludeInSkiAreaPolygon: true,
			AlreadyVisited: map[model.ObjectKey]bool{
				b.Key: true,
			},
		}

		visited, err := tv.Run(ctx, vc, b)
		if err != nil {
			return eris.Wrapf(err, "phase3: traverse %s", b.ID)
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

		if err := store.MarkSkiArea(ctx, b.ID, false, members); err != nil {
			return eris.Wrapf(err, "phase3: mark %s", b.ID)
		}

		mu.Lock()
		stats.Assigned += len(members)
		mu.Unlock()
		return nil
	})

	return stats, err
}

// mergeCandidates finds ski areas with a different source than b that some
// object within mergeCandidateBufferKM of b already references.
func mergeCandidates(ctx context.Context, store skistore.Store, b model.Object) ([]model.Object, error) {
	buffered := geometry.Buffer(b.Geometry, mergeCandidateBufferKM)
	if buffered == nil {
		return nil, nil
	}

	nearby, err := store.Nearby(ctx, buffered, skistore.Intersects, skistore.NearbyParams{})
	if err != nil {
		return nil, eris.Wrap(err, "phase3: nearby")
	}

	referenced := make(map[model.ObjectID]bool)
	for _, o := range nearby {
		for _, id := range o.SkiAreas {
			if id != b.ID {
				referenced[id] = true
			}
		}
	}
	if len(referenced) == 0 {
		return nil, nil
	}

	ids := make([]model.ObjectID, 0, len(referenced))
	for id := range referenced {
		ids = append(ids, id)
	}

	cursor, err := store.SkiAreasByID(ctx, ids)
	if err != nil {
		return nil, eris.Wrap(err, "phase3: resolve referenced ski areas")
	}
	resolved, err := skistore.Collect(ctx, cursor)
	if err != nil {
		return nil, eris.Wrap(err, "phase3: collect referenced ski areas")
	}

	candidates := resolved[:0]
	for _, r := range resolved {
		if r.Source != b.Source {
			candidates = append(candidates, r)
		}
	}
	return candidates, nil
}
