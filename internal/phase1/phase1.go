// Package phase1 implements the polygon containment pass: each crowdsourced
// polygon ski area claims everything inside it via a single CONTAINS
// traversal, then is removed if it turns out to be empty or
// site-relation-dominated. Grounded on spec.md §4.4 P1 and on the traverse
// package's polygon-phase dispatch.
package phase1

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/phase"
	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/traverse"
)

// siteRatioThreshold is the fraction of site-relation members above which a
// polygon is considered a bare site bundle rather than a real ski area.
const siteRatioThreshold = 0.5

// Run processes every crowdsourced polygon ski area, marking its members or
// removing the ski area per spec.md §4.4's ordered removal rules.
// concurrency bounds how many polygons are processed at once.
func Run(ctx context.Context, store skistore.Store, concurrency int) (phase.Stats, error) {
	var stats phase.Stats
	var mu sync.Mutex

	crowdsourced := model.SourceCrowdsourced
	cursor, err := store.SkiAreas(ctx, skistore.SkiAreaFilter{Source: &crowdsourced, OnlyPolygons: true})
	if err != nil {
		return stats, eris.Wrap(err, "phase1: list crowdsourced polygons")
	}
	polygons, err := skistore.Collect(ctx, cursor)
	if err != nil {
		return stats, eris.Wrap(err, "phase1: collect crowdsourced polygons")
	}

	tv := traverse.New(store)

	err = phase.Concurrent(ctx, concurrency, polygons, func(ctx context.Context, a model.Object) error {
		delta, err := processOne(ctx, store, tv, a)

		mu.Lock()
		stats.Examined++
		stats.Add(delta)
		mu.Unlock()

		return err
	})

	return stats, err
}

func processOne(ctx context.Context, store skistore.Store, tv *traverse.Traverser, a model.Object) (phase.Stats, error) {
	var stats phase.Stats
	wasEmpty := a.Activities.IsEmpty()
	seedActivities := a.Activities
	if wasEmpty {
		seedActivities = model.AllSkiAreaActivities.Clone()
	}

	vc := &traverse.Context{
		SkiAreaID:     a.ID,
		Activities:    seedActivities,
		SearchPolygon: a.Geometry,
		AlreadyVisited: map[model.ObjectKey]bool{
			a.Key: true,
		},
	}

	// visitObject narrows using the seed object's own Activities field, so an
	// empty-activities polygon needs the same {Downhill, Nordic} stand-in
	// applied to the traversal seed itself, not just to vc's context value —
	// otherwise the very first narrowing step intersects against empty and
	// the whole containment pass finds nothing. a keeps its real (possibly
	// empty) Activities for the removal and backfill logic below.
	traversalSeed := a
	traversalSeed.Activities = seedActivities

	visited, err := tv.Run(ctx, vc, traversalSeed)
	if err != nil {
		return stats, eris.Wrapf(err, "phase1: traverse %s", a.ID)
	}

	members := make([]model.Object, 0, len(visited))
	for _, o := range visited {
		if o.IsMember() {
			members = append(members, o)
		}
	}

	if len(members) == 0 {
		if err := store.Remove(ctx, a.Key); err != nil {
			return stats, eris.Wrapf(err, "phase1: remove empty %s", a.Key)
		}
		stats.Removed++
		zap.L().Info("phase1: removed empty polygon ski area", zap.String("ski_area", string(a.ID)))
		return stats, nil
	}

	siteCount, total := 0, 0
	for _, m := range members {
		total++
		if m.IsInSkiAreaSite {
			siteCount++
		}
	}
	if total > 0 && float64(siteCount)/float64(total) > siteRatioThreshold {
		if err := store.Remove(ctx, a.Key); err != nil {
			return stats, eris.Wrapf(err, "phase1: remove site-dominated %s", a.Key)
		}
		stats.Removed++
		zap.L().Info("phase1: removed site-dominated polygon ski area",
			zap.String("ski_area", string(a.ID)),
			zap.Int("site_members", siteCount),
			zap.Int("total_members", total),
		)
		return stats, nil
	}

	if err := store.MarkSkiArea(ctx, a.ID, true, members); err != nil {
		return stats, eris.Wrapf(err, "phase1: mark %s", a.ID)
	}
	stats.Assigned += len(members)

	if wasEmpty {
		union := a.Activities.Clone()
		for _, m := range members {
			union = union.Union(m.Activities.Intersect(model.AllSkiAreaActivities))
		}
		a.Activities = union
		if err := store.Update(ctx, a); err != nil {
			return stats, eris.Wrapf(err, "phase1: backfill activities %s", a.ID)
		}
	}

	return stats, nil
}
