// Package phase4 synthesizes new ski areas from runs ingestion flagged as
// unassigned synthesis bases. Grounded on spec.md §4.4 P4: buffered
// traversal from the seed run, a downhill-requires-lift demotion rule, and
// per-run failure isolation so one bad geometry never aborts the loop.
package phase4

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/yuletide/openskidata-processor/internal/geometry"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/phase"
	"github.com/yuletide/openskidata-processor/internal/skistore"
	"github.com/yuletide/openskidata-processor/internal/traverse"
)

// Run drains the store's unassigned-run queue, synthesizing a generated ski
// area for each run that still has eligible activities and members after
// traversal, and leaving the rest as permanent orphans.
func Run(ctx context.Context, store skistore.Store) (phase.Stats, error) {
	var stats phase.Stats
	tv := traverse.New(store)

	for {
		r, ok, err := store.NextUnassignedRun(ctx)
		if err != nil {
			return stats, eris.Wrap(err, "phase4: next unassigned run")
		}
		if !ok {
			break
		}
		stats.Examined++

		if err := synthesizeOne(ctx, store, tv, r, &stats); err != nil {
			zap.L().Error("phase4: synthesis failed, skipping run",
				zap.String("run", string(r.ID)),
				zap.Error(err),
			)
			r.IsBasisForNewSkiArea = false
			if uerr := store.Update(ctx, r); uerr != nil {
				return stats, eris.Wrapf(uerr, "phase4: clear basis flag on %s after failure", r.Key)
			}
		}
	}

	return stats, nil
}

// synthesizeOne attempts to grow a cluster from r and persist it as a
// generated ski area. A nil return with no side effect on stats.Synthesized
// means the run was declined and left as an orphan, per spec.md's "stays
// orphan" rule — that is not an error.
func synthesizeOne(ctx context.Context, store skistore.Store, tv *traverse.Traverser, r model.Object, stats *phase.Stats) error {
	// activities is the seed filter passed to the traversal, per spec.md
	// §4.4 P4. The traversal narrows its own internal context per branch as
	// it explores (see internal/traverse); it does not mutate this variable,
	// which is only used for the downhill-requires-lift check below.
	activities := r.Activities.Intersect(model.AllSkiAreaActivities)

	vc := &traverse.Context{
		Activities: activities,
		AlreadyVisited: map[model.ObjectKey]bool{
			r.Key: true,
		},
	}

	visited, err := tv.Run(ctx, vc, r)
	if err != nil {
		return eris.Wrapf(err, "phase4: traverse %s", r.Key)
	}

	members := make([]model.Object, 0, len(visited))
	for _, o := range visited {
		if o.IsMember() {
			members = append(members, o)
		}
	}

	if activities.Contains(model.ActivityDownhill) && !anyLift(members) {
		activities = activities.Remove(model.ActivityDownhill)
		retained := members[:0]
		for _, m := range members {
			if m.Activities.IntersectsAny(activities) {
				retained = append(retained, m)
			}
		}
		members = retained
	}

	if activities.IsEmpty() || len(members) == 0 {
		r.IsBasisForNewSkiArea = false
		return eris.Wrap(store.Update(ctx, r), "phase4: decline orphan")
	}

	geoms := make([]geom.T, 0, len(members))
	for _, m := range members {
		geoms = append(geoms, m.Geometry)
	}
	centroid := geometry.Centroid(geoms)

	newID := model.ObjectID(uuid.NewString())
	generated := model.Object{
		Key:        model.ObjectKey(newID),
		ID:         newID,
		Kind:       model.KindSkiArea,
		Geometry:   centroid,
		Activities: activities,
		// Source is GENERATED rather than the historical CROWDSOURCED choice
		// for generated=true areas; see DESIGN.md for the tradeoff.
		Source: model.SourceGenerated,
		SkiArea: &model.SkiAreaProperties{
			IsPolygon: true,
			Generated: true,
		},
	}

	if err := store.Insert(ctx, generated); err != nil {
		return eris.Wrapf(err, "phase4: insert generated ski area %s", newID)
	}
	if err := store.MarkSkiArea(ctx, newID, false, members); err != nil {
		return eris.Wrapf(err, "phase4: mark %s", newID)
	}

	stats.Synthesized++
	stats.Assigned += len(members)
	return nil
}

func anyLift(members []model.Object) bool {
	for _, m := range members {
		if m.Kind == model.KindLift {
			return true
		}
	}
	return false
}
