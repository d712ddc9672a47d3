// Package traverse implements the breadth-first flood fill that phase
// drivers use to discover a ski area's members, following spec.md §4.3.
// Recursion is converted to an explicit work queue, in keeping with the
// associator's preference for inspectable control flow over deep
// recursion (internal/pipeline/pipeline.go's trackPhase loop is an
// explicit loop over named phases rather than a recursive descent).
package traverse

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/geometry"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore"
)

// bufferKM is the half-kilometre hop distance buffered traversal uses to
// grow a cluster outward from each seed.
const bufferKM = 0.5

// Context carries the per-traversal visit state: the seed activity filter,
// the fixed polygon for polygon-phase traversals, and the keys already
// claimed this run.
type Context struct {
	SkiAreaID model.ObjectID

	// Activities is the seed activity filter. Per spec.md §4.3 step 3, each
	// branch of the flood fill narrows this independently as it visits
	// objects — ctx' = ctx ∩ object, carried into that branch's own
	// recursive calls — so a Downhill neighbor discovered down one branch
	// must never constrain the Nordic neighbor discovered down another.
	// Run does not mutate this field; the narrowed set for each branch is
	// threaded through the internal work queue instead.
	Activities model.ActivitySet

	// SearchPolygon, when set, makes this a polygon-phase traversal: a
	// single containment query against the fixed polygon, no recursion.
	// Nil means a buffered traversal that grows outward by bufferKM hops.
	SearchPolygon geom.T

	// ExcludeInSkiAreaPolygon excludes objects already polygon-claimed by
	// some ski area (used by the buffered passes so they don't re-claim
	// objects P1 already settled).
	ExcludeInSkiAreaPolygon bool

	// ExcludeClaimedBy, if set, excludes objects already referencing this
	// ski area id. The phase drivers leave it empty.
	ExcludeClaimedBy model.ObjectID

	// AlreadyVisited accumulates every key seen this traversal. Callers
	// typically seed it with the starting object's own key.
	AlreadyVisited map[model.ObjectKey]bool
}

// Traverser runs flood-fill traversals against a skistore.Store.
type Traverser struct {
	store skistore.Store
}

// New returns a Traverser backed by store.
func New(store skistore.Store) *Traverser {
	return &Traverser{store: store}
}

// queued pairs a discovered object with the activity context its branch of
// the flood fill has narrowed to so far, so that intersecting in one
// branch never leaks into a sibling branch's exploration.
type queued struct {
	obj        model.Object
	activities model.ActivitySet
}

// Run performs the traversal described by ctx starting at seed, returning
// seed plus every member discovered. ctx.AlreadyVisited is mutated in
// place as the traversal proceeds; ctx.Activities is read once as the seed
// filter and is not mutated.
func (t *Traverser) Run(ctx context.Context, vc *Context, seed model.Object) ([]model.Object, error) {
	if vc.AlreadyVisited == nil {
		vc.AlreadyVisited = make(map[model.ObjectKey]bool)
	}
	vc.AlreadyVisited[seed.Key] = true

	results := []model.Object{seed}
	queue := []queued{{obj: seed, activities: vc.Activities}}

	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]

		found, narrowed, err := t.visitObject(ctx, vc, item.obj, item.activities)
		if err != nil {
			return nil, err
		}

		for _, f := range found {
			if vc.AlreadyVisited[f.Key] {
				continue
			}
			vc.AlreadyVisited[f.Key] = true
			results = append(results, f)
			if vc.SearchPolygon == nil {
				queue = append(queue, queued{obj: f, activities: narrowed})
			}
		}

		if vc.SearchPolygon != nil {
			// Polygon phase: a single containment pass, never recurse.
			break
		}
	}

	return results, nil
}

// visitObject determines obj's search area and dispatches to visitPolygon
// for each component polygon, per spec.md §4.3 step 4's MultiPolygon fold.
// It returns the objects found along with activities narrowed to obj's own
// activities — the context every one of obj's children inherits.
func (t *Traverser) visitObject(ctx context.Context, vc *Context, obj model.Object, activities model.ActivitySet) ([]model.Object, model.ActivitySet, error) {
	var searchArea geom.T
	if vc.SearchPolygon != nil {
		searchArea = vc.SearchPolygon
	} else {
		searchArea = geometry.Buffer(obj.Geometry, bufferKM)
	}
	if searchArea == nil {
		return nil, activities, nil
	}

	narrowed := activities.Intersect(obj.Activities)
	if narrowed.IsEmpty() {
		// obj shares no activity with this branch's context: querying Nearby
		// with an empty activity filter would match unfiltered rather than
		// match nothing (see skistore.NearbyParams.Activities), so prune the
		// branch here instead of issuing that query at all.
		return nil, narrowed, nil
	}

	polys := geometry.Polygons(searchArea)
	if len(polys) == 0 {
		return nil, narrowed, eris.Errorf("traverse: unexpected search geometry %T", searchArea)
	}

	var found []model.Object
	for _, poly := range polys {
		members, err := t.visitPolygon(ctx, vc, poly, narrowed)
		if err != nil {
			return nil, narrowed, err
		}
		found = append(found, members...)
	}
	return found, narrowed, nil
}

// visitPolygon queries nearby for poly and marks every result visited.
func (t *Traverser) visitPolygon(ctx context.Context, vc *Context, poly *geom.Polygon, activities model.ActivitySet) ([]model.Object, error) {
	predicate := skistore.Intersects
	if vc.SearchPolygon != nil {
		predicate = skistore.Contains
	}

	found, err := t.store.Nearby(ctx, poly, predicate, skistore.NearbyParams{
		AlreadyVisited:          vc.AlreadyVisited,
		ExcludeClaimedBy:        vc.ExcludeClaimedBy,
		ExcludeInSkiAreaPolygon: vc.ExcludeInSkiAreaPolygon,
		Activities:              activities,
	})
	if err != nil {
		return nil, eris.Wrap(err, "traverse: nearby")
	}
	return found, nil
}
