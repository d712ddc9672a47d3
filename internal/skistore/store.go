// Package skistore defines the narrow geospatial query interface the
// pipeline issues against the backing document store (spec.md §4.2). The
// pipeline never sees raw query language; it calls Store methods and lets
// the implementation (postgres or sqlite) translate them.
package skistore

import (
	"context"

	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/model"
)

// Predicate selects which spatial relationship Nearby tests for.
type Predicate int

const (
	// Intersects matches objects whose geometry intersects the search area.
	Intersects Predicate = iota
	// Contains matches objects whose geometry is wholly inside the search area.
	Contains
)

// DefaultBatchSize is the batch size named in spec.md §4.2 ("batch ≤ 50").
// Neither store implementation reads it; their cursors are not paged.
const DefaultBatchSize = 50

// SkiAreaFilter narrows a SkiAreas query.
type SkiAreaFilter struct {
	// Source restricts results to ski areas from this source. Nil means any.
	Source *model.Source
	// OnlyPolygons restricts results to ski areas whose geometry is a
	// Polygon or MultiPolygon.
	OnlyPolygons bool
	// WithinPolygon, if set, restricts results to ski areas whose geometry
	// lies inside this polygon.
	WithinPolygon geom.T
}

// NearbyParams carries the per-traversal visit context fields Nearby needs
// to exclude already-visited objects, objects already claiming the current
// ski area, and (for buffered phases) objects already polygon-claimed.
type NearbyParams struct {
	// AlreadyVisited excludes objects whose key is in this set.
	AlreadyVisited map[model.ObjectKey]bool
	// ExcludeClaimedBy excludes objects that already reference this ski
	// area id in their SkiAreas set.
	ExcludeClaimedBy model.ObjectID
	// ExcludeInSkiAreaPolygon, when true, excludes objects with
	// IsInSkiAreaPolygon=true.
	ExcludeInSkiAreaPolygon bool
	// Activities requires at least one overlapping activity; objects with
	// no overlap are excluded. An empty set means no activity filter is
	// applied at all (used by callers doing activity-agnostic lookups, e.g.
	// phase3's merge candidate search) — traversal callers must never pass
	// an empty set meaning "narrowed to nothing"; internal/traverse prunes
	// those branches before calling Nearby instead.
	Activities model.ActivitySet
}

// Store is the pipeline's narrow geospatial interface over the backing
// document store. Implementations live in skistore/postgres and
// skistore/sqlite.
type Store interface {
	// SkiAreas returns a cursor over ski areas matching filter.
	SkiAreas(ctx context.Context, filter SkiAreaFilter) (Cursor, error)

	// SkiAreasByID returns a cursor over the ski areas with the given ids.
	SkiAreasByID(ctx context.Context, ids []model.ObjectID) (Cursor, error)

	// Nearby returns objects whose geometry satisfies predicate against
	// area, subject to the exclusions and activity filter in params.
	Nearby(ctx context.Context, area geom.T, predicate Predicate, params NearbyParams) ([]model.Object, error)

	// MarkSkiArea appends id to every object's SkiAreas set, clears
	// IsBasisForNewSkiArea, and ORs IsInSkiAreaPolygon with isInPolygon.
	// Executed atomically per batch.
	MarkSkiArea(ctx context.Context, id model.ObjectID, isInPolygon bool, objects []model.Object) error

	// Remove deletes a single object by key.
	Remove(ctx context.Context, key model.ObjectKey) error

	// RemoveBatch atomically deletes multiple objects by key.
	RemoveBatch(ctx context.Context, keys []model.ObjectKey) error

	// RewriteSkiAreaRefs removes every id in oldIDs from every object's
	// SkiAreas set and appends newID exactly once, under an exclusive lock.
	RewriteSkiAreaRefs(ctx context.Context, oldIDs []model.ObjectID, newID model.ObjectID) error

	// NextUnassignedRun returns one object with IsBasisForNewSkiArea=true,
	// or ok=false if none remain.
	NextUnassignedRun(ctx context.Context) (obj model.Object, ok bool, err error)

	// Members returns the lifts/runs that reference skiAreaID in their
	// SkiAreas set (SkiArea objects are never members of another ski area).
	Members(ctx context.Context, skiAreaID model.ObjectID) ([]model.Object, error)

	// Insert persists a newly created object (used by P4 synthesis).
	Insert(ctx context.Context, obj model.Object) error

	// Update persists mutations to an existing object's mutable fields
	// (used by P5 augmentation and P1's activity backfill).
	Update(ctx context.Context, obj model.Object) error
}

// Cursor iterates over a query's results. Both implementations load the
// full result set with one query and return it as a SliceCursor; results
// are not fetched in batches.
type Cursor interface {
	// Next advances to the next object, returning false when exhausted or
	// on error (check Err to distinguish).
	Next(ctx context.Context) bool
	// Object returns the object Next most recently advanced to.
	Object() model.Object
	// Err returns the first error encountered, if any.
	Err() error
	// Close releases cursor resources.
	Close() error
}
