// Package postgres implements skistore.Store against PostGIS, following the
// query style of geospatial.PointInPolygon and the PostgresStore in the
// associator's own store package: a thin db.Pool wrapper, eris-wrapped
// errors, recoverable degenerate-polygon errors swallowed at this
// boundary per spec.md §7.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/db"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore"
)

// Store implements skistore.Store using a PostGIS-enabled Postgres database.
type Store struct {
	pool db.Pool
}

// New wraps an existing pool. Callers own the pool's lifecycle.
func New(pool db.Pool) *Store {
	return &Store{pool: pool}
}

const schema = `
CREATE TABLE IF NOT EXISTS ski_objects (
	key                       TEXT PRIMARY KEY,
	id                        TEXT NOT NULL,
	kind                      TEXT NOT NULL,
	geometry                  geometry(Geometry, 4326),
	activities                JSONB NOT NULL DEFAULT '[]',
	source                    TEXT NOT NULL,
	ski_areas                 JSONB NOT NULL DEFAULT '[]',
	is_in_ski_area_polygon    BOOLEAN NOT NULL DEFAULT false,
	is_basis_for_new_ski_area BOOLEAN NOT NULL DEFAULT false,
	is_in_ski_area_site       BOOLEAN NOT NULL DEFAULT false,
	ski_area_properties       JSONB
);
CREATE INDEX IF NOT EXISTS idx_ski_objects_kind ON ski_objects(kind);
CREATE INDEX IF NOT EXISTS idx_ski_objects_source ON ski_objects(source);
CREATE INDEX IF NOT EXISTS idx_ski_objects_basis ON ski_objects(is_basis_for_new_ski_area) WHERE is_basis_for_new_ski_area;
CREATE INDEX IF NOT EXISTS idx_ski_objects_geometry ON ski_objects USING GIST(geometry);
`

// Migrate creates the object table and its indexes (including PostGIS's
// geometry GIST index) if they do not already exist.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schema)
	return eris.Wrap(err, "postgres: migrate")
}

const selectColumns = `key, id, kind, ST_AsBinary(geometry), activities, source, ski_areas,
	is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties`

func (s *Store) SkiAreas(ctx context.Context, filter skistore.SkiAreaFilter) (skistore.Cursor, error) {
	query := `SELECT ` + selectColumns + ` FROM ski_objects WHERE kind = $1`
	args := []any{string(model.KindSkiArea)}

	if filter.Source != nil {
		args = append(args, string(*filter.Source))
		query += fmt.Sprintf(" AND source = $%d", len(args))
	}
	if filter.OnlyPolygons {
		query += " AND GeometryType(geometry) IN ('POLYGON', 'MULTIPOLYGON')"
	}
	if filter.WithinPolygon != nil {
		wkbBytes, err := encodeGeometry(filter.WithinPolygon)
		if err != nil {
			return nil, err
		}
		args = append(args, wkbBytes)
		query += fmt.Sprintf(" AND ST_Contains(ST_GeomFromEWKB($%d), geometry)", len(args))
	}

	objects, err := s.queryObjects(ctx, query, args...)
	if err != nil {
		if skistore.IsRecoverable(err) {
			return skistore.NewSliceCursor(nil), nil
		}
		return nil, err
	}
	return skistore.NewSliceCursor(objects), nil
}

func (s *Store) SkiAreasByID(ctx context.Context, ids []model.ObjectID) (skistore.Cursor, error) {
	if len(ids) == 0 {
		return skistore.NewSliceCursor(nil), nil
	}
	idStrs := make([]string, len(ids))
	for i, id := range ids {
		idStrs[i] = string(id)
	}
	objects, err := s.queryObjects(ctx,
		`SELECT `+selectColumns+` FROM ski_objects WHERE kind = $1 AND id = ANY($2)`,
		string(model.KindSkiArea), idStrs,
	)
	if err != nil {
		return nil, err
	}
	return skistore.NewSliceCursor(objects), nil
}

func (s *Store) Nearby(ctx context.Context, area geom.T, predicate skistore.Predicate, params skistore.NearbyParams) ([]model.Object, error) {
	areaBytes, err := encodeGeometry(area)
	if err != nil {
		return nil, err
	}

	op := "ST_Intersects"
	if predicate == skistore.Contains {
		op = "ST_Contains"
	}

	query := `SELECT ` + selectColumns + ` FROM ski_objects
		WHERE kind != $1 AND ` + op + `(ST_GeomFromEWKB($2), geometry)`
	args := []any{string(model.KindSkiArea), areaBytes}

	if params.ExcludeInSkiAreaPolygon {
		query += " AND NOT is_in_ski_area_polygon"
	}
	if params.ExcludeClaimedBy != "" {
		args = append(args, string(params.ExcludeClaimedBy))
		query += fmt.Sprintf(" AND NOT (ski_areas @> to_jsonb($%d::text))", len(args))
	}

	objects, err := s.queryObjects(ctx, query, args...)
	if err != nil {
		if skistore.IsRecoverable(err) {
			return nil, nil
		}
		return nil, err
	}

	var results []model.Object
	for _, o := range objects {
		if params.AlreadyVisited != nil && params.AlreadyVisited[o.Key] {
			continue
		}
		if !params.Activities.IsEmpty() && !o.Activities.IntersectsAny(params.Activities) {
			continue
		}
		results = append(results, o)
	}
	return results, nil
}

// MarkSkiArea marks every object via a COPY into a scratch table followed by
// a single joined UPDATE, following internal/db/copy.go's CopyFrom for the
// batch write instead of one UPDATE per object.
func (s *Store) MarkSkiArea(ctx context.Context, id model.ObjectID, isInPolygon bool, objects []model.Object) error {
	if len(objects) == 0 {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: mark ski area begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `CREATE TEMP TABLE _mark_ski_area (key TEXT) ON COMMIT DROP`); err != nil {
		return eris.Wrap(err, "postgres: mark ski area create scratch table")
	}

	rows := make([][]any, len(objects))
	for i, o := range objects {
		rows[i] = []any{string(o.Key)}
	}
	if _, err := db.CopyFrom(ctx, tx, "_mark_ski_area", []string{"key"}, rows); err != nil {
		return eris.Wrapf(err, "postgres: mark ski area %s copy", id)
	}

	_, err = tx.Exec(ctx, `UPDATE ski_objects SET
		ski_areas = CASE WHEN ski_areas @> to_jsonb($1::text) THEN ski_areas ELSE ski_areas || to_jsonb($1::text) END,
		is_basis_for_new_ski_area = false,
		is_in_ski_area_polygon = is_in_ski_area_polygon OR $2
		FROM _mark_ski_area WHERE ski_objects.key = _mark_ski_area.key`,
		string(id), isInPolygon,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark ski area %s update", id)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: mark ski area commit")
}

func (s *Store) Remove(ctx context.Context, key model.ObjectKey) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM ski_objects WHERE key = $1`, string(key))
	return eris.Wrapf(err, "postgres: remove %s", key)
}

func (s *Store) RemoveBatch(ctx context.Context, keys []model.ObjectKey) error {
	if len(keys) == 0 {
		return nil
	}
	keyStrs := make([]string, len(keys))
	for i, k := range keys {
		keyStrs[i] = string(k)
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM ski_objects WHERE key = ANY($1)`, keyStrs)
	return eris.Wrap(err, "postgres: remove batch")
}

func (s *Store) RewriteSkiAreaRefs(ctx context.Context, oldIDs []model.ObjectID, newID model.ObjectID) error {
	if len(oldIDs) == 0 {
		return nil
	}
	oldStrs := make([]string, len(oldIDs))
	for i, id := range oldIDs {
		oldStrs[i] = string(id)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: rewrite refs begin tx")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `SELECT `+selectColumns+` FROM ski_objects WHERE ski_areas ?| $1 FOR UPDATE`, oldStrs)
	if err != nil {
		return eris.Wrap(err, "postgres: rewrite refs select")
	}
	objects, err := scanObjects(rows)
	rows.Close()
	if err != nil {
		return err
	}

	stale := make(map[model.ObjectID]bool, len(oldIDs))
	for _, id := range oldIDs {
		stale[id] = true
	}

	for _, o := range objects {
		rewritten := o.SkiAreas[:0]
		for _, ref := range o.SkiAreas {
			if !stale[ref] {
				rewritten = append(rewritten, ref)
			}
		}
		hasNew := false
		for _, ref := range rewritten {
			if ref == newID {
				hasNew = true
				break
			}
		}
		if !hasNew {
			rewritten = append(rewritten, newID)
		}
		o.SkiAreas = rewritten

		skiAreasJSON, err := encodeSkiAreas(o.SkiAreas)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `UPDATE ski_objects SET ski_areas = $1 WHERE key = $2`, skiAreasJSON, string(o.Key)); err != nil {
			return eris.Wrapf(err, "postgres: rewrite refs update %s", o.Key)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: rewrite refs commit")
}

func (s *Store) NextUnassignedRun(ctx context.Context) (model.Object, bool, error) {
	objects, err := s.queryObjects(ctx,
		`SELECT `+selectColumns+` FROM ski_objects WHERE kind = $1 AND is_basis_for_new_ski_area LIMIT 1`,
		string(model.KindRun),
	)
	if err != nil {
		return model.Object{}, false, err
	}
	if len(objects) == 0 {
		return model.Object{}, false, nil
	}
	return objects[0], true, nil
}

func (s *Store) Members(ctx context.Context, skiAreaID model.ObjectID) ([]model.Object, error) {
	return s.queryObjects(ctx,
		`SELECT `+selectColumns+` FROM ski_objects WHERE kind != $1 AND ski_areas @> to_jsonb($2::text)`,
		string(model.KindSkiArea), string(skiAreaID),
	)
}

func (s *Store) Insert(ctx context.Context, obj model.Object) error {
	r, err := rowFromObject(obj)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `INSERT INTO ski_objects
		(key, id, kind, geometry, activities, source, ski_areas, is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties)
		VALUES ($1, $2, $3, ST_GeomFromEWKB($4), $5, $6, $7, $8, $9, $10, $11)`,
		r.key, r.id, r.kind, r.geometry, r.activities, r.source, r.skiAreas,
		r.isInSkiAreaPolygon, r.isBasisForNewSkiArea, r.isInSkiAreaSite, r.skiAreaProperties,
	)
	return eris.Wrapf(err, "postgres: insert %s", obj.Key)
}

func (s *Store) Update(ctx context.Context, obj model.Object) error {
	r, err := rowFromObject(obj)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `UPDATE ski_objects SET
		id = $1, kind = $2, geometry = ST_GeomFromEWKB($3), activities = $4, source = $5, ski_areas = $6,
		is_in_ski_area_polygon = $7, is_basis_for_new_ski_area = $8, is_in_ski_area_site = $9, ski_area_properties = $10
		WHERE key = $11`,
		r.id, r.kind, r.geometry, r.activities, r.source, r.skiAreas,
		r.isInSkiAreaPolygon, r.isBasisForNewSkiArea, r.isInSkiAreaSite, r.skiAreaProperties,
		r.key,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update %s", obj.Key)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: update %s: not found", obj.Key)
	}
	return nil
}

func (s *Store) queryObjects(ctx context.Context, query string, args ...any) ([]model.Object, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	defer rows.Close()
	return scanObjects(rows)
}

func scanObjects(rows pgx.Rows) ([]model.Object, error) {
	var objects []model.Object
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.key, &r.id, &r.kind, &r.geometry, &r.activities, &r.source, &r.skiAreas,
			&r.isInSkiAreaPolygon, &r.isBasisForNewSkiArea, &r.isInSkiAreaSite, &r.skiAreaProperties); err != nil {
			return nil, eris.Wrap(err, "postgres: scan row")
		}
		o, err := objectFromRow(r)
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, eris.Wrap(rows.Err(), "postgres: iterate rows")
}

var _ skistore.Store = (*Store)(nil)
