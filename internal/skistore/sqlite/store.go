// Package sqlite implements skistore.Store over an in-process SQLite
// database, following the teacher's SQLiteStore in internal/store/sqlite.go
// (database/sql + modernc.org/sqlite, WAL pragmas, JSON-serialized columns).
// Unlike the postgres implementation, geometry predicates are evaluated in
// Go via internal/geometry since SQLite carries no PostGIS.
package sqlite

import (
	"context"
	"database/sql"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	_ "modernc.org/sqlite"

	"github.com/yuletide/openskidata-processor/internal/geometry"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore"
)

// Store implements skistore.Store using a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens a SQLite database at dsn (use ":memory:" for ephemeral test
// stores) and runs the schema migration.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "skistore/sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "skistore/sqlite: exec %s", pragma)
		}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS objects (
	key                       TEXT PRIMARY KEY,
	id                        TEXT NOT NULL,
	kind                      TEXT NOT NULL,
	geometry                  BLOB,
	activities                TEXT NOT NULL DEFAULT '[]',
	source                    TEXT NOT NULL,
	ski_areas                 TEXT NOT NULL DEFAULT '[]',
	is_in_ski_area_polygon    INTEGER NOT NULL DEFAULT 0,
	is_basis_for_new_ski_area INTEGER NOT NULL DEFAULT 0,
	is_in_ski_area_site       INTEGER NOT NULL DEFAULT 0,
	ski_area_properties       TEXT
);
CREATE INDEX IF NOT EXISTS idx_objects_kind ON objects(kind);
CREATE INDEX IF NOT EXISTS idx_objects_source ON objects(source);
CREATE INDEX IF NOT EXISTS idx_objects_basis ON objects(is_basis_for_new_ski_area);
`

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return eris.Wrap(err, "skistore/sqlite: migrate")
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SkiAreas(ctx context.Context, filter skistore.SkiAreaFilter) (skistore.Cursor, error) {
	query := `SELECT key, id, kind, geometry, activities, source, ski_areas,
		is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties
		FROM objects WHERE kind = ?`
	args := []any{string(model.KindSkiArea)}

	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, string(*filter.Source))
	}

	objects, err := s.queryObjects(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	filtered := objects[:0]
	for _, o := range objects {
		if filter.OnlyPolygons {
			if _, ok := o.Geometry.(*geom.Polygon); !ok {
				if _, ok := o.Geometry.(*geom.MultiPolygon); !ok {
					continue
				}
			}
		}
		if filter.WithinPolygon != nil {
			if o.Geometry == nil || !geometry.Contains(filter.WithinPolygon, o.Geometry) {
				continue
			}
		}
		filtered = append(filtered, o)
	}

	return skistore.NewSliceCursor(filtered), nil
}

func (s *Store) SkiAreasByID(ctx context.Context, ids []model.ObjectID) (skistore.Cursor, error) {
	if len(ids) == 0 {
		return skistore.NewSliceCursor(nil), nil
	}

	byID := make(map[model.ObjectID]bool, len(ids))
	for _, id := range ids {
		byID[id] = true
	}

	objects, err := s.queryObjects(ctx, `SELECT key, id, kind, geometry, activities, source, ski_areas,
		is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties
		FROM objects WHERE kind = ?`, string(model.KindSkiArea))
	if err != nil {
		return nil, err
	}

	matched := objects[:0]
	for _, o := range objects {
		if byID[o.ID] {
			matched = append(matched, o)
		}
	}
	return skistore.NewSliceCursor(matched), nil
}

func (s *Store) Nearby(ctx context.Context, area geom.T, predicate skistore.Predicate, params skistore.NearbyParams) ([]model.Object, error) {
	if geometry.IsDegenerate(area) {
		// A degenerate search area is the recoverable invalid-polygon case
		// (see skistore.IsRecoverable): the query yields no objects.
		return nil, nil
	}

	candidates, err := s.queryObjects(ctx, `SELECT key, id, kind, geometry, activities, source, ski_areas,
		is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties
		FROM objects WHERE kind != ?`, string(model.KindSkiArea))
	if err != nil {
		return nil, err
	}

	var results []model.Object
	for _, o := range candidates {
		if params.AlreadyVisited != nil && params.AlreadyVisited[o.Key] {
			continue
		}
		if params.ExcludeClaimedBy != "" && o.HasSkiArea(params.ExcludeClaimedBy) {
			continue
		}
		if params.ExcludeInSkiAreaPolygon && o.IsInSkiAreaPolygon {
			continue
		}
		if !params.Activities.IsEmpty() && !o.Activities.IntersectsAny(params.Activities) {
			continue
		}
		if o.Geometry == nil {
			continue
		}

		var matches bool
		switch predicate {
		case skistore.Contains:
			matches = geometry.Contains(area, o.Geometry)
		default:
			matches = geometry.Intersects(area, o.Geometry)
		}
		if matches {
			results = append(results, o)
		}
	}
	return results, nil
}

func (s *Store) MarkSkiArea(ctx context.Context, id model.ObjectID, isInPolygon bool, objects []model.Object) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "skistore/sqlite: mark ski area begin tx")
	}
	defer tx.Rollback()

	for _, o := range objects {
		current, err := s.loadByKeyTx(ctx, tx, o.Key)
		if err != nil {
			return err
		}
		if !current.HasSkiArea(id) {
			current.SkiAreas = append(current.SkiAreas, id)
		}
		current.IsBasisForNewSkiArea = false
		current.IsInSkiAreaPolygon = current.IsInSkiAreaPolygon || isInPolygon

		if err := s.saveTx(ctx, tx, current); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "skistore/sqlite: mark ski area commit")
}

func (s *Store) Remove(ctx context.Context, key model.ObjectKey) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, string(key))
	return eris.Wrapf(err, "skistore/sqlite: remove %s", key)
}

func (s *Store) RemoveBatch(ctx context.Context, keys []model.ObjectKey) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "skistore/sqlite: remove batch begin tx")
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM objects WHERE key = ?`, string(key)); err != nil {
			return eris.Wrapf(err, "skistore/sqlite: remove batch %s", key)
		}
	}
	return eris.Wrap(tx.Commit(), "skistore/sqlite: remove batch commit")
}

func (s *Store) RewriteSkiAreaRefs(ctx context.Context, oldIDs []model.ObjectID, newID model.ObjectID) error {
	if len(oldIDs) == 0 {
		return nil
	}
	stale := make(map[model.ObjectID]bool, len(oldIDs))
	for _, id := range oldIDs {
		stale[id] = true
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "skistore/sqlite: rewrite refs begin tx")
	}
	defer tx.Rollback()

	all, err := s.queryObjectsTx(ctx, tx, `SELECT key, id, kind, geometry, activities, source, ski_areas,
		is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties FROM objects`)
	if err != nil {
		return err
	}

	for _, o := range all {
		touched := false
		rewritten := o.SkiAreas[:0]
		for _, ref := range o.SkiAreas {
			if stale[ref] {
				touched = true
				continue
			}
			rewritten = append(rewritten, ref)
		}
		if !touched {
			continue
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
		if err := s.saveTx(ctx, tx, o); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "skistore/sqlite: rewrite refs commit")
}

func (s *Store) NextUnassignedRun(ctx context.Context) (model.Object, bool, error) {
	objects, err := s.queryObjects(ctx, `SELECT key, id, kind, geometry, activities, source, ski_areas,
		is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties
		FROM objects WHERE kind = ? AND is_basis_for_new_ski_area = 1 LIMIT 1`, string(model.KindRun))
	if err != nil {
		return model.Object{}, false, err
	}
	if len(objects) == 0 {
		return model.Object{}, false, nil
	}
	return objects[0], true, nil
}

func (s *Store) Members(ctx context.Context, skiAreaID model.ObjectID) ([]model.Object, error) {
	all, err := s.queryObjects(ctx, `SELECT key, id, kind, geometry, activities, source, ski_areas,
		is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties
		FROM objects WHERE kind != ?`, string(model.KindSkiArea))
	if err != nil {
		return nil, err
	}

	var members []model.Object
	for _, o := range all {
		if o.HasSkiArea(skiAreaID) {
			members = append(members, o)
		}
	}
	return members, nil
}

func (s *Store) Insert(ctx context.Context, obj model.Object) error {
	row, err := rowFromObject(obj)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO objects
		(key, id, kind, geometry, activities, source, ski_areas, is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.key, row.id, row.kind, row.geometry, row.activities, row.source, row.skiAreas,
		row.isInSkiAreaPolygon, row.isBasisForNewSkiArea, row.isInSkiAreaSite, row.skiAreaProperties,
	)
	return eris.Wrapf(err, "skistore/sqlite: insert %s", obj.Key)
}

func (s *Store) Update(ctx context.Context, obj model.Object) error {
	row, err := rowFromObject(obj)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE objects SET
		id = ?, kind = ?, geometry = ?, activities = ?, source = ?, ski_areas = ?,
		is_in_ski_area_polygon = ?, is_basis_for_new_ski_area = ?, is_in_ski_area_site = ?, ski_area_properties = ?
		WHERE key = ?`,
		row.id, row.kind, row.geometry, row.activities, row.source, row.skiAreas,
		row.isInSkiAreaPolygon, row.isBasisForNewSkiArea, row.isInSkiAreaSite, row.skiAreaProperties,
		row.key,
	)
	if err != nil {
		return eris.Wrapf(err, "skistore/sqlite: update %s", obj.Key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "skistore/sqlite: update rows affected")
	}
	if n == 0 {
		return eris.Errorf("skistore/sqlite: update %s: not found", obj.Key)
	}
	return nil
}

// Seed inserts obj directly, for test fixture setup.
func (s *Store) Seed(ctx context.Context, objs ...model.Object) error {
	for _, o := range objs {
		if err := s.Insert(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) queryObjects(ctx context.Context, query string, args ...any) ([]model.Object, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "skistore/sqlite: query")
	}
	defer rows.Close()
	return scanObjects(rows)
}

func (s *Store) queryObjectsTx(ctx context.Context, tx *sql.Tx, query string, args ...any) ([]model.Object, error) {
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "skistore/sqlite: query (tx)")
	}
	defer rows.Close()
	return scanObjects(rows)
}

func scanObjects(rows *sql.Rows) ([]model.Object, error) {
	var objects []model.Object
	for rows.Next() {
		var r objectRow
		if err := rows.Scan(&r.key, &r.id, &r.kind, &r.geometry, &r.activities, &r.source, &r.skiAreas,
			&r.isInSkiAreaPolygon, &r.isBasisForNewSkiArea, &r.isInSkiAreaSite, &r.skiAreaProperties); err != nil {
			return nil, eris.Wrap(err, "skistore/sqlite: scan row")
		}
		o, err := objectFromRow(r)
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	return objects, eris.Wrap(rows.Err(), "skistore/sqlite: iterate rows")
}

func (s *Store) loadByKeyTx(ctx context.Context, tx *sql.Tx, key model.ObjectKey) (model.Object, error) {
	objects, err := s.queryObjectsTx(ctx, tx, `SELECT key, id, kind, geometry, activities, source, ski_areas,
		is_in_ski_area_polygon, is_basis_for_new_ski_area, is_in_ski_area_site, ski_area_properties
		FROM objects WHERE key = ?`, string(key))
	if err != nil {
		return model.Object{}, err
	}
	if len(objects) == 0 {
		return model.Object{}, eris.Errorf("skistore/sqlite: %s: not found", key)
	}
	return objects[0], nil
}

func (s *Store) saveTx(ctx context.Context, tx *sql.Tx, obj model.Object) error {
	row, err := rowFromObject(obj)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `UPDATE objects SET
		id = ?, kind = ?, geometry = ?, activities = ?, source = ?, ski_areas = ?,
		is_in_ski_area_polygon = ?, is_basis_for_new_ski_area = ?, is_in_ski_area_site = ?, ski_area_properties = ?
		WHERE key = ?`,
		row.id, row.kind, row.geometry, row.activities, row.source, row.skiAreas,
		row.isInSkiAreaPolygon, row.isBasisForNewSkiArea, row.isInSkiAreaSite, row.skiAreaProperties,
		row.key,
	)
	return eris.Wrapf(err, "skistore/sqlite: save %s", obj.Key)
}

var _ skistore.Store = (*Store)(nil)
