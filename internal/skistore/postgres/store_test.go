package postgres

import (
	"context"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore"
)

func newObject(key, id string, kind model.Kind) model.Object {
	return model.Object{
		Key:        model.ObjectKey(key),
		ID:         model.ObjectID(id),
		Kind:       kind,
		Geometry:   geom.NewPointFlat(geom.XY, []float64{-106.8, 39.6}).SetSRID(4326),
		Activities: model.NewActivitySet(model.ActivityDownhill),
		Source:     model.SourceCrowdsourced,
	}
}

func TestInsert_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO ski_objects").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := New(mock)
	err = store.Insert(context.Background(), newObject("lift:1", "1", model.KindLift))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInsert_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO ski_objects").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("duplicate key"))

	store := New(mock)
	err = store.Insert(context.Background(), newObject("lift:1", "1", model.KindLift))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert lift:1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdate_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("UPDATE ski_objects SET").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := New(mock)
	err = store.Update(context.Background(), newObject("run:404", "404", model.KindRun))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemove_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec("DELETE FROM ski_objects WHERE key = ").
		WithArgs("lift:1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	store := New(mock)
	err = store.Remove(context.Background(), model.ObjectKey("lift:1"))
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveBatch_Empty(t *testing.T) {
	store := New(nil)
	err := store.RemoveBatch(context.Background(), nil)
	assert.NoError(t, err)
}

func TestSkiAreasByID_Empty(t *testing.T) {
	store := New(nil)
	cursor, err := store.SkiAreasByID(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, cursor.Next(context.Background()))
}

func TestNextUnassignedRun_None(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	cols := []string{"key", "id", "kind", "geometry", "activities", "source", "ski_areas",
		"is_in_ski_area_polygon", "is_basis_for_new_ski_area", "is_in_ski_area_site", "ski_area_properties"}
	mock.ExpectQuery("SELECT").
		WithArgs(string(model.KindRun)).
		WillReturnRows(pgxmock.NewRows(cols))

	store := New(mock)
	_, ok, err := store.NextUnassignedRun(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNearby_RecoverableErrorSwallowed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(fmt.Errorf("ST_Intersects: Invalid loop in polygon 0"))

	store := New(mock)
	area := geom.NewPointFlat(geom.XY, []float64{-106.8, 39.6}).SetSRID(4326)
	results, err := store.Nearby(context.Background(), area, skistore.Intersects, skistore.NearbyParams{})
	assert.NoError(t, err)
	assert.Nil(t, results)
	assert.NoError(t, mock.ExpectationsWereMet())
}
