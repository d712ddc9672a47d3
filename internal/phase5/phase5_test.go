package phase5

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/geocode"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore/sqlite"
	"github.com/yuletide/openskidata-processor/internal/stats"
)

func point(lon, lat float64) geom.T {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
}

func squarePolygon(minLon, minLat, maxLon, maxLat float64) *geom.Polygon {
	ring := geom.NewLinearRingFlat(geom.XY, []float64{
		minLon, minLat,
		maxLon, minLat,
		maxLon, maxLat,
		minLon, maxLat,
		minLon, minLat,
	})
	poly := geom.NewPolygon(geom.XY)
	_ = poly.Push(ring)
	return poly.SetSRID(4326)
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRun_ReshapesPolygonToCentroid(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Geometry: squarePolygon(10, 46, 10.02, 46.02),
		SkiArea:  &model.SkiAreaProperties{IsPolygon: true, Name: "A"},
	}
	run := model.Object{
		Key: "run:1", ID: "1", Kind: model.KindRun, Source: model.SourceCrowdsourced,
		Geometry: point(10.01, 46.01), Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiAreas: []model.ObjectID{"a"},
	}
	require.NoError(t, store.Seed(ctx, a, run))

	result, err := Run(ctx, store, stats.NoopSummarizer{}, geocode.NoopGeocoder{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Examined)
	assert.Equal(t, 0, result.Removed)

	cursor, err := store.SkiAreasByID(ctx, []model.ObjectID{"a"})
	require.NoError(t, err)
	require.True(t, cursor.Next(ctx))
	updated := cursor.Object()
	assert.False(t, updated.SkiArea.IsPolygon)
	_, isPoint := updated.Geometry.(*geom.Point)
	assert.True(t, isPoint)
}

func TestRun_MemberlessNonRegistry_Removed(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceGenerated,
		Geometry: point(10, 46),
		SkiArea:  &model.SkiAreaProperties{Generated: true},
	}
	require.NoError(t, store.Seed(ctx, a))

	result, err := Run(ctx, store, stats.NoopSummarizer{}, geocode.NoopGeocoder{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Removed)

	cursor, err := store.SkiAreasByID(ctx, []model.ObjectID{"a"})
	require.NoError(t, err)
	assert.False(t, cursor.Next(ctx))
}

func TestRun_MemberlessRegistry_Kept(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceRegistry,
		Geometry: point(10, 46),
		SkiArea:  &model.SkiAreaProperties{Name: "Registry Only"},
	}
	require.NoError(t, store.Seed(ctx, a))

	result, err := Run(ctx, store, stats.NoopSummarizer{}, geocode.NoopGeocoder{}, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Removed)

	cursor, err := store.SkiAreasByID(ctx, []model.ObjectID{"a"})
	require.NoError(t, err)
	assert.True(t, cursor.Next(ctx))
}
