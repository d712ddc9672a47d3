package phase1

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore/sqlite"
)

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

func point(lon, lat float64) geom.T {
	return geom.NewPointFlat(geom.XY, []float64{lon, lat}).SetSRID(4326)
}

func openStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestRun_PolygonWithMembers_Retained(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Geometry:   squarePolygon(10, 46, 10.01, 46.01),
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: true, Name: "A"},
	}
	run1 := model.Object{
		Key: "run:1", ID: "1", Kind: model.KindRun, Source: model.SourceCrowdsourced,
		Geometry: point(10.005, 46.005), Activities: model.NewActivitySet(model.ActivityDownhill),
	}
	run2 := model.Object{
		Key: "run:2", ID: "2", Kind: model.KindRun, Source: model.SourceCrowdsourced,
		Geometry: point(10.006, 46.006), Activities: model.NewActivitySet(model.ActivityDownhill),
	}
	require.NoError(t, store.Seed(ctx, a, run1, run2))

	stats, err := Run(ctx, store, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Examined)
	assert.Equal(t, 0, stats.Removed)
	assert.Equal(t, 2, stats.Assigned)

	members, err := store.Members(ctx, "a")
	require.NoError(t, err)
	require.Len(t, members, 2)
	for _, m := range members {
		assert.True(t, m.IsInSkiAreaPolygon)
	}
}

func TestRun_EmptyPolygon_Removed(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Geometry:   squarePolygon(10, 46, 10.01, 46.01),
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: true, Name: "A"},
	}
	require.NoError(t, store.Seed(ctx, a))

	stats, err := Run(ctx, store, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)

	cursor, err := store.SkiAreasByID(ctx, []model.ObjectID{"a"})
	require.NoError(t, err)
	assert.False(t, cursor.Next(ctx))
}

func TestRun_SiteDominatedPolygon_Removed(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Geometry:   squarePolygon(10, 46, 10.01, 46.01),
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: true, Name: "A"},
	}
	objs := []model.Object{a}
	for i := 0; i < 5; i++ {
		lift := model.Object{
			Key: model.ObjectKey("lift:" + string(rune('0'+i))), ID: model.ObjectID(string(rune('0' + i))),
			Kind: model.KindLift, Source: model.SourceCrowdsourced,
			Geometry:         point(10.002+float64(i)*0.001, 46.002),
			Activities:       model.NewActivitySet(model.ActivityDownhill),
			IsInSkiAreaSite: i < 4,
		}
		objs = append(objs, lift)
	}
	require.NoError(t, store.Seed(ctx, objs...))

	stats, err := Run(ctx, store, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Removed)
}

func TestRun_EmptyActivities_BackfilledFromMembers(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Geometry:   squarePolygon(10, 46, 10.01, 46.01),
		Activities: model.NewActivitySet(),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: true, Name: "A"},
	}
	run1 := model.Object{
		Key: "run:1", ID: "1", Kind: model.KindRun, Source: model.SourceCrowdsourced,
		Geometry: point(10.005, 46.005), Activities: model.NewActivitySet(model.ActivityNordic),
	}
	require.NoError(t, store.Seed(ctx, a, run1))

	_, err := Run(ctx, store, 1)
	require.NoError(t, err)

	cursor, err := store.SkiAreasByID(ctx, []model.ObjectID{"a"})
	require.NoError(t, err)
	require.True(t, cursor.Next(ctx))
	updated := cursor.Object()
	assert.True(t, updated.Activities.Contains(model.ActivityNordic))
}
