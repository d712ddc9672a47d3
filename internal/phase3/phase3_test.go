package phase3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/merge"
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

func TestRun_CrossSourceNeighbor_Merges(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	crowdsourced := model.Object{
		Key: "ski:crowd", ID: "crowd", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Geometry:   squarePolygon(10, 46, 10.01, 46.01),
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: true, Name: "Crowd"},
	}
	lift := model.Object{
		Key: "lift:1", ID: "1", Kind: model.KindLift, Source: model.SourceCrowdsourced,
		Geometry:   point(10.005, 46.005),
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiAreas:   []model.ObjectID{"crowd"},
	}
	registry := model.Object{
		Key: "ski:reg", ID: "reg", Kind: model.KindSkiArea, Source: model.SourceRegistry,
		Geometry:   point(10.005, 46.0051),
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiArea:    &model.SkiAreaProperties{Name: "Registry"},
	}
	require.NoError(t, store.Seed(ctx, crowdsourced, lift, registry))

	merger := merge.New(store, merge.DefaultComposer)
	stats, err := Run(ctx, store, merger, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Examined)
	assert.Equal(t, 2, stats.Merged)

	cursor, err := store.SkiAreasByID(ctx, []model.ObjectID{"reg"})
	require.NoError(t, err)
	assert.False(t, cursor.Next(ctx))
}

func TestRun_NoNeighbors_TraversesForMembers(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)

	registry := model.Object{
		Key: "ski:reg", ID: "reg", Kind: model.KindSkiArea, Source: model.SourceRegistry,
		Geometry:   point(-106.80, 39.60),
		Activities: model.NewActivitySet(model.ActivityNordic),
		SkiArea:    &model.SkiAreaProperties{Name: "Registry"},
	}
	run := model.Object{
		Key: "run:1", ID: "1", Kind: model.KindRun, Source: model.SourceRegistry,
		Geometry: point(-106.801, 39.601), Activities: model.NewActivitySet(model.ActivityNordic),
	}
	require.NoError(t, store.Seed(ctx, registry, run))

	merger := merge.New(store, merge.DefaultComposer)
	stats, err := Run(ctx, store, merger, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Merged)
	assert.Equal(t, 1, stats.Assigned)

	members, err := store.Members(ctx, "reg")
	require.NoError(t, err)
	require.Len(t, members, 1)
}
