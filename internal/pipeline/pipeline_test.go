package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/yuletide/openskidata-processor/internal/config"
	"github.com/yuletide/openskidata-processor/internal/geocode"
	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore/sqlite"
	"github.com/yuletide/openskidata-processor/internal/stats"
)

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

func testConfig() *config.Config {
	return &config.Config{
		Store: config.StoreConfig{
			Driver:             "sqlite",
			TraversalTimeout:   5 * time.Second,
			EnumerationTimeout: 5 * time.Second,
		},
		Pipeline: config.PipelineConfig{
			BufferKM:               0.5,
			MergeCandidateBufferKM: 0.25,
			BatchConcurrency:       1,
		},
	}
}

func TestRun_SequencesPhasesAndAccumulatesTotals(t *testing.T) {
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

	p := New(testConfig(), store, stats.NoopSummarizer{}, geocode.NoopGeocoder{})
	result, err := p.Run(ctx)
	require.NoError(t, err)

	require.Len(t, result.Phases, 6)
	wantOrder := []string{
		"phase0_dedupe", "phase1_polygon", "phase2_buffered",
		"phase3_registry", "phase4_synthesis", "phase5_augment",
	}
	for i, name := range wantOrder {
		assert.Equal(t, name, result.Phases[i].Name)
		assert.False(t, result.Phases[i].Failed)
	}

	assert.Equal(t, 1, result.Totals.Assigned)

	members, err := store.Members(ctx, "reg")
	require.NoError(t, err)
	assert.Len(t, members, 1)
}

func TestRun_StopsAtFirstFailingPhase(t *testing.T) {
	ctx := context.Background()
	store := openStore(t)
	store.Close()

	p := New(testConfig(), store, stats.NoopSummarizer{}, geocode.NoopGeocoder{})
	result, err := p.Run(ctx)
	require.Error(t, err)

	require.Len(t, result.Phases, 1)
	assert.Equal(t, "phase0_dedupe", result.Phases[0].Name)
	assert.True(t, result.Phases[0].Failed)
	assert.NotEmpty(t, result.Phases[0].Error)
}

func TestNew_NilCollaboratorsDefaultToNoop(t *testing.T) {
	store := openStore(t)
	p := New(testConfig(), store, nil, nil)
	assert.NotNil(t, p.summarizer)
	assert.NotNil(t, p.geocoder)
}
