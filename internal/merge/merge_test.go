package merge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore/sqlite"
)

func TestDefaultComposer_PolygonBeatsPoint(t *testing.T) {
	polygon := model.Object{
		ID: "a", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: true, Name: "Crowdsourced Peak"},
	}
	point := model.Object{
		ID: "b", Kind: model.KindSkiArea, Source: model.SourceRegistry,
		Activities: model.NewActivitySet(model.ActivityNordic),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: false, Name: "Registry Peak"},
	}

	merged, ok := DefaultComposer([]model.Object{point, polygon})
	require.True(t, ok)
	assert.Equal(t, model.ObjectID("a"), merged.ID)
	assert.True(t, merged.SkiArea.IsPolygon)
	assert.True(t, merged.Activities.Contains(model.ActivityDownhill))
	assert.True(t, merged.Activities.Contains(model.ActivityNordic))
}

func TestDefaultComposer_EmptyDeclines(t *testing.T) {
	_, ok := DefaultComposer(nil)
	assert.False(t, ok)
}

func TestMerger_Merge_RewritesRefsAndRemovesLosers(t *testing.T) {
	ctx := context.Background()
	store, err := sqlite.Open(ctx, ":memory:")
	require.NoError(t, err)
	defer store.Close()

	a := model.Object{
		Key: "ski:a", ID: "a", Kind: model.KindSkiArea, Source: model.SourceCrowdsourced,
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: true, Name: "A"},
	}
	b := model.Object{
		Key: "ski:b", ID: "b", Kind: model.KindSkiArea, Source: model.SourceRegistry,
		Activities: model.NewActivitySet(model.ActivityNordic),
		SkiArea:    &model.SkiAreaProperties{IsPolygon: false, Name: "B"},
	}
	lift := model.Object{
		Key: "lift:1", ID: "1", Kind: model.KindLift, Source: model.SourceCrowdsourced,
		Activities: model.NewActivitySet(model.ActivityDownhill),
		SkiAreas:   []model.ObjectID{"b"},
	}
	require.NoError(t, store.Seed(ctx, a, b, lift))

	m := New(store, DefaultComposer)
	merged, ok, err := m.Merge(ctx, []model.Object{a, b})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, model.ObjectID("a"), merged.ID)

	cursor, err := store.SkiAreasByID(ctx, []model.ObjectID{"b"})
	require.NoError(t, err)
	assert.False(t, cursor.Next(ctx))

	members, err := store.Members(ctx, "a")
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, model.ObjectKey("lift:1"), members[0].Key)
}

func TestMerger_Merge_EmptyCandidatesNoOp(t *testing.T) {
	m := New(nil, DefaultComposer)
	_, ok, err := m.Merge(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}
