package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActivitySet_Intersect(t *testing.T) {
	a := NewActivitySet(ActivityDownhill, ActivityNordic)
	b := NewActivitySet(ActivityDownhill, ActivitySnowboard)

	got := a.Intersect(b)

	assert.True(t, got.Contains(ActivityDownhill))
	assert.False(t, got.Contains(ActivityNordic))
	assert.False(t, got.Contains(ActivitySnowboard))
}

func TestActivitySet_IntersectEmpty(t *testing.T) {
	a := NewActivitySet(ActivityNordic)
	b := NewActivitySet(ActivityDownhill)

	got := a.Intersect(b)

	assert.True(t, got.IsEmpty())
}

func TestActivitySet_Union(t *testing.T) {
	a := NewActivitySet(ActivityDownhill)
	b := NewActivitySet(ActivityNordic)

	got := a.Union(b)

	assert.True(t, got.Contains(ActivityDownhill))
	assert.True(t, got.Contains(ActivityNordic))
}

func TestActivitySet_Remove(t *testing.T) {
	a := NewActivitySet(ActivityDownhill, ActivityNordic)

	got := a.Remove(ActivityDownhill)

	assert.False(t, got.Contains(ActivityDownhill))
	assert.True(t, got.Contains(ActivityNordic))
	// original set is untouched
	assert.True(t, a.Contains(ActivityDownhill))
}

func TestActivitySet_IntersectsAny(t *testing.T) {
	a := NewActivitySet(ActivityDownhill)
	b := NewActivitySet(ActivityNordic, ActivityDownhill)
	c := NewActivitySet(ActivitySnowboard)

	assert.True(t, a.IntersectsAny(b))
	assert.False(t, a.IntersectsAny(c))
}

func TestActivitySet_Clone(t *testing.T) {
	a := NewActivitySet(ActivityDownhill)
	clone := a.Clone()
	clone[ActivityNordic] = struct{}{}

	assert.False(t, a.Contains(ActivityNordic))
	assert.True(t, clone.Contains(ActivityNordic))
}

func TestAllSkiAreaActivities(t *testing.T) {
	assert.True(t, AllSkiAreaActivities.Contains(ActivityDownhill))
	assert.True(t, AllSkiAreaActivities.Contains(ActivityNordic))
	assert.False(t, AllSkiAreaActivities.Contains(ActivitySnowboard))
}
