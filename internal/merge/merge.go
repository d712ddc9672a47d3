// Package merge implements the ski-area combination operation of
// spec.md §4.5: compose several ski-area records from different sources
// into one surviving record and rewrite every reference to the merged-away
// ids. The composition rule itself is injected, following the associator's
// dependency-injection style for pluggable external behavior
// (internal/pipeline/pipeline.go takes interface-typed clients as
// constructor parameters rather than hardcoding one implementation).
package merge

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/yuletide/openskidata-processor/internal/model"
	"github.com/yuletide/openskidata-processor/internal/skistore"
)

// Composer combines candidates into one ski area, or reports that no merge
// is possible (e.g. incompatible activities, no priority rule applies).
type Composer func(candidates []model.Object) (merged model.Object, ok bool)

// Merger carries out Composer decisions against a skistore.Store.
type Merger struct {
	store    skistore.Store
	composer Composer
}

// New returns a Merger using composer. Pass DefaultComposer for the
// standard source-priority rule.
func New(store skistore.Store, composer Composer) *Merger {
	return &Merger{store: store, composer: composer}
}

// Merge composes candidates (which must all be SkiArea objects) into one
// surviving record, persists it, rewrites every object's SkiAreas
// reference to the surviving id, and removes the non-surviving records.
// Returns the surviving object and true if a merge occurred; false if the
// composer declined.
func (m *Merger) Merge(ctx context.Context, candidates []model.Object) (model.Object, bool, error) {
	if len(candidates) == 0 {
		return model.Object{}, false, nil
	}

	merged, ok := m.composer(candidates)
	if !ok {
		return model.Object{}, false, nil
	}

	oldIDs := make([]model.ObjectID, 0, len(candidates))
	survivingAlready := false
	for _, c := range candidates {
		if c.ID == merged.ID {
			survivingAlready = true
			continue
		}
		oldIDs = append(oldIDs, c.ID)
	}

	if survivingAlready {
		if err := m.store.Update(ctx, merged); err != nil {
			return model.Object{}, false, eris.Wrap(err, "merge: update surviving ski area")
		}
	} else {
		if err := m.store.Insert(ctx, merged); err != nil {
			return model.Object{}, false, eris.Wrap(err, "merge: insert surviving ski area")
		}
	}

	if len(oldIDs) > 0 {
		if err := m.store.RewriteSkiAreaRefs(ctx, oldIDs, merged.ID); err != nil {
			return model.Object{}, false, eris.Wrap(err, "merge: rewrite ski area refs")
		}
	}

	for _, c := range candidates {
		if c.ID == merged.ID {
			continue
		}
		if err := m.store.Remove(ctx, c.Key); err != nil {
			return model.Object{}, false, eris.Wrapf(err, "merge: remove %s", c.Key)
		}
	}

	return merged, true, nil
}

// DefaultComposer implements the standard source-priority rule: crowdsourced
// polygon geometry wins over registry point geometry; otherwise the first
// polygon candidate wins; names, sources, and activities are unioned.
// A merge is declined only when candidates is empty.
func DefaultComposer(candidates []model.Object) (model.Object, bool) {
	if len(candidates) == 0 {
		return model.Object{}, false
	}
	if len(candidates) == 1 {
		return candidates[0], true
	}

	winner := candidates[0]
	for _, c := range candidates[1:] {
		if higherPriority(c, winner) {
			winner = c
		}
	}

	merged := winner.Clone()
	if merged.SkiArea == nil {
		merged.SkiArea = &model.SkiAreaProperties{}
	} else {
		props := *winner.SkiArea
		merged.SkiArea = &props
	}

	sourceSet := map[model.Source]bool{}
	activities := model.NewActivitySet()
	anyPolygon := false
	for _, c := range candidates {
		sourceSet[c.Source] = true
		activities = activities.Union(c.Activities)
		if c.SkiArea != nil {
			sourceSet[c.Source] = true
			anyPolygon = anyPolygon || c.SkiArea.IsPolygon
			for _, s := range c.SkiArea.Sources {
				sourceSet[s] = true
			}
			if merged.SkiArea.Name == "" && c.SkiArea.Name != "" {
				merged.SkiArea.Name = c.SkiArea.Name
			}
		}
	}

	sources := make([]model.Source, 0, len(sourceSet))
	for s := range sourceSet {
		sources = append(sources, s)
	}

	merged.Activities = activities
	merged.SkiArea.Sources = sources
	merged.SkiArea.IsPolygon = anyPolygon

	return merged, true
}

// higherPriority reports whether a should win over b: crowdsourced polygon
// geometry beats everything, then any polygon geometry, then crowdsourced
// source, else the existing winner is kept.
func higherPriority(a, b model.Object) bool {
	aPolygon := a.SkiArea != nil && a.SkiArea.IsPolygon
	bPolygon := b.SkiArea != nil && b.SkiArea.IsPolygon

	if aPolygon != bPolygon {
		return aPolygon
	}
	if aPolygon && a.Source == model.SourceCrowdsourced && b.Source != model.SourceCrowdsourced {
		return true
	}
	if a.Source == model.SourceCrowdsourced && b.Source != model.SourceCrowdsourced {
		return true
	}
	return false
}
