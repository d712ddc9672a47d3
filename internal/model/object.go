// Package model defines the ski-area clustering engine's domain types: the
// MapObject union (ski areas, lifts, runs), activities, sources, and the
// properties attached to synthesized and augmented ski areas.
package model

import (
	"github.com/twpayne/go-geom"
)

// Kind discriminates the three MapObject variants.
type Kind string

const (
	KindSkiArea Kind = "ski_area"
	KindLift    Kind = "lift"
	KindRun     Kind = "run"
)

// Source identifies the upstream feed that produced an object.
type Source string

const (
	SourceCrowdsourced Source = "CROWDSOURCED"
	SourceRegistry     Source = "REGISTRY"
	SourceGenerated    Source = "GENERATED"
)

// ObjectKey is the store's stable, opaque internal identifier.
type ObjectKey string

// ObjectID is the public identifier; it may equal the ObjectKey.
type ObjectID string

// Object is the discriminated-union record the pipeline operates on. All
// three Kind variants share this shape; SkiArea-only fields live in
// SkiAreaProperties and are nil for Lift/Run objects.
type Object struct {
	Key  ObjectKey
	ID   ObjectID
	Kind Kind

	Geometry   geom.T
	Activities ActivitySet
	Source     Source

	// SkiAreas is the set of ski-area IDs this object belongs to. It is
	// append-only via the store's uniqueness-preserving APPEND primitive;
	// callers never truncate it directly except through RewriteSkiAreaRefs.
	SkiAreas []ObjectID

	// IsInSkiAreaPolygon is monotonic: once true it is never cleared.
	IsInSkiAreaPolygon bool

	// IsBasisForNewSkiArea is true for unassigned runs eligible for P4
	// synthesis. Ingestion sets it; P4 clears it once consumed.
	IsBasisForNewSkiArea bool

	// IsInSkiAreaSite is true when upstream data placed this lift/run
	// inside a site=piste-equivalent relation. Used as a negative signal
	// in P1's removal rules.
	IsInSkiAreaSite bool

	// SkiArea holds ski-area-only properties. Nil for Lift/Run objects.
	SkiArea *SkiAreaProperties
}

// SkiAreaProperties holds the fields only meaningful on a SkiArea object.
type SkiAreaProperties struct {
	IsPolygon     bool
	Name          string
	Sources       []Source
	Status        SkiAreaStatus
	Statistics    *Statistics
	RunConvention RunConvention
	Location      *GeocodedLocation
	Generated     bool
}

// SkiAreaStatus tracks the lifecycle of a ski-area record through the
// pipeline's phases. It is informational; no phase branches on it directly
// except to decide whether augmentation in P5 has already run.
type SkiAreaStatus string

const (
	StatusOperating SkiAreaStatus = "operating"
	StatusAbandoned SkiAreaStatus = "abandoned"
	StatusProposed  SkiAreaStatus = "proposed"
	StatusUnknown   SkiAreaStatus = ""
)

// Clone returns a deep-enough copy of the object for safe concurrent
// mutation within a single batch: the SkiAreas slice and Activities set are
// copied, SkiArea properties are shallow-copied.
func (o Object) Clone() Object {
	clone := o
	if o.SkiAreas != nil {
		clone.SkiAreas = append([]ObjectID(nil), o.SkiAreas...)
	}
	clone.Activities = o.Activities.Clone()
	if o.SkiArea != nil {
		sa := *o.SkiArea
		clone.SkiArea = &sa
	}
	return clone
}

// HasSkiArea reports whether id is already present in SkiAreas.
func (o Object) HasSkiArea(id ObjectID) bool {
	for _, existing := range o.SkiAreas {
		if existing == id {
			return true
		}
	}
	return false
}

// IsMember reports whether o is a Lift or Run (i.e. not a SkiArea itself).
// Traversal results are filtered to members via this predicate per spec.
func (o Object) IsMember() bool {
	return o.Kind == KindLift || o.Kind == KindRun
}
