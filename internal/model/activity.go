package model

// Activity is a discipline tag drawn from a closed upstream enum. The
// pipeline treats most activities as opaque and only special-cases the
// ski-area-relevant subset in AllSkiAreaActivities.
type Activity string

const (
	ActivityDownhill         Activity = "downhill"
	ActivityNordic           Activity = "nordic"
	ActivitySnowboard        Activity = "snowboard"
	ActivityBackcountrySki   Activity = "backcountry_ski"
	ActivityIceSkate         Activity = "ice_skate"
	ActivitySled             Activity = "sled"
)

// AllSkiAreaActivities is the subset of activities that make an object
// eligible to anchor or belong to a ski area: {Downhill, Nordic}.
var AllSkiAreaActivities = NewActivitySet(ActivityDownhill, ActivityNordic)

// ActivitySet is an unordered set of activities.
type ActivitySet map[Activity]struct{}

// NewActivitySet builds a set from the given activities.
func NewActivitySet(activities ...Activity) ActivitySet {
	s := make(ActivitySet, len(activities))
	for _, a := range activities {
		s[a] = struct{}{}
	}
	return s
}

// Clone returns an independent copy of the set.
func (s ActivitySet) Clone() ActivitySet {
	if s == nil {
		return nil
	}
	clone := make(ActivitySet, len(s))
	for a := range s {
		clone[a] = struct{}{}
	}
	return clone
}

// Contains reports whether a is a member of the set.
func (s ActivitySet) Contains(a Activity) bool {
	_, ok := s[a]
	return ok
}

// IsEmpty reports whether the set has no members.
func (s ActivitySet) IsEmpty() bool {
	return len(s) == 0
}

// Intersect returns a new set containing only activities present in both s
// and other. This is the traversal's narrowing operation: the child
// context's activities are always parent ∩ object, never broadened.
func (s ActivitySet) Intersect(other ActivitySet) ActivitySet {
	result := make(ActivitySet)
	for a := range s {
		if other.Contains(a) {
			result[a] = struct{}{}
		}
	}
	return result
}

// IntersectsAny reports whether s and other share at least one activity.
func (s ActivitySet) IntersectsAny(other ActivitySet) bool {
	for a := range s {
		if other.Contains(a) {
			return true
		}
	}
	return false
}

// Union returns a new set containing every activity in s or other.
func (s ActivitySet) Union(other ActivitySet) ActivitySet {
	result := make(ActivitySet, len(s)+len(other))
	for a := range s {
		result[a] = struct{}{}
	}
	for a := range other {
		result[a] = struct{}{}
	}
	return result
}

// Remove returns a new set with a excluded.
func (s ActivitySet) Remove(a Activity) ActivitySet {
	result := make(ActivitySet, len(s))
	for existing := range s {
		if existing != a {
			result[existing] = struct{}{}
		}
	}
	return result
}

// Slice returns the set's members in no particular order.
func (s ActivitySet) Slice() []Activity {
	out := make([]Activity, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	return out
}
