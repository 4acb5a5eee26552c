package domain

import (
	"sort"
	"time"
)

// PoolTimes returns the union of all instants across axes, deduplicated and
// sorted ascending. Instants are compared exactly and returned in UTC.
func PoolTimes(axes ...[]time.Time) []time.Time {
	seen := map[time.Time]struct{}{}
	var pooled []time.Time
	for _, axis := range axes {
		for _, t := range axis {
			key := t.UTC()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			pooled = append(pooled, key)
		}
	}
	sort.Slice(pooled, func(i, j int) bool { return pooled[i].Before(pooled[j]) })
	return pooled
}

// IntersectTimes returns the instants present in both a and b, sorted
// ascending. The result does not depend on argument order.
func IntersectTimes(a, b []time.Time) []time.Time {
	inB := timeSet(b)
	var out []time.Time
	for _, t := range PoolTimes(a) {
		if _, ok := inB[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

// RestrictToTimes keeps only the time steps of f that appear in ref, in
// ascending order. No tolerance is applied. An empty intersection is reported
// as *TimeIntersectionEmptyError.
func RestrictToTimes(f Field, ref []time.Time) (Field, error) {
	keep := timeSet(ref)
	steps := make([]int, 0, len(f.Times))
	for t, ts := range f.Times {
		if _, ok := keep[ts.UTC()]; ok {
			steps = append(steps, t)
		}
	}
	if len(steps) == 0 {
		return Field{}, &TimeIntersectionEmptyError{Source: f.Name}
	}
	sort.SliceStable(steps, func(i, j int) bool { return f.Times[steps[i]].Before(f.Times[steps[j]]) })
	return f.SelectSteps(steps), nil
}

func timeSet(axis []time.Time) map[time.Time]struct{} {
	set := make(map[time.Time]struct{}, len(axis))
	for _, t := range axis {
		set[t.UTC()] = struct{}{}
	}
	return set
}
