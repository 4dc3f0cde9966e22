package core

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// TotalFunc returns the trip total used by the Price sort, or false while it
// is unknown.
type TotalFunc func(PricedResort) (float64, bool)

type rankedEntry struct {
	resort PricedResort
	value  float64
	known  bool
}

// Sort returns a stably sorted copy of resorts. "asc" is each key's natural
// order (most popular first, nearest first, cheapest first, most trails
// first); "desc" reverses it. Unknown distances and totals go to the end in
// either direction and keep their relative order.
func Sort(resorts []PricedResort, key SortKey, dir SortDirection, total TotalFunc) []PricedResort {
	entries := make([]rankedEntry, len(resorts))
	for i, r := range resorts {
		v, ok := sortValue(r, key, total)
		entries[i] = rankedEntry{resort: r, value: v, known: ok}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.known != b.known {
			return a.known
		}
		if !a.known || a.value == b.value {
			return false
		}
		if dir == Desc {
			return a.value > b.value
		}
		return a.value < b.value
	})

	out := make([]PricedResort, len(entries))
	for i, e := range entries {
		out[i] = e.resort
	}
	return out
}

// sortValue maps a resort to a number whose ascending order is the key's
// natural order.
func sortValue(r PricedResort, key SortKey, total TotalFunc) (float64, bool) {
	switch key {
	case SortDistance:
		if !r.DistanceKnown || math.IsNaN(r.DistanceKm) {
			return 0, false
		}
		return r.DistanceKm, true
	case SortPrice:
		if total == nil {
			return 0, false
		}
		v, ok := total(r)
		if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case SortTrails:
		return -float64(r.Trails), true
	default:
		if math.IsNaN(r.Popularity) {
			return 0, true
		}
		return -r.Popularity, true
	}
}

// ParseSortKey accepts the stored keys and the labels shown to users, such
// as "Most Trails".
func ParseSortKey(s string) (SortKey, error) {
	norm := strings.NewReplacer(" ", "", "-", "", "_", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "relevant", "relevance":
		return SortRelevant, nil
	case "distance":
		return SortDistance, nil
	case "price", "cost":
		return SortPrice, nil
	case "trails", "mosttrails":
		return SortTrails, nil
	}
	return "", fmt.Errorf("unknown sort key %q (want relevant, distance, price or trails)", s)
}

func ParseDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "ascending":
		return Asc, nil
	case "desc", "descending":
		return Desc, nil
	}
	return "", fmt.Errorf("unknown sort direction %q (want asc or desc)", s)
}

func DedupeResorts(resorts []Resort) []Resort {
	seen := make(map[string]bool)
	var out []Resort
	for _, r := range resorts {
		key := r.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}
