package monitor

import (
	"sort"

	"buildwatch/src/provider"
)

// MaxCompletedBuilds bounds how many completed builds stay tracked.
// Active builds are never capped.
const MaxCompletedBuilds = 20

// Less reports whether a sorts before b in display order: state rank
// ascending, then most recently started (or created) first. The build ID
// breaks remaining ties so the order is deterministic.
func Less(a, b provider.Build) bool {
	if ra, rb := a.State.SortOrder(), b.State.SortOrder(); ra != rb {
		return ra < rb
	}
	ta, tb := a.SortTime(), b.SortTime()
	if !ta.Equal(tb) {
		return ta.After(tb)
	}
	return a.ID < b.ID
}

// SortBuilds sorts builds in place into display order.
func SortBuilds(builds []provider.Build) {
	sort.SliceStable(builds, func(i, j int) bool {
		return Less(builds[i], builds[j])
	})
}

// PartitionBuilds splits builds into active and completed, preserving order.
func PartitionBuilds(builds []provider.Build) (active, completed []provider.Build) {
	for _, b := range builds {
		if b.State.IsCompleted() {
			completed = append(completed, b)
		} else {
			active = append(active, b)
		}
	}
	return active, completed
}

// CapCompleted keeps the first max feed builds of an already sorted
// completed list and returns the rest as evicted. Builds the user added by
// URL are always kept and do not count towards max; only an explicit remove
// or clear lets go of them.
func CapCompleted(completed []provider.Build, max int) (kept, evicted []provider.Build) {
	if len(completed) <= max {
		return completed, nil
	}
	kept = make([]provider.Build, 0, max)
	feed := 0
	for _, b := range completed {
		if b.AddedManually || feed < max {
			kept = append(kept, b)
			if !b.AddedManually {
				feed++
			}
			continue
		}
		evicted = append(evicted, b)
	}
	return kept, evicted
}

// MergeFetched combines the user's feed with individually fetched manual
// builds, de-duplicated by ID. Feed entries win on conflict, but a build
// that was also fetched as a manual reference stays marked AddedManually.
func MergeFetched(feed, manual []provider.Build) []provider.Build {
	merged := make([]provider.Build, 0, len(feed)+len(manual))
	index := make(map[string]int, len(feed)+len(manual))

	for _, b := range feed {
		if i, ok := index[b.ID]; ok {
			merged[i] = b
			continue
		}
		index[b.ID] = len(merged)
		merged = append(merged, b)
	}

	for _, b := range manual {
		if i, ok := index[b.ID]; ok {
			if b.AddedManually {
				merged[i].AddedManually = true
			}
			continue
		}
		index[b.ID] = len(merged)
		merged = append(merged, b)
	}
	return merged
}
