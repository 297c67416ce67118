package monitor

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"buildwatch/src/provider"
)

func TestSortBuilds_StateRankThenRecency(t *testing.T) {
	builds := []provider.Build{
		build("passed-old", 1, provider.StatePassed, 1),
		build("running-old", 2, provider.StateRunning, 2),
		build("failed-new", 3, provider.StateFailed, 9),
		build("running-new", 4, provider.StateRunning, 8),
		build("blocked", 5, provider.StateBlocked, 3),
		build("mystery", 6, provider.UnknownState("limbo"), 4),
	}
	SortBuilds(builds)

	want := []string{"running-new", "running-old", "blocked", "mystery", "failed-new", "passed-old"}
	for i, id := range want {
		if builds[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, builds[i].ID, id)
		}
	}
}

func TestSortBuilds_FallsBackToCreatedAt(t *testing.T) {
	scheduled := build("scheduled", 1, provider.StateScheduled, 0)
	scheduled.StartedAt = nil
	scheduled.CreatedAt = baseTime.Add(10 * time.Minute)

	other := build("other", 2, provider.StateScheduled, 5)

	builds := []provider.Build{other, scheduled}
	SortBuilds(builds)
	if builds[0].ID != "scheduled" {
		t.Errorf("created-at should order unstarted builds, got %s first", builds[0].ID)
	}
}

func TestSortBuilds_OrderingProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	states := append(append([]provider.BuildState(nil), provider.KnownStates...), provider.UnknownState("x"))

	for round := 0; round < 50; round++ {
		var builds []provider.Build
		for i := 0; i < 30; i++ {
			builds = append(builds, build(fmt.Sprintf("b%d", i), i, states[rng.Intn(len(states))], rng.Intn(20)))
		}
		SortBuilds(builds)

		for i := 0; i < len(builds); i++ {
			for j := i + 1; j < len(builds); j++ {
				a, b := builds[i], builds[j]
				if a.State.SortOrder() > b.State.SortOrder() {
					t.Fatalf("%s (rank %d) sorted before %s (rank %d)", a.ID, a.State.SortOrder(), b.ID, b.State.SortOrder())
				}
				if a.State.SortOrder() == b.State.SortOrder() && a.SortTime().Before(b.SortTime()) {
					t.Fatalf("%s started before %s but sorted first", a.ID, b.ID)
				}
			}
		}
	}
}

func TestPartitionAndCap(t *testing.T) {
	var builds []provider.Build
	for i := 0; i < 25; i++ {
		builds = append(builds, build(fmt.Sprintf("done-%02d", i), i, provider.StatePassed, i))
	}
	for i := 0; i < 3; i++ {
		builds = append(builds, build(fmt.Sprintf("live-%d", i), 100+i, provider.StateRunning, i))
	}
	SortBuilds(builds)

	active, completed := PartitionBuilds(builds)
	if len(active) != 3 || len(completed) != 25 {
		t.Fatalf("partition = %d active, %d completed", len(active), len(completed))
	}

	kept, evicted := CapCompleted(completed, MaxCompletedBuilds)
	if len(kept) != MaxCompletedBuilds || len(evicted) != 5 {
		t.Fatalf("cap = %d kept, %d evicted", len(kept), len(evicted))
	}
	if kept[0].ID != "done-24" || evicted[0].ID != "done-04" {
		t.Errorf("cap should keep the most recent: kept[0]=%s evicted[0]=%s", kept[0].ID, evicted[0].ID)
	}

	kept, evicted = CapCompleted(completed[:3], MaxCompletedBuilds)
	if len(kept) != 3 || evicted != nil {
		t.Errorf("under cap: kept %d, evicted %v", len(kept), evicted)
	}

	// A manual build at the bottom is kept and does not use a slot.
	withManual := append([]provider.Build(nil), completed...)
	withManual[len(withManual)-1].AddedManually = true
	kept, evicted = CapCompleted(withManual, MaxCompletedBuilds)
	if len(kept) != MaxCompletedBuilds+1 || len(evicted) != 4 {
		t.Fatalf("cap with manual = %d kept, %d evicted", len(kept), len(evicted))
	}
	if last := kept[len(kept)-1]; last.ID != "done-00" || !last.AddedManually {
		t.Errorf("manual build should be kept in order, got %s", last.ID)
	}
}

func TestMergeFetched(t *testing.T) {
	feedCopy := build("b1", 1, provider.StatePassed, 1)
	manualCopy := build("b1", 1, provider.StateRunning, 1)
	manualCopy.AddedManually = true
	manualOnly := build("b2", 2, provider.StateRunning, 2)
	manualOnly.AddedManually = true

	merged := MergeFetched(
		[]provider.Build{feedCopy, build("b3", 3, provider.StateFailed, 3), build("b3", 3, provider.StatePassed, 3)},
		[]provider.Build{manualCopy, manualOnly},
	)

	if len(merged) != 3 {
		t.Fatalf("got %d builds, want 3", len(merged))
	}
	seen := map[string]provider.Build{}
	for _, b := range merged {
		if _, dup := seen[b.ID]; dup {
			t.Fatalf("duplicate id %s", b.ID)
		}
		seen[b.ID] = b
	}
	if seen["b1"].State != provider.StatePassed {
		t.Error("feed entry should win on conflict")
	}
	if !seen["b1"].AddedManually {
		t.Error("manual flag should survive the feed winning")
	}
	if !seen["b2"].AddedManually {
		t.Error("manual-only build keeps its flag")
	}
	if seen["b3"].State != provider.StatePassed {
		t.Error("later feed duplicate should replace earlier")
	}
}
