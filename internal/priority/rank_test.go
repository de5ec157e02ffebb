package priority

import (
	"testing"
	"time"

	"github.com/ynishioka/daywatch/internal/model"
)

func titles(ranked []Ranked) []string {
	out := make([]string, len(ranked))
	for i, r := range ranked {
		out[i] = r.Task.ID
	}
	return out
}

func TestRankCompletedAlwaysLast(t *testing.T) {
	// Completed task A would score very high if it were scored at all.
	a := model.Task{ID: "a", Importance: 10, Completed: true, DueDate: ptr(testNow.Add(10 * time.Minute))}
	b := model.Task{ID: "b", Importance: 3, DueDate: ptr(testNow.Add(6 * 24 * time.Hour))}

	got := titles(Rank([]model.Task{a, b}, testNow))
	want := []string{"b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order: got %v, want %v", got, want)
		}
	}
}

func TestRankScoreThenImportance(t *testing.T) {
	// Same due date, different importance: higher importance first.
	due := ptr(testNow.Add(3 * time.Hour))
	low := model.Task{ID: "low", Importance: 2, DueDate: due}
	high := model.Task{ID: "high", Importance: 9, DueDate: due}

	got := titles(Rank([]model.Task{low, high}, testNow))
	if got[0] != "high" {
		t.Errorf("order: got %v, want high first", got)
	}
}

func TestRankNilDueSortsLast(t *testing.T) {
	// Force equal score and importance so the due-date key decides.
	w := DefaultWeights()
	undated := model.Task{ID: "undated", Importance: 5}
	// An undated task is treated as due in 7 days; pick a dated task with
	// the same effective due so score ties, then nil must lose the tie.
	dated := model.Task{ID: "dated", Importance: 5, DueDate: ptr(testNow.Add(w.UndatedDueIn))}

	got := titles(Rank([]model.Task{undated, dated}, testNow))
	if got[0] != "dated" || got[1] != "undated" {
		t.Errorf("order: got %v, want [dated undated]", got)
	}
}

func TestRankStableOnFullTie(t *testing.T) {
	due := ptr(testNow.Add(3 * time.Hour))
	in := []model.Task{
		{ID: "first", Importance: 5, DueDate: due},
		{ID: "second", Importance: 5, DueDate: due},
		{ID: "third", Importance: 5, DueDate: due},
	}
	got := titles(Rank(in, testNow))
	want := []string{"first", "second", "third"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("stable order violated: got %v", got)
		}
	}
}

func TestRankDoesNotMutateInput(t *testing.T) {
	a := model.Task{ID: "a", Completed: true}
	b := model.Task{ID: "b"}
	in := []model.Task{a, b}
	Rank(in, testNow)
	if in[0].ID != "a" || in[1].ID != "b" {
		t.Error("input slice was reordered")
	}
}

func TestRankAnnotatesPriority(t *testing.T) {
	in := []model.Task{{ID: "a", Importance: 8, EstimatedMinutes: 120, DueDate: ptr(testNow.Add(30 * time.Minute))}}
	got := Rank(in, testNow)
	if got[0].Priority.Score == 0 {
		t.Error("ranked task should carry its computed priority")
	}
	if got[0].Priority.Tier != model.TierHigh {
		t.Errorf("tier: got %s, want high", got[0].Priority.Tier)
	}
}
