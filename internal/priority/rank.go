package priority

import (
	"sort"
	"time"

	"github.com/ynishioka/daywatch/internal/model"
)

// Ranked pairs a task with its freshly computed priority.
type Ranked struct {
	Task     model.Task
	Priority model.PriorityResult
}

// Rank returns a new slice ordered by: incomplete before completed, then
// score descending, then importance descending, then due date ascending
// with undated tasks last. Remaining ties keep input order (stable sort),
// so rankings are reproducible.
func Rank(tasks []model.Task, now time.Time) []Ranked {
	return RankWith(tasks, now, DefaultWeights())
}

// RankWith ranks with explicit scoring weights.
func RankWith(tasks []model.Task, now time.Time, w Weights) []Ranked {
	out := make([]Ranked, len(tasks))
	for i, t := range tasks {
		out[i] = Ranked{Task: t, Priority: ScoreWith(t, now, w)}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Task.Completed != b.Task.Completed {
			return !a.Task.Completed
		}
		if a.Priority.Score != b.Priority.Score {
			return a.Priority.Score > b.Priority.Score
		}
		if a.Task.Importance != b.Task.Importance {
			return a.Task.Importance > b.Task.Importance
		}
		return dueBefore(a.Task.DueDate, b.Task.DueDate)
	})

	return out
}

// dueBefore orders due dates ascending, treating nil as +infinity.
func dueBefore(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.Before(*b)
	}
}
