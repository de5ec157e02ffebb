// Package priority computes urgency scores and rankings for tasks.
//
// Scoring is a pure function of one task and the current wall-clock time.
// Results are recomputed on every read so a ranking never reflects a stale
// clock.
package priority

import (
	"math"
	"time"

	"github.com/ynishioka/daywatch/internal/model"
)

// Weights holds the tunable constants of the scoring formula.
type Weights struct {
	UrgencyFactor    float64 // share of the base score driven by due-time urgency
	ImportanceFactor float64 // share driven by user-assigned importance
	MaxTimeWeight    float64 // cap on the effort-vs-remaining-time boost
	NotStartedWeight float64 // multiplier for tasks whose start date is in the future
	UndatedDueIn     time.Duration
}

// DefaultWeights returns the stock scoring weights.
func DefaultWeights() Weights {
	return Weights{
		UrgencyFactor:    0.6,
		ImportanceFactor: 0.4,
		MaxTimeWeight:    2.0,
		NotStartedWeight: 0.3,
		UndatedDueIn:     7 * 24 * time.Hour,
	}
}

// Score computes the priority of one task at the given instant using the
// default weights.
func Score(task model.Task, now time.Time) model.PriorityResult {
	return ScoreWith(task, now, DefaultWeights())
}

// ScoreWith computes the priority of one task with explicit weights.
// It never fails: malformed or missing dates fall back to "due in 7 days".
func ScoreWith(task model.Task, now time.Time, w Weights) model.PriorityResult {
	// Completed tasks carry no urgency. They sort last and never alert.
	if task.Completed {
		return model.PriorityResult{Score: 0, Tier: model.TierLow}
	}
	task = task.Normalize()

	due := EffectiveDue(task, now, w)
	hoursUntilDue := due.Sub(now).Hours()

	urgency := urgencyForHours(hoursUntilDue)

	// Tasks whose remaining effort is large relative to remaining time get
	// boosted, capped so a huge estimate cannot dominate everything.
	timeRatio := (task.EstimatedMinutes / 60) / math.Max(hoursUntilDue, 1)
	timeWeight := math.Min(1+timeRatio, w.MaxTimeWeight)

	// Tasks that cannot legally be started yet are suppressed, not hidden.
	startWeight := 1.0
	if task.StartDate != nil && startOfDay(*task.StartDate).After(startOfDay(now)) {
		startWeight = w.NotStartedWeight
	}

	score := (float64(urgency)*w.UrgencyFactor + float64(task.Importance)*w.ImportanceFactor) * timeWeight * startWeight
	score = math.Round(score*10) / 10

	return model.PriorityResult{Score: score, Tier: tierFor(score)}
}

// EffectiveDue resolves the instant a task is considered due. A due date
// with a time component is used as-is; a date-only due date means end of
// that day; no due date means w.UndatedDueIn from now, which keeps undated
// tasks low-but-nonzero urgency.
func EffectiveDue(task model.Task, now time.Time, w Weights) time.Time {
	if task.DueDate == nil {
		return now.Add(w.UndatedDueIn)
	}
	d := *task.DueDate
	if d.Hour() == 0 && d.Minute() == 0 && d.Second() == 0 {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, d.Location())
	}
	return d
}

// urgencyForHours maps hours-until-due onto the 3..10 urgency ladder.
// Past-due always gets the maximum.
func urgencyForHours(h float64) int {
	switch {
	case h < 0:
		return 10
	case h < 2:
		return 9
	case h < 6:
		return 8
	case h < 24:
		return 7
	case h < 48:
		return 6
	case h < 72:
		return 5
	case h < 168:
		return 4
	default:
		return 3
	}
}

func tierFor(score float64) model.Tier {
	switch {
	case score >= 8:
		return model.TierHigh
	case score >= 5:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
