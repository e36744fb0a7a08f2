package task

import (
	"math"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

type Category int

const (
	CategoryDue Category = iota
	CategoryOverdue
	CategoryCompleted
)

func (c Category) String() string {
	switch c {
	case CategoryCompleted:
		return "completed"
	case CategoryOverdue:
		return "overdue"
	default:
		return "due"
	}
}

type Status struct {
	Label    string
	Category Category
}

// relMagnitudes buckets durations into coarse calendar units. Each entry
// covers durations strictly below D, and counts are rounded to the nearest
// unit. Where a count would round to 1 the singular entry above it extends
// to the half-unit mark.
var relMagnitudes = []humanize.RelTimeMagnitude{
	{D: 44500 * time.Millisecond, Format: "a few seconds", DivBy: time.Second},
	{D: 90 * time.Second, Format: "a minute", DivBy: time.Minute},
	{D: 44*time.Minute + 30*time.Second, Format: "%d minutes", DivBy: time.Minute},
	{D: 90 * time.Minute, Format: "an hour", DivBy: time.Hour},
	{D: 21*time.Hour + 30*time.Minute, Format: "%d hours", DivBy: time.Hour},
	{D: 36 * time.Hour, Format: "a day", DivBy: humanize.Day},
	{D: 25*humanize.Day + 12*time.Hour, Format: "%d days", DivBy: humanize.Day},
	{D: 45*humanize.Day + 12*time.Hour, Format: "a month", DivBy: humanize.Month},
	{D: 10*humanize.Month + 15*humanize.Day, Format: "%d months", DivBy: humanize.Month},
	{D: 18 * humanize.Month, Format: "a year", DivBy: humanize.Year},
	{D: math.MaxInt64, Format: "%d years", DivBy: humanize.Year},
}

// Humanize renders the distance between a and b, order independent.
func Humanize(a, b time.Time) string {
	if b.Before(a) {
		a, b = b, a
	}
	d := b.Sub(a)
	mag := relMagnitudes[len(relMagnitudes)-1]
	for _, m := range relMagnitudes {
		if d < m.D {
			mag = m
			break
		}
	}
	// CustomRelTime truncates; shifting by half a unit rounds instead.
	rounded := b.Add(mag.DivBy / 2)
	return strings.TrimSpace(humanize.CustomRelTime(a, rounded, "", "", []humanize.RelTimeMagnitude{mag}))
}

// Evaluate derives the display status of t at instant now.
func Evaluate(t Task, now time.Time) Status {
	if t.IsCompleted {
		return Status{Label: "Completed", Category: CategoryCompleted}
	}
	deadline, err := ParseDeadline(t.Deadline)
	if err != nil {
		return Status{Label: "Due date unknown", Category: CategoryDue}
	}
	if deadline.Before(now) {
		return Status{Label: "Overdue by " + Humanize(deadline, now), Category: CategoryOverdue}
	}
	return Status{Label: "Due in " + Humanize(now, deadline), Category: CategoryDue}
}

// Tab groups tasks by status category.
type Tab int

const (
	TabOngoing Tab = iota
	TabSuccess
	TabFailure
)

var Tabs = []Tab{TabOngoing, TabSuccess, TabFailure}

func (t Tab) String() string {
	switch t {
	case TabSuccess:
		return "Success"
	case TabFailure:
		return "Failure"
	default:
		return "Ongoing"
	}
}

func (t Tab) Next() Tab {
	return Tabs[(int(t)+1)%len(Tabs)]
}

func ParseTab(v string) (Tab, bool) {
	for _, t := range Tabs {
		if strings.EqualFold(t.String(), strings.TrimSpace(v)) {
			return t, true
		}
	}
	return TabOngoing, false
}

func (t Tab) Matches(s Status) bool {
	switch t {
	case TabSuccess:
		return s.Category == CategoryCompleted
	case TabFailure:
		return s.Category == CategoryOverdue
	default:
		return s.Category == CategoryDue
	}
}

// Filter keeps the tasks belonging to tab, preserving order.
func Filter(tasks []Task, tab Tab, now time.Time) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		if tab.Matches(Evaluate(t, now)) {
			out = append(out, t)
		}
	}
	return out
}
