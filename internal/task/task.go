package task

import (
	"errors"
	"strings"
	"time"
)

// DeadlineLayout is the layout used by editable deadline inputs.
const DeadlineLayout = "2006-01-02T15:04"

var deadlineLayouts = []string{
	DeadlineLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02",
}

var ErrInvalidDeadline = errors.New("invalid deadline")

// Task mirrors the wire shape of the remote tasks resource.
type Task struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
	IsCompleted bool   `json:"isCompleted"`
}

// ParseDeadline reads a deadline string. Layouts without a zone are
// interpreted in local time.
func ParseDeadline(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, ErrInvalidDeadline
	}
	for _, layout := range deadlineLayouts {
		if t, err := time.ParseInLocation(layout, v, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrInvalidDeadline
}

func FormatDeadline(t time.Time) string {
	return t.Local().Format(DeadlineLayout)
}

// EditableDeadline re-renders a stored deadline in the editable layout. Values
// that cannot be parsed are returned untouched so the user can fix them.
func EditableDeadline(v string) string {
	t, err := ParseDeadline(v)
	if err != nil {
		return v
	}
	return FormatDeadline(t)
}
