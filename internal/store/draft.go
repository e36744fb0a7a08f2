package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"smarttodo/internal/task"
)

type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldDeadline    Field = "deadline"
	FieldCompleted   Field = "isCompleted"
)

var fieldMessages = map[Field]string{
	FieldTitle:    "Enter a Title",
	FieldDeadline: "Select a date & time",
}

// Draft is an unsaved, task-shaped form record.
type Draft struct {
	Title       string
	Description string
	Deadline    string
	IsCompleted bool
	Errors      map[Field]string
}

func emptyErrors() map[Field]string {
	return map[Field]string{FieldTitle: "", FieldDeadline: ""}
}

func (d Draft) Value(f Field) string {
	switch f {
	case FieldTitle:
		return d.Title
	case FieldDescription:
		return d.Description
	case FieldDeadline:
		return d.Deadline
	case FieldCompleted:
		return strconv.FormatBool(d.IsCompleted)
	}
	return ""
}

func (d *Draft) set(f Field, v string) {
	switch f {
	case FieldTitle:
		d.Title = v
	case FieldDescription:
		d.Description = v
	case FieldDeadline:
		d.Deadline = v
	case FieldCompleted:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		d.IsCompleted = err == nil && b
	}
}

// Error returns the validation message for f, or "".
func (d Draft) Error(f Field) string {
	return d.Errors[f]
}

func (d Draft) clone() Draft {
	out := d
	out.Errors = make(map[Field]string, len(d.Errors))
	for k, v := range d.Errors {
		out.Errors[k] = v
	}
	return out
}

func (d Draft) toTask(id string) task.Task {
	return task.Task{
		ID:          id,
		Title:       strings.TrimSpace(d.Title),
		Description: d.Description,
		Deadline:    d.Deadline,
		IsCompleted: d.IsCompleted,
	}
}

// DraftFromTask seeds a draft from t with an editable deadline.
func DraftFromTask(t task.Task) Draft {
	return Draft{
		Title:       t.Title,
		Description: t.Description,
		Deadline:    task.EditableDeadline(t.Deadline),
		IsCompleted: t.IsCompleted,
		Errors:      emptyErrors(),
	}
}

// Rules selects which draft fields must be non-blank.
type Rules struct {
	Required        []Field
	RequireDeadline bool
}

func DefaultRules() Rules {
	return Rules{Required: []Field{FieldTitle}}
}

// RulesFromNames builds Rules from configured field names.
func RulesFromNames(names []string, requireDeadline bool) (Rules, error) {
	r := Rules{RequireDeadline: requireDeadline}
	for _, n := range names {
		f := Field(strings.TrimSpace(n))
		switch f {
		case FieldTitle, FieldDescription, FieldDeadline:
			r.Required = append(r.Required, f)
		default:
			return Rules{}, fmt.Errorf("unknown required field %q", n)
		}
	}
	return r, nil
}

func (r Rules) required() []Field {
	fields := append([]Field(nil), r.Required...)
	if r.RequireDeadline {
		for _, f := range fields {
			if f == FieldDeadline {
				return fields
			}
		}
		fields = append(fields, FieldDeadline)
	}
	return fields
}

var validate = validator.New()

// check returns the message for every required field that is blank. Tracked
// fields that pass are reported with an empty message.
func (r Rules) check(d Draft) map[Field]string {
	errs := emptyErrors()
	for _, f := range r.required() {
		if err := validate.Var(strings.TrimSpace(d.Value(f)), "required"); err != nil {
			msg, ok := fieldMessages[f]
			if !ok {
				msg = "This field is required"
			}
			errs[f] = msg
			continue
		}
		errs[f] = ""
	}
	return errs
}

func hasErrors(errs map[Field]string) bool {
	for _, msg := range errs {
		if msg != "" {
			return true
		}
	}
	return false
}
