package task

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Field names as they appear in client submissions.
const (
	FieldTitle       = "title"
	FieldDescription = "description"
	FieldStatus      = "status"
	FieldPriority    = "priority"
	FieldCategory    = "category"
	FieldDueDate     = "dueDate"
	FieldTags        = "tags"
)

// fieldOrder fixes the order in which field errors are reported.
var fieldOrder = []string{
	FieldTitle, FieldDescription, FieldStatus, FieldPriority, FieldCategory, FieldDueDate, FieldTags,
}

// Fields is a loosely-typed client submission as decoded from JSON: strings,
// float64, bool, nil, []any and map[string]any values. A key that is present
// with a nil value is an explicit null.
type Fields map[string]any

// Mode selects which rules apply to a submission.
type Mode int

const (
	// ForCreate requires title and description.
	ForCreate Mode = iota
	// ForUpdate validates only the fields that are present.
	ForUpdate
)

// dueDateLayouts are the accepted ISO-8601 shapes. Layouts without a zone are
// read as UTC.
var dueDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999Z07",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04Z0700",
	"2006-01-02T15:04Z07",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ValidateTitle checks a raw title value.
func ValidateTitle(v any) *FieldError {
	return validateText(FieldTitle, "Title", v, MaxTitleLength)
}

// ValidateDescription checks a raw description value.
func ValidateDescription(v any) *FieldError {
	return validateText(FieldDescription, "Description", v, MaxDescriptionLength)
}

func validateText(field, label string, v any, max int) *FieldError {
	if v == nil {
		return &FieldError{Field: field, Message: label + " is required"}
	}
	s, ok := v.(string)
	if !ok {
		return &FieldError{Field: field, Message: label + " must be a string"}
	}
	n := utf8.RuneCountInString(strings.TrimSpace(s))
	if n == 0 {
		return &FieldError{Field: field, Message: label + " is required"}
	}
	if n > max {
		return &FieldError{Field: field, Message: fmt.Sprintf("%s must be between 1 and %d characters", label, max)}
	}
	return nil
}

// ValidateStatus checks a raw status value. Callers skip absent fields.
func ValidateStatus(v any) *FieldError {
	if s, ok := v.(string); ok && Status(s).Valid() {
		return nil
	}
	return &FieldError{Field: FieldStatus, Message: "Invalid status value"}
}

// ValidatePriority checks a raw priority value. Callers skip absent fields.
func ValidatePriority(v any) *FieldError {
	if s, ok := v.(string); ok && Priority(s).Valid() {
		return nil
	}
	return &FieldError{Field: FieldPriority, Message: "Invalid priority value"}
}

// ValidateCategory checks a raw category value. Callers skip absent fields.
func ValidateCategory(v any) *FieldError {
	if s, ok := v.(string); ok && Category(s).Valid() {
		return nil
	}
	return &FieldError{Field: FieldCategory, Message: "Invalid category value"}
}

// ValidateDueDate checks a raw due date. A nil value is an explicit clear and
// is accepted.
func ValidateDueDate(v any) *FieldError {
	if v == nil {
		return nil
	}
	if _, err := parseDueDate(v); err != nil {
		return &FieldError{Field: FieldDueDate, Message: "Invalid date format"}
	}
	return nil
}

// ValidateTags checks that a raw tags value is an array of strings.
func ValidateTags(v any) *FieldError {
	switch tags := v.(type) {
	case []string:
		return nil
	case []any:
		for _, t := range tags {
			if _, ok := t.(string); !ok {
				return &FieldError{Field: FieldTags, Message: "Tags must contain only strings"}
			}
		}
		return nil
	default:
		return &FieldError{Field: FieldTags, Message: "Tags must be an array"}
	}
}

var validators = map[string]func(any) *FieldError{
	FieldTitle:       ValidateTitle,
	FieldDescription: ValidateDescription,
	FieldStatus:      ValidateStatus,
	FieldPriority:    ValidatePriority,
	FieldCategory:    ValidateCategory,
	FieldDueDate:     ValidateDueDate,
	FieldTags:        ValidateTags,
}

// ValidateFields runs every validator against raw and collects all failures
// in field order. Unknown keys are ignored.
func ValidateFields(raw Fields, mode Mode) []FieldError {
	var errs []FieldError
	for _, name := range fieldOrder {
		v, present := raw[name]
		required := mode == ForCreate && (name == FieldTitle || name == FieldDescription)
		if !present && !required {
			continue
		}
		if fe := validators[name](v); fe != nil {
			errs = append(errs, *fe)
		}
	}
	return errs
}

// Input is a validated, typed submission. Nil pointers and false Set flags
// mean the field was absent.
type Input struct {
	Title       *string
	Description *string
	Status      *Status
	Priority    *Priority
	Category    *Category
	DueDateSet  bool
	DueDate     *time.Time
	TagsSet     bool
	Tags        []string
}

// ParseFields validates raw under mode and converts it into an Input with
// title and description trimmed and tags cleaned. It returns a
// *ValidationError listing every problem when validation fails.
func ParseFields(raw Fields, mode Mode) (*Input, error) {
	if errs := ValidateFields(raw, mode); len(errs) > 0 {
		return nil, &ValidationError{Fields: errs}
	}

	in := &Input{}
	if v, ok := raw[FieldTitle].(string); ok {
		s := strings.TrimSpace(v)
		in.Title = &s
	}
	if v, ok := raw[FieldDescription].(string); ok {
		s := strings.TrimSpace(v)
		in.Description = &s
	}
	if v, ok := raw[FieldStatus].(string); ok {
		s := Status(v)
		in.Status = &s
	}
	if v, ok := raw[FieldPriority].(string); ok {
		p := Priority(v)
		in.Priority = &p
	}
	if v, ok := raw[FieldCategory].(string); ok {
		c := Category(v)
		in.Category = &c
	}
	if v, ok := raw[FieldDueDate]; ok {
		in.DueDateSet = true
		if v != nil {
			d, _ := parseDueDate(v)
			in.DueDate = &d
		}
	}
	if v, ok := raw[FieldTags]; ok {
		in.TagsSet = true
		in.Tags = CleanTags(toStrings(v))
	}
	return in, nil
}

func parseDueDate(v any) (time.Time, error) {
	switch d := v.(type) {
	case time.Time:
		return d, nil
	case string:
		s := strings.TrimSpace(d)
		for _, layout := range dueDateLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("unrecognized date %q", d)
	default:
		return time.Time{}, fmt.Errorf("due date must be a string, got %T", v)
	}
}

func toStrings(v any) []string {
	switch tags := v.(type) {
	case []string:
		return tags
	case []any:
		out := make([]string, 0, len(tags))
		for _, t := range tags {
			if s, ok := t.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
