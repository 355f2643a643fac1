// Package validation implements the field-constraint contract consumed by the
// account service: a declarative set of rules applied to an input map,
// yielding a normalized copy plus an aggregated list of field errors.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

// FieldKind names the expected type of a field value.
type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindInt
)

// Rule describes the constraints for one input field.
type Rule struct {
	Name     string
	Kind     FieldKind
	Required bool
	MinLen   int
	MaxLen   int
	Pattern  *regexp.Regexp
	// Normalize, when set, rewrites a valid string value before it is
	// placed into the output map (e.g. lower-casing an email).
	Normalize func(string) string
}

// FieldError is a single constraint violation.
type FieldError struct {
	Field   string
	Message string
}

// Error aggregates all field-level violations for one input. Any non-empty
// list is fatal to the calling operation.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Validator validates an input object against a rule configuration.
type Validator interface {
	Validate(input map[string]any) (map[string]any, *Error)
}

// RuleSet is the default Validator implementation.
type RuleSet struct {
	rules []Rule
}

func NewRuleSet(rules ...Rule) *RuleSet {
	return &RuleSet{rules: rules}
}

// Validate checks input against the rule set. It returns a normalized copy of
// the recognized fields and, when any constraint fails, an *Error listing
// every violation. Unknown input fields are passed through untouched.
func (rs *RuleSet) Validate(input map[string]any) (map[string]any, *Error) {
	out := make(map[string]any, len(input))
	for k, v := range input {
		out[k] = v
	}

	var violations []FieldError

	for _, r := range rs.rules {
		v, present := input[r.Name]
		if !present || v == nil {
			if r.Required {
				violations = append(violations, FieldError{r.Name, "is required"})
			}
			continue
		}

		switch r.Kind {
		case KindString:
			s, ok := v.(string)
			if !ok {
				violations = append(violations, FieldError{r.Name, "must be a string"})
				continue
			}
			if r.Normalize != nil {
				s = r.Normalize(s)
				out[r.Name] = s
			}
			if r.Required && s == "" {
				violations = append(violations, FieldError{r.Name, "must not be empty"})
				continue
			}
			if r.MinLen > 0 && len(s) < r.MinLen {
				violations = append(violations, FieldError{r.Name, fmt.Sprintf("must be at least %d characters", r.MinLen)})
			}
			if r.MaxLen > 0 && len(s) > r.MaxLen {
				violations = append(violations, FieldError{r.Name, fmt.Sprintf("must be at most %d characters", r.MaxLen)})
			}
			if r.Pattern != nil && s != "" && !r.Pattern.MatchString(s) {
				violations = append(violations, FieldError{r.Name, "has invalid format"})
			}
		case KindBool:
			if _, ok := v.(bool); !ok {
				violations = append(violations, FieldError{r.Name, "must be a boolean"})
			}
		case KindInt:
			switch v.(type) {
			case int, int32, int64:
			default:
				violations = append(violations, FieldError{r.Name, "must be an integer"})
			}
		}
	}

	if len(violations) > 0 {
		return nil, &Error{Fields: violations}
	}
	return out, nil
}
