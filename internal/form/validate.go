package form

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// FieldError is a problem with the answer to a single field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// dateLayouts are the accepted encodings of a date answer.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Validate checks answers against the field list and returns every problem
// found. Each field is checked independently so the caller sees all errors
// at once. Answers keyed by names that are not in fields are ignored.
func Validate(fields []FieldSpec, answers map[string]any) []FieldError {
	errs := []FieldError{}
	for _, f := range fields {
		v, ok := answers[f.Name]
		if !present(v, ok) {
			if f.Required {
				errs = append(errs, FieldError{Field: f.Name, Message: f.Label + " is required"})
			}
			continue
		}
		if msg := checkValue(f, v); msg != "" {
			errs = append(errs, FieldError{Field: f.Name, Message: f.Label + " " + msg})
		}
	}
	return errs
}

// present treats absent keys, nulls and empty strings as unanswered.
func present(v any, ok bool) bool {
	if !ok || v == nil {
		return false
	}
	if s, isStr := v.(string); isStr && s == "" {
		return false
	}
	return true
}

// checkValue applies the per-type constraint and returns the failure
// message suffix, or "" when the value is acceptable.
func checkValue(f FieldSpec, v any) string {
	switch f.Type {
	case Text, Textarea:
		return ""
	case Number:
		if !isNumber(v) {
			return "must be a number"
		}
	case Date:
		if !isDate(v) {
			return "must be a valid date"
		}
	case Dropdown:
		if len(f.Options) == 0 {
			return ""
		}
		s, ok := v.(string)
		if !ok || !slices.Contains(f.Options, s) {
			return "must be one of the provided options"
		}
	case Multiselect:
		items, ok := v.([]any)
		if !ok {
			return "must be an array"
		}
		if len(f.Options) == 0 {
			return ""
		}
		for _, item := range items {
			s, ok := item.(string)
			if !ok || !slices.Contains(f.Options, s) {
				return "contains invalid options"
			}
		}
	}
	return ""
}

func isNumber(v any) bool {
	switch n := v.(type) {
	case float64:
		return !math.IsNaN(n) && !math.IsInf(n, 0)
	case float32, int, int32, int64, uint, uint32, uint64:
		return true
	case json.Number:
		_, err := n.Float64()
		return err == nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return false
		}
		f, err := strconv.ParseFloat(s, 64)
		return err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return false
}

func isDate(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if _, err := time.Parse(layout, s); err == nil {
			return true
		}
	}
	return false
}
