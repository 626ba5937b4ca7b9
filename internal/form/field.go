package form

import (
	"errors"
	"fmt"
	"strings"
)

// FieldType is the closed set of answerable field kinds.
type FieldType string

const (
	Text        FieldType = "text"
	Textarea    FieldType = "textarea"
	Number      FieldType = "number"
	Date        FieldType = "date"
	Dropdown    FieldType = "dropdown"
	Multiselect FieldType = "multiselect"
)

// FieldTypes lists every supported type in declaration order.
var FieldTypes = []FieldType{Text, Textarea, Number, Date, Dropdown, Multiselect}

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case Text, Textarea, Number, Date, Dropdown, Multiselect:
		return true
	}
	return false
}

// HasOptions reports whether answers to this type are drawn from a list.
func (t FieldType) HasOptions() bool {
	return t == Dropdown || t == Multiselect
}

// FieldSpec describes one question on a form.
type FieldSpec struct {
	Name        string    `json:"name"`
	Label       string    `json:"label"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Placeholder string    `json:"placeholder,omitempty"`
}

// ErrInvalidSchema is wrapped by every CheckSchema failure.
var ErrInvalidSchema = errors.New("invalid form schema")

// CheckSchema verifies a field list before it is stored on a form:
// names are present and unique, labels are present, types are known and
// option-based types carry at least one option.
func CheckSchema(fields []FieldSpec) error {
	if len(fields) == 0 {
		return fmt.Errorf("%w: at least one field is required", ErrInvalidSchema)
	}
	seen := make(map[string]struct{}, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("%w: field %d has no name", ErrInvalidSchema, i)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate field name %q", ErrInvalidSchema, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(f.Label) == "" {
			return fmt.Errorf("%w: field %q has no label", ErrInvalidSchema, name)
		}
		if !f.Type.Valid() {
			return fmt.Errorf("%w: field %q has unknown type %q", ErrInvalidSchema, name, f.Type)
		}
		if f.Type.HasOptions() && len(f.Options) == 0 {
			return fmt.Errorf("%w: field %q needs at least one option", ErrInvalidSchema, name)
		}
	}
	return nil
}
