// Package validation checks intake forms against a declarative schema. Each
// form variant supplies a Schema instead of its own imperative checks.
package validation

import (
	"net/mail"
	"strings"
)

// Violations maps a field name to an error code.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// FieldRule declares one scalar form field.
type FieldRule struct {
	Name     string
	Value    string
	Required bool
	Email    bool
}

// FileRule declares one file input. Present reports whether the caller
// actually received a file for it.
type FileRule struct {
	Name     string
	Present  bool
	Required bool
}

// Schema describes one form variant.
type Schema struct {
	Fields []FieldRule
	Files  []FileRule
}

// Check evaluates every rule and returns all violations at once.
// Codes: required, invalid_email, file_required.
func (s Schema) Check() Violations {
	v := Violations{}
	for _, f := range s.Fields {
		val := strings.TrimSpace(f.Value)
		if val == "" {
			if f.Required {
				v[f.Name] = "required"
			}
			continue
		}
		if f.Email {
			if _, err := mail.ParseAddress(val); err != nil {
				v[f.Name] = "invalid_email"
			}
		}
	}
	for _, f := range s.Files {
		if f.Required && !f.Present {
			v[f.Name] = "file_required"
		}
	}
	return v
}
