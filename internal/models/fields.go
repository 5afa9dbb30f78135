package models

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldID is present in every stored record.
const FieldID = "id"

// Fields is the flat string map a record is stored as, and the shape of
// caller input before it is decoded.
type Fields map[string]string

// Has reports whether name was supplied, even if empty.
func (f Fields) Has(name string) bool {
	_, ok := f[name]
	return ok
}

// FieldSet describes the fields a resource type accepts.
type FieldSet struct {
	// Writable fields are the only ones taken from callers.
	Writable []string
	// Required fields must be present and non-blank on create.
	Required []string
	// Defaults fill writable fields the caller left out on create.
	Defaults Fields
	// Integers must parse as base 10 integers.
	Integers []string
}

// Pick returns the writable fields present in input. Unknown fields and the
// id are dropped.
func (fs FieldSet) Pick(input Fields) Fields {
	picked := Fields{}
	for _, name := range fs.Writable {
		if value, ok := input[name]; ok {
			picked[name] = value
		}
	}
	return picked
}

// Validate checks a full input for create.
func (fs FieldSet) Validate(input Fields) error {
	for _, name := range fs.Required {
		if strings.TrimSpace(input[name]) == "" {
			return fmt.Errorf("%s is required", name)
		}
	}
	return fs.ValidatePartial(input)
}

// ValidatePartial checks only the fields that were supplied.
func (fs FieldSet) ValidatePartial(input Fields) error {
	for _, name := range fs.Integers {
		value, ok := input[name]
		if !ok {
			continue
		}
		if _, err := strconv.Atoi(strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("%s must be an integer", name)
		}
	}
	return nil
}

// WithDefaults returns input with defaults filled in for missing fields.
func (fs FieldSet) WithDefaults(input Fields) Fields {
	out := Fields{}
	for name, value := range fs.Defaults {
		out[name] = value
	}
	for name, value := range input {
		out[name] = value
	}
	return out
}

// FillBlank replaces supplied blank values with the field's default, so an
// explicit "" for a defaulted field stores the default rather than "".
func (fs FieldSet) FillBlank(input Fields) {
	for name, value := range input {
		if def := fs.Defaults[name]; def != "" && strings.TrimSpace(value) == "" {
			input[name] = def
		}
	}
}

// NormalizeIntegers rewrites integer fields in canonical form (" 07" -> "7").
// Call after ValidatePartial.
func (fs FieldSet) NormalizeIntegers(input Fields) {
	for _, name := range fs.Integers {
		value, ok := input[name]
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			input[name] = strconv.Itoa(n)
		}
	}
}

func decodeID(f Fields) (int64, error) {
	id, err := strconv.ParseInt(f[FieldID], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stored id %q: %w", f[FieldID], err)
	}
	return id, nil
}

// decodeInt reads an integer field, falling back when it is absent.
func decodeInt(f Fields, name string, fallback int) (int, error) {
	value, ok := f[name]
	if !ok || value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored %s %q: %w", name, value, err)
	}
	return n, nil
}
