// Package schema describes and enforces the per-form document shape.
//
// A form's validator is a tagged schema-description value: field name to
// constraints. The same spec drives two enforcement points: the store gateway
// renders it into a structural validator attached at collection creation, and
// the in-memory gateway interprets it directly at write time.
package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Field types understood by the validator.
const (
	TypeString  = "string"
	TypeNumber  = "number"
	TypeInteger = "integer"
	TypeBoolean = "boolean"
	TypeObject  = "object"
	TypeArray   = "array"
)

// Field captures the constraints for a single document field. The bson keys
// mirror the json ones so a spec reads back identically through either codec.
type Field struct {
	Type      string   `json:"type" bson:"type"`
	Required  bool     `json:"required" bson:"required"`
	MinLength *int     `json:"minLength,omitempty" bson:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" bson:"maxLength,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty" bson:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty" bson:"maximum,omitempty"`
	Pattern   string   `json:"pattern,omitempty" bson:"pattern,omitempty"`
	Enum      []any    `json:"enum,omitempty" bson:"enum,omitempty"`
}

// Spec maps field names to their constraints.
type Spec map[string]Field

var knownTypes = map[string]struct{}{
	TypeString:  {},
	TypeNumber:  {},
	TypeInteger: {},
	TypeBoolean: {},
	TypeObject:  {},
	TypeArray:   {},
}

// Check verifies that the spec itself is well formed.
func (s Spec) Check() error {
	for name, field := range s {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("schema: field with empty name")
		}
		if field.Type != "" {
			if _, ok := knownTypes[field.Type]; !ok {
				return fmt.Errorf("schema: field %q has unknown type %q", name, field.Type)
			}
		}
		if field.Pattern != "" {
			if _, err := regexp.Compile(field.Pattern); err != nil {
				return fmt.Errorf("schema: field %q has invalid pattern: %w", name, err)
			}
		}
	}
	return nil
}

// RequiredFields returns the names of all required fields.
func (s Spec) RequiredFields() []string {
	var required []string
	for name, field := range s {
		if field.Required {
			required = append(required, name)
		}
	}
	return required
}
