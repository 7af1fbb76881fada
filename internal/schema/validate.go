package schema

import (
	"fmt"
	"reflect"
	"regexp"
)

// Validate interprets the spec against a submitted field map. It returns the
// first violation found; a nil spec accepts anything.
func (s Spec) Validate(fields map[string]any) error {
	if len(s) == 0 {
		return nil
	}

	for name, field := range s {
		value, present := fields[name]
		if !present || value == nil {
			if field.Required {
				return fmt.Errorf("field %q is required", name)
			}
			continue
		}
		if err := field.validate(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (f Field) validate(name string, value any) error {
	if f.Type != "" {
		if err := checkType(name, f.Type, value); err != nil {
			return err
		}
	}

	if str, ok := value.(string); ok {
		if f.MinLength != nil && len(str) < *f.MinLength {
			return fmt.Errorf("field %q shorter than minimum length %d", name, *f.MinLength)
		}
		if f.MaxLength != nil && len(str) > *f.MaxLength {
			return fmt.Errorf("field %q longer than maximum length %d", name, *f.MaxLength)
		}
		if f.Pattern != "" {
			re, err := regexp.Compile(f.Pattern)
			if err != nil {
				return fmt.Errorf("field %q has unusable pattern: %w", name, err)
			}
			if !re.MatchString(str) {
				return fmt.Errorf("field %q does not match pattern %s", name, f.Pattern)
			}
		}
	}

	if num, ok := asFloat(value); ok {
		if f.Minimum != nil && num < *f.Minimum {
			return fmt.Errorf("field %q below minimum %v", name, *f.Minimum)
		}
		if f.Maximum != nil && num > *f.Maximum {
			return fmt.Errorf("field %q above maximum %v", name, *f.Maximum)
		}
	}

	if len(f.Enum) > 0 {
		for _, allowed := range f.Enum {
			if reflect.DeepEqual(value, allowed) {
				return nil
			}
		}
		return fmt.Errorf("field %q not one of the allowed values", name)
	}
	return nil
}

func checkType(name, want string, value any) error {
	switch want {
	case TypeString:
		if _, ok := value.(string); !ok {
			return fmt.Errorf("field %q must be a string", name)
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("field %q must be a boolean", name)
		}
	case TypeNumber:
		if _, ok := asFloat(value); !ok {
			return fmt.Errorf("field %q must be a number", name)
		}
	case TypeInteger:
		num, ok := asFloat(value)
		if !ok || num != float64(int64(num)) {
			return fmt.Errorf("field %q must be an integer", name)
		}
	case TypeObject:
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("field %q must be an object", name)
		}
	case TypeArray:
		if kind := reflect.ValueOf(value).Kind(); kind != reflect.Slice && kind != reflect.Array {
			return fmt.Errorf("field %q must be an array", name)
		}
	}
	return nil
}

func asFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}
