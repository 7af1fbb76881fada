package naming

import (
	"errors"
	"fmt"
	"regexp"
)

// systemNamePattern is the collection naming convention: lowercase start,
// lowercase alphanumerics and underscores only.
var systemNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// InvalidNameError reports a system name that violates the naming convention.
type InvalidNameError struct {
	Name string
}

func (e *InvalidNameError) Error() string {
	return fmt.Sprintf("invalid system name %q: must match %s", e.Name, systemNamePattern.String())
}

// ValidateSystemName checks that a candidate system name can be used as a
// collection name. It has no side effects and must be called before any
// collection-creation request reaches the store.
func ValidateSystemName(name string) error {
	if !systemNamePattern.MatchString(name) {
		return &InvalidNameError{Name: name}
	}
	return nil
}

// IsInvalidName reports whether an error is a naming-convention violation.
func IsInvalidName(err error) bool {
	var target *InvalidNameError
	return errors.As(err, &target)
}
