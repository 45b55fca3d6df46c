package queryir

import (
	"fmt"
	"regexp"

	"github.com/roach88/canon/internal/ir"
)

// fieldPattern restricts field names to identifiers. Field names are
// interpolated into JSON paths by SQL backends, so this is the injection guard.
var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidationError reports a malformed filter.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("invalid filter: %s", e.Message)
	}
	return fmt.Sprintf("invalid filter on %q: %s", e.Field, e.Message)
}

// ValidField reports whether name may be used as a filter field.
func ValidField(name string) bool {
	return fieldPattern.MatchString(name)
}

// Validate checks that every leaf of p is well formed.
// A nil predicate is valid and matches everything.
func Validate(p Predicate) error {
	for _, leaf := range Flatten(p) {
		switch pred := leaf.(type) {
		case Equals:
			if err := validateField(pred.Field); err != nil {
				return err
			}
			if !isScalar(pred.Value) {
				return &ValidationError{Field: pred.Field, Message: fmt.Sprintf("unsupported value %T", pred.Value)}
			}
		case In:
			if err := validateField(pred.Field); err != nil {
				return err
			}
			for i, v := range pred.Values {
				if !isScalar(v) {
					return &ValidationError{Field: pred.Field, Message: fmt.Sprintf("value %d: unsupported type %T", i, v)}
				}
			}
		case HasTags:
			if len(pred.Keys) == 0 {
				return &ValidationError{Field: ir.FieldTags, Message: "tag filter needs at least one key"}
			}
			for _, k := range pred.Keys {
				if k == "" {
					return &ValidationError{Field: ir.FieldTags, Message: "empty tag key"}
				}
			}
		default:
			return &ValidationError{Message: fmt.Sprintf("unsupported predicate %T", leaf)}
		}
	}
	return nil
}

func validateField(name string) error {
	if !ValidField(name) {
		return &ValidationError{Field: name, Message: "field names must be identifiers"}
	}
	if name == ir.FieldTags {
		return &ValidationError{Field: name, Message: "use a tag filter for tags"}
	}
	return nil
}

func isScalar(v ir.IRValue) bool {
	switch v.(type) {
	case ir.IRString, ir.IRInt, ir.IRBool, ir.IRRef:
		return true
	default:
		return false
	}
}
