package directory

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Domain-level error values returned by the directory components.
var (
	ErrAccountNotFound  = errors.New("account not found")
	ErrDuplicateEmail   = errors.New("duplicate email")
	ErrAmbiguousVariant = errors.New("ambiguous account variant")
	ErrNoDiscriminator  = errors.New("no variant discriminator present")
	ErrInvalidResolver  = errors.New("invalid resolver config")
)

// ValidationError reports schema violations as a field to message list,
// never a single opaque message.
type ValidationError struct {
	Fields map[string]string
}

// Error returns a deterministic summary of the offending fields.
func (validationError *ValidationError) Error() string {
	names := make([]string, 0, len(validationError.Fields))
	for name := range validationError.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprintf("validation failed: %s", strings.Join(names, ", "))
}
