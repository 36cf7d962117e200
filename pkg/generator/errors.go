package generator

import (
	"fmt"
	"strings"

	"github.com/causerie-app/causerie/pkg/provider"
)

// Failure is the last error one provider produced for a generation.
type Failure struct {
	Provider string
	Class    provider.Class
	Attempts int
	Err      error
}

// GenerationFailedError is returned when every provider in the chain failed.
type GenerationFailedError struct {
	Feature  string
	Failures []Failure
}

func (e *GenerationFailedError) Error() string {
	parts := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		parts = append(parts, fmt.Sprintf("%s (%s after %d attempt(s)): %v", f.Provider, f.Class, f.Attempts, f.Err))
	}
	return fmt.Sprintf("%s generation failed: %s", e.Feature, strings.Join(parts, "; "))
}

// Unwrap exposes each provider's error to errors.Is and errors.As.
func (e *GenerationFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}
