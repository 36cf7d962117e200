package provider

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/causerie-app/causerie/pkg/extract"
	"github.com/causerie-app/causerie/pkg/validate"
)

// ErrConfigurationMissing is returned when a provider has no usable credential.
var ErrConfigurationMissing = errors.New("provider credential not configured")

// TransportError reports a network-level failure talking to a provider.
type TransportError struct {
	Provider string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProviderError reports a non-success response from a provider.
type ProviderError struct {
	Provider string
	Status   int
	Body     string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Provider, e.Status, truncate(e.Body, 200))
}

// RateLimited reports whether the provider rejected the call for quota reasons.
func (e *ProviderError) RateLimited() bool {
	return e.Status == http.StatusTooManyRequests
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Class is the coarse classification of a failed attempt.
type Class string

const (
	ClassNone          Class = ""
	ClassConfigMissing Class = "config_missing"
	ClassTransport     Class = "transport"
	ClassProvider      Class = "provider"
	ClassRateLimited   Class = "rate_limited"
	ClassMalformed     Class = "malformed"
	ClassSchema        Class = "schema"
)

// Retryable reports whether another attempt against the same provider may succeed.
func (c Class) Retryable() bool {
	switch c {
	case ClassTransport, ClassProvider, ClassRateLimited:
		return true
	}
	return false
}

// Classify maps err onto the failure taxonomy. Unknown errors count as
// transport failures.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	var (
		provErr   *ProviderError
		transErr  *TransportError
		malformed *extract.MalformedResponseError
		schema    *validate.SchemaViolationError
	)
	switch {
	case errors.Is(err, ErrConfigurationMissing):
		return ClassConfigMissing
	case errors.As(err, &provErr):
		if provErr.RateLimited() {
			return ClassRateLimited
		}
		return ClassProvider
	case errors.As(err, &malformed):
		return ClassMalformed
	case errors.As(err, &schema):
		return ClassSchema
	case errors.As(err, &transErr):
		return ClassTransport
	default:
		return ClassTransport
	}
}
