package provider

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/causerie-app/causerie/pkg/extract"
	"github.com/causerie-app/causerie/pkg/validate"
)

func TestClassify(t *testing.T) {
	_, malformed := extract.Extract[map[string]any]("pas du json")

	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassNone},
		{"config", fmt.Errorf("groq: %w", ErrConfigurationMissing), ClassConfigMissing},
		{"rate limited", &ProviderError{Provider: "groq", Status: 429}, ClassRateLimited},
		{"server error", &ProviderError{Provider: "groq", Status: 503}, ClassProvider},
		{"transport", &TransportError{Provider: "groq", Err: context.DeadlineExceeded}, ClassTransport},
		{"malformed", malformed, ClassMalformed},
		{"schema", &validate.SchemaViolationError{Kind: validate.KindQuiz, Reason: "x"}, ClassSchema},
		{"unknown", errors.New("boom"), ClassTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, ClassTransport.Retryable())
	assert.True(t, ClassRateLimited.Retryable())
	assert.True(t, ClassProvider.Retryable())
	assert.False(t, ClassConfigMissing.Retryable())
	assert.False(t, ClassMalformed.Retryable())
	assert.False(t, ClassSchema.Retryable())
}
