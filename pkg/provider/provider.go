// Package provider defines the uniform text-completion interface the
// generator talks to, and the error taxonomy shared by its implementations.
package provider

import (
	"context"

	"github.com/causerie-app/causerie/pkg/models"
)

// Request is a single completion request.
type Request struct {
	System    string
	User      string
	WantsJSON bool
}

// TextProvider turns a Request into raw model text.
type TextProvider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

type usageKey struct{}

// WithUsage returns a context whose providers report token usage into u.
func WithUsage(ctx context.Context, u *models.Usage) context.Context {
	return context.WithValue(ctx, usageKey{}, u)
}

// ReportUsage records usage into the sink installed by WithUsage, if any.
func ReportUsage(ctx context.Context, usage models.Usage) {
	if u, ok := ctx.Value(usageKey{}).(*models.Usage); ok && u != nil {
		*u = usage
	}
}
