// Package locale carries the active content locale through a context.
package locale

import "context"

// Canonical is the locale labels are resolved in while building documents.
const Canonical = "en_US"

type ctxKey struct{}

// With returns a child context whose locale is l. The parent keeps its own locale,
// so the override ends when the child context goes out of scope.
func With(ctx context.Context, l string) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the locale carried by ctx, or fallback when none is set.
func From(ctx context.Context, fallback string) string {
	if l, ok := ctx.Value(ctxKey{}).(string); ok && l != "" {
		return l
	}
	return fallback
}
