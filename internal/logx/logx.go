// Package logx carries a structured logger on a context.Context, the
// way the rest of this module threads per-component state: components
// log driver/resource errors through the logger found on the context
// they were given rather than through a package-global.
package logx

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

// Default is the logger used when a context carries none.
var Default = slog.New(slog.NewTextHandler(os.Stderr, nil))

// With returns a context carrying l, retrievable with From.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From returns the logger carried on ctx, or Default if none was
// attached.
func From(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok && l != nil {
		return l
	}
	return Default
}
