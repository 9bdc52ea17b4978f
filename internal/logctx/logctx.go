// Package logctx carries a request scoped zap logger through a context.
package logctx

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey int8

const ctxKeyLogger ctxKey = iota

// With returns a copy of ctx that carries l.
func With(ctx context.Context, l *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ctxKeyLogger, l)
}

// From returns the logger stored by With, or a no-op logger.
func From(ctx context.Context) *zap.SugaredLogger {
	return FromOr(ctx, nil)
}

// FromOr returns the logger stored by With, or fallback. A nil fallback
// yields a no-op logger.
func FromOr(ctx context.Context, fallback *zap.SugaredLogger) *zap.SugaredLogger {
	if l, ok := ctx.Value(ctxKeyLogger).(*zap.SugaredLogger); ok && l != nil {
		return l
	}

	if fallback != nil {
		return fallback
	}

	return zap.NewNop().Sugar()
}
