// Package groutine starts named goroutines. Names are attached as pprof
// labels so the session's concurrent activities (dispatcher, heartbeat,
// lifecycle waits) are identifiable in stack dumps and profiles.
package groutine

import (
	"context"
	"runtime/pprof"
)

type ctxKey string

const nameKey ctxKey = "goroutine_name"

// Go runs fn on a new goroutine labelled with name. If parent is nil,
// context.Background() is used.
func Go(parent context.Context, name string, fn func(ctx context.Context)) {
	if parent == nil {
		parent = context.Background()
	}

	labels := pprof.Labels("goroutine_name", name)

	go pprof.Do(parent, labels, func(ctx context.Context) {
		fn(context.WithValue(ctx, nameKey, name))
	})
}

// Name returns the name Go attached to ctx, or "" if there is none.
func Name(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(nameKey).(string); ok {
		return s
	}
	return ""
}
