// Package requestctx carries per-request values shared by the observability, auth and httpx
// packages without those packages importing each other.
package requestctx

import (
	"context"

	"go.uber.org/zap"
)

type key int

const (
	loggerKey key = iota
	traceKey
	actorKey
)

var noopLogger = zap.NewNop()

// TraceInfo captures trace metadata propagated through request context.
type TraceInfo struct {
	TraceID   string
	SpanID    string
	Sampled   bool
	ProjectID string
}

// ActorSlot is created by the outermost request middleware and filled once the bearer token of
// the request has been verified further down the chain.
type ActorSlot struct {
	UserID string
	Role   string
}

func value[T any](ctx context.Context, k key) (T, bool) {
	var zero T
	if ctx == nil {
		return zero, false
	}
	v, ok := ctx.Value(k).(T)
	return v, ok
}

func with(ctx context.Context, k key, v any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, k, v)
}

// WithLogger stores the logger in context for downstream consumers.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if logger == nil {
		logger = noopLogger
	}
	return with(ctx, loggerKey, logger)
}

// Logger retrieves the request logger, or a no-op logger when none is stored.
func Logger(ctx context.Context) *zap.Logger {
	if logger, ok := value[*zap.Logger](ctx, loggerKey); ok && logger != nil {
		return logger
	}
	return noopLogger
}

// NoopLogger returns the shared no-op logger handed out by Logger.
func NoopLogger() *zap.Logger { return noopLogger }

// WithTrace stores the trace metadata on the context.
func WithTrace(ctx context.Context, info TraceInfo) context.Context {
	return with(ctx, traceKey, info)
}

// Trace retrieves the trace metadata when available.
func Trace(ctx context.Context) (TraceInfo, bool) {
	return value[TraceInfo](ctx, traceKey)
}

// TraceID returns the trace identifier or "".
func TraceID(ctx context.Context) string {
	info, _ := Trace(ctx)
	return info.TraceID
}

// WithActorSlot attaches an empty slot that RecordActor fills later in the chain.
func WithActorSlot(ctx context.Context) (context.Context, *ActorSlot) {
	slot := &ActorSlot{}
	return with(ctx, actorKey, slot), slot
}

// RecordActor stores the verified caller in the slot attached to ctx. It is a no-op when no
// slot is present.
func RecordActor(ctx context.Context, userID, role string) {
	if slot, ok := value[*ActorSlot](ctx, actorKey); ok && slot != nil {
		slot.UserID = userID
		slot.Role = role
	}
}
