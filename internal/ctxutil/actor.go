// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// ActorKey is the context key for actor ID.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// BatchKey is the context key for the ingestion batch ID.
type BatchKey struct{}

// WithActorID returns a context with the actor ID embedded.
func WithActorID(ctx context.Context, actorID string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actorID)
}

// ActorFromContext returns the actor ID from context, or empty string if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok {
		return v
	}
	return ""
}

// WithBatchID returns a context carrying the batch ID of the running write.
func WithBatchID(ctx context.Context, batchID string) context.Context {
	return context.WithValue(ctx, BatchKey{}, batchID)
}

// BatchIDFromContext returns the batch ID from context, or empty string if not set.
func BatchIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(BatchKey{}).(string); ok {
		return v
	}
	return ""
}
