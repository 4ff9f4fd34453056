// Package context carries request-scoped values: correlation ids and the
// acting principal. Audit entries, outbox events and log lines read them.
package context

import (
	"context"

	"tombstone/internal/core/id"
)

// Request identifies the call that caused a lifecycle transition.
type Request struct {
	TraceID   string
	RequestID string
	Actor     string
}

type requestKey struct{}

// NewRequest fills missing ids with fresh UUIDv7 values.
func NewRequest(traceID, requestID string) Request {
	if traceID == "" {
		traceID = id.New().String()
	}
	if requestID == "" {
		requestID = id.New().String()
	}
	return Request{TraceID: traceID, RequestID: requestID}
}

// WithRequest stores r in ctx.
func WithRequest(ctx context.Context, r Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// RequestFrom returns the stored Request.
func RequestFrom(ctx context.Context) (Request, bool) {
	r, ok := ctx.Value(requestKey{}).(Request)
	return r, ok
}

// WithActor records who performs the current operation. An empty actor leaves ctx unchanged.
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	r, _ := RequestFrom(ctx)
	r.Actor = actor
	return WithRequest(ctx, r)
}

func Actor(ctx context.Context) string {
	r, _ := RequestFrom(ctx)
	return r.Actor
}

func TraceID(ctx context.Context) string {
	r, _ := RequestFrom(ctx)
	return r.TraceID
}

func RequestID(ctx context.Context) string {
	r, _ := RequestFrom(ctx)
	return r.RequestID
}
