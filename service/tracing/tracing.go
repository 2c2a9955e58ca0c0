package tracing

import (
	"context"

	"github.com/getsentry/sentry-go"
)

// StartSpan starts a Sentry span named op, described by description, as a child of any span
// already on ctx. The RPC calls and the Postgres batch apply are the two places in the
// indexing pipeline worth tracing span duration on.
func StartSpan(ctx context.Context, op, description string, opts ...sentry.SpanOption) (*sentry.Span, context.Context) {
	span := sentry.StartSpan(ctx, op, opts...)
	span.Description = description
	return span, span.Context()
}

// FinishSpan finishes span, tolerating a nil span so callers can defer it unconditionally.
func FinishSpan(span *sentry.Span) {
	if span != nil {
		span.Finish()
	}
}

// AddEventDataToSpan attaches data to span as Sentry span data, tolerating a nil span.
func AddEventDataToSpan(span *sentry.Span, data map[string]interface{}) {
	if span == nil {
		return
	}
	for k, v := range data {
		span.SetData(k, v)
	}
}
