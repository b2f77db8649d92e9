package service

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

func spanFrom(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}
