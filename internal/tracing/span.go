package tracing

import (
	"context"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys set on request spans.
const (
	AttrRequestID  = attribute.Key("surge.request_id")
	AttrMethod     = attribute.Key("http.request.method")
	AttrURL        = attribute.Key("url.full")
	AttrStatusCode = attribute.Key("http.response.status_code")
	AttrBodySize   = attribute.Key("http.response.body.size")
	AttrErrorClass = attribute.Key("error.type")
)

// StartRequestSpan opens a client span named after the HTTP method.
func StartRequestSpan(ctx context.Context, tracer trace.Tracer, requestID int64, method, url string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "HTTP "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrRequestID.Int64(requestID),
			AttrMethod.String(method),
			AttrURL.String(url),
		),
	)
}

// EndSpan records the outcome of a request and ends the span. A non-empty
// errorClass marks the span as failed; a non-2xx status without an error
// text is also an error.
func EndSpan(span trace.Span, statusCode, size int, errorClass, message string) {
	if statusCode > 0 {
		span.SetAttributes(AttrStatusCode.Int(statusCode), AttrBodySize.Int(size))
	}
	switch {
	case errorClass != "":
		span.SetAttributes(AttrErrorClass.String(errorClass))
		span.SetStatus(codes.Error, message)
	case statusCode < 200 || statusCode >= 300:
		span.SetStatus(codes.Error, http.StatusText(statusCode))
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InjectHTTPHeaders injects W3C trace context into HTTP headers.
func InjectHTTPHeaders(ctx context.Context, headers http.Header) {
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(headers))
}
