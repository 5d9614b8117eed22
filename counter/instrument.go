package counter

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type instrumentedStore struct {
	next   Store
	tracer trace.Tracer
}

// Instrument wraps s so that every call is recorded as a span.
func Instrument(s Store, tracer trace.Tracer) Store {
	if tracer == nil {
		return s
	}
	return &instrumentedStore{next: s, tracer: tracer}
}

func (s *instrumentedStore) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "counter."+op, trace.WithAttributes(attrs...), trace.WithSpanKind(trace.SpanKindClient))
}

func finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *instrumentedStore) Increment(ctx context.Context, slug string) (int64, error) {
	ctx, span := s.start(ctx, "Increment", attribute.String("views.slug", slug))
	n, err := s.next.Increment(ctx, slug)
	span.SetAttributes(attribute.Int64("views.total", n))
	finish(span, err)
	return n, err
}

func (s *instrumentedStore) Get(ctx context.Context, slug string) (int64, error) {
	ctx, span := s.start(ctx, "Get", attribute.String("views.slug", slug))
	n, err := s.next.Get(ctx, slug)
	finish(span, err)
	return n, err
}

func (s *instrumentedStore) List(ctx context.Context) ([]PageViews, error) {
	ctx, span := s.start(ctx, "List")
	pages, err := s.next.List(ctx)
	span.SetAttributes(attribute.Int("views.pages", len(pages)))
	finish(span, err)
	return pages, err
}

// Subscribe only traces the setup; the stream itself is long-lived.
func (s *instrumentedStore) Subscribe(ctx context.Context, slug string) (<-chan int64, error) {
	_, span := s.start(ctx, "Subscribe", attribute.String("views.slug", slug))
	ch, err := s.next.Subscribe(ctx, slug)
	finish(span, err)
	return ch, err
}

func (s *instrumentedStore) Close() error {
	return s.next.Close()
}
