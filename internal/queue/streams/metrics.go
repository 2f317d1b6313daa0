package streams

import (
	"context"
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	streamMetricsOnce sync.Once
	eventsPublished   otelmetric.Int64Counter
	eventsRejected    otelmetric.Int64Counter
)

func initStreamMetrics() {
	meter := otel.Meter("quizchain/queue/streams")
	var err error
	eventsPublished, err = meter.Int64Counter(
		"queue_events_published_total",
		otelmetric.WithDescription("Envelopes appended to Redis streams"),
	)
	if err != nil {
		log.Printf("queue streams metrics init: queue_events_published_total: %v", err)
	}
	eventsRejected, err = meter.Int64Counter(
		"queue_events_rejected_total",
		otelmetric.WithDescription("Envelopes refused on publish or dropped on read"),
	)
	if err != nil {
		log.Printf("queue streams metrics init: queue_events_rejected_total: %v", err)
	}
}

func recordPublished(ctx context.Context, eventType string) {
	streamMetricsOnce.Do(initStreamMetrics)
	if eventsPublished == nil {
		return
	}
	eventsPublished.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("event_type", eventType)))
}

func recordRejected(ctx context.Context, eventType, reason string) {
	streamMetricsOnce.Do(initStreamMetrics)
	if eventsRejected == nil {
		return
	}
	eventsRejected.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.String("reason", reason),
	))
}
