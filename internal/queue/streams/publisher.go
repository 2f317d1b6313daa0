package streams

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Publisher appends schema-checked envelopes to Redis streams.
type Publisher struct {
	client   *redis.Client
	registry *SchemaRegistry
	maxLen   int64
}

// PublisherOption configures a Publisher.
type PublisherOption func(*Publisher)

// WithMaxLenApprox trims streams to roughly maxLen entries on every XADD.
func WithMaxLenApprox(maxLen int64) PublisherOption {
	return func(p *Publisher) { p.maxLen = maxLen }
}

func NewPublisher(client *redis.Client, registry *SchemaRegistry, opts ...PublisherOption) *Publisher {
	p := &Publisher{client: client, registry: registry}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish stamps, validates and appends env to stream, returning the entry ID.
func (p *Publisher) Publish(ctx context.Context, stream string, env Envelope) (string, error) {
	if stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if env.EventID == "" {
		env.EventID = uuid.NewString()
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}
	if err := env.check(); err != nil {
		return "", err
	}
	if p.registry != nil {
		if err := p.registry.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
			recordRejected(ctx, env.EventType, "schema")
			return "", err
		}
	}
	raw, err := marshalEnvelope(env)
	if err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]interface{}{"envelope": raw},
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	id, err := p.client.XAdd(ctx, args).Result()
	if err != nil {
		return "", fmt.Errorf("xadd %s: %w", stream, err)
	}
	recordPublished(ctx, env.EventType)
	return id, nil
}

// PublishEvent wraps payload in an envelope and publishes it.
func (p *Publisher) PublishEvent(ctx context.Context, stream, eventType, version string, payload any) (string, error) {
	env, err := NewEnvelope(eventType, version, payload)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, stream, env)
}
