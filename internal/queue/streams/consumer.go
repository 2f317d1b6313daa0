package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Consumer reads envelopes from one stream as a member of a consumer group.
// Entries that cannot be decoded or fail validation are acknowledged and
// dropped so they are never redelivered.
type Consumer struct {
	client   *redis.Client
	registry *SchemaRegistry
	stream   string
	group    string
	name     string
	logger   *log.Logger
}

func NewConsumer(client *redis.Client, registry *SchemaRegistry, stream, group, name string, logger *log.Logger) *Consumer {
	if logger == nil {
		logger = log.Default()
	}
	return &Consumer{client: client, registry: registry, stream: stream, group: group, name: name, logger: logger}
}

// EnsureGroup creates the consumer group (and stream) if missing.
func (c *Consumer) EnsureGroup(ctx context.Context) error {
	return EnsureGroup(ctx, c.client, c.stream, c.group)
}

// EnsureGroup creates group on stream starting at new entries; an existing
// group is not an error.
func EnsureGroup(ctx context.Context, client *redis.Client, stream, group string) error {
	if stream == "" || group == "" {
		return fmt.Errorf("stream and group must be provided")
	}
	err := client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("xgroup create: %w", err)
	}
	return nil
}

// Message is one decoded stream entry.
type Message struct {
	ID       string
	Envelope Envelope
}

// Read blocks up to block for at most count new entries. A timeout with no
// entries returns (nil, nil).
func (c *Consumer) Read(ctx context.Context, count int64, block time.Duration) ([]Message, error) {
	if c.group == "" || c.name == "" {
		return nil, fmt.Errorf("consumer group and name must be configured")
	}
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group,
		Consumer: c.name,
		Streams:  []string{c.stream, ">"},
		Count:    count,
		Block:    block,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}
	var out []Message
	for _, st := range streams {
		out = append(out, c.decodeAll(ctx, st.Messages)...)
	}
	return out, nil
}

// Claim takes over entries another consumer left pending for at least minIdle.
func (c *Consumer) Claim(ctx context.Context, minIdle time.Duration, count int64) ([]Message, error) {
	msgs, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   c.stream,
		Group:    c.group,
		Consumer: c.name,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    count,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("xautoclaim: %w", err)
	}
	return c.decodeAll(ctx, msgs), nil
}

// Ack marks entries as processed.
func (c *Consumer) Ack(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, c.stream, c.group, ids...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

// Lag reports backlog for this consumer's group.
func (c *Consumer) Lag(ctx context.Context) (LagMetrics, error) {
	return GroupLag(ctx, c.client, c.stream, c.group)
}

func (c *Consumer) decodeAll(ctx context.Context, msgs []redis.XMessage) []Message {
	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		env, err := c.decode(msg)
		if err != nil {
			c.logger.Printf("dropping %s entry %s: %v", c.stream, msg.ID, err)
			recordRejected(ctx, env.EventType, "decode")
			if ackErr := c.Ack(ctx, msg.ID); ackErr != nil {
				c.logger.Printf("ack dropped entry %s: %v", msg.ID, ackErr)
			}
			continue
		}
		out = append(out, Message{ID: msg.ID, Envelope: env})
	}
	return out
}

func (c *Consumer) decode(msg redis.XMessage) (Envelope, error) {
	raw, ok := msg.Values["envelope"]
	if !ok {
		return Envelope{}, fmt.Errorf("missing envelope field")
	}
	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return Envelope{}, fmt.Errorf("unexpected envelope type %T", raw)
	}
	env, err := parseEnvelope(data)
	if err != nil {
		return env, err
	}
	if c.registry != nil {
		if err := c.registry.Validate(env.EventType, env.PayloadVersion, env.Data); err != nil {
			return env, err
		}
	}
	return env, nil
}

func marshalEnvelope(env Envelope) ([]byte, error) {
	b, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return b, nil
}
