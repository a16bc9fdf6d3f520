// Package messaging provides Redis Streams adapters for background jobs.
package messaging

import (
	"context"
	"fmt"

	"github.com/goccy/go-json"

	"triage_server/core/port/out"

	"github.com/redis/go-redis/v9"
)

// Stream names
const (
	StreamIngest  = "triage:ingest"
	StreamSamples = "triage:samples"
)

// streamMaxLen caps each stream; older entries are trimmed approximately.
const streamMaxLen = 100000

// RedisProducer implements out.MessageProducer using Redis Streams.
type RedisProducer struct {
	client *redis.Client
}

func NewRedisProducer(client *redis.Client) *RedisProducer {
	return &RedisProducer{client: client}
}

// PublishIngest queues a raw email for background triage and returns the stream entry id.
func (p *RedisProducer) PublishIngest(ctx context.Context, job *out.IngestJob) (string, error) {
	return p.publish(ctx, StreamIngest, job)
}

func (p *RedisProducer) PublishSamples(ctx context.Context, job *out.SamplesJob) (string, error) {
	return p.publish(ctx, StreamSamples, job)
}

func (p *RedisProducer) publish(ctx context.Context, stream string, job any) (string, error) {
	data, err := json.Marshal(job)
	if err != nil {
		return "", fmt.Errorf("failed to marshal job: %w", err)
	}

	id, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		ID:     "*",
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to publish to %s: %w", stream, err)
	}

	return id, nil
}

var _ out.MessageProducer = (*RedisProducer)(nil)
