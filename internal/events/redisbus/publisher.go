package redisbus

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"torrentsession/internal/domain"
)

const DefaultChannel = "session:events"

// publisher is the part of *redis.Client the sink needs.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher forwards every session event to a Redis pub/sub channel as JSON.
type Publisher struct {
	client  publisher
	channel string
}

func NewPublisher(client *redis.Client, channel string) *Publisher {
	return newPublisher(client, channel)
}

func newPublisher(client publisher, channel string) *Publisher {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Name() string { return "redis" }

func (p *Publisher) Channel() string { return p.channel }

func (p *Publisher) Handle(ctx context.Context, ev domain.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, data).Err()
}

// Connect parses a redis:// URL and verifies the server answers PING.
func Connect(ctx context.Context, rawURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
