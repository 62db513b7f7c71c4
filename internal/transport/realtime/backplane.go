package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const backplaneChannel = "messenger:chathub"

// Envelope is a group broadcast as it travels between instances.
type Envelope struct {
	ConversationID uuid.UUID       `json:"conversationId"`
	ExcludeConnID  string          `json:"excludeConnId,omitempty"`
	Data           json.RawMessage `json:"data"`
}

// Backplane fans group broadcasts out to every server instance. Each
// instance delivers what it receives to its own connections.
type Backplane interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe blocks, calling deliver for every envelope, until ctx is done.
	Subscribe(ctx context.Context, deliver func(Envelope)) error
}

type RedisBackplane struct {
	client  *redis.Client
	channel string
}

func NewRedisBackplane(redisURL string) (*RedisBackplane, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &RedisBackplane{client: redis.NewClient(opts), channel: backplaneChannel}, nil
}

// Ping checks that redis is reachable.
func (b *RedisBackplane) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackplane) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

func (b *RedisBackplane) Subscribe(ctx context.Context, deliver func(Envelope)) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription to be confirmed so nothing published after
	// startup is missed.
	confirm := func() error {
		_, err := sub.Receive(ctx)
		return err
	}
	policy := backoff.WithContext(backoff.NewExponentialBackOff(), ctx)
	if err := backoff.Retry(confirm, policy); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("subscribing to %s: %w", b.channel, err)
	}
	log.Infof("backplane subscribed to %s", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Warningf("backplane: dropping malformed envelope: %v", err)
				continue
			}
			deliver(env)
		}
	}
}

func (b *RedisBackplane) Close() error {
	return b.client.Close()
}
