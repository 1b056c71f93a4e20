package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// BridgedPost is what the Discord bridge publishes on the inbound channel.
type BridgedPost struct {
	Username string `json:"username"`
	Content  string `json:"content"`
	Color    string `json:"message_color"`
	UserUUID string `json:"userUUID"`
}

// RedisBridge exchanges messages with the Discord bridge over Redis pub/sub.
// Inbound posts become discord messages; stored chat and admin messages are
// mirrored on the outbound channel.
type RedisBridge struct {
	redis    *redis.Client
	inbound  string
	outbound string
	logger   *slog.Logger
}

func NewRedisBridge(client *redis.Client, inbound, outbound string, logger *slog.Logger) *RedisBridge {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisBridge{
		redis:    client,
		inbound:  inbound,
		outbound: outbound,
		logger:   logger.With("component", "bridge"),
	}
}

func (b *RedisBridge) Publish(ctx context.Context, m Message) error {
	payload, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode bridged message: %w", err)
	}
	return b.redis.Publish(ctx, b.outbound, payload).Err()
}

// Listen subscribes to the inbound channel and calls fn for every decodable
// post until ctx is cancelled or the subscription closes.
func (b *RedisBridge) Listen(ctx context.Context, fn func(BridgedPost)) error {
	pubsub := b.redis.Subscribe(ctx, b.inbound)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed before reading.
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.inbound, err)
	}
	b.logger.Info("Listening for bridged posts", "channel", b.inbound)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			post, err := decodeBridgedPost([]byte(msg.Payload))
			if err != nil {
				b.logger.Warn("Undecodable bridged post", "error", err)
				continue
			}
			fn(post)
		}
	}
}

func decodeBridgedPost(payload []byte) (BridgedPost, error) {
	var p BridgedPost
	if err := json.Unmarshal(payload, &p); err != nil {
		return BridgedPost{}, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return p, nil
}
