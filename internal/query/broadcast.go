package query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const DefaultInvalidationChannel = "parts:invalidate"

// -- Pub/Sub Related --

// InvalidationEvent tells other gateway instances which keys a mutation made
// stale.
type InvalidationEvent struct {
	Origin    string     `json:"origin"`
	Keys      [][]string `json:"keys"`
	Timestamp time.Time  `json:"timestamp"`
}

// Broadcaster fans local invalidations out over redis so every instance's
// cache goes stale together. Events carry the sender's origin id and are
// ignored by the sender itself.
type Broadcaster struct {
	redis   *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

func NewBroadcaster(rdb *redis.Client, channel string, logger *zap.Logger) *Broadcaster {
	if channel == "" {
		channel = DefaultInvalidationChannel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Broadcaster{
		redis:   rdb,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

func (b *Broadcaster) Origin() string { return b.origin }

func (b *Broadcaster) Publish(ctx context.Context, keys []Key) error {
	if len(keys) == 0 {
		return nil
	}
	payload, err := b.encode(keys)
	if err != nil {
		return err
	}
	if err := b.redis.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish invalidation: %w", err)
	}
	return nil
}

// Listen applies remote invalidations to c until ctx is done.
func (b *Broadcaster) Listen(ctx context.Context, c *Cache) error {
	sub := b.redis.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", b.channel, err)
	}
	b.logger.Info("Listening for cache invalidations", zap.String("channel", b.channel), zap.String("origin", b.origin))

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("invalidation subscription closed")
			}
			if _, err := b.apply(c, msg.Payload); err != nil {
				b.logger.Warn("Dropping invalidation message", zap.Error(err))
			}
		}
	}
}

func (b *Broadcaster) encode(keys []Key) (string, error) {
	event := InvalidationEvent{
		Origin:    b.origin,
		Keys:      make([][]string, len(keys)),
		Timestamp: time.Now(),
	}
	for i, k := range keys {
		event.Keys[i] = k
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("failed to marshal invalidation: %w", err)
	}
	return string(data), nil
}

// apply invalidates the keys named in payload and reports how many entries
// were marked. Events published by this broadcaster are skipped.
func (b *Broadcaster) apply(c *Cache, payload string) (int, error) {
	var event InvalidationEvent
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		return 0, fmt.Errorf("failed to unmarshal invalidation: %w", err)
	}
	if event.Origin == b.origin {
		return 0, nil
	}
	keys := make([]Key, 0, len(event.Keys))
	for _, k := range event.Keys {
		if len(k) > 0 {
			keys = append(keys, Key(k))
		}
	}
	if len(keys) == 0 {
		return 0, nil
	}
	marked := c.Invalidate(keys...)
	b.logger.Debug("Applied remote invalidation",
		zap.String("origin", event.Origin),
		zap.Int("keys", len(keys)),
		zap.Int("marked", marked),
	)
	return marked, nil
}
