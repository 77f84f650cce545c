package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
)

// channelPrefix namespaces every room channel so the pattern subscription
// never collides with other users of the same Redis instance.
const channelPrefix = "courier:"

// Fabric implements ports.Fabric over Redis pub/sub. Every instance
// publishes to room channels and pattern-subscribes to all of them; the
// realtime gateway fans publications out to local connections.
type Fabric struct {
	client *redis.Client
}

func NewFabric(client *redis.Client) *Fabric {
	return &Fabric{client: client}
}

func (f *Fabric) Publish(ctx context.Context, room string, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := f.client.Publish(ctx, channelPrefix+room, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", room, err)
	}
	return nil
}

// Run consumes the pattern subscription until ctx is cancelled. handle is
// invoked synchronously per publication; the caller decides how to fan out.
func (f *Fabric) Run(ctx context.Context, handle func(room string, payload []byte)) error {
	sub := f.client.PSubscribe(ctx, channelPrefix+"*")
	defer sub.Close()

	// Force the subscription to establish before we report running.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			room := strings.TrimPrefix(msg.Channel, channelPrefix)
			handle(room, []byte(msg.Payload))
		}
	}
}

func (f *Fabric) Close() error {
	return nil
}
