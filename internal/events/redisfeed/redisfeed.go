// Package redisfeed relays events between API nodes over Redis pub/sub, so a
// websocket client sees rounds driven by any node.
package redisfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/fastprodman/pointsarena/internal/events"
)

type Publisher struct {
	rdb     redis.Cmdable
	channel string
}

func NewPublisher(rdb redis.Cmdable, channel string) *Publisher {
	return &Publisher{rdb: rdb, channel: channel}
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	err = p.rdb.Publish(ctx, p.channel, b).Err()
	if err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}

	return nil
}

// Bridge forwards every event received on the channel into a local
// publisher, normally the node's Hub.
type Bridge struct {
	rdb     *redis.Client
	channel string
	sink    events.Publisher
}

func NewBridge(rdb *redis.Client, channel string, sink events.Publisher) *Bridge {
	return &Bridge{rdb: rdb, channel: channel, sink: sink}
}

// Run subscribes and forwards until ctx is done.
func (b *Bridge) Run(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	//nolint:errcheck
	defer sub.Close()

	// Wait for the subscription confirmation so errors surface here.
	_, err := sub.Receive(ctx)
	if err != nil {
		return fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	slog.InfoContext(ctx, "redis event bridge subscribed", "channel", b.channel)

	ch := sub.Channel()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			b.forward(ctx, msg.Payload)
		}
	}
}

func (b *Bridge) forward(ctx context.Context, payload string) {
	e, err := Decode(payload)
	if err != nil {
		slog.WarnContext(ctx, "dropping malformed event", "channel", b.channel, "error", err)
		return
	}

	err = b.sink.Publish(ctx, e)
	if err != nil {
		slog.WarnContext(ctx, "forward event", "type", e.Type, "round_id", e.RoundID, "error", err)
	}
}

func Decode(payload string) (events.Event, error) {
	var e events.Event

	err := json.Unmarshal([]byte(payload), &e)
	if err != nil {
		return events.Event{}, fmt.Errorf("unmarshal event: %w", err)
	}

	if e.Type == "" {
		return events.Event{}, fmt.Errorf("event without type")
	}

	return e, nil
}
