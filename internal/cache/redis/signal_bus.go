package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vaultline/artkey/internal/domain"
)

// streamMaxLen caps each event stream (approximate trim), enough to replay
// several epochs of lifecycle events without unbounded growth.
const streamMaxLen = 10_000

// subscribeBuffer absorbs publish bursts (a settlement emits several events
// back to back) before slow consumers start losing time.
const subscribeBuffer = 128

// SignalBus carries lifecycle events (bids, epoch rolls, settlements) over
// pub/sub for live consumers and mirrors them into capped streams for
// catch-up reads.
type SignalBus struct {
	rdb *redis.Client
}

var _ domain.SignalBus = (*SignalBus)(nil)

func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{rdb: c.Underlying()}
}

// Publish fans the payload out to current subscribers. Delivery is
// at-most-once; durable consumers read the stream instead.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of raw payloads for one pub/sub channel. The
// subscription and the returned channel close when ctx is cancelled.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	sub := sb.rdb.Subscribe(ctx, channel)

	// Receive blocks until the server acknowledges the subscription, so a
	// caller that publishes right after Subscribe cannot race its own event.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, subscribeBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// StreamAppend appends the payload to the stream, trimming to streamMaxLen.
func (sb *SignalBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	err := sb.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: streamMaxLen,
		Approx: true,
		Values: map[string]any{"data": payload},
	}).Err()
	if err != nil {
		return fmt.Errorf("redis: xadd %s: %w", stream, err)
	}
	return nil
}

// StreamRead returns up to count entries after lastID without blocking. Pass
// an empty lastID to read from the start; an empty result means the consumer
// is caught up.
func (sb *SignalBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	start := "-"
	if lastID != "" && lastID != "0" && lastID != "0-0" {
		// Exclusive range start, so the caller's last-seen entry is skipped.
		start = "(" + lastID
	}

	entries, err := sb.rdb.XRangeN(ctx, stream, start, "+", int64(count)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: xrange %s: %w", stream, err)
	}

	msgs := make([]domain.StreamMessage, 0, len(entries))
	for _, e := range entries {
		raw, ok := e.Values["data"]
		if !ok {
			continue
		}
		s, ok := raw.(string)
		if !ok {
			continue
		}
		msgs = append(msgs, domain.StreamMessage{ID: e.ID, Payload: []byte(s)})
	}
	return msgs, nil
}
