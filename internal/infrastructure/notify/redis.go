package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultChannel is the Redis pub/sub channel used when none is configured.
const DefaultChannel = "csx:updates"

// RedisBroker relays events through Redis pub/sub so every API instance sees them.
type RedisBroker struct {
	Rdb     *redis.Client
	Channel string
}

func NewRedisBroker(rdb *redis.Client, channel string) *RedisBroker {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroker{Rdb: rdb, Channel: channel}
}

func (b *RedisBroker) Publish(ctx context.Context, ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("event", ev.Type).Msg("notify: encode event")
		return
	}
	// Detached from the request so a cancelled client does not drop the broadcast.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := b.Rdb.Publish(pubCtx, b.Channel, payload).Err(); err != nil {
		log.Warn().Err(err).Str("event", ev.Type).Msg("notify: redis publish failed")
	}
}

func (b *RedisBroker) Subscribe(ctx context.Context) (<-chan Event, func()) {
	ctx, stop := context.WithCancel(ctx)
	sub := b.Rdb.Subscribe(ctx, b.Channel)
	out := make(chan Event, subscriberBuffer)
	// Wait for the subscribe confirmation so events published after return are not missed.
	if _, err := sub.Receive(ctx); err != nil {
		log.Warn().Err(err).Str("channel", b.Channel).Msg("notify: redis subscribe failed")
		_ = sub.Close()
		stop()
		close(out)
		return out, func() {}
	}

	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					log.Warn().Err(err).Msg("notify: discarding malformed event")
					continue
				}
				select {
				case out <- ev:
				default:
					log.Warn().Str("event", ev.Type).Msg("notify: subscriber buffer full, dropping event")
				}
			}
		}
	}()

	var once sync.Once
	return out, func() { once.Do(stop) }
}
