package mq

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"

	"socialgraph/models"
)

// DefaultChannel is the Redis pub/sub channel graph events travel on.
const DefaultChannel = "graph-events"

// Broadcaster delivers an event to local subscribers.
type Broadcaster interface {
	Broadcast(ev models.Event)
}

// HubEmitter hands events straight to an in-process broadcaster. It is used
// when no Redis is configured.
type HubEmitter struct {
	Hub Broadcaster
}

func (e HubEmitter) Emit(_ context.Context, ev models.Event) {
	e.Hub.Broadcast(ev)
}

// RedisEmitter publishes events so every instance's worker can fan them out.
type RedisEmitter struct {
	Conn    *redis.Client
	Channel string
}

func (e *RedisEmitter) Emit(ctx context.Context, ev models.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[Emit] failed to marshal event: %v", err)
		return
	}
	// the mutation is already committed; publishing must not be cut short by
	// the caller going away
	ctx = context.WithoutCancel(ctx)
	if err := e.Conn.Publish(ctx, e.Channel, data).Err(); err != nil {
		log.Printf("[Emit] failed to publish %s to %s: %v", ev.Type, e.Channel, err)
		return
	}
	log.Printf("[Emit] %s actor=%s target=%s:%s", ev.Type, ev.Actor, ev.TargetKind, ev.Target)
}

// StartEventWorker forwards events from the Redis channel to b until ctx is
// done.
func StartEventWorker(ctx context.Context, conn *redis.Client, channel string, b Broadcaster) {
	sub := conn.Subscribe(ctx, channel)
	defer sub.Close()
	ch := sub.Channel()

	log.Printf("[EventWorker] listening on %s", channel)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var ev models.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Printf("[EventWorker] failed to parse event: %v", err)
				continue
			}
			b.Broadcast(ev)
		}
	}
}
