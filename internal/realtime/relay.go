package realtime

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// DefaultRelayChannel is the Redis pub/sub channel shared by all instances.
const DefaultRelayChannel = "tq:events"

// envelope is the relay wire format.
type envelope struct {
	PartyID string `json:"party_id,omitempty"`
	Staff   bool   `json:"staff,omitempty"`
	Event   Event  `json:"event"`
}

// RedisRelay delivers events to streams connected to any instance.  Sends
// are published to one Redis channel; Run subscribes to it and hands every
// message to the local Registry.  Without a Redis client the relay delivers
// straight to the local registry.
type RedisRelay struct {
	rdb     *redis.Client
	local   *Registry
	channel string
	log     *slog.Logger
}

// NewRedisRelay returns a relay over rdb.  rdb may be nil.
func NewRedisRelay(rdb *redis.Client, local *Registry, log *slog.Logger) *RedisRelay {
	if log == nil {
		log = slog.Default()
	}
	return &RedisRelay{rdb: rdb, local: local, channel: DefaultRelayChannel, log: log}
}

// Registry returns the registry of streams connected to this instance.
func (r *RedisRelay) Registry() *Registry { return r.local }

// SendParty delivers ev to a party's streams on every instance.  With Redis
// the relay cannot tell whether any instance holds a stream, so only
// publish failures are reported.
func (r *RedisRelay) SendParty(ctx context.Context, partyID string, ev Event) error {
	if r.rdb == nil {
		return r.local.SendParty(partyID, ev)
	}
	return r.publish(ctx, envelope{PartyID: partyID, Event: ev})
}

// BroadcastStaff delivers ev to every staff stream on every instance.
func (r *RedisRelay) BroadcastStaff(ctx context.Context, ev Event) error {
	if r.rdb == nil {
		r.local.Broadcast(ev)
		return nil
	}
	return r.publish(ctx, envelope{Staff: true, Event: ev})
}

func (r *RedisRelay) publish(ctx context.Context, env envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return r.rdb.Publish(ctx, r.channel, b).Err()
}

// Run consumes the relay channel until ctx is done.  It returns at once
// when the relay has no Redis client.
func (r *RedisRelay) Run(ctx context.Context) error {
	if r.rdb == nil {
		return nil
	}
	sub := r.rdb.Subscribe(ctx, r.channel)
	defer func() { _ = sub.Close() }()
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	msgs := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case m, ok := <-msgs:
			if !ok {
				return nil
			}
			r.deliver(m.Payload)
		}
	}
}

func (r *RedisRelay) deliver(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		r.log.Warn("relay: bad message", "err", err)
		return
	}
	if env.Staff {
		r.local.Broadcast(env.Event)
		return
	}
	// Parties connected to other instances are not an error here.
	_ = r.local.SendParty(env.PartyID, env.Event)
}
