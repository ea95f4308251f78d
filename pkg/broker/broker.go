package broker

import (
	"context"
	"encoding/json"

	"devsocial/pkg/envelope"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Broker moves envelopes between instances over Redis pub/sub.
type Broker struct {
	rdb    *redis.Client
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

type HandlerFunc func(envelope.Envelope)

func New(rdb *redis.Client, log *zap.Logger) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		rdb:    rdb,
		ctx:    ctx,
		cancel: cancel,
		log:    log.Named("broker"),
	}
}

func (b *Broker) Publish(channel string, env envelope.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return err
	}
	return b.rdb.Publish(b.ctx, channel, data).Err()
}

// Subscribe blocks until the subscription is confirmed, then delivers every
// decodable envelope on channel to fn from a background goroutine.
func (b *Broker) Subscribe(channel string, fn HandlerFunc) error {
	sub := b.rdb.Subscribe(b.ctx, channel)
	if _, err := sub.Receive(b.ctx); err != nil {
		sub.Close()
		return err
	}
	ch := sub.Channel()

	go func() {
		defer sub.Close()
		for {
			select {
			case <-b.ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var env envelope.Envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
					b.log.Warn("discarded malformed envelope", zap.String("channel", channel), zap.Error(err))
					continue
				}
				fn(env)
			}
		}
	}()
	return nil
}

// Close stops the subscriptions. The Redis client is owned by the caller.
func (b *Broker) Close() {
	b.cancel()
}
