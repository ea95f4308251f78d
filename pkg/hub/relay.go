package hub

import (
	"devsocial/pkg/broker"
	"devsocial/pkg/envelope"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Relay shares room events between instances. Frames are tagged with the
// instance id so an instance ignores its own echoes.
type Relay struct {
	broker   *broker.Broker
	channel  string
	instance string
	log      *zap.Logger
}

func NewRelay(b *broker.Broker, channel string, log *zap.Logger) *Relay {
	return &Relay{
		broker:   b,
		channel:  channel,
		instance: uuid.NewString(),
		log:      log.Named("relay"),
	}
}

func (r *Relay) Instance() string {
	return r.instance
}

// Start subscribes to the relay channel and delivers remote events through
// the router's local fan-out, then attaches itself to the router.
func (r *Relay) Start(router *Router) error {
	err := r.broker.Subscribe(r.channel, func(env envelope.Envelope) {
		if env.Origin == r.instance || env.Room == "" {
			return
		}
		env.Origin = ""
		router.deliver(env.Room, env, nil)
	})
	if err != nil {
		return err
	}
	router.UseRelay(r)
	return nil
}

func (r *Relay) Forward(room string, env envelope.Envelope) {
	env.Room = room
	env.Origin = r.instance
	if err := r.broker.Publish(r.channel, env); err != nil {
		r.log.Warn("relay publish failed", zap.String("room", room), zap.Error(err))
	}
}
