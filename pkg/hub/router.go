package hub

import (
	"errors"
	"time"

	"devsocial/pkg/envelope"

	"go.uber.org/zap"
)

// Forwarder carries published frames to other instances.
type Forwarder interface {
	Forward(room string, env envelope.Envelope)
}

// Router multicasts events to room members. Delivery is best effort: a
// member whose queue is full misses the event.
type Router struct {
	rooms *Rooms
	relay Forwarder
	log   *zap.Logger
	now   func() time.Time
}

func NewRouter(rooms *Rooms, log *zap.Logger) *Router {
	return &Router{rooms: rooms, log: log.Named("router"), now: time.Now}
}

func (r *Router) Rooms() *Rooms {
	return r.rooms
}

// UseRelay makes every publish also reach other instances.
func (r *Router) UseRelay(f Forwarder) {
	r.relay = f
}

// Publish stamps ev with the server time and delivers it to every member of
// room except exclude. It returns the number of local deliveries.
func (r *Router) Publish(room string, ev Event, exclude *Conn) int {
	ev.SentAt = r.now()

	env, err := envelope.NewEvent(ev.Kind, room, ev.Payload)
	if err != nil {
		r.log.Sugar().Errorf("failed to encode %s for %s: %s", ev.Kind, room, err.Error())
		return 0
	}
	env.Sender = ev.Sender
	env.Timestamp = ev.SentAt.UnixMilli()

	delivered := r.deliver(room, env, exclude)
	if r.relay != nil {
		r.relay.Forward(room, env)
	}
	return delivered
}

// deliver encodes env once and enqueues it for the local members of room.
func (r *Router) deliver(room string, env envelope.Envelope, exclude *Conn) int {
	frame, err := env.Marshal()
	if err != nil {
		r.log.Sugar().Errorf("failed to marshal %s: %s", env.Action, err.Error())
		return 0
	}

	delivered := 0
	for _, c := range r.rooms.Members(room) {
		if c == exclude {
			continue
		}
		switch err := c.enqueue(frame); {
		case err == nil:
			delivered++
		case errors.Is(err, errQueueFull):
			r.log.Warn("dropped event", zap.String("room", room), zap.String("event", env.Action), zap.String("conn", c.id))
		}
	}
	return delivered
}

// PublishFrom relays a client event, attaching the sender's identity and
// skipping the sender's own connection.
func (r *Router) PublishFrom(c *Conn, room, kind string, payload interface{}) int {
	return r.Publish(room, Event{Kind: kind, Payload: payload, Sender: c.sender()}, c)
}

func (r *Router) NotifyAccount(accountID int64, payload interface{}) int {
	return r.Publish(PersonalRoom(accountID), Event{Kind: EventNewNotification, Payload: payload}, nil)
}

func (r *Router) ProjectUpdated(projectID string, payload interface{}) int {
	return r.Publish(ProjectRoom(projectID), Event{Kind: EventProjectUpdated, Payload: payload}, nil)
}
