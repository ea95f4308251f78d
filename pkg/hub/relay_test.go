package hub

import (
	"testing"
	"time"

	"devsocial/pkg/broker"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type instance struct {
	router *Router
	rooms  *Rooms
	relay  *Relay
}

func newInstance(t *testing.T, mr *miniredis.Miniredis) *instance {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := broker.New(rdb, zap.NewNop())
	t.Cleanup(func() {
		b.Close()
		rdb.Close()
	})

	rooms := NewRooms()
	router := NewRouter(rooms, zap.NewNop())
	relay := NewRelay(b, "devsocial:rooms", zap.NewNop())
	require.NoError(t, relay.Start(router))
	return &instance{router: router, rooms: rooms, relay: relay}
}

func TestRelay_DeliversAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	east := newInstance(t, mr)
	west := newInstance(t, mr)
	require.NotEqual(t, east.relay.Instance(), west.relay.Instance())

	local := newConn(newFakeSocket(), ana, 8, 0, zap.NewNop())
	remote := newConn(newFakeSocket(), bruno, 8, 0, zap.NewNop())
	east.rooms.Join(local, "chat_1")
	west.rooms.Join(remote, "chat_1")

	n := east.router.Publish("chat_1", Event{Kind: EventNewMessage, Payload: map[string]string{"text": "hi"}}, nil)
	assert.Equal(t, 1, n)

	var frame []byte
	select {
	case frame = <-remote.queue:
	case <-time.After(2 * time.Second):
		t.Fatal("remote member got nothing")
	}
	assert.Contains(t, string(frame), `"action":"new_message"`)
	assert.Contains(t, string(frame), `"room":"chat_1"`)
	assert.NotContains(t, string(frame), `"origin"`)

	// the publishing instance ignores its own echo
	time.Sleep(100 * time.Millisecond)
	assert.Len(t, local.queue, 1)
	assert.Len(t, remote.queue, 0)
}
