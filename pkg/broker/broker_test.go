package broker

import (
	"context"
	"testing"
	"time"

	"devsocial/pkg/envelope"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newBroker(t *testing.T) (*Broker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	b := New(rdb, zap.NewNop())
	t.Cleanup(func() {
		b.Close()
		rdb.Close()
	})
	return b, rdb
}

func TestPublishSubscribe(t *testing.T) {
	b, rdb := newBroker(t)

	got := make(chan envelope.Envelope, 4)
	require.NoError(t, b.Subscribe("rooms", func(env envelope.Envelope) { got <- env }))

	// garbage on the channel is skipped
	require.NoError(t, rdb.Publish(context.Background(), "rooms", "{not json").Err())

	env, err := envelope.NewEvent("new_message", "chat_1", map[string]string{"text": "hi"})
	require.NoError(t, err)
	require.NoError(t, b.Publish("rooms", env))

	select {
	case e := <-got:
		assert.Equal(t, env.ID, e.ID)
		assert.Equal(t, "chat_1", e.Room)
		assert.JSONEq(t, `{"text":"hi"}`, string(e.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("no envelope delivered")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	b, _ := newBroker(t)

	got := make(chan envelope.Envelope, 1)
	require.NoError(t, b.Subscribe("rooms", func(env envelope.Envelope) { got <- env }))
	b.Close()

	assert.Error(t, b.Publish("rooms", envelope.New("ping")))
	select {
	case <-got:
		t.Fatal("delivered after close")
	case <-time.After(100 * time.Millisecond):
	}
}
