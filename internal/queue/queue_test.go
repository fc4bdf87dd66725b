package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for message")
		return Message{}
	}
}

func TestMemberChangedRoundTrip(t *testing.T) {
	roll, ok := MemberChanged(42).Roll()
	require.True(t, ok)
	assert.Equal(t, 42, roll)

	_, ok = Message{Type: TypeExpensesChanged}.Roll()
	assert.False(t, ok)
}

func TestInMemoryDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewInMemory(4)
	ch, err := q.Consume(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(ctx, MemberChanged(7)))
	msg := receive(t, ch)
	assert.Equal(t, TypeMemberChanged, msg.Type)

	cancel()
	for range ch {
	}
}

func TestRedisQueueDelivers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	q := NewRedisQueue(client, "", nil)
	q.wait = 100 * time.Millisecond
	require.NoError(t, q.Publish(ctx, Message{Type: TypeExpensesChanged}))

	ch, err := q.Consume(ctx)
	require.NoError(t, err)
	msg := receive(t, ch)
	assert.Equal(t, TypeExpensesChanged, msg.Type)
}
