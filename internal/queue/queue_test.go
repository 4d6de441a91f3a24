package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRoundTrip(t *testing.T) {
	q := NewInMemory(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	msg := NewMessage("transition", []byte(`{"user_id":1}`))
	require.NotEmpty(t, msg.ID)
	require.NoError(t, q.Publish(ctx, msg))

	out, err := q.Consume(ctx)
	require.NoError(t, err)

	select {
	case got := <-out:
		assert.Equal(t, msg, got)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}
}

func TestInMemoryPublishHonorsCancel(t *testing.T) {
	q := NewInMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Publish(ctx, NewMessage("transition", nil)))
	cancel()
	err := q.Publish(ctx, NewMessage("transition", nil))
	assert.ErrorIs(t, err, context.Canceled)
}
