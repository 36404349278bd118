package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func receive[K comparable, M any](t *testing.T, ch <-chan Message[K, M]) Message[K, M] {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
	return Message[K, M]{}
}

func TestBusDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBus[string, int](zap.NewNop())
	go b.Start(ctx)
	<-b.Ready()

	keyed := b.Subscribe(ctx, "a")
	global := b.CreateSubscriber()(ctx)

	b.Publish(ctx, "a", 1)
	assert.Equal(t, Message[string, int]{Key: "a", Message: 1}, receive(t, global))
	assert.Equal(t, Message[string, int]{Key: "a", Message: 1}, receive(t, keyed))

	require.True(t, b.TryPublish("b", 2))
	assert.Equal(t, 2, receive(t, global).Message)
	select {
	case msg := <-keyed:
		t.Fatalf("unexpected message on keyed subscriber: %v", msg)
	case <-time.After(20 * time.Millisecond):
	}

	pub := b.CreatePublisher("a")
	pub(ctx, 3)
	assert.Equal(t, 3, receive(t, global).Message)
	assert.Equal(t, 3, receive(t, keyed).Message)
}

func TestTryPublishDropsWhenFull(t *testing.T) {
	b := NewBus[string, int](zap.NewNop(), WithBufferSize(2))
	assert.True(t, b.TryPublish("a", 1))
	assert.True(t, b.TryPublish("a", 2))
	assert.False(t, b.TryPublish("a", 3))
}

func TestCancelledSubscriberDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b := NewBus[string, int](zap.NewNop())
	go b.Start(ctx)
	<-b.Ready()

	subCtx, subCancel := context.WithCancel(ctx)
	_ = b.Subscribe(subCtx, "a")
	live := b.Subscribe(ctx, "a")
	subCancel()

	b.Publish(ctx, "a", 1)
	assert.Equal(t, 1, receive(t, live).Message)
}
