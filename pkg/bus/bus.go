// Package bus is a small keyed fan-out of messages from publishers to subscriber channels.
package bus

import (
	"context"

	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

type Message[K comparable, M any] struct {
	Key     K
	Message M
}

type Publisher[M any] func(ctx context.Context, msg M)
type Subscriber[K comparable, M any] func(ctx context.Context) <-chan Message[K, M]

// subscribers maps each subscriber channel to the done channel of its context.
type subscribers[K comparable, M any] map[chan Message[K, M]]<-chan struct{}

type Bus[K comparable, M any] struct {
	log   *zap.Logger
	ready chan struct{}

	ch         chan Message[K, M]
	keySubs    *xsync.MapOf[K, subscribers[K, M]]
	globalSubs *xsync.MapOf[chan Message[K, M], <-chan struct{}]
}

var defaultOptions = busOptions{
	bufferSize: 64,
}

type busOptions struct {
	bufferSize int
}

type Option func(*busOptions)

// WithBufferSize sets how many messages may be queued before TryPublish starts dropping.
func WithBufferSize(n int) Option {
	return func(o *busOptions) {
		o.bufferSize = n
	}
}

func NewBus[K comparable, M any](logger *zap.Logger, opts ...Option) *Bus[K, M] {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Bus[K, M]{
		log:        logger,
		ready:      make(chan struct{}),
		ch:         make(chan Message[K, M], options.bufferSize),
		keySubs:    xsync.NewMapOf[K, subscribers[K, M]](),
		globalSubs: xsync.NewMapOf[chan Message[K, M], <-chan struct{}](),
	}
}

// Start delivers queued messages until ctx is cancelled.
func (b *Bus[K, M]) Start(ctx context.Context) error {
	close(b.ready)
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-b.ch:
			b.process(ctx, msg)
		}
	}
}

func (b *Bus[K, M]) Ready() <-chan struct{} {
	return b.ready
}

// Publish queues msg, blocking while the queue is full.
func (b *Bus[K, M]) Publish(ctx context.Context, key K, msg M) {
	select {
	case <-ctx.Done():
	case b.ch <- Message[K, M]{key, msg}:
	}
}

// TryPublish queues msg without blocking and reports whether it was accepted.
func (b *Bus[K, M]) TryPublish(key K, msg M) bool {
	select {
	case b.ch <- Message[K, M]{key, msg}:
		return true
	default:
		b.log.Warn("Bus queue full, dropping message")
		return false
	}
}

func (b *Bus[K, M]) CreatePublisher(key K) Publisher[M] {
	return func(ctx context.Context, msg M) {
		b.Publish(ctx, key, msg)
	}
}

func (b *Bus[K, M]) CreateSubscriber(key ...K) Subscriber[K, M] {
	return func(ctx context.Context) <-chan Message[K, M] {
		return b.Subscribe(ctx, key...)
	}
}

func (b *Bus[K, M]) process(ctx context.Context, msg Message[K, M]) {
	send := func(sub chan Message[K, M], done <-chan struct{}) bool {
		select {
		case <-ctx.Done():
			return false
		case <-done:
		case sub <- msg:
		}
		return true
	}
	b.globalSubs.Range(send)
	subs, ok := b.keySubs.Load(msg.Key)
	if !ok {
		return
	}
	for sub, done := range subs {
		if !send(sub, done) {
			return
		}
	}
}

// Subscribe returns a channel receiving messages for the given keys, or all messages when
// no key is given. Delivery stops when ctx is cancelled; the channel is never closed, so
// readers should select on ctx as well.
func (b *Bus[K, M]) Subscribe(ctx context.Context, key ...K) <-chan Message[K, M] {
	ch := make(chan Message[K, M])
	done := ctx.Done()
	if len(key) == 0 {
		b.globalSubs.Store(ch, done)
		go func() {
			<-done
			b.globalSubs.Delete(ch)
		}()
		return ch
	}
	for _, k := range key {
		b.keySubs.Compute(k, func(val subscribers[K, M], ok bool) (subscribers[K, M], bool) {
			next := make(subscribers[K, M], len(val)+1)
			for sub, subDone := range val {
				next[sub] = subDone
			}
			next[ch] = done
			return next, false
		})
	}
	go func() {
		<-done
		for _, k := range key {
			b.keySubs.Compute(k, func(val subscribers[K, M], ok bool) (subscribers[K, M], bool) {
				next := make(subscribers[K, M], len(val))
				for sub, subDone := range val {
					if sub != ch {
						next[sub] = subDone
					}
				}
				return next, len(next) == 0
			})
		}
	}()
	return ch
}
