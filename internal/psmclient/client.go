// Package psmclient is the asynchronous session with the tracking service.
//
// A reader goroutine (Serve) decodes the stream: telemetry frames update the live
// controller views directly, responses and events are queued for the host thread,
// which drains them with Poll. Continuations registered with Send run inside Poll.
package psmclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

var (
	ErrNotConnected = errors.New("not connected")
)

type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

var defaultOptions = clientOptions{
	dialer:       &net.Dialer{},
	inboxSize:    256,
	writeTimeout: time.Second,
}

type clientOptions struct {
	dialer       Dialer
	inboxSize    int
	writeTimeout time.Duration
}

type Option func(*clientOptions)

func WithDialer(d Dialer) Option {
	return func(o *clientOptions) {
		o.dialer = d
	}
}

func WithInboxSize(n int) Option {
	return func(o *clientOptions) {
		o.inboxSize = n
	}
}

// WithWriteTimeout bounds how long Send may block on a stalled peer.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *clientOptions) {
		o.writeTimeout = d
	}
}

type Client struct {
	log     *zap.Logger
	address string
	options clientOptions

	nextID      *atomic.Uint32
	connected   *atomic.Bool
	pending     *xsync.MapOf[psmapi.RequestID, psmapi.ResponseHandler]
	controllers *xsync.MapOf[int, psmapi.ControllerState]
	inbox       chan psmapi.Message

	// mu guards conn and enc. wmu serialises writes and is never held with mu.
	mu   sync.Mutex
	conn net.Conn
	enc  *psmapi.Encoder
	wmu  sync.Mutex
}

func New(log *zap.Logger, address string, opts ...Option) *Client {
	options := defaultOptions
	for _, opt := range opts {
		opt(&options)
	}
	return &Client{
		log:         log,
		address:     address,
		options:     options,
		nextID:      atomic.NewUint32(0),
		connected:   atomic.NewBool(false),
		pending:     xsync.NewMapOf[psmapi.RequestID, psmapi.ResponseHandler](),
		controllers: xsync.NewMapOf[int, psmapi.ControllerState](),
		inbox:       make(chan psmapi.Message, options.inboxSize),
	}
}

func (c *Client) Address() string {
	return c.address
}

func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Connect dials the service and queues a connected or failed-to-connect event.
func (c *Client) Connect(ctx context.Context) error {
	conn, err := c.options.dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		c.post(ctx, event(psmapi.EventFailedToConnect))
		return fmt.Errorf("failed to dial %s: %w", c.address, err)
	}
	c.mu.Lock()
	c.conn = conn
	c.enc = psmapi.NewEncoder(conn)
	c.mu.Unlock()
	c.connected.Store(true)
	c.log.Info("Connected", zap.String("address", c.address))
	c.post(ctx, event(psmapi.EventConnected))
	return nil
}

// Serve reads the session until the connection ends or ctx is cancelled.
// Outstanding requests are resolved as canceled and a disconnected event is queued.
func (c *Client) Serve(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	var serveErr error
	dec := psmapi.NewDecoder(conn)
	for {
		env, err := dec.Decode()
		if errors.Is(err, psmapi.ErrMalformedEnvelope) {
			c.log.Warn("Dropping malformed envelope", zap.Error(err))
			continue
		}
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && ctx.Err() == nil {
				serveErr = fmt.Errorf("failed to read from %s: %w", c.address, err)
			}
			break
		}
		c.dispatch(ctx, env)
	}

	c.teardown(ctx)
	c.log.Info("Disconnected", zap.String("address", c.address))
	c.post(ctx, event(psmapi.EventDisconnected))
	return serveErr
}

func (c *Client) dispatch(ctx context.Context, env psmapi.Envelope) {
	switch env.Type {
	case psmapi.EnvelopeController:
		c.controllers.Store(env.Controller.ID, *env.Controller)
	case psmapi.EnvelopeResponse:
		c.post(ctx, psmapi.Message{Response: env.Response})
	case psmapi.EnvelopeEvent:
		c.post(ctx, psmapi.Message{Event: env.Event})
	default:
		c.log.Warn("Unexpected envelope", zap.String("type", string(env.Type)))
	}
}

func (c *Client) teardown(ctx context.Context) {
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.enc = nil
	c.mu.Unlock()
	c.connected.Store(false)
	c.controllers.Clear()
	c.pending.Range(func(id psmapi.RequestID, _ psmapi.ResponseHandler) bool {
		c.post(ctx, psmapi.Message{Response: &psmapi.Response{RequestID: id, Result: psmapi.ResultCanceled}})
		return true
	})
}

// Close ends the current session. Serve returns shortly after.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Send writes req with a fresh request id. When onResponse is not nil it is invoked
// exactly once from Poll with the matching response.
func (c *Client) Send(req psmapi.Request, onResponse psmapi.ResponseHandler) (psmapi.RequestID, error) {
	c.mu.Lock()
	conn, enc := c.conn, c.enc
	c.mu.Unlock()
	if enc == nil {
		return 0, ErrNotConnected
	}
	req.ID = psmapi.RequestID(c.nextID.Inc())
	if onResponse != nil {
		c.pending.Store(req.ID, onResponse)
	}
	c.wmu.Lock()
	err := conn.SetWriteDeadline(time.Now().Add(c.options.writeTimeout))
	if err == nil {
		err = enc.Encode(psmapi.Envelope{Type: psmapi.EnvelopeRequest, Request: &req})
	}
	c.wmu.Unlock()
	if err != nil {
		c.pending.Delete(req.ID)
		return 0, fmt.Errorf("failed to send %s: %w", req.Type, err)
	}
	return req.ID, nil
}

// Poll drains queued messages without blocking. Responses with a registered
// continuation are consumed by it; everything else is returned in arrival order.
func (c *Client) Poll() []psmapi.Message {
	var out []psmapi.Message
	for {
		select {
		case msg := <-c.inbox:
			if msg.Response != nil {
				if h, ok := c.pending.LoadAndDelete(msg.Response.RequestID); ok {
					h(*msg.Response)
					continue
				}
			}
			out = append(out, msg)
		default:
			return out
		}
	}
}

// ControllerState returns the latest telemetry frame received for id.
func (c *Client) ControllerState(id int) (psmapi.ControllerState, bool) {
	return c.controllers.Load(id)
}

func (c *Client) post(ctx context.Context, msg psmapi.Message) {
	select {
	case <-ctx.Done():
	case c.inbox <- msg:
	}
}

func event(kind psmapi.EventKind) psmapi.Message {
	return psmapi.Message{Event: &psmapi.Event{Kind: kind}}
}
