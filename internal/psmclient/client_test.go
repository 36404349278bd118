package psmclient

import (
	"context"
	"errors"
	"net"
	"os"
	"testing"
	"time"

	"github.com/neuroplastio/psmove-bridge/internal/psmapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type pipeDialer struct {
	conn net.Conn
	err  error
}

func (d *pipeDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.conn, nil
}

type fakeService struct {
	conn     net.Conn
	enc      *psmapi.Encoder
	requests chan psmapi.Request
}

func newFakeService(conn net.Conn) *fakeService {
	s := &fakeService{
		conn:     conn,
		enc:      psmapi.NewEncoder(conn),
		requests: make(chan psmapi.Request, 16),
	}
	go func() {
		dec := psmapi.NewDecoder(conn)
		for {
			env, err := dec.Decode()
			if err != nil {
				close(s.requests)
				return
			}
			s.requests <- *env.Request
		}
	}()
	return s
}

func (s *fakeService) send(t *testing.T, env psmapi.Envelope) {
	require.NoError(t, s.enc.Encode(env))
}

func pollUntil(t *testing.T, c *Client, match func(psmapi.Message) bool) psmapi.Message {
	var found psmapi.Message
	require.Eventually(t, func() bool {
		for _, msg := range c.Poll() {
			if match(msg) {
				found = msg
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
	return found
}

func isEvent(kind psmapi.EventKind) func(psmapi.Message) bool {
	return func(msg psmapi.Message) bool {
		return msg.Event != nil && msg.Event.Kind == kind
	}
}

func TestClientSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clientConn, serverConn := net.Pipe()
	svc := newFakeService(serverConn)
	c := New(zap.NewNop(), "psmove:9512", WithDialer(&pipeDialer{conn: clientConn}))

	_, err := c.Send(psmapi.GetServiceVersion(), nil)
	require.ErrorIs(t, err, ErrNotConnected)

	require.NoError(t, c.Connect(ctx))
	assert.True(t, c.Connected())
	pollUntil(t, c, isEvent(psmapi.EventConnected))

	served := make(chan error, 1)
	go func() {
		served <- c.Serve(ctx)
	}()

	var version string
	id, err := c.Send(psmapi.GetServiceVersion(), func(resp psmapi.Response) {
		version = resp.ServiceVersion
	})
	require.NoError(t, err)
	req := <-svc.requests
	assert.Equal(t, id, req.ID)
	assert.Equal(t, psmapi.RequestGetServiceVersion, req.Type)

	svc.send(t, psmapi.Envelope{Type: psmapi.EnvelopeResponse, Response: &psmapi.Response{
		RequestID:      id,
		Result:         psmapi.ResultSuccess,
		ServiceVersion: psmapi.ProtocolVersion,
	}})
	require.Eventually(t, func() bool {
		c.Poll()
		return version != ""
	}, time.Second, time.Millisecond)
	assert.Equal(t, psmapi.ProtocolVersion, version)

	svc.send(t, psmapi.Envelope{Type: psmapi.EnvelopeController, Controller: &psmapi.ControllerState{
		ID:        3,
		Connected: true,
		Sequence:  42,
	}})
	require.Eventually(t, func() bool {
		st, ok := c.ControllerState(3)
		return ok && st.Sequence == 42
	}, time.Second, time.Millisecond)

	svc.send(t, psmapi.Envelope{Type: psmapi.EnvelopeEvent, Event: &psmapi.Event{Kind: psmapi.EventControllerListChanged}})
	pollUntil(t, c, isEvent(psmapi.EventControllerListChanged))

	// An unanswered request is canceled when the session ends.
	var result psmapi.Result
	_, err = c.Send(psmapi.GetTrackerList(), func(resp psmapi.Response) {
		result = resp.Result
	})
	require.NoError(t, err)
	<-svc.requests

	require.NoError(t, serverConn.Close())
	require.NoError(t, <-served)
	pollUntil(t, c, isEvent(psmapi.EventDisconnected))
	assert.Equal(t, psmapi.ResultCanceled, result)
	assert.False(t, c.Connected())

	_, ok := c.ControllerState(3)
	assert.False(t, ok)
}

func TestClientFailedToConnect(t *testing.T) {
	c := New(zap.NewNop(), "psmove:9512", WithDialer(&pipeDialer{err: errors.New("refused")}))
	err := c.Connect(context.Background())
	require.Error(t, err)
	pollUntil(t, c, isEvent(psmapi.EventFailedToConnect))
}

func TestSendTimesOutOnStalledPeer(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := New(zap.NewNop(), "psmove:9512", WithDialer(&pipeDialer{conn: local}), WithWriteTimeout(20*time.Millisecond))
	require.NoError(t, c.Connect(context.Background()))

	_, err := c.Send(psmapi.GetServiceVersion(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrDeadlineExceeded))
}

func TestCloseDoesNotWaitForStalledSend(t *testing.T) {
	local, remote := net.Pipe()
	defer remote.Close()
	c := New(zap.NewNop(), "psmove:9512", WithDialer(&pipeDialer{conn: local}), WithWriteTimeout(time.Minute))
	require.NoError(t, c.Connect(context.Background()))

	sent := make(chan error, 1)
	go func() {
		_, err := c.Send(psmapi.GetServiceVersion(), nil)
		sent <- err
	}()
	time.Sleep(20 * time.Millisecond)

	closed := make(chan error, 1)
	go func() {
		closed <- c.Close()
	}()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked behind Send")
	}
	select {
	case err := <-sent:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("Send did not return after Close")
	}
}
