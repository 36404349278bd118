package psmapi

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeStream(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"event","event":{"kind":"connected"}}`,
		`{"type":"response","response":{"requestId":7,"result":"success","controllers":{"controllers":[{"id":0,"type":"positional","serial":"aa:bb"},{"id":1,"type":"auxiliary","serial":"cc:dd","parentSerial":"AA:BB"}]}}}`,
		`{"type":"controller","controller":{"id":0,"connected":true,"sequence":3,"buttons":["pressed","down"],"trigger":128}}`,
	}, "\n")
	dec := NewDecoder(strings.NewReader(input))

	env, err := dec.Decode()
	require.NoError(t, err)
	require.NotNil(t, env.Event)
	assert.Equal(t, EventConnected, env.Event.Kind)

	env, err = dec.Decode()
	require.NoError(t, err)
	require.NotNil(t, env.Response)
	assert.Equal(t, RequestID(7), env.Response.RequestID)
	require.NotNil(t, env.Response.Controllers)
	require.Len(t, env.Response.Controllers.Controllers, 2)
	assert.Equal(t, "AA:BB", env.Response.Controllers.Controllers[1].ParentSerial)

	env, err = dec.Decode()
	require.NoError(t, err)
	require.NotNil(t, env.Controller)
	assert.Equal(t, ButtonStatePressed, env.Controller.Button(ButtonPS))
	assert.Equal(t, ButtonStateDown, env.Controller.Button(ButtonMove))
	assert.Equal(t, ButtonStateUp, env.Controller.Button(ButtonTrigger))
	assert.Equal(t, uint8(128), env.Controller.Trigger)

	_, err = dec.Decode()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecodeMalformed(t *testing.T) {
	type testCase struct {
		name  string
		input string
	}
	testCases := []testCase{
		{name: "unknown type", input: `{"type":"bogus"}`},
		{name: "missing payload", input: `{"type":"event"}`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewDecoder(strings.NewReader(tc.input)).Decode()
			assert.True(t, errors.Is(err, ErrMalformedEnvelope), "got %v", err)
		})
	}

	_, err := NewDecoder(strings.NewReader(`{"type":"controller","controller":{"buttons":["sideways"]}}`)).Decode()
	assert.Error(t, err)
}

func TestEncodeRequest(t *testing.T) {
	var buf bytes.Buffer
	req := StartDataStream(2, StreamIncludePosition|StreamIncludePhysics)
	req.ID = 9
	require.NoError(t, NewEncoder(&buf).Encode(Envelope{Type: EnvelopeRequest, Request: &req}))
	assert.True(t, strings.HasSuffix(buf.String(), "\n"))

	env, err := NewDecoder(&buf).Decode()
	require.NoError(t, err)
	assert.Equal(t, req, *env.Request)

	assert.ErrorIs(t, NewEncoder(&buf).Encode(Envelope{Type: EnvelopeRequest}), ErrMalformedEnvelope)
}

func TestBatteryFraction(t *testing.T) {
	f, charging := BatteryCharging.Fraction()
	assert.Equal(t, 0.99, f)
	assert.True(t, charging)

	f, charging = Battery60.Fraction()
	assert.Equal(t, 0.6, f)
	assert.False(t, charging)
}
