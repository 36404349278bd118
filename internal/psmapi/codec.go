package psmapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

type EnvelopeType string

const (
	EnvelopeRequest    EnvelopeType = "request"
	EnvelopeResponse   EnvelopeType = "response"
	EnvelopeEvent      EnvelopeType = "event"
	EnvelopeController EnvelopeType = "controller"
)

// Envelope is one line on the wire.
type Envelope struct {
	Type       EnvelopeType     `json:"type"`
	Request    *Request         `json:"request,omitempty"`
	Response   *Response        `json:"response,omitempty"`
	Event      *Event           `json:"event,omitempty"`
	Controller *ControllerState `json:"controller,omitempty"`
}

var ErrMalformedEnvelope = errors.New("malformed envelope")

func (e Envelope) validate() error {
	var ok bool
	switch e.Type {
	case EnvelopeRequest:
		ok = e.Request != nil
	case EnvelopeResponse:
		ok = e.Response != nil
	case EnvelopeEvent:
		ok = e.Event != nil
	case EnvelopeController:
		ok = e.Controller != nil
	default:
		return fmt.Errorf("%w: unknown type %q", ErrMalformedEnvelope, e.Type)
	}
	if !ok {
		return fmt.Errorf("%w: missing %s payload", ErrMalformedEnvelope, e.Type)
	}
	return nil
}

type Encoder struct {
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes env followed by a newline.
func (e *Encoder) Encode(env Envelope) error {
	if err := env.validate(); err != nil {
		return err
	}
	return e.enc.Encode(env)
}

type Decoder struct {
	dec *json.Decoder
}

func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{dec: json.NewDecoder(r)}
}

// Decode reads the next envelope. It returns io.EOF at the end of the stream.
func (d *Decoder) Decode() (Envelope, error) {
	var env Envelope
	if err := d.dec.Decode(&env); err != nil {
		return Envelope{}, err
	}
	if err := env.validate(); err != nil {
		return Envelope{}, err
	}
	return env, nil
}
