package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	ContentTypeJSON    = "application/json"
	ContentTypeMsgpack = "application/msgpack"
)

// ErrMalformed is returned when bytes cannot be turned into an envelope.
var ErrMalformed = errors.New("malformed event")

// Codec serializes envelopes for the event transport.
type Codec interface {
	ContentType() string
	Encode(e *Envelope) ([]byte, error)
	Decode(b []byte) (*Envelope, error)
}

// NewCodec returns the codec registered under name ("json" or "msgpack").
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return JSONCodec{}, nil
	case "msgpack":
		return MsgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown event codec %q", name)
	}
}

type unmarshalFunc func([]byte, any) error

type decodeFunc func(unmarshal unmarshalFunc, raw []byte) (Payload, error)

func decoderFor[T Payload]() decodeFunc {
	return func(unmarshal unmarshalFunc, raw []byte) (Payload, error) {
		var p T
		if err := unmarshal(raw, &p); err != nil {
			return nil, err
		}
		return p, nil
	}
}

var decoders = map[string]decodeFunc{
	TypePersonCreated:   decoderFor[PersonCreated](),
	TypePersonUpdated:   decoderFor[PersonUpdated](),
	TypeGroupCreated:    decoderFor[GroupCreated](),
	TypeGroupUpdated:    decoderFor[GroupUpdated](),
	TypeDocumentExpired: decoderFor[DocumentExpired](),
	TypePaymentOverdue:  decoderFor[PaymentOverdue](),
}

func decodePayload(unmarshal unmarshalFunc, e *Envelope, raw []byte) error {
	decode, ok := decoders[e.EventType]
	if !ok {
		e.Payload = Unknown{Type: e.EventType, Aggregate: e.AggregateType, ID: e.AggregateID, Raw: raw}
		return nil
	}
	p, err := decode(unmarshal, raw)
	if err != nil {
		return fmt.Errorf("%w: %s payload: %v", ErrMalformed, e.EventType, err)
	}
	e.Payload = p
	return nil
}

type jsonEnvelope struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType string          `json:"aggregateType"`
	EventType     string          `json:"eventType"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

// JSONCodec is the default envelope codec.
type JSONCodec struct{}

var _ Codec = JSONCodec{}

func (JSONCodec) ContentType() string { return ContentTypeJSON }

func (JSONCodec) Encode(e *Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var raw []byte
	if u, ok := e.Payload.(Unknown); ok {
		raw = u.Raw
	} else {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", e.EventType, err)
		}
		raw = b
	}
	return json.Marshal(jsonEnvelope{
		EventID:       e.EventID,
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     e.EventType,
		OccurredAt:    e.OccurredAt,
		Payload:       raw,
	})
}

func (JSONCodec) Decode(b []byte) (*Envelope, error) {
	var w jsonEnvelope
	if err := json.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	e := &Envelope{
		EventID:       w.EventID,
		AggregateID:   w.AggregateID,
		AggregateType: w.AggregateType,
		EventType:     w.EventType,
		OccurredAt:    w.OccurredAt,
	}
	if err := decodePayload(json.Unmarshal, e, w.Payload); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}

type msgpackEnvelope struct {
	EventID       string             `msgpack:"eventId"`
	AggregateID   string             `msgpack:"aggregateId"`
	AggregateType string             `msgpack:"aggregateType"`
	EventType     string             `msgpack:"eventType"`
	OccurredAt    time.Time          `msgpack:"occurredAt"`
	Payload       msgpack.RawMessage `msgpack:"payload"`
}

// MsgpackCodec is a compact binary alternative to JSONCodec. Payload fields
// reuse their json tags.
type MsgpackCodec struct{}

var _ Codec = MsgpackCodec{}

func (MsgpackCodec) ContentType() string { return ContentTypeMsgpack }

func (MsgpackCodec) Encode(e *Envelope) ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	var raw []byte
	if u, ok := e.Payload.(Unknown); ok {
		raw = u.Raw
	} else {
		b, err := msgpackMarshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("encoding %s payload: %w", e.EventType, err)
		}
		raw = b
	}
	return msgpack.Marshal(&msgpackEnvelope{
		EventID:       e.EventID.String(),
		AggregateID:   e.AggregateID,
		AggregateType: e.AggregateType,
		EventType:     e.EventType,
		OccurredAt:    e.OccurredAt,
		Payload:       raw,
	})
}

func (MsgpackCodec) Decode(b []byte) (*Envelope, error) {
	var w msgpackEnvelope
	if err := msgpack.Unmarshal(b, &w); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	id, err := uuid.Parse(w.EventID)
	if err != nil {
		return nil, fmt.Errorf("%w: event id: %v", ErrMalformed, err)
	}
	e := &Envelope{
		EventID:       id,
		AggregateID:   w.AggregateID,
		AggregateType: w.AggregateType,
		EventType:     w.EventType,
		OccurredAt:    w.OccurredAt.UTC(),
	}
	if err := decodePayload(msgpackUnmarshal, e, w.Payload); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return e, nil
}

func msgpackMarshal(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func msgpackUnmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}
