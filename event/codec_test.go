package event

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCodec(t *testing.T) {
	testcases := []struct {
		name            string
		wantContentType string
		wantErr         bool
	}{
		{name: "", wantContentType: ContentTypeJSON},
		{name: "json", wantContentType: ContentTypeJSON},
		{name: "msgpack", wantContentType: ContentTypeMsgpack},
		{name: "avro", wantErr: true},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := NewCodec(tc.name)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantContentType, c.ContentType())
		})
	}
}

func TestCodecs(t *testing.T) {
	nome := "Luca"
	doc := DocumentExpired{
		DocumentID: uuid.New(),
		PersonID:   uuid.New(),
		AsdID:      uuid.New(),
		Tipo:       "CERTIFICATO_MEDICO",
		ExpiresAt:  time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
	}
	upd := PersonUpdated{PersonID: uuid.New(), Nome: &nome}

	for _, codec := range []Codec{JSONCodec{}, MsgpackCodec{}} {
		t.Run(codec.ContentType(), func(t *testing.T) {
			for _, p := range []Payload{doc, upd} {
				in := New(p)
				b, err := codec.Encode(in)
				require.NoError(t, err)

				out, err := codec.Decode(b)
				require.NoError(t, err)
				assert.Equal(t, in.EventID, out.EventID)
				assert.Equal(t, in.AggregateID, out.AggregateID)
				assert.Equal(t, in.AggregateType, out.AggregateType)
				assert.Equal(t, in.EventType, out.EventType)
				assert.True(t, in.OccurredAt.Equal(out.OccurredAt))

				switch want := p.(type) {
				case DocumentExpired:
					got, ok := out.Payload.(DocumentExpired)
					require.True(t, ok)
					assert.Equal(t, want.DocumentID, got.DocumentID)
					assert.Equal(t, want.Tipo, got.Tipo)
					assert.True(t, want.ExpiresAt.Equal(got.ExpiresAt))
				case PersonUpdated:
					got, ok := out.Payload.(PersonUpdated)
					require.True(t, ok)
					assert.Equal(t, want.PersonID, got.PersonID)
					require.NotNil(t, got.Nome)
					assert.Equal(t, nome, *got.Nome)
					assert.Nil(t, got.Cognome)
				}
			}
		})
	}
}

func TestJSONDecodeUnknownEventType(t *testing.T) {
	raw := []byte(`{"eventId":"` + uuid.NewString() + `","aggregateId":"42","aggregateType":"Season",` +
		`"eventType":"SeasonOpened","occurredAt":"2026-09-01T10:00:00Z","payload":{"seasonId":"42"}}`)

	e, err := JSONCodec{}.Decode(raw)
	require.NoError(t, err)
	u, ok := e.Payload.(Unknown)
	require.True(t, ok)
	assert.Equal(t, "SeasonOpened", u.EventType())
	assert.JSONEq(t, `{"seasonId":"42"}`, string(u.Raw))

	reencoded, err := JSONCodec{}.Encode(e)
	require.NoError(t, err)
	again, err := JSONCodec{}.Decode(reencoded)
	require.NoError(t, err)
	assert.Equal(t, e.EventID, again.EventID)
}

func TestDecodeMalformed(t *testing.T) {
	testcases := []struct {
		name  string
		codec Codec
		raw   []byte
	}{
		{name: "json garbage", codec: JSONCodec{}, raw: []byte("{not json")},
		{name: "json payload of wrong shape", codec: JSONCodec{}, raw: []byte(`{"eventId":"` + uuid.NewString() +
			`","aggregateId":"1","aggregateType":"Person","eventType":"PersonCreated",` +
			`"occurredAt":"2026-09-01T10:00:00Z","payload":{"personId":12}}`)},
		{name: "json missing metadata", codec: JSONCodec{}, raw: []byte(`{"eventType":"GroupUpdated","payload":{}}`)},
		{name: "msgpack garbage", codec: MsgpackCodec{}, raw: []byte{0xc1, 0x00}},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := tc.codec.Decode(tc.raw)
			assert.True(t, errors.Is(err, ErrMalformed), "got %v", err)
		})
	}
}
