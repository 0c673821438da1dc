// Package messages defines the JSON messages exchanged with voxelstore
// realtime clients.
package messages

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/segmentio/encoding/json"
)

const (
	// The type of the error returned when a message can't be decoded.
	ErrTypeMsgInvalid = "msg_invalid"

	// The type of the error returned by a handler that ignored a message.
	ErrTypeMsgSkip = "msg_skip"
)

// MsgType identifies the kind of a message.
type MsgType string

// TypedMsg is implemented by all the messages. It is satisfied by embedding a
// Header.
type TypedMsg interface {
	MsgType() MsgType
	GetRequestID() uint32
}

// Header contains the fields shared by all the messages.
type Header struct {
	Type      MsgType `json:"type"`
	RequestID uint32  `json:"request_id,omitempty"`

	// Unix time in milliseconds.
	Timestamp int64 `json:"timestamp,omitempty"`
}

func (h Header) MsgType() MsgType {
	return h.Type
}

func (h Header) GetRequestID() uint32 {
	return h.RequestID
}

// NewHeader returns a header timestamped with the current time.
func NewHeader(t MsgType, requestID uint32) Header {
	return Header{
		Type:      t,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Msg is an encoded message.
type Msg struct {
	Type      MsgType
	RequestID uint32
	Data      []byte
}

func (m Msg) TypeString() string {
	if m.Type == "" {
		return "unknown"
	}
	return string(m.Type)
}

// DataTo decodes the message into v.
func (m Msg) DataTo(v any) error {
	if err := json.Unmarshal(m.Data, v); err != nil {
		return errors.New("decoding message failed").
			WithType(ErrTypeMsgInvalid).
			WithTag("msg_type", m.Type).
			Wrap(err)
	}
	return nil
}

// Encode encodes the given message.
func Encode(v TypedMsg) (Msg, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return Msg{}, errors.New("encoding message failed").
			WithType(ErrTypeMsgInvalid).
			WithTag("msg_type", v.MsgType()).
			Wrap(err)
	}

	return Msg{
		Type:      v.MsgType(),
		RequestID: v.GetRequestID(),
		Data:      b,
	}, nil
}

// Decode reads the header of the given JSON payload.
func Decode(data []byte) (Msg, error) {
	var h Header
	if err := json.Unmarshal(data, &h); err != nil {
		return Msg{}, errors.New("decoding message header failed").
			WithType(ErrTypeMsgInvalid).
			Wrap(err)
	}

	if h.Type == "" {
		return Msg{}, errors.New("message has no type").
			WithType(ErrTypeMsgInvalid)
	}

	return Msg{
		Type:      h.Type,
		RequestID: h.RequestID,
		Data:      data,
	}, nil
}
