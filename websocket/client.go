package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxelstore/messages"
	"golang.org/x/net/websocket"
)

const (
	// The header that identifies a client across connections.
	HeaderClientID = "X-Voxelstore-Client-Id"

	// The type of the errors returned when a server answers a request with
	// an error response.
	ErrTypeErrorResponse = "error_response"
)

// Client is a minimal realtime client. It is not safe for concurrent reads.
type Client struct {
	conn      *websocket.Conn
	requestID uint32
}

// Dial connects to the realtime endpoint of a voxelstore server. HTTP
// endpoints are converted to their WebSocket equivalent.
func Dial(ctx context.Context, endpoint string, header http.Header) (*Client, error) {
	url := endpoint
	switch {
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	}

	config, err := websocket.NewConfig(url, endpoint)
	if err != nil {
		return nil, errors.New("creating websocket config failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}
	for k, v := range header {
		config.Header[k] = v
	}

	conn, err := config.DialContext(ctx)
	if err != nil {
		return nil, errors.New("dialing websocket failed").
			WithTag("endpoint", endpoint).
			Wrap(err)
	}

	return &Client{conn: conn}, nil
}

// NextRequestID returns a new request id.
func (c *Client) NextRequestID() uint32 {
	return atomic.AddUint32(&c.requestID, 1)
}

func (c *Client) Send(msg messages.TypedMsg) error {
	m, err := messages.Encode(msg)
	if err != nil {
		return err
	}

	_, err = Send(c.conn, m)
	return err
}

func (c *Client) Receive() (messages.Msg, error) {
	msg, _, err := Receive(c.conn)
	return msg, err
}

// WaitFor reads messages until one with the given type and request id is
// received. An error response to the request is returned as an error typed
// ErrTypeErrorResponse.
func (c *Client) WaitFor(ctx context.Context, t messages.MsgType, requestID uint32) (messages.Msg, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	for {
		if err := ctx.Err(); err != nil {
			return messages.Msg{}, err
		}

		msg, err := c.Receive()
		if err != nil {
			return messages.Msg{}, errors.New("waiting for message failed").
				WithTag("msg_type", t).
				WithTag("request_id", requestID).
				Wrap(err)
		}

		if msg.RequestID != requestID {
			continue
		}

		if msg.Type == messages.MsgTypeError && t != messages.MsgTypeError {
			var res messages.ErrorResponse
			msg.DataTo(&res)
			return msg, errors.New("request failed").
				WithType(ErrTypeErrorResponse).
				WithTag("msg_type", t).
				WithTag("request_id", requestID).
				WithTag("code", res.Code)
		}

		if msg.Type == t {
			return msg, nil
		}
	}
}

// Request sends a message and waits for the response with the given type.
func (c *Client) Request(ctx context.Context, req messages.TypedMsg, responseType messages.MsgType) (messages.Msg, error) {
	if err := c.Send(req); err != nil {
		return messages.Msg{}, err
	}
	return c.WaitFor(ctx, responseType, req.GetRequestID())
}

func (c *Client) Close() error {
	return c.conn.Close()
}
