package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxelstore/models"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
	"golang.org/x/net/websocket"
)

// NewTestingEnv starts a server running the handlers created by newHandler
// and connects two clients to it.
func NewTestingEnv(t *testing.T, newHandler func() Handler) (*Client, *Client, func()) {
	var mutex sync.Mutex
	logger := t.Log

	logs.Encoder = func(v any) ([]byte, error) {
		return json.MarshalIndent(v, "", "  ")
	}

	logs.SetLogger(func(e logs.Entry) {
		mutex.Lock()
		defer mutex.Unlock()

		if logger != nil {
			logger(e)
		}
	})

	errors.Encoder = json.Marshal

	clientA, clientB, close := newTestingEnv(t, newHandler)
	return clientA, clientB, func() {
		mutex.Lock()
		defer mutex.Unlock()
		logger = nil
		close()
	}
}

func newTestingEnv(t *testing.T, newHandler func() Handler) (*Client, *Client, func()) {
	server := httptest.NewServer(websocket.Server{
		Handshake: func(c *websocket.Config, r *http.Request) error {
			return nil
		},
		Handler: func(conn *websocket.Conn) {
			defer conn.Close()

			handler := newHandler()
			defer handler.Close()

			Handle(context.Background(), conn, handler)
		},
	})

	newClient := func() *Client {
		header := make(http.Header)
		header.Set("User-Agent", "ted")
		header.Set("X-Forwarded-For", "192.0.0.0")
		header.Set(HeaderClientID, uuid.NewString())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second*5)
		defer cancel()

		client, err := Dial(ctx, server.URL, header)
		if err != nil {
			t.Fatalf("error dialing web socket: %s", err)
		}
		return client
	}

	clientA := newClient()
	clientB := newClient()

	return clientA, clientB, func() {
		clientA.Close()
		clientB.Close()
		server.Close()
	}
}

func newTestHandler(regions *models.RegionStore) func() Handler {
	return func() Handler {
		var h Handler = &RealtimeHandler{
			ClientIdleTimeout: time.Minute,
			Regions:           regions,
		}

		h = HandlerWithLogs(h, time.Millisecond*100)
		h = HandlerWithMetrics(h, "https://voxelstore-test.com")
		return h
	}
}
