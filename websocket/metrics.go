package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/net/websocket"
)

const (
	errTypeLabel        = "error_type"
	errCodeLabel        = "error_code"
	msgTypeLabel        = "msg_type"
	publicEndpointLabel = "public_endpoint"
)

var (
	wsConnectedClients = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ws_connected_clients",
		Help: "The number of connected realtime clients.",
	}, []string{publicEndpointLabel})

	wsReceivedMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_msgs",
		Help: "The number of messages received from realtime clients.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsReceivedBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_received_bytes",
		Help: "The number of bytes received from realtime clients.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsReceiveErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_receive_errors",
		Help: "The errors that occurred while receiving a message.",
	}, []string{publicEndpointLabel, errTypeLabel})

	wsSentMsgs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_msgs",
		Help: "The number of messages sent to realtime clients.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsSentBytes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_sent_bytes",
		Help: "The number of bytes sent to realtime clients.",
	}, []string{publicEndpointLabel, msgTypeLabel})

	wsSendErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_send_errors",
		Help: "The errors that occurred while sending a message.",
	}, []string{publicEndpointLabel, msgTypeLabel, errTypeLabel})

	wsErrorResponses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ws_error_responses",
		Help: "The number of error responses sent to realtime clients, by code.",
	}, []string{publicEndpointLabel, errCodeLabel})

	wsMsgLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ws_msg_latency",
		Help:    "The time to process a realtime message.",
		Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{publicEndpointLabel, msgTypeLabel})
)

// HandlerWithMetrics decorates the given handler with Prometheus
// instrumentation labelled with the public endpoint.
func HandlerWithMetrics(h Handler, publicEndpoint string) Handler {
	return &handlerWithMetrics{
		Handler:        h,
		publicEndpoint: publicEndpoint,
	}
}

type handlerWithMetrics struct {
	Handler

	publicEndpoint string
}

func (h *handlerWithMetrics) labels(kv ...string) prometheus.Labels {
	labels := prometheus.Labels{publicEndpointLabel: h.publicEndpoint}
	for i := 0; i+1 < len(kv); i += 2 {
		labels[kv[i]] = kv[i+1]
	}
	return labels
}

func (h *handlerWithMetrics) HandleConnect(conn *websocket.Conn) {
	wsConnectedClients.With(h.labels()).Inc()
	h.Handler.HandleConnect(conn)
}

func (h *handlerWithMetrics) HandleDisconnect(err error) {
	wsConnectedClients.With(h.labels()).Dec()
	h.Handler.HandleDisconnect(err)
}

func (h *handlerWithMetrics) HandlePing(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandlePing(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleRegionJoin(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleRegionJoin(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleVoxelAdd(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleVoxelAdd(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleVoxelGet(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleVoxelGet(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleVoxelRemove(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleVoxelRemove(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleVoxelList(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleVoxelList(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) HandleNodeList(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	return h.measureLatency(msg, func() error {
		return h.Handler.HandleNodeList(ctx, respond, msg)
	})
}

func (h *handlerWithMetrics) Receiver() Receiver {
	receive := h.Handler.Receiver()

	return func() (messages.Msg, int, error) {
		msg, n, err := receive()
		msgType := msg.TypeString()

		if err != nil {
			wsReceiveErrors.With(h.labels(errTypeLabel, errors.Type(err))).Inc()
		} else {
			wsReceivedMsgs.With(h.labels(msgTypeLabel, msgType)).Inc()
		}

		if n != 0 {
			wsReceivedBytes.With(h.labels(msgTypeLabel, msgType)).Add(float64(n))
		}
		return msg, n, err
	}
}

func (h *handlerWithMetrics) Sender() Sender {
	send := h.Handler.Sender()

	return func(msg messages.Msg) (int, error) {
		msgType := msg.TypeString()

		n, err := send(msg)
		if err != nil {
			wsSendErrors.With(h.labels(
				msgTypeLabel, msgType,
				errTypeLabel, errors.Type(err),
			)).Inc()
			return n, err
		}

		wsSentMsgs.With(h.labels(msgTypeLabel, msgType)).Inc()
		wsSentBytes.With(h.labels(msgTypeLabel, msgType)).Add(float64(n))

		if msg.Type == messages.MsgTypeError {
			var res messages.ErrorResponse
			if msg.DataTo(&res) == nil {
				wsErrorResponses.With(h.labels(errCodeLabel, string(res.Code))).Inc()
			}
		}
		return n, nil
	}
}

func (h *handlerWithMetrics) measureLatency(msg messages.Msg, f func() error) error {
	start := time.Now()

	err := f()
	if errors.IsType(err, messages.ErrTypeMsgSkip) {
		return err
	}

	wsMsgLatency.
		With(h.labels(msgTypeLabel, msg.TypeString())).
		Observe(time.Since(start).Seconds())
	return err
}
