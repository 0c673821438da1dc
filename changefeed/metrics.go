package changefeed

import (
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errTypeLabel  = "error_type"
	endpointLabel = "endpoint"
)

var (
	changeSend = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_send",
		Help: "The number of changes sent to the change feed endpoint.",
	}, []string{
		endpointLabel,
	})

	changeSendError = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "changefeed_send_errors",
		Help: "The errors that occured while sending a change.",
	}, []string{
		endpointLabel,
		errTypeLabel,
	})

	changeSendLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name: "changefeed_send_latency",
		Help: "The time to send a change.",
	}, []string{
		endpointLabel,
	})

	changeDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "changefeed_dropped",
		Help: "The number of changes dropped because the queue was full.",
	})
)

func instrumentChangeSend(endpoint string, send func() error) error {
	start := time.Now()

	err := send()
	if err != nil {
		changeSendError.
			With(prometheus.Labels{
				endpointLabel: endpoint,
				errTypeLabel:  errors.Type(err),
			}).
			Inc()
		return err
	}

	changeSend.With(prometheus.Labels{
		endpointLabel: endpoint,
	}).Inc()

	changeSendLatency.With(prometheus.Labels{
		endpointLabel: endpoint,
	}).Observe(time.Since(start).Seconds())
	return nil
}

func instrumentChangeDropped() {
	changeDropped.Inc()
}
