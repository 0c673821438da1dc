// Package smoketest checks that a voxelstore server can serve a realtime
// client end to end.
package smoketest

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/octree"
	vswebsocket "github.com/aukilabs/voxelstore/websocket"
	"github.com/google/uuid"
	"github.com/segmentio/encoding/json"
)

const (
	defaultTimeout = time.Second * 10

	// The type of the errors returned when a server answered with unexpected
	// data.
	ErrTypeUnexpectedResponse = "smoke_test_unexpected_response"
)

// The region where smoke tests add and remove their voxels.
var Region = octree.NewVector3(-1<<20, -1<<20, -1<<20)

type Request struct {
	Endpoint string        `json:"endpoint"`
	Timeout  time.Duration `json:"timeout"`
}

type Result struct {
	FromEndpoint    string  `json:"from_endpoint"`
	ToEndpoint      string  `json:"to_endpoint"`
	Success         bool    `json:"success"`
	LatencyMilliSec float64 `json:"latency_ms"`
	Error           string  `json:"error,omitempty"`
	Timestamp       int64   `json:"timestamp"`
}

type Options struct {
	Endpoint   string
	UserAgent  string
	SendResult func(context.Context, Result) error
}

type testCtxKey string

var testCtxKeyValue testCtxKey = "test-context"

type testContext struct {
	context.Context
	Cancel func()
}

// HandleSmokeTest starts a smoke test against the endpoint given in the
// request body. The result is reported with Options.SendResult.
func HandleSmokeTest(ctx context.Context, opts Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			logs.Warn(errors.New("reading body failed").Wrap(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var req Request
		if err := json.Unmarshal(b, &req); err != nil || req.Endpoint == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		go func() {
			defer func() {
				// Signals tests that the smoke test is over.
				if tctx := ctx.Value(testCtxKeyValue); tctx != nil {
					testCtx := tctx.(testContext)
					if testCtx.Cancel != nil {
						testCtx.Cancel()
					}
				}
			}()

			res, err := Run(ctx, RunOptions{
				FromEndpoint: opts.Endpoint,
				ToEndpoint:   req.Endpoint,
				UserAgent:    opts.UserAgent,
				Timeout:      req.Timeout,
			})
			if err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(err)
			}

			if err := opts.SendResult(ctx, res); err != nil {
				logs.WithTag("from_endpoint", opts.Endpoint).
					WithTag("to_endpoint", req.Endpoint).
					Warn(errors.New("sending smoke test result failed").Wrap(err))
			}
		}()

		w.WriteHeader(http.StatusOK)
	}
}

type RunOptions struct {
	FromEndpoint string
	ToEndpoint   string
	UserAgent    string
	Timeout      time.Duration
}

// Run joins the smoke test region of the targeted server, then adds, reads
// and removes a voxel. The latency is the mean round trip time of those
// requests.
func Run(ctx context.Context, opts RunOptions) (Result, error) {
	res := Result{
		FromEndpoint: opts.FromEndpoint,
		ToEndpoint:   opts.ToEndpoint,
		Timestamp:    time.Now().UnixMilli(),
	}

	err := run(ctx, opts, &res)
	if err != nil {
		res.Error = err.Error()
		return res, errors.New("smoke test failed").
			WithTag("to_endpoint", opts.ToEndpoint).
			Wrap(err)
	}

	res.Success = true
	return res, nil
}

func run(ctx context.Context, opts RunOptions, res *Result) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	header := make(http.Header)
	header.Set(vswebsocket.HeaderClientID, uuid.NewString())
	if opts.UserAgent != "" {
		header.Set("User-Agent", opts.UserAgent)
	}

	client, err := vswebsocket.Dial(ctx, opts.ToEndpoint, header)
	if err != nil {
		return err
	}
	defer client.Close()

	var latency time.Duration
	var requests int

	request := func(req messages.TypedMsg, responseType messages.MsgType, v any) error {
		start := time.Now()

		msg, err := client.Request(ctx, req, responseType)
		if err != nil {
			return err
		}

		latency += time.Since(start)
		requests++
		return msg.DataTo(v)
	}

	var join messages.RegionJoinResponse
	err = request(&messages.RegionJoinRequest{
		Header: messages.NewHeader(messages.MsgTypeRegionJoinRequest, client.NextRequestID()),
		Region: Region,
	}, messages.MsgTypeRegionJoinResponse, &join)
	if err != nil {
		return err
	}

	// Participants use distinct positions so concurrent smoke tests do not
	// collide.
	position := octree.NewVector3(int(join.ParticipantID)%join.RegionSize, 0, 0)
	voxel := messages.Voxel{Type: 1, Data: uuid.NewString()}

	var add messages.VoxelAddResponse
	err = request(&messages.VoxelAddRequest{
		Header:   messages.NewHeader(messages.MsgTypeVoxelAddRequest, client.NextRequestID()),
		Position: position,
		Voxel:    voxel,
	}, messages.MsgTypeVoxelAddResponse, &add)
	if err != nil {
		return err
	}

	var get messages.VoxelGetResponse
	err = request(&messages.VoxelRequest{
		Header:   messages.NewHeader(messages.MsgTypeVoxelGetRequest, client.NextRequestID()),
		Position: position,
	}, messages.MsgTypeVoxelGetResponse, &get)
	if err != nil {
		return err
	}
	if get.Voxel != voxel {
		return errors.New("unexpected voxel").
			WithType(ErrTypeUnexpectedResponse).
			WithTag("expected", voxel).
			WithTag("got", get.Voxel)
	}

	var remove messages.VoxelRemoveResponse
	err = request(&messages.VoxelRequest{
		Header:   messages.NewHeader(messages.MsgTypeVoxelRemoveRequest, client.NextRequestID()),
		Position: position,
	}, messages.MsgTypeVoxelRemoveResponse, &remove)
	if err != nil {
		return err
	}

	res.LatencyMilliSec = float64(latency.Microseconds()) / float64(requests) / 1000
	return nil
}
