package websocket

import (
	"context"
	"sync"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/models"
	"golang.org/x/net/websocket"
)

const (
	sendChanSize    = 512
	receiveChanSize = 64
)

// Receiver reads the next message from a connection and returns the number of
// bytes read.
type Receiver func() (messages.Msg, int, error)

// Sender writes a message to a connection and returns the number of bytes
// written.
type Sender func(messages.Msg) (int, error)

// Handler represents a voxelstore connection handler.
type Handler interface {
	// Handles a client connection.
	HandleConnect(conn *websocket.Conn)

	// Handles a ping request.
	HandlePing(ctx context.Context, respond models.Responder, msg messages.Msg) error

	// Handles a request to join a region.
	HandleRegionJoin(ctx context.Context, respond models.Responder, msg messages.Msg) error

	// Handles a request to add a voxel to the joined region.
	HandleVoxelAdd(ctx context.Context, respond models.Responder, msg messages.Msg) error

	// Handles a request to read a voxel of the joined region.
	HandleVoxelGet(ctx context.Context, respond models.Responder, msg messages.Msg) error

	// Handles a request to remove a voxel from the joined region.
	HandleVoxelRemove(ctx context.Context, respond models.Responder, msg messages.Msg) error

	// Handles a request to list the voxels of the joined region.
	HandleVoxelList(ctx context.Context, respond models.Responder, msg messages.Msg) error

	// Handles a request to list the octree nodes of the joined region.
	HandleNodeList(ctx context.Context, respond models.Responder, msg messages.Msg) error

	// Handles a client's disconnection.
	HandleDisconnect(error)

	// Creates a message receiver used to receive incoming messages.
	Receiver() Receiver

	// Creates a message sender passed in service methods in order to send
	// messages.
	Sender() Sender

	// Closes the handler and releases its allocated resources.
	Close()

	// The time a client is idle before being disconnected.
	IdleTimeout() time.Duration

	// Returns the region store.
	GetRegions() *models.RegionStore

	// The currently joined region.
	CurrentRegion() *models.Region

	// The current participant.
	CurrentParticipant() *models.Participant

	GetClientID() string
}

// Handle runs the given handler on a connection until it is closed.
func Handle(ctx context.Context, conn *websocket.Conn, h Handler) {
	handler := handler{
		Conn:    conn,
		Handler: h,
	}

	handler.Handle(ctx)
}

type handler struct {
	Conn    *websocket.Conn
	Handler Handler

	done           <-chan struct{}
	sendChan       chan messages.Msg
	receiveChan    chan messages.Msg
	sender         Sender
	receiver       Receiver
	disconnectChan chan error
}

func (h *handler) Handle(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	h.Handler.HandleConnect(h.Conn)

	h.done = ctx.Done()
	h.disconnectChan = make(chan error, 8)
	defer func() {
		for len(h.disconnectChan) != 0 {
			<-h.disconnectChan
		}
	}()

	var wg sync.WaitGroup
	defer wg.Wait()

	h.sendChan = make(chan messages.Msg, sendChanSize)
	h.sender = h.Handler.Sender()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startSending(ctx)
	}()

	h.receiveChan = make(chan messages.Msg, receiveChanSize)
	h.receiver = h.Handler.Receiver()

	wg.Add(1)
	go func() {
		defer wg.Done()
		h.startReceiving(ctx)
	}()

	idleTimeout := h.Handler.IdleTimeout()
	idleTimer := time.NewTimer(idleTimeout)
	defer idleTimer.Stop()

	responder := responseSender{
		send:    h.send,
		sendMsg: h.sendMsg,
	}

	for {
		select {
		case <-ctx.Done():
			h.handleDisconnect(ctx.Err())
			return

		case <-idleTimer.C:
			h.disconnect(errors.New("idle connection").WithTag("duration", idleTimeout))

		case msg := <-h.receiveChan:
			idleTimer.Stop()
			idleTimer.Reset(idleTimeout)

			if err := h.handleMessage(ctx, msg, responder); err != nil {
				h.disconnect(errors.New("handling message failed").Wrap(err))
			}

		case err := <-h.disconnectChan:
			h.handleDisconnect(err)
			// Stops the sending and receiving goroutines.
			cancel()
			return
		}
	}
}

func (h *handler) send(typedMsg messages.TypedMsg) {
	msg, err := messages.Encode(typedMsg)
	if err != nil {
		logs.WithTag("message", typedMsg).
			WithTag(logs.ClientIDTag, h.Handler.GetClientID()).
			Debug(err)
		return
	}
	h.sendMsg(msg)
}

func (h *handler) sendMsg(msg messages.Msg) {
	select {
	case h.sendChan <- msg:
	case <-h.done:
	}
}

func (h *handler) startSending(ctx context.Context) {
	defer func() {
		for len(h.sendChan) != 0 {
			<-h.sendChan
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case msg := <-h.sendChan:
			if _, err := h.sender(msg); err != nil {
				h.disconnect(errors.New("sending message failed").Wrap(err))
				return
			}
		}
	}
}

func (h *handler) startReceiving(ctx context.Context) {
	for ctx.Err() == nil {
		msg, _, err := h.receiver()
		if errors.IsType(err, messages.ErrTypeMsgInvalid) {
			h.send(&messages.ErrorResponse{
				Header: messages.NewHeader(messages.MsgTypeError, 0),
				Code:   messages.ErrorCodeBadRequest,
			})
			continue
		}
		if err != nil {
			h.disconnect(errors.New("receiving message failed").Wrap(err))
			return
		}

		select {
		case <-ctx.Done():
			return
		case h.receiveChan <- msg:
		}
	}
}

func (h *handler) handleMessage(ctx context.Context, msg messages.Msg, responder models.Responder) error {
	var err error

	switch msg.Type {
	case messages.MsgTypePingRequest:
		err = h.Handler.HandlePing(ctx, responder, msg)

	case messages.MsgTypeRegionJoinRequest:
		err = h.Handler.HandleRegionJoin(ctx, responder, msg)

	case messages.MsgTypeVoxelAddRequest:
		err = h.Handler.HandleVoxelAdd(ctx, responder, msg)

	case messages.MsgTypeVoxelGetRequest:
		err = h.Handler.HandleVoxelGet(ctx, responder, msg)

	case messages.MsgTypeVoxelRemoveRequest:
		err = h.Handler.HandleVoxelRemove(ctx, responder, msg)

	case messages.MsgTypeVoxelListRequest:
		err = h.Handler.HandleVoxelList(ctx, responder, msg)

	case messages.MsgTypeNodeListRequest:
		err = h.Handler.HandleNodeList(ctx, responder, msg)

	default:
		err = errors.New("unsupported message type").
			WithType(messages.ErrTypeMsgSkip).
			WithTag("msg_type", msg.TypeString())
	}

	switch {
	case errors.IsType(err, messages.ErrTypeMsgSkip):
		logs.WithTag(logs.ClientIDTag, h.Handler.GetClientID()).Debug(err)
		return nil

	case errors.IsType(err, messages.ErrTypeMsgInvalid):
		responder.Send(&messages.ErrorResponse{
			Header: messages.NewHeader(messages.MsgTypeError, msg.RequestID),
			Code:   messages.ErrorCodeBadRequest,
		})
		return nil

	default:
		return err
	}
}

func (h *handler) disconnect(err error) {
	select {
	case h.disconnectChan <- err:
	default:
	}
}

func (h *handler) handleDisconnect(err error) {
	h.Conn.Close()
	h.Handler.HandleDisconnect(err)
}

type responseSender struct {
	send    func(messages.TypedMsg)
	sendMsg func(messages.Msg)
}

func (r responseSender) Send(msg messages.TypedMsg) {
	r.send(msg)
}

func (r responseSender) SendMsg(msg messages.Msg) {
	r.sendMsg(msg)
}
