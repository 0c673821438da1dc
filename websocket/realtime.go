package websocket

import (
	"context"
	"time"

	"github.com/aukilabs/voxelstore/changefeed"
	"github.com/aukilabs/voxelstore/featureflag"
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/models"
	"github.com/google/uuid"
	"golang.org/x/net/websocket"
)

// RealtimeHandler represents a service that manages a client connection and
// relays its voxel changes in realtime to the other participants of its
// region.
type RealtimeHandler struct {
	// The time a client is idle before being disconnected.
	ClientIdleTimeout time.Duration

	// The store that contains all the server regions.
	Regions *models.RegionStore

	FeatureFlags featureflag.FeatureFlag

	// The queue where voxel changes are published. Changes are not published
	// when nil.
	ChangeFeed chan<- changefeed.Change

	conn               *websocket.Conn
	currentRegion      *models.Region
	currentParticipant *models.Participant

	clientID string
}

func (h *RealtimeHandler) HandleConnect(conn *websocket.Conn) {
	h.clientID = conn.Request().Header.Get(HeaderClientID)
	if h.clientID == "" {
		h.clientID = uuid.NewString()
	}

	h.conn = conn
}

func (h *RealtimeHandler) HandlePing(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	var req messages.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	respond.Send(&messages.Response{
		Header: messages.NewHeader(messages.MsgTypePingResponse, req.RequestID),
	})
	return nil
}

func (h *RealtimeHandler) HandleRegionJoin(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	var req messages.RegionJoinRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.currentRegion != nil && h.currentRegion.Cords == req.Region {
		respondError(respond, req.RequestID, messages.ErrorCodeRegionAlreadyJoined)
		return nil
	}

	if h.currentParticipant != nil {
		h.leaveRegion()
	}

	region, _ := h.Regions.GetOrCreate(req.Region)

	participant := &models.Participant{
		ID:        region.NewParticipantID(),
		Responder: respond,
	}
	region.AddParticipant(participant)

	respond.Send(&messages.RegionJoinResponse{
		Header:        messages.NewHeader(messages.MsgTypeRegionJoinResponse, req.RequestID),
		Region:        region.Cords,
		RegionID:      region.ID,
		RegionUUID:    region.RegionUUID,
		RegionSize:    region.Size(),
		ParticipantID: participant.ID,
	})

	h.currentRegion = region
	h.currentParticipant = participant

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableRegionState, func() {
		respond.Send(&messages.RegionState{
			Header:       messages.NewHeader(messages.MsgTypeRegionState, 0),
			Participants: models.ParticipantIDs(region.GetParticipants()),
			Voxels:       models.VoxelEntriesToMessage(region.Voxels()),
		})
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantJoinBroadcast, func() {
		region.Broadcast(participant, &messages.ParticipantBroadcast{
			Header:        messages.NewHeader(messages.MsgTypeParticipantJoinBroadcast, 0),
			ParticipantID: participant.ID,
		})
	})

	return nil
}

func (h *RealtimeHandler) HandleVoxelAdd(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	var req messages.VoxelAddRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	region := h.currentRegion
	participant := h.currentParticipant
	if region == nil || participant == nil {
		respondError(respond, req.RequestID, messages.ErrorCodeRegionNotJoined)
		return nil
	}

	voxel := models.NewVoxelFromMessage(req.Voxel)
	if res := region.AddVoxel(req.Position, voxel); !res.Ok() {
		respondError(respond, req.RequestID, messages.ErrorCodeFromAddResult(res))
		return nil
	}

	respond.Send(&messages.VoxelAddResponse{
		Header:   messages.NewHeader(messages.MsgTypeVoxelAddResponse, req.RequestID),
		Position: req.Position,
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableVoxelAddBroadcast, func() {
		region.Broadcast(participant, &messages.VoxelAddBroadcast{
			Header:        messages.NewHeader(messages.MsgTypeVoxelAddBroadcast, 0),
			ParticipantID: participant.ID,
			Position:      req.Position,
			Voxel:         req.Voxel,
		})
	})

	changefeed.Publish(h.ChangeFeed, changefeed.NewAddChange(region, req.Position, voxel))
	return nil
}

func (h *RealtimeHandler) HandleVoxelGet(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	var req messages.VoxelRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	region := h.currentRegion
	if region == nil {
		respondError(respond, req.RequestID, messages.ErrorCodeRegionNotJoined)
		return nil
	}

	voxel, ok := region.Voxel(req.Position)
	if !ok {
		respondError(respond, req.RequestID, messages.ErrorCodeNotFound)
		return nil
	}

	respond.Send(&messages.VoxelGetResponse{
		Header:   messages.NewHeader(messages.MsgTypeVoxelGetResponse, req.RequestID),
		Position: req.Position,
		Voxel:    voxel.ToMessage(),
	})
	return nil
}

func (h *RealtimeHandler) HandleVoxelRemove(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	var req messages.VoxelRequest
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	region := h.currentRegion
	participant := h.currentParticipant
	if region == nil || participant == nil {
		respondError(respond, req.RequestID, messages.ErrorCodeRegionNotJoined)
		return nil
	}

	voxel, ok := region.TakeVoxel(req.Position)
	if !ok {
		respondError(respond, req.RequestID, messages.ErrorCodeNotFound)
		return nil
	}

	respond.Send(&messages.VoxelRemoveResponse{
		Header:   messages.NewHeader(messages.MsgTypeVoxelRemoveResponse, req.RequestID),
		Position: req.Position,
		Voxel:    voxel.ToMessage(),
	})

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableVoxelRemoveBroadcast, func() {
		region.Broadcast(participant, &messages.VoxelRemoveBroadcast{
			Header:        messages.NewHeader(messages.MsgTypeVoxelRemoveBroadcast, 0),
			ParticipantID: participant.ID,
			Position:      req.Position,
		})
	})

	changefeed.Publish(h.ChangeFeed, changefeed.NewRemoveChange(region, req.Position))
	return nil
}

func (h *RealtimeHandler) HandleVoxelList(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	var req messages.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	region := h.currentRegion
	if region == nil {
		respondError(respond, req.RequestID, messages.ErrorCodeRegionNotJoined)
		return nil
	}

	respond.Send(&messages.VoxelListResponse{
		Header: messages.NewHeader(messages.MsgTypeVoxelListResponse, req.RequestID),
		Voxels: models.VoxelEntriesToMessage(region.Voxels()),
	})
	return nil
}

func (h *RealtimeHandler) HandleNodeList(ctx context.Context, respond models.Responder, msg messages.Msg) error {
	var req messages.Request
	if err := msg.DataTo(&req); err != nil {
		return err
	}

	if h.FeatureFlags.IsSet(featureflag.FlagDisableNodeInspection) {
		respondError(respond, req.RequestID, messages.ErrorCodeDisabled)
		return nil
	}

	region := h.currentRegion
	if region == nil {
		respondError(respond, req.RequestID, messages.ErrorCodeRegionNotJoined)
		return nil
	}

	respond.Send(&messages.NodeListResponse{
		Header: messages.NewHeader(messages.MsgTypeNodeListResponse, req.RequestID),
		Nodes:  region.Nodes(),
	})
	return nil
}

func (h *RealtimeHandler) HandleDisconnect(_ error) {
	if h.currentParticipant != nil {
		h.leaveRegion()
	}
}

func (h *RealtimeHandler) Receiver() Receiver {
	return func() (messages.Msg, int, error) {
		return Receive(h.conn)
	}
}

func (h *RealtimeHandler) Sender() Sender {
	return func(msg messages.Msg) (int, error) {
		return Send(h.conn, msg)
	}
}

func (h *RealtimeHandler) Close() {
}

func (h *RealtimeHandler) IdleTimeout() time.Duration {
	return h.ClientIdleTimeout
}

func (h *RealtimeHandler) GetRegions() *models.RegionStore {
	return h.Regions
}

func (h *RealtimeHandler) CurrentRegion() *models.Region {
	return h.currentRegion
}

func (h *RealtimeHandler) CurrentParticipant() *models.Participant {
	return h.currentParticipant
}

func (h *RealtimeHandler) GetClientID() string {
	return h.clientID
}

// Regions outlive their participants. Voxels stay in memory once the last
// participant left.
func (h *RealtimeHandler) leaveRegion() {
	region := h.currentRegion
	participant := h.currentParticipant

	if participant == nil || region == nil {
		return
	}

	region.RemoveParticipant(participant)

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableParticipantLeaveBroadcast, func() {
		region.Broadcast(participant, &messages.ParticipantBroadcast{
			Header:        messages.NewHeader(messages.MsgTypeParticipantLeaveBroadcast, 0),
			ParticipantID: participant.ID,
		})
	})

	h.currentParticipant = nil
	h.currentRegion = nil
}

func respondError(respond models.Responder, requestID uint32, code messages.ErrorCode) {
	respond.Send(&messages.ErrorResponse{
		Header: messages.NewHeader(messages.MsgTypeError, requestID),
		Code:   code,
	})
}
