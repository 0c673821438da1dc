package messages

import (
	"github.com/aukilabs/voxelstore/octree"
)

const (
	MsgTypeError MsgType = "error_response"

	MsgTypePingRequest  MsgType = "ping_request"
	MsgTypePingResponse MsgType = "ping_response"

	MsgTypeRegionJoinRequest  MsgType = "region_join_request"
	MsgTypeRegionJoinResponse MsgType = "region_join_response"
	MsgTypeRegionState        MsgType = "region_state"

	MsgTypeParticipantJoinBroadcast  MsgType = "participant_join_broadcast"
	MsgTypeParticipantLeaveBroadcast MsgType = "participant_leave_broadcast"

	MsgTypeVoxelAddRequest      MsgType = "voxel_add_request"
	MsgTypeVoxelAddResponse     MsgType = "voxel_add_response"
	MsgTypeVoxelAddBroadcast    MsgType = "voxel_add_broadcast"
	MsgTypeVoxelGetRequest      MsgType = "voxel_get_request"
	MsgTypeVoxelGetResponse     MsgType = "voxel_get_response"
	MsgTypeVoxelRemoveRequest   MsgType = "voxel_remove_request"
	MsgTypeVoxelRemoveResponse  MsgType = "voxel_remove_response"
	MsgTypeVoxelRemoveBroadcast MsgType = "voxel_remove_broadcast"
	MsgTypeVoxelListRequest     MsgType = "voxel_list_request"
	MsgTypeVoxelListResponse    MsgType = "voxel_list_response"

	MsgTypeNodeListRequest  MsgType = "node_list_request"
	MsgTypeNodeListResponse MsgType = "node_list_response"
)

// ErrorCode describes why a request failed.
type ErrorCode string

const (
	ErrorCodeBadRequest          ErrorCode = "bad_request"
	ErrorCodeRegionNotJoined     ErrorCode = "region_not_joined"
	ErrorCodeRegionAlreadyJoined ErrorCode = "region_already_joined"
	ErrorCodeOutOfBounds         ErrorCode = "out_of_bounds"
	ErrorCodeAlreadyExists       ErrorCode = "already_exists"
	ErrorCodeNotFound            ErrorCode = "not_found"
	ErrorCodeDisabled            ErrorCode = "disabled"
)

// ErrorCodeFromAddResult returns the error code that matches a rejected
// insertion.
func ErrorCodeFromAddResult(r octree.AddResult) ErrorCode {
	switch r {
	case octree.OutOfBounds:
		return ErrorCodeOutOfBounds
	case octree.AlreadyExists:
		return ErrorCodeAlreadyExists
	default:
		return ErrorCodeBadRequest
	}
}

type Voxel struct {
	Type uint32 `json:"type"`
	Data string `json:"data,omitempty"`
}

type VoxelEntry struct {
	Position octree.Vector3 `json:"position"`
	Voxel    Voxel          `json:"voxel"`
}

// Request is a request that carries no data.
type Request struct {
	Header
}

type Response struct {
	Header
}

type ErrorResponse struct {
	Header
	Code ErrorCode `json:"code"`
}

type RegionJoinRequest struct {
	Header
	Region octree.Vector3 `json:"region"`
}

type RegionJoinResponse struct {
	Header
	Region        octree.Vector3 `json:"region"`
	RegionID      uint32         `json:"region_id"`
	RegionUUID    string         `json:"region_uuid"`
	RegionSize    int            `json:"region_size"`
	ParticipantID uint32         `json:"participant_id"`
}

type RegionState struct {
	Header
	Participants []uint32     `json:"participants"`
	Voxels       []VoxelEntry `json:"voxels"`
}

type ParticipantBroadcast struct {
	Header
	ParticipantID uint32 `json:"participant_id"`
}

type VoxelAddRequest struct {
	Header
	Position octree.Vector3 `json:"position"`
	Voxel    Voxel          `json:"voxel"`
}

type VoxelAddResponse struct {
	Header
	Position octree.Vector3 `json:"position"`
}

type VoxelAddBroadcast struct {
	Header
	ParticipantID uint32         `json:"participant_id"`
	Position      octree.Vector3 `json:"position"`
	Voxel         Voxel          `json:"voxel"`
}

// VoxelRequest targets a single position. It is used to get and remove
// voxels.
type VoxelRequest struct {
	Header
	Position octree.Vector3 `json:"position"`
}

type VoxelGetResponse struct {
	Header
	Position octree.Vector3 `json:"position"`
	Voxel    Voxel          `json:"voxel"`
}

type VoxelRemoveResponse struct {
	Header
	Position octree.Vector3 `json:"position"`
	Voxel    Voxel          `json:"voxel"`
}

type VoxelRemoveBroadcast struct {
	Header
	ParticipantID uint32         `json:"participant_id"`
	Position      octree.Vector3 `json:"position"`
}

type VoxelListResponse struct {
	Header
	Voxels []VoxelEntry `json:"voxels"`
}

type NodeListResponse struct {
	Header
	Nodes []octree.NodeInfo `json:"nodes"`
}
