package messages

import (
	"testing"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/voxelstore/octree"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	msg, err := Encode(VoxelAddRequest{
		Header:   NewHeader(MsgTypeVoxelAddRequest, 7),
		Position: octree.NewVector3(1, 2, 3),
		Voxel:    Voxel{Type: 4, Data: "oak"},
	})
	require.NoError(t, err)
	require.Equal(t, MsgTypeVoxelAddRequest, msg.Type)
	require.Equal(t, uint32(7), msg.RequestID)
	require.Contains(t, string(msg.Data), `"type":"voxel_add_request"`)
	require.Contains(t, string(msg.Data), `"position":{"x":1,"y":2,"z":3}`)

	decoded, err := Decode(msg.Data)
	require.NoError(t, err)
	require.Equal(t, msg.Type, decoded.Type)
	require.Equal(t, msg.RequestID, decoded.RequestID)

	var req VoxelAddRequest
	require.NoError(t, decoded.DataTo(&req))
	require.Equal(t, octree.NewVector3(1, 2, 3), req.Position)
	require.Equal(t, Voxel{Type: 4, Data: "oak"}, req.Voxel)
}

func TestDecode(t *testing.T) {
	t.Run("rejects invalid json", func(t *testing.T) {
		_, err := Decode([]byte("{"))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeMsgInvalid))
	})

	t.Run("rejects messages without type", func(t *testing.T) {
		_, err := Decode([]byte(`{"request_id":1}`))
		require.Error(t, err)
		require.True(t, errors.IsType(err, ErrTypeMsgInvalid))
	})
}

func TestMsgTypeString(t *testing.T) {
	require.Equal(t, "unknown", Msg{}.TypeString())
	require.Equal(t, "ping_request", Msg{Type: MsgTypePingRequest}.TypeString())
}

func TestErrorCodeFromAddResult(t *testing.T) {
	require.Equal(t, ErrorCodeOutOfBounds, ErrorCodeFromAddResult(octree.OutOfBounds))
	require.Equal(t, ErrorCodeAlreadyExists, ErrorCodeFromAddResult(octree.AlreadyExists))
	require.Equal(t, ErrorCodeBadRequest, ErrorCodeFromAddResult(octree.Added))
}
