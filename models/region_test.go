package models

import (
	"sync"
	"testing"

	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/octree"
	"github.com/stretchr/testify/require"
)

type testResponder struct {
	mutex sync.Mutex
	msgs  []messages.Msg
}

func (r *testResponder) Send(m messages.TypedMsg) {
	msg, err := messages.Encode(m)
	if err != nil {
		panic(err)
	}
	r.SendMsg(msg)
}

func (r *testResponder) SendMsg(msg messages.Msg) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.msgs = append(r.msgs, msg)
}

func (r *testResponder) Msgs() []messages.Msg {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return append([]messages.Msg(nil), r.msgs...)
}

func TestNewRegion(t *testing.T) {
	region := NewRegion(42, octree.NewVector3(1, 0, -1), 16, 2)
	require.Equal(t, uint32(42), region.ID)
	require.NotEmpty(t, region.RegionUUID)
	require.Equal(t, octree.NewVector3(1, 0, -1), region.Cords)
	require.Equal(t, 16, region.Size())
	require.Zero(t, region.VoxelCount())
}

func TestRegionOddSize(t *testing.T) {
	region := NewRegion(1, octree.Vector3{}, 10, 1)

	for x := 0; x < 10; x++ {
		for y := 0; y < 10; y++ {
			for z := 0; z < 10; z++ {
				require.Equal(t, octree.Added, region.AddVoxel(octree.NewVector3(x, y, z), Voxel{Type: uint32(x)}))
			}
		}
	}

	require.Equal(t, 1000, region.VoxelCount())
	require.Len(t, region.Voxels(), 1000)

	v, ok := region.Voxel(octree.NewVector3(9, 9, 9))
	require.True(t, ok)
	require.Equal(t, Voxel{Type: 9}, v)
}

func TestRegionAddVoxel(t *testing.T) {
	region := NewRegion(1, octree.Vector3{}, 8, 1)
	p := octree.NewVector3(1, 2, 3)

	require.Equal(t, octree.Added, region.AddVoxel(p, Voxel{Type: 1}))
	require.Equal(t, octree.AlreadyExists, region.AddVoxel(p, Voxel{Type: 2}))
	require.Equal(t, octree.OutOfBounds, region.AddVoxel(octree.NewVector3(8, 0, 0), Voxel{Type: 3}))
	require.Equal(t, 1, region.VoxelCount())
	require.True(t, region.HasVoxel(p))

	v, ok := region.Voxel(p)
	require.True(t, ok)
	require.Equal(t, Voxel{Type: 1}, v)
}

func TestRegionRemoveVoxel(t *testing.T) {
	region := NewRegion(1, octree.Vector3{}, 8, 1)
	p := octree.NewVector3(1, 2, 3)
	region.AddVoxel(p, Voxel{Type: 1, Data: "a"})

	v, ok := region.TakeVoxel(p)
	require.True(t, ok)
	require.Equal(t, Voxel{Type: 1, Data: "a"}, v)
	require.False(t, region.RemoveVoxel(p))
	require.Zero(t, region.VoxelCount())
}

func TestRegionVoxels(t *testing.T) {
	region := NewRegion(1, octree.Vector3{}, 8, 1)
	for i := 0; i < 10; i++ {
		region.AddVoxel(octree.NewVector3(i%8, i/8, 0), Voxel{Type: uint32(i)})
	}

	voxels := region.Voxels()
	require.Len(t, voxels, 10)
	require.Equal(t, region.VoxelCount(), len(voxels))

	var positions int
	for _, n := range region.Nodes() {
		positions += len(n.Positions)
	}
	require.Equal(t, 10, positions)
}

func TestRegionConcurrentAccess(t *testing.T) {
	region := NewRegion(1, octree.Vector3{}, 16, 1)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(x int) {
			defer wg.Done()

			for y := 0; y < 16; y++ {
				for z := 0; z < 16; z++ {
					p := octree.NewVector3(x, y, z)
					region.AddVoxel(p, Voxel{Type: uint32(x)})
					region.Voxel(p)
					if z%2 == 0 {
						region.RemoveVoxel(p)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	require.Equal(t, 8*16*8, region.VoxelCount())
	require.Len(t, region.Voxels(), region.VoxelCount())
}

func TestRegionParticipants(t *testing.T) {
	region := NewRegion(1, octree.Vector3{}, 8, 1)

	a := &Participant{ID: region.NewParticipantID(), Responder: &testResponder{}}
	b := &Participant{ID: region.NewParticipantID(), Responder: &testResponder{}}
	region.AddParticipant(b)
	region.AddParticipant(a)

	require.Equal(t, 2, region.ParticipantCount())
	require.Equal(t, []uint32{a.ID, b.ID}, ParticipantIDs(region.GetParticipants()))

	region.RemoveParticipant(a)
	require.Equal(t, 1, region.ParticipantCount())
	require.Equal(t, a.ID, region.NewParticipantID())
}

func TestRegionBroadcast(t *testing.T) {
	region := NewRegion(1, octree.Vector3{}, 8, 1)

	senderResponder := &testResponder{}
	sender := &Participant{ID: 1, Responder: senderResponder}
	receiverResponder := &testResponder{}
	receiver := &Participant{ID: 2, Responder: receiverResponder}
	region.AddParticipant(sender)
	region.AddParticipant(receiver)

	region.Broadcast(sender, messages.ParticipantBroadcast{
		Header:        messages.NewHeader(messages.MsgTypeParticipantJoinBroadcast, 0),
		ParticipantID: sender.ID,
	})
	require.Empty(t, senderResponder.Msgs())
	require.Len(t, receiverResponder.Msgs(), 1)
	require.Equal(t, messages.MsgTypeParticipantJoinBroadcast, receiverResponder.Msgs()[0].Type)

	region.Broadcast(nil, messages.ParticipantBroadcast{
		Header: messages.NewHeader(messages.MsgTypeParticipantLeaveBroadcast, 0),
	})
	require.Len(t, senderResponder.Msgs(), 1)
	require.Len(t, receiverResponder.Msgs(), 2)
}
