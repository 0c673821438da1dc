package models

import (
	"sort"
	"sync"

	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/octree"
	"github.com/google/uuid"
)

const (
	// The default edge length of a region, in voxels.
	DefaultRegionSize = 32

	// The default minimum edge length of a region octree node.
	DefaultNodeMinSize = 1
)

// Region represents a cubic area of voxels shared by participants. Voxel
// positions are relative to the region.
type Region struct {
	ID         uint32
	RegionUUID string
	Cords      octree.Vector3

	voxelMutex sync.RWMutex
	voxels     *octree.Octree[Voxel]

	participantIDs   SequentialIDGenerator
	participantMutex sync.RWMutex
	participants     map[uint32]*Participant
}

func NewRegion(id uint32, cords octree.Vector3, size, nodeMinSize int) *Region {
	return &Region{
		ID:           id,
		RegionUUID:   uuid.New().String(),
		Cords:        cords,
		voxels:       octree.New[Voxel](cords, size, nodeMinSize),
		participants: make(map[uint32]*Participant),
	}
}

// Size returns the edge length of the region.
func (r *Region) Size() int {
	return r.voxels.Size()
}

// AddVoxel stores a voxel at the given position. Existing voxels are not
// replaced.
func (r *Region) AddVoxel(p octree.Vector3, v Voxel) octree.AddResult {
	r.voxelMutex.Lock()
	defer r.voxelMutex.Unlock()

	res := r.voxels.Add(v, p)
	instrumentVoxelOperation(voxelAddOperation, res.String())

	if res.Ok() {
		instrumentIncreaseVoxelGauge()
	} else {
		logs.WithTag("region_uuid", r.RegionUUID).
			WithTag("region", r.Cords).
			WithTag("position", p).
			WithTag("result", res).
			Debug("voxel not added")
	}
	return res
}

func (r *Region) Voxel(p octree.Vector3) (Voxel, bool) {
	r.voxelMutex.RLock()
	defer r.voxelMutex.RUnlock()

	return r.voxels.Get(p)
}

func (r *Region) HasVoxel(p octree.Vector3) bool {
	r.voxelMutex.RLock()
	defer r.voxelMutex.RUnlock()

	return r.voxels.Exists(p)
}

// RemoveVoxel removes the voxel at the given position and reports whether
// there was one.
func (r *Region) RemoveVoxel(p octree.Vector3) bool {
	_, ok := r.TakeVoxel(p)
	return ok
}

// TakeVoxel removes the voxel at the given position and returns it.
func (r *Region) TakeVoxel(p octree.Vector3) (Voxel, bool) {
	r.voxelMutex.Lock()
	defer r.voxelMutex.Unlock()

	v, ok := r.voxels.Take(p)
	if ok {
		instrumentVoxelOperation(voxelRemoveOperation, "removed")
		instrumentDecreaseVoxelGauge()
	} else {
		instrumentVoxelOperation(voxelRemoveOperation, "not_found")
	}
	return v, ok
}

// Voxels returns a snapshot of the region voxels.
func (r *Region) Voxels() []VoxelEntry {
	r.voxelMutex.RLock()
	defer r.voxelMutex.RUnlock()

	return newVoxelEntries(r.voxels.GetAllWithCords())
}

func (r *Region) VoxelCount() int {
	r.voxelMutex.RLock()
	defer r.voxelMutex.RUnlock()

	return r.voxels.Count()
}

// Nodes returns the geometry of the octree nodes that hold the region
// voxels.
func (r *Region) Nodes() []octree.NodeInfo {
	r.voxelMutex.RLock()
	defer r.voxelMutex.RUnlock()

	return r.voxels.Nodes()
}

func (r *Region) NewParticipantID() uint32 {
	return r.participantIDs.New()
}

func (r *Region) AddParticipant(p *Participant) {
	r.participantMutex.Lock()
	defer r.participantMutex.Unlock()

	r.participants[p.ID] = p
}

func (r *Region) RemoveParticipant(p *Participant) {
	r.participantMutex.Lock()
	defer r.participantMutex.Unlock()

	if _, ok := r.participants[p.ID]; !ok {
		return
	}

	delete(r.participants, p.ID)
	r.participantIDs.Reuse(p.ID)
}

// GetParticipants returns the region participants ordered by id.
func (r *Region) GetParticipants() []*Participant {
	r.participantMutex.RLock()
	defer r.participantMutex.RUnlock()

	participants := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		participants = append(participants, p)
	}

	sort.Slice(participants, func(i, j int) bool {
		return participants[i].ID < participants[j].ID
	})
	return participants
}

func (r *Region) ParticipantCount() int {
	r.participantMutex.RLock()
	defer r.participantMutex.RUnlock()

	return len(r.participants)
}

// Broadcast sends the given message to all the participants except the
// sender. sender can be nil.
func (r *Region) Broadcast(sender *Participant, typedMsg messages.TypedMsg) {
	msg, err := messages.Encode(typedMsg)
	if err != nil {
		logs.WithTag("message", typedMsg).Debug(err)
		return
	}

	r.participantMutex.RLock()
	defer r.participantMutex.RUnlock()

	for _, p := range r.participants {
		if p == sender {
			continue
		}
		p.Responder.SendMsg(msg)
	}
}
