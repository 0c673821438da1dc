package models

import (
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/octree"
)

// Voxel is the value stored at a region position.
type Voxel struct {
	// The block type. Its meaning is defined by clients.
	Type uint32

	// Opaque client data.
	Data string
}

func NewVoxelFromMessage(v messages.Voxel) Voxel {
	return Voxel{
		Type: v.Type,
		Data: v.Data,
	}
}

func (v Voxel) ToMessage() messages.Voxel {
	return messages.Voxel{
		Type: v.Type,
		Data: v.Data,
	}
}

// VoxelEntry is a voxel with its position.
type VoxelEntry struct {
	Position octree.Vector3
	Voxel    Voxel
}

func (e VoxelEntry) ToMessage() messages.VoxelEntry {
	return messages.VoxelEntry{
		Position: e.Position,
		Voxel:    e.Voxel.ToMessage(),
	}
}

func VoxelEntriesToMessage(entries []VoxelEntry) []messages.VoxelEntry {
	res := make([]messages.VoxelEntry, len(entries))
	for i, e := range entries {
		res[i] = e.ToMessage()
	}
	return res
}

func newVoxelEntries(entries []octree.Entry[Voxel]) []VoxelEntry {
	res := make([]VoxelEntry, len(entries))
	for i, e := range entries {
		res[i] = VoxelEntry{
			Position: e.Position,
			Voxel:    e.Value,
		}
	}
	return res
}
