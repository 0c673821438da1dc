package models

import (
	"sort"
	"sync"

	"github.com/aukilabs/voxelstore/octree"
)

// RegionStore holds the server regions. Regions are created on first use and
// indexed by their coordinates.
type RegionStore struct {
	// The edge length of the created regions. Defaults to DefaultRegionSize.
	RegionSize int

	// The minimum edge length of region octree nodes. Defaults to
	// DefaultNodeMinSize.
	NodeMinSize int

	initOnce sync.Once
	mutex    sync.RWMutex
	regions  map[octree.Vector3]*Region
	ids      SequentialIDGenerator
}

func (s *RegionStore) init() {
	s.regions = make(map[octree.Vector3]*Region)

	if s.RegionSize <= 0 {
		s.RegionSize = DefaultRegionSize
	}
	if s.NodeMinSize <= 0 {
		s.NodeMinSize = DefaultNodeMinSize
	}
}

func (s *RegionStore) NewID() uint32 {
	return s.ids.New()
}

// GetOrCreate returns the region at the given coordinates, creating it when
// it does not exist. The returned boolean reports whether the region has been
// created.
func (s *RegionStore) GetOrCreate(cords octree.Vector3) (*Region, bool) {
	s.initOnce.Do(s.init)

	if r, ok := s.Get(cords); ok {
		return r, false
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if r, ok := s.regions[cords]; ok {
		return r, false
	}

	r := NewRegion(s.ids.New(), cords, s.RegionSize, s.NodeMinSize)
	s.regions[cords] = r

	instrumentIncreaseRegionGauge()
	instrumentCountRegion()
	return r, true
}

func (s *RegionStore) Get(cords octree.Vector3) (*Region, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	r, ok := s.regions[cords]
	return r, ok
}

func (s *RegionStore) GetByUUID(v string) (*Region, bool) {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, r := range s.regions {
		if r.RegionUUID == v {
			return r, true
		}
	}
	return nil, false
}

// Remove deletes the region at the given coordinates with all its voxels.
func (s *RegionStore) Remove(cords octree.Vector3) bool {
	s.initOnce.Do(s.init)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	r, ok := s.regions[cords]
	if !ok {
		return false
	}

	delete(s.regions, cords)
	s.ids.Reuse(r.ID)

	instrumentDecreaseRegionGauge()
	instrumentSubVoxelGauge(r.VoxelCount())
	return true
}

// List returns the regions ordered by id.
func (s *RegionStore) List() []*Region {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	regions := make([]*Region, 0, len(s.regions))
	for _, r := range s.regions {
		regions = append(regions, r)
	}

	sort.Slice(regions, func(i, j int) bool {
		return regions[i].ID < regions[j].ID
	})
	return regions
}

func (s *RegionStore) Count() int {
	s.initOnce.Do(s.init)

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	return len(s.regions)
}
