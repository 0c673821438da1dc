package http

import (
	"io"
	"net/http"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxelstore/changefeed"
	"github.com/aukilabs/voxelstore/featureflag"
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/models"
	"github.com/aukilabs/voxelstore/octree"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/segmentio/encoding/json"
)

const maxVoxelBodySize = 1 << 16

// RegionSummary describes a region.
type RegionSummary struct {
	ID               uint32         `json:"id"`
	RegionUUID       string         `json:"region_uuid"`
	Region           octree.Vector3 `json:"region"`
	Size             int            `json:"size"`
	VoxelCount       int            `json:"voxel_count"`
	ParticipantCount int            `json:"participant_count"`
}

type VoxelList struct {
	Voxels []messages.VoxelEntry `json:"voxels"`
}

type NodeList struct {
	Nodes []octree.NodeInfo `json:"nodes"`
}

type ErrorBody struct {
	Error messages.ErrorCode `json:"error"`
}

// RegionHandler serves the REST API to read and edit region voxels. Voxel
// changes are broadcasted to the region participants.
type RegionHandler struct {
	Regions      *models.RegionStore
	FeatureFlags featureflag.FeatureFlag

	// The queue where voxel changes are published. Changes are not published
	// when nil.
	ChangeFeed chan<- changefeed.Change
}

// Router returns the routes of the API, under /regions.
func (h RegionHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/regions", func(r chi.Router) {
		r.Get("/", h.handleListRegions)
		r.Get("/uuid/{uuid}", h.handleGetRegionByUUID)

		r.Route("/{region}", func(r chi.Router) {
			r.Get("/voxels", h.handleListVoxels)
			r.Get("/voxels/{position}", h.handleGetVoxel)
			r.Put("/voxels/{position}", h.handlePutVoxel)
			r.Delete("/voxels/{position}", h.handleDeleteVoxel)
			r.Get("/nodes", h.handleListNodes)
		})
	})

	return r
}

func (h RegionHandler) handleListRegions(w http.ResponseWriter, r *http.Request) {
	regions := h.Regions.List()

	res := make([]RegionSummary, len(regions))
	for i, region := range regions {
		res[i] = newRegionSummary(region)
	}

	writeJSON(w, http.StatusOK, res)
}

func (h RegionHandler) handleGetRegionByUUID(w http.ResponseWriter, r *http.Request) {
	region, ok := h.Regions.GetByUUID(chi.URLParam(r, "uuid"))
	if !ok {
		writeError(w, http.StatusNotFound, messages.ErrorCodeNotFound)
		return
	}

	writeJSON(w, http.StatusOK, newRegionSummary(region))
}

func newRegionSummary(r *models.Region) RegionSummary {
	return RegionSummary{
		ID:               r.ID,
		RegionUUID:       r.RegionUUID,
		Region:           r.Cords,
		Size:             r.Size(),
		VoxelCount:       r.VoxelCount(),
		ParticipantCount: r.ParticipantCount(),
	}
}

func (h RegionHandler) handleListVoxels(w http.ResponseWriter, r *http.Request) {
	region, ok := h.region(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, VoxelList{
		Voxels: models.VoxelEntriesToMessage(region.Voxels()),
	})
}

func (h RegionHandler) handleGetVoxel(w http.ResponseWriter, r *http.Request) {
	region, ok := h.region(w, r)
	if !ok {
		return
	}

	p, ok := position(w, r)
	if !ok {
		return
	}

	voxel, ok := region.Voxel(p)
	if !ok {
		writeError(w, http.StatusNotFound, messages.ErrorCodeNotFound)
		return
	}

	writeJSON(w, http.StatusOK, messages.VoxelEntry{
		Position: p,
		Voxel:    voxel.ToMessage(),
	})
}

func (h RegionHandler) handlePutVoxel(w http.ResponseWriter, r *http.Request) {
	cords, ok := regionCords(w, r)
	if !ok {
		return
	}

	p, ok := position(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxVoxelBodySize))
	if err != nil {
		logs.WithTag("path", r.URL.Path).
			Warn(errors.New("reading body failed").Wrap(err))
		writeError(w, http.StatusBadRequest, messages.ErrorCodeBadRequest)
		return
	}

	var v messages.Voxel
	if err := json.Unmarshal(body, &v); err != nil {
		writeError(w, http.StatusBadRequest, messages.ErrorCodeBadRequest)
		return
	}

	region, _ := h.Regions.GetOrCreate(cords)
	voxel := models.NewVoxelFromMessage(v)

	switch res := region.AddVoxel(p, voxel); res {
	case octree.Added:

	case octree.AlreadyExists:
		writeError(w, http.StatusConflict, messages.ErrorCodeFromAddResult(res))
		return

	default:
		writeError(w, http.StatusUnprocessableEntity, messages.ErrorCodeFromAddResult(res))
		return
	}

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableVoxelAddBroadcast, func() {
		region.Broadcast(nil, &messages.VoxelAddBroadcast{
			Header:   messages.NewHeader(messages.MsgTypeVoxelAddBroadcast, 0),
			Position: p,
			Voxel:    v,
		})
	})

	changefeed.Publish(h.ChangeFeed, changefeed.NewAddChange(region, p, voxel))

	writeJSON(w, http.StatusCreated, messages.VoxelEntry{
		Position: p,
		Voxel:    v,
	})
}

func (h RegionHandler) handleDeleteVoxel(w http.ResponseWriter, r *http.Request) {
	region, ok := h.region(w, r)
	if !ok {
		return
	}

	p, ok := position(w, r)
	if !ok {
		return
	}

	voxel, ok := region.TakeVoxel(p)
	if !ok {
		writeError(w, http.StatusNotFound, messages.ErrorCodeNotFound)
		return
	}

	h.FeatureFlags.IfNotSet(featureflag.FlagDisableVoxelRemoveBroadcast, func() {
		region.Broadcast(nil, &messages.VoxelRemoveBroadcast{
			Header:   messages.NewHeader(messages.MsgTypeVoxelRemoveBroadcast, 0),
			Position: p,
		})
	})

	changefeed.Publish(h.ChangeFeed, changefeed.NewRemoveChange(region, p))

	writeJSON(w, http.StatusOK, messages.VoxelEntry{
		Position: p,
		Voxel:    voxel.ToMessage(),
	})
}

func (h RegionHandler) handleListNodes(w http.ResponseWriter, r *http.Request) {
	if h.FeatureFlags.IsSet(featureflag.FlagDisableNodeInspection) {
		writeError(w, http.StatusNotFound, messages.ErrorCodeDisabled)
		return
	}

	region, ok := h.region(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, NodeList{
		Nodes: region.Nodes(),
	})
}

// region returns the region targeted by the request. Regions are not created
// on reads.
func (h RegionHandler) region(w http.ResponseWriter, r *http.Request) (*models.Region, bool) {
	cords, ok := regionCords(w, r)
	if !ok {
		return nil, false
	}

	region, ok := h.Regions.Get(cords)
	if !ok {
		writeError(w, http.StatusNotFound, messages.ErrorCodeNotFound)
		return nil, false
	}
	return region, true
}

func regionCords(w http.ResponseWriter, r *http.Request) (octree.Vector3, bool) {
	return vectorParam(w, r, "region")
}

func position(w http.ResponseWriter, r *http.Request) (octree.Vector3, bool) {
	return vectorParam(w, r, "position")
}

func vectorParam(w http.ResponseWriter, r *http.Request, name string) (octree.Vector3, bool) {
	v, err := octree.ParseVector3(chi.URLParam(r, name))
	if err != nil {
		writeError(w, http.StatusBadRequest, messages.ErrorCodeBadRequest)
		return octree.Vector3{}, false
	}
	return v, true
}

func writeError(w http.ResponseWriter, status int, code messages.ErrorCode) {
	writeJSON(w, status, ErrorBody{Error: code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		logs.Warn(errors.New("encoding response failed").Wrap(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}
