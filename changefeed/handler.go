// Package changefeed forwards voxel mutations to an external HTTP endpoint.
package changefeed

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"io"
	"net/http"
	"time"

	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/aukilabs/voxelstore/messages"
	"github.com/aukilabs/voxelstore/models"
	"github.com/aukilabs/voxelstore/octree"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/segmentio/encoding/json"
)

const (
	OperationAdd    = "add"
	OperationRemove = "remove"

	// The header that contains the Keccak-256 hash of the request body.
	HeaderHash = "X-Voxelstore-Hash"

	// The header that contains the signature of the hash.
	HeaderSignature = "X-Voxelstore-Signature"

	// The type of the errors returned when the endpoint rejects a change.
	ErrTypeRejected = "changefeed_rejected"

	defaultTimeout = time.Second * 10
)

// Change describes a voxel mutation.
type Change struct {
	Operation  string          `json:"operation"`
	RegionUUID string          `json:"region_uuid"`
	Region     octree.Vector3  `json:"region"`
	Position   octree.Vector3  `json:"position"`
	Voxel      *messages.Voxel `json:"voxel,omitempty"`

	// Unix time in milliseconds.
	Timestamp int64 `json:"timestamp"`
}

func NewAddChange(r *models.Region, p octree.Vector3, v models.Voxel) Change {
	voxel := v.ToMessage()
	return Change{
		Operation:  OperationAdd,
		RegionUUID: r.RegionUUID,
		Region:     r.Cords,
		Position:   p,
		Voxel:      &voxel,
		Timestamp:  time.Now().UnixMilli(),
	}
}

func NewRemoveChange(r *models.Region, p octree.Vector3) Change {
	return Change{
		Operation:  OperationRemove,
		RegionUUID: r.RegionUUID,
		Region:     r.Cords,
		Position:   p,
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Publish queues a change without blocking. It reports false when the change
// has been dropped because the queue is full or nil.
func Publish(changes chan<- Change, c Change) bool {
	if changes == nil {
		return false
	}

	select {
	case changes <- c:
		return true
	default:
		instrumentChangeDropped()
		return false
	}
}

// Handler forwards the changes received on a channel to an HTTP endpoint.
type Handler struct {
	Endpoint string

	// The buffered channel where changes are queued.
	Changes chan Change

	// The key used to sign change payloads.
	PrivateKey *ecdsa.PrivateKey

	// The transport used to send changes. Defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// HandleChanges starts forwarding changes in order until the given context is
// canceled.
func (h Handler) HandleChanges(ctx context.Context) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return

			case c := <-h.Changes:
				if err := h.Forward(ctx, c); err != nil {
					logs.WithTag("endpoint", h.Endpoint).
						WithTag("operation", c.Operation).
						WithTag("region_uuid", c.RegionUUID).
						WithTag("position", c.Position).
						Warn(errors.New("forwarding change failed").Wrap(err))
				}
			}
		}
	}()
}

// Forward sends a change to the endpoint.
func (h Handler) Forward(ctx context.Context, c Change) error {
	return instrumentChangeSend(h.Endpoint, func() error {
		body, err := json.Marshal(c)
		if err != nil {
			return errors.New("encoding change failed").Wrap(err)
		}

		hash, signature, err := Sign(body, h.PrivateKey)
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.Endpoint, bytes.NewReader(body))
		if err != nil {
			return errors.New("creating change request failed").Wrap(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderHash, hexutil.Encode(hash))
		req.Header.Set(HeaderSignature, hexutil.Encode(signature))

		client := http.Client{
			Transport: h.Transport,
			Timeout:   defaultTimeout,
		}

		res, err := client.Do(req)
		if err != nil {
			return errors.New("sending change failed").Wrap(err)
		}
		defer res.Body.Close()
		io.Copy(io.Discard, res.Body)

		if res.StatusCode >= http.StatusMultipleChoices {
			return errors.New("change rejected").
				WithType(ErrTypeRejected).
				WithTag("status_code", res.StatusCode)
		}
		return nil
	})
}
