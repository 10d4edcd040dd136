package state

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	archetype "github.com/goliatone/go-archetype"
	"lukechampine.com/blake3"
)

var ErrNotFound = errors.New("state: document not found")

var ErrETagMismatch = errors.New("state: etag mismatch")

// Meta is storage-owned metadata used for audit and concurrency control.
type Meta struct {
	SnapshotID string            `json:"snapshot_id,omitempty"`
	ETag       string            `json:"etag,omitempty"`
	UpdatedAt  time.Time         `json:"updated_at,omitempty"`
	Extra      map[string]string `json:"extra,omitempty"`
}

// Store loads and saves the encoded document of one asset.
//
// Save replaces the stored document. When meta.ETag is set the save fails
// with ErrETagMismatch unless it equals the ETag of the stored document.
// The returned Meta carries the ETag of the saved bytes.
type Store interface {
	Load(ctx context.Context, id archetype.AssetID) (data []byte, meta Meta, ok bool, err error)
	Save(ctx context.Context, id archetype.AssetID, data []byte, meta Meta) (Meta, error)
	Delete(ctx context.Context, id archetype.AssetID) error
	List(ctx context.Context) ([]archetype.AssetID, error)
}

// ComputeETag returns the hex encoded BLAKE3 digest of data.
func ComputeETag(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// stamp prepares meta for storing data: the ETag is recomputed and a
// missing UpdatedAt is set to now.
func stamp(data []byte, meta Meta) Meta {
	out := cloneMeta(meta)
	out.ETag = ComputeETag(data)
	if out.UpdatedAt.IsZero() {
		out.UpdatedAt = time.Now().UTC()
	}
	return out
}

func mergeMeta(base, override Meta) Meta {
	out := base
	if override.SnapshotID != "" {
		out.SnapshotID = override.SnapshotID
	}
	if override.ETag != "" {
		out.ETag = override.ETag
	}
	if !override.UpdatedAt.IsZero() {
		out.UpdatedAt = override.UpdatedAt
	}
	if override.Extra != nil {
		out.Extra = override.Extra
	}
	return out
}

func cloneMeta(meta Meta) Meta {
	out := meta
	if meta.Extra == nil {
		return out
	}
	out.Extra = make(map[string]string, len(meta.Extra))
	for k, v := range meta.Extra {
		out.Extra[k] = v
	}
	return out
}
