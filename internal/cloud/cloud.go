// Package cloud contains the provider-neutral publish/delete reconciliation
// pipeline for disk images. The pipeline compares a request against the
// resources already present in the cloud account and performs only the
// missing steps, so re-running a publish converges without duplicate side
// effects. Provider specifics (AWS, Azure) live behind the Provider and
// DeleteProvider capability interfaces.
package cloud

import (
	"context"
)

// StorageObject identifies an uploaded object by its container and name.
type StorageObject struct {
	Container string
	Name      string
}

// Snapshot is an imported disk snapshot. For blob-style providers the
// uploaded blob doubles as the snapshot and ID holds the blob name.
type Snapshot struct {
	ID   string
	Name string
}

// Image is a registered machine image. SnapshotID references the snapshot
// backing the image's root device when the provider exposes one.
type Image struct {
	ID         string
	Name       string
	SnapshotID string
}

// Provider is the capability set the publish reconciler drives. All Find
// methods report a definitive "does not exist" as (nil, nil), never as an
// error; any other provider error propagates unchanged.
type Provider interface {
	// FindImageByName looks the image up by the request's image name.
	FindImageByName(ctx context.Context, req *PublishRequest) (*Image, error)

	// FindImageByTags looks the image up by the request's tag set. It is
	// only consulted when FindImageByName came up empty; providers without
	// image-level tag queries return (nil, nil).
	FindImageByTags(ctx context.Context, req *PublishRequest) (*Image, error)

	// FindSnapshot looks the snapshot (or blob) up by the request's
	// snapshot name, or by the tag set where the provider indexes by tags.
	FindSnapshot(ctx context.Context, req *PublishRequest) (*Snapshot, error)

	// FindObject looks the storage object up by container and object name.
	FindObject(ctx context.Context, req *PublishRequest) (*StorageObject, error)

	// Upload moves the source image into storage, creating the container
	// if needed, and applies the requested tags to the object.
	Upload(ctx context.Context, req *PublishRequest) (*StorageObject, error)

	// ImportSnapshot produces a snapshot from the uploaded object via the
	// provider's long-running import or copy operation, names and tags it,
	// and shares it with the request's snapshot accounts.
	ImportSnapshot(ctx context.Context, req *PublishRequest, obj *StorageObject) (*Snapshot, error)

	// RegisterImage registers a machine image from the snapshot using the
	// request's hardware descriptor and tags it.
	RegisterImage(ctx context.Context, req *PublishRequest, snapshot *Snapshot) (*Image, error)

	// ShareImage grants launch permission to the request's accounts and
	// groups. It must be a no-op when both lists are empty and safe to
	// call repeatedly.
	ShareImage(ctx context.Context, req *PublishRequest, image *Image) error
}

// DeleteProvider is the capability set the delete reconciler drives. The
// same absent-is-nil contract as Provider applies.
type DeleteProvider interface {
	// ResolveImage looks the image up by the request's image id, falling
	// back to the image name.
	ResolveImage(ctx context.Context, req *DeleteRequest) (*Image, error)

	// FindSnapshotByID looks a snapshot up by its provider-assigned id.
	FindSnapshotByID(ctx context.Context, id string) (*Snapshot, error)

	// ResolveSnapshot looks the snapshot up by the request's snapshot id,
	// falling back to the snapshot name.
	ResolveSnapshot(ctx context.Context, req *DeleteRequest) (*Snapshot, error)

	// DeregisterImage removes the image registration.
	DeregisterImage(ctx context.Context, image *Image) error

	// DeleteSnapshot deletes the snapshot.
	DeleteSnapshot(ctx context.Context, snapshot *Snapshot) error
}

// Service is implemented by the provider front ends.
type Service interface {
	Publish(ctx context.Context, req *PublishRequest) (*Image, error)
	Delete(ctx context.Context, req *DeleteRequest) (*DeleteResult, error)
}
