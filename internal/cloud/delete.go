package cloud

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Delete tears a published image down in reverse order: resolve the image,
// extract its backing snapshot reference, deregister the image, then
// delete the snapshot unless SkipSnapshot is set. Neither resolution leg
// raises on "not found"; missing resources degrade to nil results.
func Delete(ctx context.Context, provider DeleteProvider, req *DeleteRequest) (*DeleteResult, error) {
	result := &DeleteResult{}

	logrus.Infof("Searching for image: %s", req.ImageID)
	image, err := provider.ResolveImage(ctx, req)
	if err != nil {
		return nil, err
	}

	var snapshot *Snapshot
	if image != nil {
		if image.SnapshotID == "" {
			logrus.Infof("Image %s does not reference a snapshot", image.ID)
		} else {
			snapshot, err = provider.FindSnapshotByID(ctx, image.SnapshotID)
			if err != nil {
				return nil, err
			}
		}

		logrus.Infof("Deregistering image %s (%s)", image.ID, image.Name)
		if err := provider.DeregisterImage(ctx, image); err != nil {
			return nil, err
		}
		result.ImageID = &image.ID
	} else {
		// The image is gone or was never registered; the snapshot may
		// still exist under the request's own identifiers.
		logrus.Infof("Image does not exist: %s", req.ImageID)
		logrus.Infof("Searching for snapshot: %s", req.SnapshotID)
		snapshot, err = provider.ResolveSnapshot(ctx, req)
		if err != nil {
			return nil, err
		}
		if snapshot == nil {
			logrus.Infof("Snapshot (%s) does not exist", req.SnapshotID)
		}
	}

	if snapshot != nil {
		if req.SkipSnapshot {
			logrus.Infof("Skipping snapshot (%s) deletion because skip_snapshot is set", snapshot.ID)
		} else {
			logrus.Infof("Deleting snapshot %s", snapshot.ID)
			if err := provider.DeleteSnapshot(ctx, snapshot); err != nil {
				return nil, err
			}
			result.SnapshotID = &snapshot.ID
		}
	}

	return result, nil
}
