package cloud

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Publish walks the idempotent four-stage pipeline: image resolution,
// snapshot resolution, object resolution/creation plus import and
// registration, and finally sharing. Each stage is skipped iff its target
// resource already resolves, so the least possible amount of work is done;
// sharing runs unconditionally so a re-published image still converges on
// the requested permissions.
//
// Two concurrent publishes for the same names can race their
// lookup-then-create steps; the cloud account is assumed to have no other
// writer.
func Publish(ctx context.Context, provider Provider, req *PublishRequest) (*Image, error) {
	logrus.Infof("Searching for image: %s", req.ImageName)
	image, err := provider.FindImageByName(ctx, req)
	if err != nil {
		return nil, err
	}
	if image == nil && len(req.Tags) > 0 {
		// Name is primary, tags are a fallback only.
		image, err = provider.FindImageByTags(ctx, req)
		if err != nil {
			return nil, err
		}
	}

	if image == nil {
		logrus.Infof("Image does not exist: %s", req.ImageName)
		logrus.Infof("Searching for snapshot: %s", req.SnapshotName)
		snapshot, err := provider.FindSnapshot(ctx, req)
		if err != nil {
			return nil, err
		}

		if snapshot == nil {
			logrus.Infof("Snapshot does not exist: %s", req.SnapshotName)
			logrus.Infof("Searching for object: %s/%s", req.Container, req.ObjectName)
			obj, err := provider.FindObject(ctx, req)
			if err != nil {
				return nil, err
			}

			if obj == nil {
				logrus.Infof("Object does not exist: %s", req.ObjectName)
				obj, err = provider.Upload(ctx, req)
				if err != nil {
					return nil, err
				}
			} else {
				logrus.Info("Object already exists")
			}

			snapshot, err = provider.ImportSnapshot(ctx, req, obj)
			if err != nil {
				return nil, err
			}
		} else {
			logrus.Infof("Snapshot already exists with id: %s", snapshot.ID)
		}

		image, err = provider.RegisterImage(ctx, req, snapshot)
		if err != nil {
			return nil, err
		}
	} else {
		logrus.Infof("Image already exists with id: %s", image.ID)
	}

	// Idempotent; a no-op when no accounts or groups were requested.
	if err := provider.ShareImage(ctx, req, image); err != nil {
		return nil, err
	}

	logrus.Infof("Image published: %s", image.ID)

	return image, nil
}
