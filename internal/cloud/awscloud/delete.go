package awscloud

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/sirupsen/logrus"

	"github.com/release-engineering/cloudimg/internal/cloud"
)

// Delete runs the delete pipeline against AWS.
func (a *AWS) Delete(ctx context.Context, req *cloud.DeleteRequest) (*cloud.DeleteResult, error) {
	return cloud.Delete(ctx, a, req)
}

// ResolveImage locates the AMI by id first, then by name. Either lookup
// may come up empty without it being an error.
func (a *AWS) ResolveImage(ctx context.Context, req *cloud.DeleteRequest) (*cloud.Image, error) {
	if req.ImageID != "" {
		image, err := a.getImageByID(ctx, req.ImageID)
		if err != nil || image != nil {
			return image, err
		}
	}
	if req.ImageName != "" {
		return a.getImageByName(ctx, req.ImageName)
	}
	return nil, nil
}

func (a *AWS) FindSnapshotByID(ctx context.Context, snapshotID string) (*cloud.Snapshot, error) {
	return a.getSnapshotByID(ctx, snapshotID)
}

// ResolveSnapshot locates a snapshot by id first, then by name, for the
// case where no image exists but an orphaned snapshot might.
func (a *AWS) ResolveSnapshot(ctx context.Context, req *cloud.DeleteRequest) (*cloud.Snapshot, error) {
	if req.SnapshotID != "" {
		snapshot, err := a.getSnapshotByID(ctx, req.SnapshotID)
		if err != nil || snapshot != nil {
			return snapshot, err
		}
	}
	if req.SnapshotName != "" {
		return a.getSnapshotByName(ctx, req.SnapshotName)
	}
	return nil, nil
}

func (a *AWS) DeregisterImage(ctx context.Context, image *cloud.Image) error {
	logrus.Infof("[AWS] 🧹 Deregistering image: %s (%s)", image.Name, image.ID)
	_, err := a.ec2.DeregisterImage(ctx, &ec2.DeregisterImageInput{
		ImageId: aws.String(image.ID),
	})
	return clientError(err)
}

func (a *AWS) DeleteSnapshot(ctx context.Context, snapshot *cloud.Snapshot) error {
	logrus.Infof("[AWS] 🧹 Deleting snapshot: %s", snapshot.ID)
	_, err := a.ec2.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
		SnapshotId: aws.String(snapshot.ID),
	})
	return clientError(err)
}
