package awscloud

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/release-engineering/cloudimg/internal/cloud"
)

// Every lookup in this file returns (nil, nil) when AWS definitively
// reports the resource as absent; other provider errors propagate with
// their request id attached.

func (a *AWS) getImageByFilters(ctx context.Context, owners []string, filters []ec2types.Filter) (*cloud.Image, error) {
	rsp, err := a.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{
		Owners:  owners,
		Filters: filters,
	})
	if err != nil {
		return nil, clientError(err)
	}

	images := rsp.Images
	if len(images) == 0 {
		return nil, nil
	}
	if len(images) > 1 {
		amis := make([]string, 0, len(images))
		for _, img := range images {
			amis = append(amis, aws.ToString(img.ImageId))
		}
		logrus.Warnf("Filtered more than one image: %s", strings.Join(amis, ", "))
	}

	return imageFromEC2(&images[0]), nil
}

// imageFromEC2 extracts the snapshot reference from the first block-device
// mapping; images without one yield an empty SnapshotID.
func imageFromEC2(img *ec2types.Image) *cloud.Image {
	image := &cloud.Image{
		ID:   aws.ToString(img.ImageId),
		Name: aws.ToString(img.Name),
	}
	if len(img.BlockDeviceMappings) > 0 {
		bdm := img.BlockDeviceMappings[0]
		if bdm.Ebs != nil {
			image.SnapshotID = aws.ToString(bdm.Ebs.SnapshotId)
		}
	}
	return image
}

func (a *AWS) getImageByName(ctx context.Context, name string) (*cloud.Image, error) {
	if name == "" {
		return nil, nil
	}
	return a.getImageByFilters(ctx, []string{"self"}, []ec2types.Filter{
		{Name: aws.String("name"), Values: []string{name}},
	})
}

func (a *AWS) getImageByID(ctx context.Context, imageID string) (*cloud.Image, error) {
	if imageID == "" {
		return nil, nil
	}
	return a.getImageByFilters(ctx, []string{"self"}, []ec2types.Filter{
		{Name: aws.String("image-id"), Values: []string{imageID}},
	})
}

func (a *AWS) getImageByTags(ctx context.Context, tags map[string]string) (*cloud.Image, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	filters := make([]ec2types.Filter, 0, len(tags))
	for k, v := range tags {
		filters = append(filters, ec2types.Filter{
			Name:   aws.String("tag:" + k),
			Values: []string{v},
		})
	}
	return a.getImageByFilters(ctx, []string{"self"}, filters)
}

// FindImageInCatalog looks an image up by id across the whole AMI catalog:
// self-owned, marketplace, and community images.
func (a *AWS) FindImageInCatalog(ctx context.Context, imageID string) (*cloud.Image, error) {
	if imageID == "" {
		return nil, nil
	}
	return a.getImageByFilters(ctx, nil, []ec2types.Filter{
		{Name: aws.String("image-id"), Values: []string{imageID}},
	})
}

func (a *AWS) getSnapshotByFilters(ctx context.Context, filters []ec2types.Filter) (*cloud.Snapshot, error) {
	rsp, err := a.ec2.DescribeSnapshots(ctx, &ec2.DescribeSnapshotsInput{
		OwnerIds: []string{"self"},
		Filters:  filters,
	})
	if err != nil {
		return nil, clientError(err)
	}

	snapshots := rsp.Snapshots
	if len(snapshots) == 0 {
		return nil, nil
	}
	if len(snapshots) > 1 {
		snaps := make([]string, 0, len(snapshots))
		for _, snap := range snapshots {
			snaps = append(snaps, aws.ToString(snap.SnapshotId))
		}
		logrus.Warnf("Filtered more than one snapshot: %s", strings.Join(snaps, ", "))
	}

	return snapshotFromEC2(&snapshots[0]), nil
}

func snapshotFromEC2(snap *ec2types.Snapshot) *cloud.Snapshot {
	snapshot := &cloud.Snapshot{ID: aws.ToString(snap.SnapshotId)}
	for _, tag := range snap.Tags {
		if aws.ToString(tag.Key) == "Name" {
			snapshot.Name = aws.ToString(tag.Value)
			break
		}
	}
	return snapshot
}

func (a *AWS) getSnapshotByName(ctx context.Context, name string) (*cloud.Snapshot, error) {
	if name == "" {
		return nil, nil
	}
	return a.getSnapshotByFilters(ctx, []ec2types.Filter{
		{Name: aws.String("tag:Name"), Values: []string{name}},
	})
}

func (a *AWS) getSnapshotByID(ctx context.Context, snapshotID string) (*cloud.Snapshot, error) {
	if snapshotID == "" {
		return nil, nil
	}
	return a.getSnapshotByFilters(ctx, []ec2types.Filter{
		{Name: aws.String("snapshot-id"), Values: []string{snapshotID}},
	})
}

func (a *AWS) getObjectByName(ctx context.Context, container, name string) (*cloud.StorageObject, error) {
	_, err := a.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(container),
		Key:    aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, clientError(err)
	}
	return &cloud.StorageObject{Container: container, Name: name}, nil
}

// containerExists performs a HEAD on the bucket; loading bucket metadata
// is not enough to detect absence.
func (a *AWS) containerExists(ctx context.Context, name string) (bool, error) {
	_, err := a.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, clientError(err)
	}
	return true, nil
}
