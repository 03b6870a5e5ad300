package awscloud

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/release-engineering/cloudimg/internal/cloud"
	"github.com/release-engineering/cloudimg/internal/poll"
)

// Publish runs the idempotent publish pipeline against AWS and returns the
// resulting AMI.
func (a *AWS) Publish(ctx context.Context, req *cloud.PublishRequest) (*cloud.Image, error) {
	return cloud.Publish(ctx, a, req)
}

func (a *AWS) FindImageByName(ctx context.Context, req *cloud.PublishRequest) (*cloud.Image, error) {
	return a.getImageByName(ctx, req.ImageName)
}

func (a *AWS) FindImageByTags(ctx context.Context, req *cloud.PublishRequest) (*cloud.Image, error) {
	return a.getImageByTags(ctx, req.Tags)
}

func (a *AWS) FindSnapshot(ctx context.Context, req *cloud.PublishRequest) (*cloud.Snapshot, error) {
	return a.getSnapshotByName(ctx, req.SnapshotName)
}

func (a *AWS) FindObject(ctx context.Context, req *cloud.PublishRequest) (*cloud.StorageObject, error) {
	return a.getObjectByName(ctx, req.Container, req.ObjectName)
}

// ImportSnapshot imports the uploaded object as an EBS snapshot, waits for
// the import task to finish, tags the snapshot with its name, and shares
// it with the requested accounts.
func (a *AWS) ImportSnapshot(ctx context.Context, req *cloud.PublishRequest, obj *cloud.StorageObject) (*cloud.Snapshot, error) {
	source := fmt.Sprintf("%s/%s", obj.Container, obj.Name)
	description := "cloudimg import of " + source

	logrus.Infof("[AWS] 📥 Importing snapshot from: %s", source)

	input := &ec2.ImportSnapshotInput{
		// The client token makes a quickly retried import submission
		// converge on a single task.
		ClientToken: aws.String(uuid.New().String()),
		Description: aws.String(description),
		DiskContainer: &ec2types.SnapshotDiskContainer{
			Description: aws.String(description),
			Format:      aws.String("raw"),
			UserBucket: &ec2types.UserBucket{
				S3Bucket: aws.String(obj.Container),
				S3Key:    aws.String(obj.Name),
			},
		},
	}
	if a.ImportRole != "" {
		input.RoleName = aws.String(a.ImportRole)
	}

	task, err := a.ec2.ImportSnapshot(ctx, input)
	if err != nil {
		return nil, clientError(err)
	}
	taskID := aws.ToString(task.ImportTaskId)

	logrus.Infof("[AWS] 🚚 Waiting for import snapshot task: %s", taskID)
	snapshotID, err := poll.Wait(ctx, a.importPoll, func(ctx context.Context) (string, poll.Update, error) {
		rsp, err := a.ec2.DescribeImportSnapshotTasks(ctx, &ec2.DescribeImportSnapshotTasksInput{
			ImportTaskIds: []string{taskID},
		})
		if err != nil {
			return "", poll.Update{}, clientError(err)
		}
		if len(rsp.ImportSnapshotTasks) == 0 || rsp.ImportSnapshotTasks[0].SnapshotTaskDetail == nil {
			return "", poll.Update{Message: "task details not available yet"}, nil
		}

		detail := rsp.ImportSnapshotTasks[0].SnapshotTaskDetail
		update := poll.Update{
			Message: aws.ToString(detail.StatusMessage),
		}
		if update.Message == "" {
			update.Message = aws.ToString(detail.Status)
		}
		if detail.Progress != nil {
			update.Progress = *detail.Progress + "%"
		}

		switch strings.ToLower(aws.ToString(detail.Status)) {
		case "completed":
			update.Status = poll.StatusCompleted
		case "error", "deleted":
			update.Status = poll.StatusError
		}

		return aws.ToString(detail.SnapshotId), update, nil
	})
	if err != nil {
		return nil, err
	}

	snapshot := &cloud.Snapshot{ID: snapshotID, Name: req.SnapshotName}

	logrus.Infof("[AWS] Tagging snapshot %s with name: %s", snapshot.ID, req.SnapshotName)
	// The Name tag is what getSnapshotByName finds on a later publish.
	tags := mergeTags(req.Tags, req.SnapshotTags, map[string]string{"Name": req.SnapshotName})
	if err := a.createTags(ctx, snapshot.ID, tags); err != nil {
		return nil, err
	}

	if err := a.shareSnapshot(ctx, snapshot, req.SnapshotAccounts); err != nil {
		return nil, err
	}

	return snapshot, nil
}

// RegisterImage registers an AMI from the snapshot using the request's
// hardware descriptor. The boot mode was resolved at request construction;
// an unset value leaves the choice to the instance type default.
func (a *AWS) RegisterImage(ctx context.Context, req *cloud.PublishRequest, snapshot *cloud.Snapshot) (*cloud.Image, error) {
	logrus.Infof("[AWS] 📋 Registering image: %s", req.ImageName)

	input := &ec2.RegisterImageInput{
		Name:            aws.String(req.ImageName),
		Architecture:    ec2types.ArchitectureValues(req.Arch),
		RootDeviceName:  aws.String(req.RootDeviceName),
		EnaSupport:      req.ENASupport,
		BillingProducts: req.BillingProducts,
		BlockDeviceMappings: []ec2types.BlockDeviceMapping{
			{
				DeviceName: aws.String(req.RootDeviceName),
				Ebs: &ec2types.EbsBlockDevice{
					SnapshotId:          aws.String(snapshot.ID),
					VolumeType:          ec2types.VolumeType(req.VolumeType),
					DeleteOnTermination: aws.Bool(true),
				},
			},
		},
	}
	if req.Description != "" {
		input.Description = aws.String(req.Description)
	}
	if req.VirtType != "" {
		input.VirtualizationType = aws.String(req.VirtType)
	}
	if req.SriovNetSupport != "" {
		input.SriovNetSupport = aws.String(req.SriovNetSupport)
	}
	if req.BootMode != cloud.BootModeUnset {
		input.BootMode = ec2types.BootModeValues(req.BootMode)
	}

	rsp, err := a.ec2.RegisterImage(ctx, input)
	if err != nil {
		return nil, clientError(err)
	}

	image := &cloud.Image{
		ID:         aws.ToString(rsp.ImageId),
		Name:       req.ImageName,
		SnapshotID: snapshot.ID,
	}
	logrus.Infof("[AWS] 🎉 AMI registered: %s", image.ID)

	if len(req.Tags) > 0 || len(req.ImageTags) > 0 {
		logrus.Infof("[AWS] Tagging image: %s", image.ID)
		if err := a.createTags(ctx, image.ID, mergeTags(req.Tags, req.ImageTags)); err != nil {
			return nil, err
		}
	}

	return image, nil
}

// ShareImage grants launch permission on the AMI to the request's accounts
// and groups. Permission grants are set-additive, so repeated calls are
// safe.
func (a *AWS) ShareImage(ctx context.Context, req *cloud.PublishRequest, image *cloud.Image) error {
	if len(req.Accounts) == 0 && len(req.Groups) == 0 {
		return nil
	}

	logrus.Infof("[AWS] 💿 Sharing %s with accounts: %v", image.Name, req.Accounts)
	logrus.Infof("[AWS] 💿 Sharing %s with groups: %v", image.Name, req.Groups)

	launchPerms := make([]ec2types.LaunchPermission, 0, len(req.Accounts)+len(req.Groups))
	for _, account := range req.Accounts {
		launchPerms = append(launchPerms, ec2types.LaunchPermission{
			UserId: aws.String(account),
		})
	}
	for _, group := range req.Groups {
		launchPerms = append(launchPerms, ec2types.LaunchPermission{
			Group: ec2types.PermissionGroup(group),
		})
	}

	_, err := a.ec2.ModifyImageAttribute(ctx, &ec2.ModifyImageAttributeInput{
		ImageId: aws.String(image.ID),
		LaunchPermission: &ec2types.LaunchPermissionModifications{
			Add: launchPerms,
		},
	})
	return clientError(err)
}

func (a *AWS) shareSnapshot(ctx context.Context, snapshot *cloud.Snapshot, accounts []string) error {
	if len(accounts) == 0 {
		return nil
	}

	logrus.Infof("[AWS] 📨 Sharing snapshot %s with accounts: %v", snapshot.ID, accounts)

	_, err := a.ec2.ModifySnapshotAttribute(ctx, &ec2.ModifySnapshotAttributeInput{
		Attribute:     ec2types.SnapshotAttributeNameCreateVolumePermission,
		OperationType: ec2types.OperationTypeAdd,
		SnapshotId:    aws.String(snapshot.ID),
		UserIds:       accounts,
	})
	return clientError(err)
}

// CopyImage copies an AMI into another region and returns the new image
// id.
func (a *AWS) CopyImage(ctx context.Context, imageID, imageName, sourceRegion string) (string, error) {
	rsp, err := a.ec2.CopyImage(ctx, &ec2.CopyImageInput{
		SourceImageId: aws.String(imageID),
		Name:          aws.String(imageName),
		SourceRegion:  aws.String(sourceRegion),
	})
	if err != nil {
		return "", clientError(err)
	}
	return aws.ToString(rsp.ImageId), nil
}

// TagObject replaces the tag set on an S3 object. The requester pays
// header keeps tagging working on buckets configured that way.
func (a *AWS) TagObject(ctx context.Context, container, name string, tags map[string]string) error {
	logrus.Infof("[AWS] Tagging object: %s/%s", container, name)

	set := make([]s3types.Tag, 0, len(tags))
	for k, v := range tags {
		set = append(set, s3types.Tag{
			Key:   aws.String(k),
			Value: aws.String(v),
		})
	}

	_, err := a.s3.PutObjectTagging(ctx, &s3.PutObjectTaggingInput{
		Bucket:       aws.String(container),
		Key:          aws.String(name),
		RequestPayer: s3types.RequestPayerRequester,
		Tagging:      &s3types.Tagging{TagSet: set},
	})
	return clientError(err)
}

func (a *AWS) createTags(ctx context.Context, resourceID string, tags map[string]string) error {
	_, err := a.ec2.CreateTags(ctx, &ec2.CreateTagsInput{
		Resources: []string{resourceID},
		Tags:      ec2TagSet(tags),
	})
	return clientError(err)
}

func ec2TagSet(tags map[string]string) []ec2types.Tag {
	set := make([]ec2types.Tag, 0, len(tags))
	for k, v := range tags {
		set = append(set, ec2types.Tag{
			Key:   aws.String(k),
			Value: aws.String(v),
		})
	}
	return set
}

// mergeTags combines tag maps left to right, later maps winning on key
// conflicts. A fresh map is returned so request tag sets stay untouched.
func mergeTags(maps ...map[string]string) map[string]string {
	merged := map[string]string{}
	for _, m := range maps {
		for k, v := range m {
			merged[k] = v
		}
	}
	return merged
}
