package awscloud_test

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

type ec2mock struct {
	calledFn map[string]int

	images    []ec2types.Image
	snapshots []ec2types.Snapshot

	// importStatuses is consumed one per DescribeImportSnapshotTasks
	// call; the last entry repeats once the slice runs out.
	importStatuses   []string
	importStatusIdx  int
	importSnapshotID string
	importErr        error

	registerInput   *ec2.RegisterImageInput
	sharedAccounts  []string
	sharedGroups    []string
	volumeAccounts  []string
	taggedResources map[string][]ec2types.Tag
}

func newEc2Mock() *ec2mock {
	return &ec2mock{
		calledFn:         map[string]int{},
		importStatuses:   []string{"active", "completed"},
		importSnapshotID: "snap-0123456789",
		taggedResources:  map[string][]ec2types.Tag{},
	}
}

func filterValue(img ec2types.Image, name string) string {
	switch {
	case name == "name":
		return aws.ToString(img.Name)
	case name == "image-id":
		return aws.ToString(img.ImageId)
	case strings.HasPrefix(name, "tag:"):
		key := strings.TrimPrefix(name, "tag:")
		for _, tag := range img.Tags {
			if aws.ToString(tag.Key) == key {
				return aws.ToString(tag.Value)
			}
		}
	}
	return ""
}

func matchesFilters(img ec2types.Image, filters []ec2types.Filter) bool {
	for _, f := range filters {
		value := filterValue(img, aws.ToString(f.Name))
		found := false
		for _, want := range f.Values {
			if value == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *ec2mock) DescribeImages(_ context.Context, input *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	m.calledFn["DescribeImages"]++
	out := &ec2.DescribeImagesOutput{}
	for _, img := range m.images {
		if matchesFilters(img, input.Filters) {
			out.Images = append(out.Images, img)
		}
	}
	return out, nil
}

func (m *ec2mock) DescribeSnapshots(_ context.Context, input *ec2.DescribeSnapshotsInput, _ ...func(*ec2.Options)) (*ec2.DescribeSnapshotsOutput, error) {
	m.calledFn["DescribeSnapshots"]++
	out := &ec2.DescribeSnapshotsOutput{}
	for _, snap := range m.snapshots {
		if snapshotMatches(snap, input.Filters) {
			out.Snapshots = append(out.Snapshots, snap)
		}
	}
	return out, nil
}

func snapshotMatches(snap ec2types.Snapshot, filters []ec2types.Filter) bool {
	for _, f := range filters {
		var value string
		switch aws.ToString(f.Name) {
		case "snapshot-id":
			value = aws.ToString(snap.SnapshotId)
		case "tag:Name":
			for _, tag := range snap.Tags {
				if aws.ToString(tag.Key) == "Name" {
					value = aws.ToString(tag.Value)
				}
			}
		}
		found := false
		for _, want := range f.Values {
			if value == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *ec2mock) ImportSnapshot(_ context.Context, input *ec2.ImportSnapshotInput, _ ...func(*ec2.Options)) (*ec2.ImportSnapshotOutput, error) {
	m.calledFn["ImportSnapshot"]++
	if m.importErr != nil {
		return nil, m.importErr
	}
	if aws.ToString(input.ClientToken) == "" {
		return nil, fmt.Errorf("missing client token")
	}
	if aws.ToString(input.DiskContainer.Format) != "raw" {
		return nil, fmt.Errorf("unexpected disk format")
	}
	return &ec2.ImportSnapshotOutput{
		ImportTaskId: aws.String("import-snap-0123456789"),
	}, nil
}

func (m *ec2mock) DescribeImportSnapshotTasks(_ context.Context, _ *ec2.DescribeImportSnapshotTasksInput, _ ...func(*ec2.Options)) (*ec2.DescribeImportSnapshotTasksOutput, error) {
	m.calledFn["DescribeImportSnapshotTasks"]++
	status := m.importStatuses[m.importStatusIdx]
	if m.importStatusIdx < len(m.importStatuses)-1 {
		m.importStatusIdx++
	}
	detail := &ec2types.SnapshotTaskDetail{
		Status:   aws.String(status),
		Progress: aws.String("42"),
	}
	if status == "completed" {
		detail.SnapshotId = aws.String(m.importSnapshotID)
	}
	if status == "error" {
		detail.StatusMessage = aws.String("import failed: disk validation error")
	}
	return &ec2.DescribeImportSnapshotTasksOutput{
		ImportSnapshotTasks: []ec2types.ImportSnapshotTask{
			{SnapshotTaskDetail: detail},
		},
	}, nil
}

func (m *ec2mock) RegisterImage(_ context.Context, input *ec2.RegisterImageInput, _ ...func(*ec2.Options)) (*ec2.RegisterImageOutput, error) {
	m.calledFn["RegisterImage"]++
	m.registerInput = input
	return &ec2.RegisterImageOutput{ImageId: aws.String("ami-0123456789")}, nil
}

func (m *ec2mock) ModifyImageAttribute(_ context.Context, input *ec2.ModifyImageAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifyImageAttributeOutput, error) {
	m.calledFn["ModifyImageAttribute"]++
	for _, perm := range input.LaunchPermission.Add {
		if perm.UserId != nil {
			m.sharedAccounts = append(m.sharedAccounts, *perm.UserId)
		}
		if perm.Group != "" {
			m.sharedGroups = append(m.sharedGroups, string(perm.Group))
		}
	}
	return &ec2.ModifyImageAttributeOutput{}, nil
}

func (m *ec2mock) ModifySnapshotAttribute(_ context.Context, input *ec2.ModifySnapshotAttributeInput, _ ...func(*ec2.Options)) (*ec2.ModifySnapshotAttributeOutput, error) {
	m.calledFn["ModifySnapshotAttribute"]++
	m.volumeAccounts = append(m.volumeAccounts, input.UserIds...)
	return &ec2.ModifySnapshotAttributeOutput{}, nil
}

func (m *ec2mock) CreateTags(_ context.Context, input *ec2.CreateTagsInput, _ ...func(*ec2.Options)) (*ec2.CreateTagsOutput, error) {
	m.calledFn["CreateTags"]++
	for _, res := range input.Resources {
		m.taggedResources[res] = append(m.taggedResources[res], input.Tags...)
	}
	return &ec2.CreateTagsOutput{}, nil
}

func (m *ec2mock) DeregisterImage(_ context.Context, input *ec2.DeregisterImageInput, _ ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error) {
	m.calledFn["DeregisterImage"]++
	kept := m.images[:0]
	for _, img := range m.images {
		if aws.ToString(img.ImageId) != aws.ToString(input.ImageId) {
			kept = append(kept, img)
		}
	}
	m.images = kept
	return &ec2.DeregisterImageOutput{}, nil
}

func (m *ec2mock) DeleteSnapshot(_ context.Context, input *ec2.DeleteSnapshotInput, _ ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error) {
	m.calledFn["DeleteSnapshot"]++
	kept := m.snapshots[:0]
	for _, snap := range m.snapshots {
		if aws.ToString(snap.SnapshotId) != aws.ToString(input.SnapshotId) {
			kept = append(kept, snap)
		}
	}
	m.snapshots = kept
	return &ec2.DeleteSnapshotOutput{}, nil
}

func (m *ec2mock) CopyImage(_ context.Context, input *ec2.CopyImageInput, _ ...func(*ec2.Options)) (*ec2.CopyImageOutput, error) {
	m.calledFn["CopyImage"]++
	return &ec2.CopyImageOutput{
		ImageId: aws.String("ami-copy-" + aws.ToString(input.SourceImageId)),
	}, nil
}

type s3mock struct {
	calledFn map[string]int

	buckets map[string]bool
	objects map[string]bool

	createBucketInput *s3.CreateBucketInput
	objectTags        map[string][]s3types.Tag
	lastRequestPayer  s3types.RequestPayer
}

func newS3Mock() *s3mock {
	return &s3mock{
		calledFn:   map[string]int{},
		buckets:    map[string]bool{},
		objects:    map[string]bool{},
		objectTags: map[string][]s3types.Tag{},
	}
}

func notFoundErr() error {
	return &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"}
}

func (m *s3mock) HeadBucket(_ context.Context, input *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	m.calledFn["HeadBucket"]++
	if !m.buckets[aws.ToString(input.Bucket)] {
		return nil, notFoundErr()
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *s3mock) CreateBucket(_ context.Context, input *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	m.calledFn["CreateBucket"]++
	m.createBucketInput = input
	m.buckets[aws.ToString(input.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func (m *s3mock) HeadObject(_ context.Context, input *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.calledFn["HeadObject"]++
	key := aws.ToString(input.Bucket) + "/" + aws.ToString(input.Key)
	if !m.objects[key] {
		return nil, notFoundErr()
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *s3mock) PutObjectTagging(_ context.Context, input *s3.PutObjectTaggingInput, _ ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
	m.calledFn["PutObjectTagging"]++
	key := aws.ToString(input.Bucket) + "/" + aws.ToString(input.Key)
	m.objectTags[key] = input.Tagging.TagSet
	m.lastRequestPayer = input.RequestPayer
	return &s3.PutObjectTaggingOutput{}, nil
}

type s3managerMock struct {
	calledFn map[string]int

	s3            *s3mock
	uploadedBytes int64
}

func newS3ManagerMock(s3cli *s3mock) *s3managerMock {
	return &s3managerMock{calledFn: map[string]int{}, s3: s3cli}
}

func (m *s3managerMock) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	m.calledFn["Upload"]++
	n, err := io.Copy(io.Discard, input.Body)
	if err != nil {
		return nil, err
	}
	m.uploadedBytes = n
	m.s3.objects[aws.ToString(input.Bucket)+"/"+aws.ToString(input.Key)] = true
	return &manager.UploadOutput{}, nil
}
