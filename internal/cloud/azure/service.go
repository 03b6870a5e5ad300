package azure

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"
	"github.com/sirupsen/logrus"

	"github.com/release-engineering/cloudimg/internal/cloud"
)

// The published image and its backing blob are the same resource here, so
// the snapshot and registration stages of the pipeline are identity steps:
// they only rename the handle. The real work happens in Upload.

// Publish runs the publish pipeline against the storage account and
// returns the resulting blob as an image. Discovery on this provider is
// tag driven, so a request without tags is rejected before any network
// call.
func (s *Service) Publish(ctx context.Context, req *cloud.PublishRequest) (*cloud.Image, error) {
	if len(req.Tags) == 0 {
		return nil, &cloud.ValidationError{Reason: "a tag must be defined"}
	}
	return cloud.Publish(ctx, s, req)
}

func (s *Service) FindImageByName(ctx context.Context, req *cloud.PublishRequest) (*cloud.Image, error) {
	object, err := s.getBlobByName(ctx, req.Container, req.ObjectName)
	if err != nil || object == nil {
		return nil, err
	}
	return imageFromObject(object), nil
}

func (s *Service) FindImageByTags(ctx context.Context, req *cloud.PublishRequest) (*cloud.Image, error) {
	object, err := s.findBlobByTags(ctx, req.Tags)
	if err != nil || object == nil {
		return nil, err
	}
	return imageFromObject(object), nil
}

// FindSnapshot always reports absence: page blobs have no intermediate
// snapshot resource to find.
func (s *Service) FindSnapshot(_ context.Context, _ *cloud.PublishRequest) (*cloud.Snapshot, error) {
	return nil, nil
}

func (s *Service) FindObject(ctx context.Context, req *cloud.PublishRequest) (*cloud.StorageObject, error) {
	return s.getBlobByName(ctx, req.Container, req.ObjectName)
}

func (s *Service) ImportSnapshot(_ context.Context, req *cloud.PublishRequest, obj *cloud.StorageObject) (*cloud.Snapshot, error) {
	return &cloud.Snapshot{
		ID:   obj.Container + "/" + obj.Name,
		Name: req.SnapshotName,
	}, nil
}

func (s *Service) RegisterImage(_ context.Context, req *cloud.PublishRequest, _ *cloud.Snapshot) (*cloud.Image, error) {
	image := imageFromObject(&cloud.StorageObject{Container: req.Container, Name: req.ObjectName})
	logrus.Infof("[Azure] Image published: %s", image.ID)
	return image, nil
}

// ShareImage is a no-op: access to the blob is granted out of band,
// through SAS URIs or marketplace offers, not through storage ACLs.
func (s *Service) ShareImage(_ context.Context, _ *cloud.PublishRequest, _ *cloud.Image) error {
	return nil
}

func imageFromObject(object *cloud.StorageObject) *cloud.Image {
	return &cloud.Image{
		ID:   object.Container + "/" + object.Name,
		Name: object.Name,
	}
}

// Taken from https://docs.microsoft.com/en-us/rest/api/storageservices/set-blob-tags#request-body
var (
	tagKeyRegexp   = regexp.MustCompile(`^[a-zA-Z0-9 +-./:=_]{1,256}$`)
	tagValueRegexp = regexp.MustCompile(`^[a-zA-Z0-9 +-./:=_]{0,256}$`)
)

// TagBlob replaces the tag set on a blob after validating the tags
// against the character set Azure accepts.
func (s *Service) TagBlob(ctx context.Context, containerName, name string, tags map[string]string) error {
	for key, value := range tags {
		if !tagKeyRegexp.MatchString(key) {
			return &cloud.ValidationError{Reason: fmt.Sprintf("tag key %q doesn't match the format accepted by Azure", key)}
		}
		if !tagValueRegexp.MatchString(value) {
			return &cloud.ValidationError{Reason: fmt.Sprintf("tag value %q of key %q doesn't match the format accepted by Azure", value, key)}
		}
	}

	logrus.Infof("[Azure] Tagging blob: %s/%s", containerName, name)
	blobClient := s.client.NewContainerClient(containerName).NewBlobClient(name)
	if _, err := blobClient.SetTags(ctx, tags, nil); err != nil {
		return clientError(fmt.Errorf("cannot tag the blob: %w", err))
	}
	return nil
}

// BlobSASURI returns a read-only SAS URI for the blob, valid for
// SASExpiry from now.
func (s *Service) BlobSASURI(containerName, name string) (string, error) {
	logrus.Infof("[Azure] Generating the SAS URI for %s/%s", containerName, name)

	blobClient := s.client.NewContainerClient(containerName).NewBlobClient(name)
	expiry := time.Now().UTC().Add(s.SASExpiry)
	uri, err := blobClient.GetSASURL(sas.BlobPermissions{Read: true}, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("cannot generate the SAS URI: %w", err)
	}
	return uri, nil
}

// Delete runs the delete pipeline against the storage account.
func (s *Service) Delete(ctx context.Context, req *cloud.DeleteRequest) (*cloud.DeleteResult, error) {
	return cloud.Delete(ctx, s, req)
}

// ResolveImage locates the blob backing the image. The image name and id
// are the same value here, and the container narrows the lookup.
func (s *Service) ResolveImage(ctx context.Context, req *cloud.DeleteRequest) (*cloud.Image, error) {
	if req.Container == "" {
		return nil, &cloud.ValidationError{Reason: "a container must be defined"}
	}
	object, err := s.getBlobByName(ctx, req.Container, req.ImageName)
	if err != nil || object == nil {
		return nil, err
	}
	return imageFromObject(object), nil
}

// FindSnapshotByID always reports absence: there is no snapshot resource
// separate from the blob.
func (s *Service) FindSnapshotByID(_ context.Context, _ string) (*cloud.Snapshot, error) {
	return nil, nil
}

func (s *Service) ResolveSnapshot(_ context.Context, _ *cloud.DeleteRequest) (*cloud.Snapshot, error) {
	return nil, nil
}

// DeregisterImage deletes the backing blob, snapshots included.
func (s *Service) DeregisterImage(ctx context.Context, image *cloud.Image) error {
	logrus.Infof("[Azure] 🧹 Deleting the image from %s", image.ID)

	blobClient := s.client.NewContainerClient(containerOf(image)).NewBlobClient(image.Name)
	_, err := blobClient.Delete(ctx, &blob.DeleteOptions{
		DeleteSnapshots: to.Ptr(blob.DeleteSnapshotsOptionTypeInclude),
	})
	return clientError(err)
}

// DeleteSnapshot is never reached: no lookup on this provider ever yields
// a snapshot to delete.
func (s *Service) DeleteSnapshot(_ context.Context, _ *cloud.Snapshot) error {
	return nil
}

func containerOf(image *cloud.Image) string {
	container, _, _ := strings.Cut(image.ID, "/")
	return container
}
