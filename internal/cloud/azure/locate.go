package azure

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"

	"github.com/release-engineering/cloudimg/internal/cloud"
)

// getBlobByName reports the blob as a storage object, or nil when either
// the container or the blob does not exist.
func (s *Service) getBlobByName(ctx context.Context, containerName, name string) (*cloud.StorageObject, error) {
	blobClient := s.client.NewContainerClient(containerName).NewBlobClient(name)
	_, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, nil
		}
		return nil, clientError(err)
	}
	return &cloud.StorageObject{Container: containerName, Name: name}, nil
}

func (s *Service) containerExists(ctx context.Context, name string) (bool, error) {
	_, err := s.client.NewContainerClient(name).GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerNotFound) {
			return false, nil
		}
		return false, clientError(err)
	}
	return true, nil
}

// findBlobByTags scans every container in the storage account for a blob
// carrying all the given tags and returns the first hit.
func (s *Service) findBlobByTags(ctx context.Context, tags map[string]string) (*cloud.StorageObject, error) {
	where := tagsFilterExpression(tags)
	logrus.Infof("[Azure] Searching the storage account for tags: %s", where)

	pager := s.client.NewListContainersPager(nil)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, clientError(err)
		}
		for _, item := range page.ContainerItems {
			if item.Name == nil {
				continue
			}
			containerClient := s.client.NewContainerClient(*item.Name)
			rsp, err := containerClient.FilterBlobs(ctx, where, nil)
			if err != nil {
				return nil, clientError(err)
			}
			for _, match := range rsp.Blobs {
				if match.Name == nil {
					continue
				}
				return &cloud.StorageObject{Container: *item.Name, Name: *match.Name}, nil
			}
		}
	}
	return nil, nil
}

// tagsFilterExpression renders the tag set as a find-blobs-by-tags filter:
//
//	"tag1"='value1' and "tag2"='value2'
//
// Keys are sorted so the expression is stable.
func tagsFilterExpression(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	terms := make([]string, 0, len(keys))
	for _, k := range keys {
		terms = append(terms, fmt.Sprintf("%q='%s'", k, tags[k]))
	}
	return strings.Join(terms, " and ")
}
