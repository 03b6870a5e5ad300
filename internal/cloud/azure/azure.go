// Package azure publishes disk images to Azure storage. The raw image
// becomes a page blob, which is what the marketplace consumes as a VHD
// image, so publishing and deleting collapse onto blob operations: there
// is no separate snapshot or registration resource to manage.
package azure

import (
	"fmt"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/service"

	"github.com/release-engineering/cloudimg/internal/cloud"
	"github.com/release-engineering/cloudimg/internal/poll"
)

const (
	// defaultUploadThreads is a tested default for the number of parallel
	// page uploads.
	defaultUploadThreads = 16

	// pageBlobMaxUploadPagesBytes is how many bytes a single UploadPages
	// call may carry.
	// See https://learn.microsoft.com/en-us/rest/api/storageservices/put-page
	pageBlobMaxUploadPagesBytes = 4 * 1024 * 1024

	// defaultEndpointSuffix is the public cloud blob endpoint; sovereign
	// clouds use a different one.
	defaultEndpointSuffix = "blob.core.windows.net"

	// defaultSASExpiry is the lifetime of generated SAS URIs.
	defaultSASExpiry = 3 * 365 * 24 * time.Hour
)

// Service is a client for the Azure Storage API, scoped to one storage
// account.
type Service struct {
	account    string
	credential *azblob.SharedKeyCredential
	client     *service.Client

	// UploadThreads bounds the number of parallel page uploads.
	UploadThreads int
	// SASExpiry is the lifetime of URIs from BlobSASURI.
	SASExpiry time.Duration

	copyPoll poll.Options
}

func defaultCopyPoll() poll.Options {
	return poll.Options{
		Name:        "blob copy",
		Interval:    10 * time.Second,
		MaxAttempts: 60,
		MaxElapsed:  600 * time.Second,
	}
}

// NewService creates a client from the storage account name and one of its
// access keys.
// See https://docs.microsoft.com/en-us/rest/api/storagerp/storageaccounts/listkeys
// on how to retrieve the key.
func NewService(storageAccount, storageAccessKey string) (*Service, error) {
	credential, err := azblob.NewSharedKeyCredential(storageAccount, storageAccessKey)
	if err != nil {
		return nil, fmt.Errorf("cannot create shared key credential: %w", err)
	}

	serviceURL := fmt.Sprintf("https://%s.%s/", storageAccount, defaultEndpointSuffix)
	client, err := service.NewClientWithSharedKeyCredential(serviceURL, credential, nil)
	if err != nil {
		return nil, fmt.Errorf("cannot create a storage service client: %w", err)
	}

	return &Service{
		account:       storageAccount,
		credential:    credential,
		client:        client,
		UploadThreads: defaultUploadThreads,
		SASExpiry:     defaultSASExpiry,
		copyPoll:      defaultCopyPoll(),
	}, nil
}

// FromConnectionString creates a client from a storage connection string
// as handed out by the Azure portal.
func FromConnectionString(connectionString string) (*Service, error) {
	values, err := parseConnectionString(connectionString)
	if err != nil {
		return nil, err
	}
	return NewService(values["AccountName"], values["AccountKey"])
}

// parseConnectionString splits the semicolon-separated key=value pairs and
// validates that the account name and key are both present. The account
// key is base64 and may itself contain "=", so only the first "=" of each
// pair separates key from value.
func parseConnectionString(connectionString string) (map[string]string, error) {
	values := map[string]string{}
	for _, entry := range strings.Split(connectionString, ";") {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		values[key] = value
	}
	if len(values) == 0 {
		return nil, &cloud.ValidationError{Reason: "invalid connection string: no keyword elements found"}
	}
	for _, key := range []string{"AccountName", "AccountKey"} {
		if values[key] == "" {
			return nil, &cloud.ValidationError{Reason: fmt.Sprintf("invalid connection string: missing value for %s", key)}
		}
	}
	return values, nil
}
