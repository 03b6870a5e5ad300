package azure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/release-engineering/cloudimg/internal/cloud"
)

func TestParseConnectionString(t *testing.T) {
	values, err := parseConnectionString(
		"DefaultEndpointsProtocol=https;AccountName=acc1;AccountKey=aGVsbG8=;EndpointSuffix=core.windows.net")
	require.NoError(t, err)
	assert.Equal(t, "acc1", values["AccountName"])
	// The key is base64 and may contain "=", only the first one splits.
	assert.Equal(t, "aGVsbG8=", values["AccountKey"])
	assert.Equal(t, "core.windows.net", values["EndpointSuffix"])
}

func TestParseConnectionStringInvalid(t *testing.T) {
	testCases := []struct {
		name             string
		connectionString string
	}{
		{"empty", ""},
		{"no assignments", "justsomegarbage"},
		{"missing account name", "AccountKey=aGVsbG8="},
		{"missing account key", "AccountName=acc1"},
		{"empty account key", "AccountName=acc1;AccountKey="},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseConnectionString(tc.connectionString)
			var validationErr *cloud.ValidationError
			require.ErrorAs(t, err, &validationErr)
		})
	}
}

func TestFromConnectionString(t *testing.T) {
	svc, err := FromConnectionString(
		"DefaultEndpointsProtocol=https;AccountName=acc1;AccountKey=aGVsbG8=")
	require.NoError(t, err)
	assert.Equal(t, "acc1", svc.account)
	assert.Equal(t, defaultUploadThreads, svc.UploadThreads)
}

func TestPublishRequiresTags(t *testing.T) {
	svc, err := NewService("acc1", "aGVsbG8=")
	require.NoError(t, err)

	req, err := cloud.NewPublishRequest(cloud.PublishRequest{
		ImagePath: "/images/fedora-40.raw",
		ImageName: "fedora-40",
		Container: "vhds",
	})
	require.NoError(t, err)

	// Rejected before any storage call happens.
	_, err = svc.Publish(context.Background(), req)
	var validationErr *cloud.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Contains(t, validationErr.Error(), "a tag must be defined")
}

func TestTagsFilterExpression(t *testing.T) {
	expression := tagsFilterExpression(map[string]string{
		"nvra":    "fedora-40-x86_64",
		"release": "40",
	})
	assert.Equal(t, `"nvra"='fedora-40-x86_64' and "release"='40'`, expression)

	assert.Equal(t, "", tagsFilterExpression(nil))
}

func TestCopyProgressPercent(t *testing.T) {
	assert.Equal(t, "50.00%", copyProgressPercent("512/1024"))
	assert.Equal(t, "100.00%", copyProgressPercent("1024/1024"))
	// Malformed values pass through untouched.
	assert.Equal(t, "bogus", copyProgressPercent("bogus"))
	assert.Equal(t, "512/0", copyProgressPercent("512/0"))
}

func TestRandomStorageAccountName(t *testing.T) {
	name := RandomStorageAccountName("ib")
	assert.Len(t, name, 24)
	assert.NotEqual(t, name, RandomStorageAccountName("ib"))
	for _, r := range name {
		assert.True(t, (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'))
	}
}

func TestEnsureVHDExtension(t *testing.T) {
	assert.Equal(t, "image.vhd", EnsureVHDExtension("image"))
	assert.Equal(t, "image.vhd", EnsureVHDExtension("image.vhd"))
}

func TestImageFromObject(t *testing.T) {
	image := imageFromObject(&cloud.StorageObject{Container: "imgs", Name: "fedora-40.vhd"})
	assert.Equal(t, "imgs/fedora-40.vhd", image.ID)
	assert.Equal(t, "fedora-40.vhd", image.Name)
	assert.Equal(t, "imgs", containerOf(image))
}
