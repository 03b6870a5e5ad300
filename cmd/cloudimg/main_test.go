package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/release-engineering/cloudimg/internal/cloud"
)

func TestParseTags(t *testing.T) {
	tags, err := parseTags([]string{"nvra=fedora-40-x86_64", "release=40", "empty="})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"nvra":    "fedora-40-x86_64",
		"release": "40",
		"empty":   "",
	}, tags)

	tags, err = parseTags(nil)
	require.NoError(t, err)
	assert.Nil(t, tags)

	_, err = parseTags([]string{"novalue"})
	assert.Error(t, err)
	_, err = parseTags([]string{"=value"})
	assert.Error(t, err)
}

func TestParseBootMode(t *testing.T) {
	mode, err := parseBootMode("")
	require.NoError(t, err)
	assert.Equal(t, cloud.BootModeUnset, mode)

	mode, err = parseBootMode("uefi-preferred")
	require.NoError(t, err)
	assert.Equal(t, cloud.BootModeHybrid, mode)

	_, err = parseBootMode("bios")
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudimg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[aws]
access_key_id = "AKIA123"
secret_access_key = "secret"
region = "us-east-2"
bucket = "images"
import_role = "vmimport"

[azure]
connection_string = "AccountName=acc1;AccountKey=aGVsbG8="
container = "vhds"
upload_threads = 8
`), 0600))

	cfg, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "AKIA123", cfg.AWS.AccessKeyID)
	assert.Equal(t, "us-east-2", cfg.AWS.Region)
	assert.Equal(t, "vmimport", cfg.AWS.ImportRole)
	assert.Equal(t, "vhds", cfg.Azure.Container)
	assert.Equal(t, 8, cfg.Azure.UploadThreads)
}

func TestLoadConfigUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cloudimg.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[aws]
acess_key_id = "typo"
`), 0600))

	_, err := loadConfig(path)
	assert.ErrorContains(t, err, "unknown configuration keys")
}

func TestLoadConfigEmptyPath(t *testing.T) {
	cfg, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "", cfg.AWS.Region)
}
