package azure

import (
	"strings"

	"github.com/google/uuid"
)

// RandomStorageAccountName returns a randomly generated name that can be
// used for a storage account: alphanumeric only and at most 24 characters.
func RandomStorageAccountName(prefix string) string {
	id := uuid.New().String()
	id = strings.ReplaceAll(id, "-", "")

	return (prefix + id)[:24]
}

// EnsureVHDExtension returns the given name with a .vhd suffix if it does
// not have one already. The marketplace only picks up blobs named that
// way.
func EnsureVHDExtension(s string) string {
	if strings.HasSuffix(s, ".vhd") {
		return s
	}

	return s + ".vhd"
}
