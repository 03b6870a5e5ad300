package cloud

import (
	"path"
	"path/filepath"
	"strings"
)

// BootMode selects how instances boot from the published image. The empty
// value leaves the choice to the provider's own default.
type BootMode string

const (
	BootModeUnset  BootMode = ""
	BootModeUEFI   BootMode = "uefi"
	BootModeLegacy BootMode = "legacy-bios"
	BootModeHybrid BootMode = "uefi-preferred"
)

// CompressedSuffix marks sources that are decompressed while streaming into
// storage.
const CompressedSuffix = ".xz"

// PublishRequest describes a disk image to publish. Callers fill in the
// fields and pass the value through NewPublishRequest, which validates it
// and computes the derived fields exactly once; the stored values are
// stable for the whole pipeline run.
type PublishRequest struct {
	// ImagePath is a local filesystem path or an HTTP(S) URL to the raw
	// image, optionally xz-compressed.
	ImagePath string
	// ImageName is the primary identifier of the published image.
	ImageName string
	// ObjectName is the storage object name. Derived from the source
	// filename (compression suffix stripped) unless set.
	ObjectName string
	// SnapshotName is the snapshot name. Derived from ObjectName without
	// its extension unless set.
	SnapshotName string
	// Container is the storage container/bucket for uploads. Required.
	Container   string
	Description string

	// Hardware descriptor, applied at image registration.
	Arch           string
	VirtType       string
	RootDeviceName string
	VolumeType     string
	// BootMode wins over UEFISupport when both are given.
	BootMode BootMode
	// UEFISupport is the legacy boolean flag: true maps to uefi-preferred,
	// false to legacy-bios. Consulted once, in NewPublishRequest.
	UEFISupport *bool
	// ENASupport enables enhanced networking. Defaults to true.
	ENASupport *bool
	// SriovNetSupport defaults to "simple".
	SriovNetSupport string
	BillingProducts []string

	// Tags apply to every created resource. SnapshotTags and ImageTags
	// additionally apply to the snapshot and image only.
	Tags         map[string]string
	SnapshotTags map[string]string
	ImageTags    map[string]string

	// Accounts and Groups receive launch permission on the image.
	Accounts []string
	Groups   []string
	// SnapshotAccounts receive volume-create permission on the snapshot.
	SnapshotAccounts []string
}

// NewPublishRequest validates req and returns a copy with all derived
// fields resolved.
func NewPublishRequest(req PublishRequest) (*PublishRequest, error) {
	if req.Container == "" {
		return nil, &ValidationError{Reason: "a container must be defined"}
	}
	if req.ImageName == "" {
		return nil, &ValidationError{Reason: "an image name must be defined"}
	}

	if req.ObjectName == "" {
		req.ObjectName = defaultObjectName(req.ImagePath)
	}
	if req.SnapshotName == "" {
		ext := filepath.Ext(req.ObjectName)
		req.SnapshotName = strings.TrimSuffix(req.ObjectName, ext)
	}

	// The legacy UEFI flag is folded into the boot mode here, never at
	// registration time.
	if req.BootMode == BootModeUnset && req.UEFISupport != nil {
		if *req.UEFISupport {
			req.BootMode = BootModeHybrid
		} else {
			req.BootMode = BootModeLegacy
		}
	}

	if req.ENASupport == nil {
		enaDefault := true
		req.ENASupport = &enaDefault
	}
	if req.SriovNetSupport == "" {
		req.SriovNetSupport = "simple"
	}

	return &req, nil
}

// Compressed reports whether the source needs decompression while
// uploading.
func (r *PublishRequest) Compressed() bool {
	return strings.HasSuffix(r.ImagePath, CompressedSuffix)
}

// RemoteSource reports whether the source is an HTTP(S) URL rather than a
// local file.
func (r *PublishRequest) RemoteSource() bool {
	lower := strings.ToLower(r.ImagePath)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

func defaultObjectName(imagePath string) string {
	base := path.Base(imagePath)
	return strings.TrimSuffix(base, CompressedSuffix)
}

// DeleteRequest describes the image (and optionally snapshot) to tear
// down. ImageID is the primary identifier; providers without an id/name
// duality treat the name as the id.
type DeleteRequest struct {
	ImageID      string
	ImageName    string
	SnapshotID   string
	SnapshotName string
	// SkipSnapshot leaves the backing snapshot in place.
	SkipSnapshot bool
	// Container locates the blob for providers that delete by container
	// and name instead of by id.
	Container string
}

// NewDeleteRequest normalizes the request: the image name defaults to the
// image id for providers where both are the same value.
func NewDeleteRequest(req DeleteRequest) (*DeleteRequest, error) {
	if req.ImageID == "" && req.ImageName == "" &&
		req.SnapshotID == "" && req.SnapshotName == "" {
		return nil, &ValidationError{Reason: "an image id or name must be defined"}
	}
	if req.ImageName == "" {
		req.ImageName = req.ImageID
	}
	return &req, nil
}

// DeleteResult reports what was actually removed. Nil fields mean the
// resource was not found or its deletion was skipped.
type DeleteResult struct {
	ImageID    *string
	SnapshotID *string
}
