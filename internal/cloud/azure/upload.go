package azure

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/release-engineering/cloudimg/internal/cloud"
	"github.com/release-engineering/cloudimg/internal/common"
	"github.com/release-engineering/cloudimg/internal/poll"
	"github.com/release-engineering/cloudimg/internal/progress"
)

// Upload moves the request's source image into the request's container as
// a page blob. Local files are uploaded page by page, xz files are
// decompressed first, and remote URLs are copied server side. The blob is
// tagged with the request's tags once the bytes are in place.
func (s *Service) Upload(ctx context.Context, req *cloud.PublishRequest) (*cloud.StorageObject, error) {
	logrus.Infof("[Azure] 🚀 Uploading %s to %s/%s", req.ImagePath, req.Container, req.ObjectName)

	if err := s.ensureContainer(ctx, req.Container); err != nil {
		return nil, err
	}

	var err error
	switch {
	case req.RemoteSource():
		err = s.copyFromURL(ctx, req)
	case req.Compressed():
		err = s.uploadCompressedFile(ctx, req)
	default:
		err = s.uploadFile(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	logrus.Infof("[Azure] Successfully uploaded %s", req.ImagePath)

	if len(req.Tags) > 0 {
		if err := s.TagBlob(ctx, req.Container, req.ObjectName, req.Tags); err != nil {
			return nil, err
		}
	}

	return &cloud.StorageObject{Container: req.Container, Name: req.ObjectName}, nil
}

// ensureContainer creates the storage container if it does not exist yet.
func (s *Service) ensureContainer(ctx context.Context, name string) error {
	_, err := s.client.NewContainerClient(name).Create(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil
		}
		return clientError(err)
	}
	logrus.Infof("[Azure] Created container: %s", name)
	return nil
}

func (s *Service) uploadFile(ctx context.Context, req *cloud.PublishRequest) error {
	file, err := os.Open(req.ImagePath)
	if err != nil {
		return err
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return err
	}

	tracker := progress.NewDeterminate(req.Container, req.ObjectName, stat.Size())
	return s.uploadPageBlob(ctx, req.Container, req.ObjectName, file, stat.Size(), tracker)
}

// uploadCompressedFile streams the decompressed image into a page blob.
// Page blobs need their final size before the first page goes up, and the
// xz headers do not carry it reliably, so the stream is decompressed once
// to measure it and then a second time to upload.
func (s *Service) uploadCompressedFile(ctx context.Context, req *cloud.PublishRequest) error {
	logrus.Infof("[Azure] Processing an xz compressed file: %s", req.ImagePath)

	size, err := measureCompressedFile(req.ImagePath)
	if err != nil {
		return err
	}

	file, err := os.Open(req.ImagePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decompressed, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("cannot open the xz stream: %w", err)
	}

	tracker := progress.NewDeterminate(req.Container, req.ObjectName, size)
	return s.uploadPageBlob(ctx, req.Container, req.ObjectName, decompressed, size, tracker)
}

func measureCompressedFile(path string) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	decompressed, err := xz.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("cannot open the xz stream: %w", err)
	}
	size, err := io.Copy(io.Discard, decompressed)
	if err != nil {
		return 0, fmt.Errorf("cannot measure the decompressed size: %w", err)
	}
	return size, nil
}

// uploadPageBlob creates the page blob at its final size and pushes the
// image through it in page-aligned chunks. All-zero chunks are skipped:
// the blob is zero initialized, so uploading them would be a no-op. The
// number of in-flight uploads is bounded by UploadThreads.
func (s *Service) uploadPageBlob(ctx context.Context, containerName, name string, r io.Reader, size int64, tracker *progress.Tracker) error {
	if size%512 != 0 {
		return fmt.Errorf("the image size must be aligned to 512 bytes, got %d", size)
	}

	client := s.client.NewContainerClient(containerName).NewPageBlobClient(name)
	if _, err := client.Create(ctx, size, nil); err != nil {
		return clientError(fmt.Errorf("cannot create a new page blob: %w", err))
	}

	threads := s.UploadThreads
	if threads <= 0 {
		threads = defaultUploadThreads
	}
	semaphore := make(chan struct{}, threads)
	uploadErr := make(chan error, 1)
	var wg sync.WaitGroup

	reader := bufio.NewReader(r)
	zeros := make([]byte, pageBlobMaxUploadPagesBytes)
	var chunk int64

	for {
		buffer := make([]byte, pageBlobMaxUploadPagesBytes)
		n, err := io.ReadFull(reader, buffer)
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("reading the image failed: %w", err)
		}
		if n == 0 {
			break
		}

		if bytes.Equal(zeros[:n], buffer[:n]) {
			tracker.Add(int64(n))
			chunk++
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}
		go func(chunk int64, buffer []byte, n int) {
			defer wg.Done()
			defer func() { <-semaphore }()

			pages := blob.HTTPRange{
				Offset: chunk * pageBlobMaxUploadPagesBytes,
				Count:  int64(n),
			}
			_, err := client.UploadPages(ctx, common.NopSeekCloser(bytes.NewReader(buffer[:n])), pages, nil)
			if err != nil {
				select {
				case uploadErr <- clientError(fmt.Errorf("uploading a page failed: %w", err)):
				default:
				}
				return
			}
			tracker.Add(int64(n))
		}(chunk, buffer, n)
		chunk++
	}

	wg.Wait()
	select {
	case err := <-uploadErr:
		return err
	default:
	}

	if !tracker.Done() {
		return fmt.Errorf("the upload ended prematurely: %s", tracker)
	}
	return nil
}

// copyFromURL asks the storage service to copy the remote image into the
// container and waits for the server-side copy to finish.
func (s *Service) copyFromURL(ctx context.Context, req *cloud.PublishRequest) error {
	if req.Compressed() {
		return &cloud.UnsupportedError{Op: "xz decompression of a remote image source"}
	}

	logrus.Infof("[Azure] Copying %s to container %s", req.ImagePath, req.Container)

	blobClient := s.client.NewContainerClient(req.Container).NewBlobClient(req.ObjectName)
	if _, err := blobClient.StartCopyFromURL(ctx, req.ImagePath, nil); err != nil {
		return clientError(err)
	}

	_, err := poll.Wait(ctx, s.copyPoll, func(ctx context.Context) (struct{}, poll.Update, error) {
		props, err := blobClient.GetProperties(ctx, nil)
		if err != nil {
			return struct{}{}, poll.Update{}, clientError(err)
		}

		update := poll.Update{}
		if props.CopyProgress != nil {
			update.Progress = copyProgressPercent(*props.CopyProgress)
		}
		if props.CopyStatusDescription != nil {
			update.Message = *props.CopyStatusDescription
		}
		if props.CopyStatus != nil {
			if update.Message == "" {
				update.Message = string(*props.CopyStatus)
			}
			switch *props.CopyStatus {
			case blob.CopyStatusTypeSuccess:
				update.Status = poll.StatusCompleted
			case blob.CopyStatusTypeFailed, blob.CopyStatusTypeAborted:
				update.Status = poll.StatusError
			}
		}
		return struct{}{}, update, nil
	})
	return err
}

// copyProgressPercent converts the service's "copied/total" progress pair
// into a percentage.
func copyProgressPercent(progress string) string {
	copied, total, found := strings.Cut(progress, "/")
	if !found {
		return progress
	}
	var c, t float64
	if _, err := fmt.Sscanf(copied, "%f", &c); err != nil {
		return progress
	}
	if _, err := fmt.Sscanf(total, "%f", &t); err != nil || t == 0 {
		return progress
	}
	return fmt.Sprintf("%.2f%%", c/t*100)
}
