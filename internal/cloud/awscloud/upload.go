package awscloud

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"

	"github.com/release-engineering/cloudimg/internal/cloud"
	"github.com/release-engineering/cloudimg/internal/progress"
)

// Upload moves the request's source image into the request's bucket,
// creating the bucket first if needed. Remote URLs are streamed, local xz
// files are decompressed on the fly, plain local files go through the
// multipart uploader; all three report through the progress tracker. The
// object handle is returned only once S3 confirms its existence.
func (a *AWS) Upload(ctx context.Context, req *cloud.PublishRequest) (*cloud.StorageObject, error) {
	logrus.Infof("[AWS] 🚀 Uploading %s to %s/%s", req.ImagePath, req.Container, req.ObjectName)

	exists, err := a.containerExists(ctx, req.Container)
	if err != nil {
		return nil, err
	}
	if !exists {
		if err := a.createContainer(ctx, req.Container); err != nil {
			return nil, err
		}
	}

	switch {
	case req.RemoteSource():
		err = a.uploadFromURL(ctx, req)
	case req.Compressed():
		err = a.uploadCompressedFile(ctx, req)
	default:
		err = a.uploadFile(ctx, req)
	}
	if err != nil {
		return nil, err
	}

	logrus.Infof("[AWS] Waiting for object to exist: %s/%s", req.Container, req.ObjectName)
	waiter := s3.NewObjectExistsWaiter(a.s3)
	err = waiter.Wait(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(req.Container),
		Key:    aws.String(req.ObjectName),
	}, 5*time.Minute)
	if err != nil {
		return nil, clientError(err)
	}

	logrus.Infof("[AWS] Successfully uploaded %s", req.ImagePath)

	if len(req.Tags) > 0 {
		if err := a.TagObject(ctx, req.Container, req.ObjectName, req.Tags); err != nil {
			return nil, err
		}
	}

	return &cloud.StorageObject{Container: req.Container, Name: req.ObjectName}, nil
}

func (a *AWS) createContainer(ctx context.Context, name string) error {
	logrus.Infof("[AWS] Creating container: %s", name)

	input := &s3.CreateBucketInput{
		Bucket: aws.String(name),
	}
	// us-east-1 rejects itself as a location constraint.
	if a.region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(a.region),
		}
	}

	if _, err := a.s3.CreateBucket(ctx, input); err != nil {
		return clientError(err)
	}

	waiter := s3.NewBucketExistsWaiter(a.s3)
	err := waiter.Wait(ctx, &s3.HeadBucketInput{Bucket: aws.String(name)}, time.Minute)
	if err != nil {
		return clientError(err)
	}

	// S3 takes a moment to propagate new buckets to EC2, usually a couple
	// of seconds, with no API to observe it.
	delay := a.BucketPropagationDelay
	if delay == 0 {
		delay = defaultBucketPropagationDelay
	}
	logrus.Infof("[AWS] Waiting %s for container %q to propagate", delay, name)
	time.Sleep(delay)

	return nil
}

func (a *AWS) uploadFromURL(ctx context.Context, req *cloud.PublishRequest) error {
	if req.Compressed() {
		return &cloud.UnsupportedError{Op: "xz decompression of a remote image source"}
	}

	logrus.Infof("[AWS] Opening stream to: %s", req.ImagePath)

	client := retryablehttp.NewClient()
	client.Logger = nil
	timeout := a.HTTPTimeout
	if timeout == 0 {
		timeout = defaultHTTPTimeout
	}
	client.HTTPClient.Timeout = timeout

	resp, err := client.Get(req.ImagePath)
	if err != nil {
		return fmt.Errorf("cannot open the remote image source: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %s fetching %s", resp.Status, req.ImagePath)
	}

	tracker := progress.NewIndeterminate(req.Container, req.ObjectName)
	return a.putObject(ctx, req, tracker.NewReader(resp.Body))
}

func (a *AWS) uploadCompressedFile(ctx context.Context, req *cloud.PublishRequest) error {
	logrus.Infof("[AWS] Processing an xz compressed file: %s", req.ImagePath)

	file, err := os.Open(req.ImagePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decompressed, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("cannot open the xz stream: %w", err)
	}

	// The decompressed size is unknown up front.
	tracker := progress.NewIndeterminate(req.Container, req.ObjectName)
	return a.putObject(ctx, req, tracker.NewReader(decompressed))
}

func (a *AWS) uploadFile(ctx context.Context, req *cloud.PublishRequest) error {
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
	return a.putObject(ctx, req, tracker.NewReader(file))
}

func (a *AWS) putObject(ctx context.Context, req *cloud.PublishRequest, body io.Reader) error {
	_, err := a.s3uploader.Upload(
		ctx,
		&s3.PutObjectInput{
			Bucket: aws.String(req.Container),
			Key:    aws.String(req.ObjectName),
			Body:   body,
		},
		func(u *manager.Uploader) {
			if a.UploadPartSize > 0 {
				u.PartSize = a.UploadPartSize
			}
		},
	)
	return clientError(err)
}
