package awscloud

import (
	"time"

	"github.com/release-engineering/cloudimg/internal/poll"
)

// NewForTest wires an AWS instance with mocked clients and polling knobs
// suitable for a unit test.
func NewForTest(ec2cli EC2, s3cli S3, uploader S3Manager, region string) *AWS {
	return &AWS{
		ec2:        ec2cli,
		s3:         s3cli,
		s3uploader: uploader,
		region:     region,
		// Keep the reconcilers far below the test timeout.
		BucketPropagationDelay: time.Millisecond,
		importPoll: poll.Options{
			Name:        "snapshot import",
			Interval:    time.Millisecond,
			MaxAttempts: 10,
		},
	}
}
