package awscloud

import (
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// Error codes AWS uses for a definitive "does not exist", which the
// locators absorb into an absent result.
var notFoundCodes = map[string]bool{
	"NotFound":     true,
	"NoSuchBucket": true,
	"NoSuchKey":    true,
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && notFoundCodes[apiErr.ErrorCode()] {
		return true
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return true
	}
	return false
}

// clientError attaches the AWS request id to errors coming back from
// provider calls. The request id is what AWS support asks for when
// escalating, so it must never be swallowed.
func clientError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.ServiceRequestID() != "" {
		return fmt.Errorf("aws request %s: %w", respErr.ServiceRequestID(), err)
	}
	return err
}
