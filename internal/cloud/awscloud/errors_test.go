package awscloud

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
)

func TestIsNotFound(t *testing.T) {
	for _, code := range []string{"NotFound", "NoSuchBucket", "NoSuchKey"} {
		err := &smithy.GenericAPIError{Code: code, Message: "gone"}
		assert.True(t, isNotFound(err), code)
		assert.True(t, isNotFound(fmt.Errorf("head object: %w", err)), code)
	}

	assert.False(t, isNotFound(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isNotFound(errors.New("connection refused")))
	assert.False(t, isNotFound(nil))
}

func TestClientError(t *testing.T) {
	assert.NoError(t, clientError(nil))

	// Errors without a response pass through untouched.
	plain := errors.New("connection refused")
	assert.Equal(t, plain, clientError(plain))
}
