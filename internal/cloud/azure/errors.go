package azure

import (
	"errors"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

// clientError attaches the Azure request id to errors coming back from
// storage calls so failures can be correlated with the provider's own
// logs.
func clientError(err error) error {
	if err == nil {
		return nil
	}
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) && respErr.RawResponse != nil {
		if requestID := respErr.RawResponse.Header.Get("x-ms-request-id"); requestID != "" {
			return fmt.Errorf("azure request %s: %w", requestID, err)
		}
	}
	return err
}
