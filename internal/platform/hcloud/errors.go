package hcloud

import (
	"errors"
	"fmt"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"
)

// ProviderError is a failed Hetzner Cloud operation on one resource.
type ProviderError struct {
	Op       string
	Resource string
	Code     hcloud.ErrorCode
	Message  string
	Err      error
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("hcloud: %s %s: %s (%s)", e.Op, e.Resource, e.Message, e.Code)
	}
	return fmt.Sprintf("hcloud: %s %s: %v", e.Op, e.Resource, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// providerError wraps err for op on resource. Errors that already are a
// ProviderError pass through.
func providerError(op, resource string, err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	pe = &ProviderError{Op: op, Resource: resource, Err: err}
	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		pe.Code = hcloudErr.Code
		pe.Message = hcloudErr.Message
	}
	return pe
}

// isResourceLocked checks if an error indicates a resource is locked.
// Locked resources typically occur while another action on the same
// resource is still running. These errors are retryable.
func isResourceLocked(err error) bool {
	return isHCloudErrorCode(err,
		hcloud.ErrorCodeLocked,
		hcloud.ErrorCodeConflict,
		hcloud.ErrorCodeResourceLocked,
	)
}

// isHCloudErrorCode checks if the error is an hcloud API error with one of the given codes.
func isHCloudErrorCode(err error, codes ...hcloud.ErrorCode) bool {
	if err == nil {
		return false
	}
	var hcloudErr hcloud.Error
	if errors.As(err, &hcloudErr) {
		for _, code := range codes {
			if hcloudErr.Code == code {
				return true
			}
		}
	}
	return false
}

// IsNotFound checks if an error indicates a resource was not found.
func IsNotFound(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeNotFound)
}

// IsQuotaExceeded reports whether the project ran out of resource quota.
func IsQuotaExceeded(err error) bool {
	return isHCloudErrorCode(err, hcloud.ErrorCodeResourceLimitExceeded, hcloud.ErrorCodeResourceUnavailable)
}
