package remote

import (
	"context"
	"errors"
	"net"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/smithy-go"
)

// Kind classifies a remote store failure.
type Kind string

const (
	// KindNetwork marks transient connectivity failures; retryable by
	// re-invoking the same operation.
	KindNetwork Kind = "network"
	// KindPermission marks access denial; re-authentication is required
	// before retry.
	KindPermission Kind = "permission"
	// KindQuota marks writes rejected for space or rate limits; not
	// retryable without user action.
	KindQuota Kind = "quota"
	// KindUnknown is the catch-all for unclassified adapter failures.
	KindUnknown Kind = "unknown"
)

// SyncError is a classified remote store failure.
type SyncError struct {
	Kind Kind
	Err  error
}

func (e *SyncError) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// Classify wraps err into a *SyncError, mapping S3 API error codes, HTTP
// statuses and transport errors onto the error taxonomy. Already-classified
// errors pass through unchanged.
func Classify(err error) *SyncError {
	if err == nil {
		return nil
	}

	var se *SyncError
	if errors.As(err, &se) {
		return se
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"ExpiredToken", "TokenRefreshRequired":
			return &SyncError{Kind: KindPermission, Err: err}
		case "QuotaExceeded", "EntityTooLarge", "SlowDown":
			return &SyncError{Kind: KindQuota, Err: err}
		case "RequestTimeout":
			return &SyncError{Kind: KindNetwork, Err: err}
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &SyncError{Kind: KindPermission, Err: err}
		case http.StatusInsufficientStorage, http.StatusTooManyRequests:
			return &SyncError{Kind: KindQuota, Err: err}
		case http.StatusRequestTimeout:
			return &SyncError{Kind: KindNetwork, Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &SyncError{Kind: KindNetwork, Err: err}
	}

	return &SyncError{Kind: KindUnknown, Err: err}
}
