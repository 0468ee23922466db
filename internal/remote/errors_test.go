package remote

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeNetError struct{}

func (fakeNetError) Error() string   { return "connection refused" }
func (fakeNetError) Timeout() bool   { return true }
func (fakeNetError) Temporary() bool { return true }

func apiError(code string) error {
	return &smithy.GenericAPIError{Code: code, Message: code}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"access denied", apiError("AccessDenied"), KindPermission},
		{"bad credentials", apiError("InvalidAccessKeyId"), KindPermission},
		{"expired token", apiError("ExpiredToken"), KindPermission},
		{"quota", apiError("QuotaExceeded"), KindQuota},
		{"too large", apiError("EntityTooLarge"), KindQuota},
		{"throttled", apiError("SlowDown"), KindQuota},
		{"request timeout", apiError("RequestTimeout"), KindNetwork},
		{"net error", fakeNetError{}, KindNetwork},
		{"wrapped net error", fmt.Errorf("put: %w", fakeNetError{}), KindNetwork},
		{"deadline", context.DeadlineExceeded, KindNetwork},
		{"unclassified", errors.New("boom"), KindUnknown},
		{"unknown api code", apiError("TeapotError"), KindUnknown},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			se := Classify(tc.err)
			require.NotNil(t, se)
			assert.Equal(t, tc.want, se.Kind)
		})
	}
}

func TestClassify_Nil(t *testing.T) {
	assert.Nil(t, Classify(nil))
}

func TestClassify_PassThrough(t *testing.T) {
	orig := &SyncError{Kind: KindQuota, Err: errors.New("full")}
	assert.Same(t, orig, Classify(orig))
	assert.Same(t, orig, Classify(fmt.Errorf("wrapped: %w", orig)))
}

func TestSyncError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	se := &SyncError{Kind: KindNetwork, Err: inner}
	assert.ErrorIs(t, se, inner)
	assert.Equal(t, "network: inner", se.Error())
}
