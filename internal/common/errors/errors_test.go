package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandardError_IsAndHasCode(t *testing.T) {
	base := stderrors.New("connection refused")
	err := fmt.Errorf("create notification: %w", NewPersistenceError("insert", base))

	assert.True(t, HasCode(err, ErrCodePersistenceFailed))
	assert.False(t, HasCode(err, ErrCodeTemplateNotFound))
	assert.True(t, stderrors.Is(err, &StandardError{Code: ErrCodePersistenceFailed}))
	assert.True(t, stderrors.Is(err, base), "cause must stay reachable")

	stdErr, ok := AsStandard(err)
	require.True(t, ok)
	assert.True(t, stdErr.Retryable)
	assert.Contains(t, stdErr.Error(), "PERSISTENCE_FAILED")
}

func TestConvertToBPMNError(t *testing.T) {
	tests := []struct {
		name            string
		err             *StandardError
		expectedRetries int
		retryable       bool
	}{
		{"persistence is retried", NewPersistenceError("insert", stderrors.New("down")), 3, true},
		{"template not found is a business error", NewTemplateNotFoundError("tpl-1"), 0, false},
		{"validation is a business error", NewValidationError("recipients is empty"), 0, false},
		{"timeout retried twice", NewTimeoutError("smtp", context.DeadlineExceeded), 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bpmn := ConvertToBPMNError(tt.err)
			assert.Equal(t, string(tt.err.Code), bpmn.Code)
			assert.Equal(t, tt.expectedRetries, bpmn.Retries)
			assert.Equal(t, tt.retryable, bpmn.Retryable)

			vars := bpmn.ToErrorVariables()
			assert.Equal(t, string(tt.err.Code), vars["errorCode"])
			assert.Equal(t, string(tt.err.Code), vars["originalErrorCode"])
		})
	}
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, ErrCodeTemplateNotFound, Normalize(NewTemplateNotFoundError("x")).Code)
	assert.Equal(t, ErrCodeTimeout, Normalize(fmt.Errorf("send: %w", context.DeadlineExceeded)).Code)

	internal := Normalize(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, internal.Code)
	assert.False(t, internal.Retryable)
}

func TestRemainingRetries(t *testing.T) {
	assert.Equal(t, 2, RemainingRetries(3, 3))
	assert.Equal(t, 3, RemainingRetries(10, 3))
	assert.Equal(t, 0, RemainingRetries(1, 3))
	assert.Equal(t, 0, RemainingRetries(0, 3))
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "TEMPLATE", GetErrorCategory(ErrCodeTemplateNotFound))
	assert.Equal(t, "DATABASE", GetErrorCategory(ErrCodePersistenceFailed))
	assert.Equal(t, "DELIVERY", GetErrorCategory(ErrCodeChannelDeliveryFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeRecipientResolutionFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeNotificationNotFound))
}
