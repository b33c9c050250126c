package errors_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "github.com/vetdesk/appointment-engine/pkg/errors"
)

func TestAppError_Error(t *testing.T) {
	t.Run("formats type and message", func(t *testing.T) {
		err := apperrors.NewSlotConflictError("veterinarian vet-1 is booked on 2026-10-01 at 09:00")
		assert.Equal(t, "SLOT_CONFLICT: veterinarian vet-1 is booked on 2026-10-01 at 09:00", err.Error())
	})

	t.Run("includes wrapped error", func(t *testing.T) {
		cause := fmt.Errorf("connection refused")
		err := apperrors.NewStorageUnavailableError("ping failed", cause)
		assert.Contains(t, err.Error(), "STORAGE_UNAVAILABLE")
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, cause, err.Unwrap())
	})
}

func TestIsType(t *testing.T) {
	t.Run("matches wrapped AppError", func(t *testing.T) {
		err := fmt.Errorf("transition failed: %w", apperrors.NewInvalidTransitionError("cannot confirm a PENDING appointment"))
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeInvalidTransition))
		assert.False(t, apperrors.IsType(err, apperrors.ErrorTypeSlotConflict))
	})

	t.Run("plain errors match nothing", func(t *testing.T) {
		assert.False(t, apperrors.IsType(fmt.Errorf("boom"), apperrors.ErrorTypeInternal))
		assert.Equal(t, apperrors.ErrorTypeInternal, apperrors.TypeOf(fmt.Errorf("boom")))
	})
}

func TestRetryable(t *testing.T) {
	assert.True(t, apperrors.NewLockTimeoutError("slot lock").Retryable())
	assert.False(t, apperrors.NewSlotConflictError("taken").Retryable())
	assert.False(t, apperrors.NewConflictError("stale version").Retryable())
	assert.False(t, apperrors.NewForbiddenError("wrong actor").Retryable())
}
