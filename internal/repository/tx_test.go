package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"reservation-service/internal/models"
)

func TestWrapTransient_RetryableCodes(t *testing.T) {
	for _, code := range []pq.ErrorCode{"40001", "40P01", "55P03"} {
		err := wrapTransient(fmt.Errorf("exec: %w", &pq.Error{Code: code}))
		assert.ErrorIs(t, err, models.ErrTransientStorage, "code %s must be retryable", code)
	}
}

func TestWrapTransient_NonRetryableCodes(t *testing.T) {
	// Constraint violations are permanent failures; retrying would only
	// repeat them.
	for _, code := range []pq.ErrorCode{"23505", "23503", "23514"} {
		err := wrapTransient(fmt.Errorf("exec: %w", &pq.Error{Code: code}))
		assert.NotErrorIs(t, err, models.ErrTransientStorage, "code %s must not be retryable", code)
	}
}

func TestWrapTransient_PlainErrors(t *testing.T) {
	plain := errors.New("connection reset")
	assert.Equal(t, plain, wrapTransient(plain))
	assert.NoError(t, wrapTransient(nil))
}
