package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.True(t, IsNotFoundError(ErrTaskNotFound))
	assert.True(t, IsNotFoundError(fmt.Errorf("wrapped: %w", ErrTaskNotFound)))
	assert.False(t, IsNotFoundError(ErrDuplicate))
	assert.False(t, IsNotFoundError(nil))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection refused")

	err := NewStoreError("connection", "scan", "failed to read page", cause)

	assert.Equal(t, "scan operation on connection failed: failed to read page: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("task", "update", "no rows", nil)
	assert.Equal(t, "update operation on task failed: no rows", bare.Error())
}
