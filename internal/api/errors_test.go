package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/phrazzld/todo-api/internal/api/shared"
	"github.com/phrazzld/todo-api/internal/domain"
	"github.com/phrazzld/todo-api/internal/service"
	"github.com/phrazzld/todo-api/internal/service/auth"
	"github.com/phrazzld/todo-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorToStatusCodeAndMessage(t *testing.T) {
	tests := []struct {
		name            string
		err             error
		expectedStatus  int
		expectedMessage string
	}{
		{
			name:            "nil error",
			err:             nil,
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "An unexpected error occurred",
		},
		{
			name:            "wrapped token error",
			err:             fmt.Errorf("validate: %w", auth.ErrExpiredToken),
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Invalid token",
		},
		{
			name:            "missing principal",
			err:             service.NewTaskServiceError("list_tasks", "missing principal", service.ErrInvalidPrincipal),
			expectedStatus:  http.StatusUnauthorized,
			expectedMessage: "Authentication required",
		},
		{
			name:            "task not found through service error",
			err:             service.NewTaskServiceError("update_task", "task not found", store.ErrTaskNotFound),
			expectedStatus:  http.StatusNotFound,
			expectedMessage: "Task not found",
		},
		{
			name:            "duplicate",
			err:             store.ErrDuplicate,
			expectedStatus:  http.StatusConflict,
			expectedMessage: "Task already exists",
		},
		{
			name:            "invalid input",
			err:             service.NewTaskServiceError("create_task", "bad", service.ErrInvalidTaskInput),
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid task data",
		},
		{
			name:            "invalid storage key",
			err:             fmt.Errorf("%w: %q", domain.ErrInvalidStorageKey, "nokey"),
			expectedStatus:  http.StatusBadRequest,
			expectedMessage: "Invalid object key",
		},
		{
			name:            "unknown error",
			err:             errors.New("connection reset by peer"),
			expectedStatus:  http.StatusInternalServerError,
			expectedMessage: "An unexpected error occurred",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expectedStatus, MapErrorToStatusCode(tt.err))
			assert.Equal(t, tt.expectedMessage, GetSafeErrorMessage(tt.err))
		})
	}
}

func TestHandleAPIError(t *testing.T) {
	t.Run("fallback replaces generic 500 message", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)

		HandleAPIError(w, r, errors.New("pq: relation does not exist"), "Failed to list tasks")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		var resp shared.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Failed to list tasks", resp.Error)
	})

	t.Run("fallback ignored for mapped errors", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)

		HandleAPIError(w, r, store.ErrTaskNotFound, "Failed to list tasks")

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "Task not found")
	})
}
