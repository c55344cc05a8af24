package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/todo-api/internal/api/shared"
	"github.com/phrazzld/todo-api/internal/domain"
)

// TaskIDParam names the chi URL parameter carrying the task ID.
const TaskIDParam = "taskId"

// requirePrincipal returns the authenticated principal, or writes 401 and
// returns false.
func requirePrincipal(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		log.Warn("principal not found in request context")
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return "", false
	}
	return principal, true
}

// requireTaskID returns the task ID path parameter, or writes 400 and
// returns false.
func requireTaskID(w http.ResponseWriter, r *http.Request, log *slog.Logger) (string, bool) {
	taskID := chi.URLParam(r, TaskIDParam)
	if taskID == "" || strings.Contains(taskID, domain.KeySeparator) {
		log.Warn("invalid task ID path parameter", slog.String("value", taskID))
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid task ID")
		return "", false
	}
	return taskID, true
}
