package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/phrazzld/todo-api/internal/api/shared"
)

// RequireInternalToken rejects requests that do not present token in the
// X-Internal-Token header or the "token" query parameter. An empty token
// rejects every request.
func RequireInternalToken(token string) func(http.Handler) http.Handler {
	expected := []byte(token)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(shared.InternalTokenHeader)
			if presented == "" {
				presented = r.URL.Query().Get(shared.InternalTokenQueryParam)
			}

			if len(expected) == 0 || presented == "" ||
				subtle.ConstantTimeCompare([]byte(presented), expected) != 1 {
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid internal token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
