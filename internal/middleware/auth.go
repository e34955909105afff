package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
)

// TokenValidator validates a bearer token and returns the authenticated
// user id. Implemented by auth.JWTService.
type TokenValidator interface {
	ValidateAccessToken(token string) (string, error)
}

// Auth is a middleware that requires a valid Bearer access token. On
// success, the authenticated user id is stored in the request context
// for handlers and the logging middleware.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				writeAuthError(w, r, "Missing bearer token")
				return
			}

			userID, err := validator.ValidateAccessToken(token)
			if err != nil {
				writeAuthError(w, r, "Invalid or expired token")
				return
			}

			ctx := SetUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes a 401 in the standard error envelope. Duplicated
// from the api package to avoid an import cycle.
func writeAuthError(w http.ResponseWriter, r *http.Request, message string) {
	UpdateResponseContext(w, SetErrorCode(r.Context(), "auth_failed"))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "auth_failed",
			"message": message,
		},
	})
}
