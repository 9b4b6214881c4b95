package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"gigaproxy/internal/openai"
)

type AuthMiddleware struct {
	apiKeys map[string]struct{}
	logger  *slog.Logger
}

// NewAuthMiddleware validates the Authorization header against the
// configured API key allow-list.
func NewAuthMiddleware(apiKeys []string, logger *slog.Logger) func(http.Handler) http.Handler {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		keys[k] = struct{}{}
	}

	am := &AuthMiddleware{apiKeys: keys, logger: logger}

	return am.middleware
}

func (am *AuthMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")

		if auth == "" {
			am.logger.Warn("Request missing Authorization header", "path", r.URL.Path, "remote_addr", r.RemoteAddr)
			writeError(w, http.StatusUnauthorized,
				"API key is required. Provide it in the Authorization header as 'Bearer YOUR_API_KEY'",
				openai.ErrTypeAuthentication, "api_key_required")

			return
		}

		parts := strings.Fields(auth)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			am.logger.Warn("Invalid Authorization header format", "path", r.URL.Path)
			writeError(w, http.StatusUnauthorized,
				"Invalid Authorization header format. Use 'Bearer YOUR_API_KEY'",
				openai.ErrTypeAuthentication, "invalid_auth_format")

			return
		}

		if _, ok := am.apiKeys[parts[1]]; !ok {
			am.logger.Warn("Invalid API key attempted", "key_prefix", keyPrefix(parts[1]))
			writeError(w, http.StatusUnauthorized,
				"Invalid API key",
				openai.ErrTypeAuthentication, "invalid_api_key")

			return
		}

		next.ServeHTTP(w, r)
	})
}

func keyPrefix(key string) string {
	if len(key) > 5 {
		return key[:5]
	}

	return key
}
