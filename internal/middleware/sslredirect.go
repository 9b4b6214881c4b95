package middleware

import (
	"log/slog"
	"net/http"
)

type SSLRedirectMiddleware struct {
	enabled bool
	logger  *slog.Logger
}

// NewSSLRedirectMiddleware redirects plain-HTTP requests to HTTPS when
// force-SSL is enabled. The scheme is taken from X-Forwarded-Proto since the
// proxy normally sits behind a TLS-terminating load balancer.
func NewSSLRedirectMiddleware(enabled bool, logger *slog.Logger) func(http.Handler) http.Handler {
	sm := &SSLRedirectMiddleware{enabled: enabled, logger: logger}

	return sm.middleware
}

func (sm *SSLRedirectMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sm.enabled && r.TLS == nil && r.Header.Get("X-Forwarded-Proto") == "http" {
			target := "https://" + r.Host + r.URL.RequestURI()
			sm.logger.Debug("Redirecting to HTTPS", "target", target)
			http.Redirect(w, r, target, http.StatusMovedPermanently)

			return
		}

		next.ServeHTTP(w, r)
	})
}
