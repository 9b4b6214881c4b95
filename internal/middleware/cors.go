package middleware

import (
	"net/http"
)

type CORSMiddleware struct {
	allowAll bool
	origins  map[string]struct{}
}

// NewCORSMiddleware applies the configured origin allow-list and answers
// preflight requests.
func NewCORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	cm := &CORSMiddleware{origins: make(map[string]struct{}, len(allowedOrigins))}

	for _, o := range allowedOrigins {
		if o == "*" {
			cm.allowAll = true
		}

		cm.origins[o] = struct{}{}
	}

	return cm.middleware
}

func (cm *CORSMiddleware) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if allowed := cm.allowedOrigin(origin); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

			if !cm.allowAll {
				w.Header().Set("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (cm *CORSMiddleware) allowedOrigin(origin string) string {
	if cm.allowAll {
		return "*"
	}

	if origin == "" {
		return ""
	}

	if _, ok := cm.origins[origin]; ok {
		return origin
	}

	return ""
}
