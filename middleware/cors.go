package middleware

import (
	"net/http"
	"slices"
	"strconv"
	"strings"
)

// CORSConfig configures the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins allowed to call the API. "*" allows any.
	// Default: ["*"]
	AllowedOrigins []string

	// AllowedMethods is sent in preflight responses.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string

	// AllowedHeaders is sent in preflight responses.
	// Default: ["Content-Type", "Authorization", "X-Request-Id"]
	AllowedHeaders []string

	// ExposedHeaders lists response headers readable by the browser.
	ExposedHeaders []string

	// AllowCredentials allows cookies and HTTP auth on cross-origin calls.
	AllowCredentials bool

	// MaxAge is how long, in seconds, a preflight result may be cached.
	// Zero omits the header.
	MaxAge int
}

// DefaultCORSConfig allows any origin to call the API, the way a local
// development server usually wants.
func DefaultCORSConfig() *CORSConfig {
	return &CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", RequestIDHeader},
		ExposedHeaders: []string{RequestIDHeader},
	}
}

// CORS returns HTTP middleware that answers preflight requests and sets the
// CORS headers on every response. A nil cfg uses DefaultCORSConfig.
func CORS(cfg *CORSConfig) func(http.Handler) http.Handler {
	def := DefaultCORSConfig()
	if cfg == nil {
		cfg = def
	}
	origins := cmpOr(cfg.AllowedOrigins, def.AllowedOrigins)
	methods := strings.Join(cmpOr(cfg.AllowedMethods, def.AllowedMethods), ", ")
	headers := strings.Join(cmpOr(cfg.AllowedHeaders, def.AllowedHeaders), ", ")
	exposed := strings.Join(cfg.ExposedHeaders, ", ")
	wildcard := slices.Contains(origins, "*")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			h := w.Header()

			switch {
			case wildcard && origin != "" && cfg.AllowCredentials:
				// "*" cannot be combined with credentials.
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			case wildcard:
				h.Set("Access-Control-Allow-Origin", "*")
			case origin != "" && slices.Contains(origins, origin):
				h.Set("Access-Control-Allow-Origin", origin)
				h.Add("Vary", "Origin")
			}
			if h.Get("Access-Control-Allow-Origin") != "" {
				if cfg.AllowCredentials {
					h.Set("Access-Control-Allow-Credentials", "true")
				}
				if exposed != "" {
					h.Set("Access-Control-Expose-Headers", exposed)
				}
			}

			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", methods)
				h.Set("Access-Control-Allow-Headers", headers)
				if cfg.MaxAge > 0 {
					h.Set("Access-Control-Max-Age", strconv.Itoa(cfg.MaxAge))
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func cmpOr(v, def []string) []string {
	if len(v) == 0 {
		return def
	}
	return v
}
