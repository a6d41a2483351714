package security

import (
	"net/http"
	"strings"
)

// CORS answers cross-origin requests for the JSON API.
type CORS struct {
	allowAll bool
	origins  map[string]struct{}
	methods  string
	headers  string
}

// NewCORS allows the listed origins. A "*" entry allows any origin.
func NewCORS(allowedOrigins []string) *CORS {
	c := &CORS{
		origins: make(map[string]struct{}),
		methods: "GET, POST, PUT, DELETE, OPTIONS",
		headers: "Content-Type, X-Request-ID, HX-Request, HX-Target, HX-Current-URL",
	}
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			c.allowAll = true
		default:
			c.origins[o] = struct{}{}
		}
	}
	return c
}

func (c *CORS) allowed(origin string) bool {
	if c.allowAll {
		return true
	}
	_, ok := c.origins[origin]
	return ok
}

// Middleware sets CORS headers and short-circuits preflight requests.
func (c *CORS) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			next.ServeHTTP(w, r)
			return
		}

		hdr := w.Header()
		hdr.Add("Vary", "Origin")
		ok := c.allowed(origin)
		if ok {
			if c.allowAll {
				hdr.Set("Access-Control-Allow-Origin", "*")
			} else {
				hdr.Set("Access-Control-Allow-Origin", origin)
			}
			hdr.Set("Access-Control-Expose-Headers", "X-Request-ID")
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			if !ok {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			hdr.Set("Access-Control-Allow-Methods", c.methods)
			hdr.Set("Access-Control-Allow-Headers", c.headers)
			hdr.Set("Access-Control-Max-Age", "600")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
