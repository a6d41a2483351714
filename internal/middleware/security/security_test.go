package security

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/log"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestHeadersMiddleware(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig()).Middleware(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	hdr := rec.Header()
	if got := hdr.Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("X-Frame-Options = %q", got)
	}
	if csp := hdr.Get("Content-Security-Policy"); !strings.Contains(csp, "script-src 'self' https://unpkg.com") {
		t.Errorf("CSP = %q", csp)
	}
	if hdr.Get("Strict-Transport-Security") != "" {
		t.Error("HSTS must not be sent over plain HTTP")
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		origins    []string
		method     string
		origin     string
		preflight  bool
		wantStatus int
		wantAllow  string
	}{
		{"no origin header", []string{"http://a.test"}, http.MethodGet, "", false, http.StatusOK, ""},
		{"allowed origin", []string{"http://a.test"}, http.MethodGet, "http://a.test", false, http.StatusOK, "http://a.test"},
		{"unknown origin passes without header", []string{"http://a.test"}, http.MethodGet, "http://b.test", false, http.StatusOK, ""},
		{"wildcard", []string{"*"}, http.MethodGet, "http://b.test", false, http.StatusOK, "*"},
		{"preflight allowed", []string{"http://a.test/"}, http.MethodOptions, "http://a.test", true, http.StatusNoContent, "http://a.test"},
		{"preflight rejected", []string{"http://a.test"}, http.MethodOptions, "http://b.test", true, http.StatusForbidden, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCORS(tt.origins).Middleware(okHandler)
			req := httptest.NewRequest(tt.method, "/api/get-transactions", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.preflight {
				req.Header.Set("Access-Control-Request-Method", http.MethodPut)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
			if tt.wantStatus == http.StatusNoContent && !strings.Contains(rec.Header().Get("Access-Control-Allow-Methods"), "DELETE") {
				t.Error("preflight should list DELETE")
			}
		})
	}
}

func TestDetector_DetectSuspiciousRequest(t *testing.T) {
	d := NewDetector(log.New(log.Config{Output: io.Discard}))

	tests := []struct {
		name   string
		method string
		target string
		ua     string
		want   string
	}{
		{"clean", http.MethodGet, "/api/get-transactions?type=income", "Mozilla/5.0", ""},
		{"path traversal", http.MethodGet, "/static/../../etc/passwd", "", "pattern"},
		{"query injection", http.MethodGet, "/api/get-transactions?category=javascript:alert(1)", "", "pattern"},
		{"scanner", http.MethodGet, "/", "sqlmap/1.7", "user_agent"},
		{"trace method", "TRACE", "/", "", "method"},
		{"long url", http.MethodGet, "/?q=" + strings.Repeat("a", 2100), "", "url_length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.target, nil)
			if tt.ua != "" {
				req.Header.Set("User-Agent", tt.ua)
			}
			if got := d.DetectSuspiciousRequest(req); got != tt.want {
				t.Errorf("reason = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDetector_Middleware(t *testing.T) {
	var buf bytes.Buffer
	d := NewDetector(log.New(log.Config{Format: "json", Output: &buf}))
	h := d.Middleware(okHandler)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("TRACE", "/", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("TRACE status = %d, want 405", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/.env", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("suspicious GET should still be served, got %d", rec.Code)
	}

	m := d.GetMetrics()
	if m.SuspiciousRequests != 2 || m.BlockedRequests != 1 {
		t.Errorf("metrics = %+v", m)
	}
	if !strings.Contains(buf.String(), "Suspicious request") {
		t.Errorf("expected warning log, got %s", buf.String())
	}
}

func TestDetector_ExtractClientIP(t *testing.T) {
	d := NewDetector(log.New(log.Config{Output: io.Discard}))

	tests := []struct {
		name   string
		remote string
		xff    string
		xri    string
		want   string
	}{
		{"direct public peer ignores headers", "203.0.113.9:5000", "1.2.3.4", "", "203.0.113.9"},
		{"trusted proxy uses first xff", "10.0.0.2:80", "198.51.100.7, 10.0.0.1", "", "198.51.100.7"},
		{"trusted proxy falls back to x-real-ip", "127.0.0.1:80", "garbage", "198.51.100.8", "198.51.100.8"},
		{"trusted proxy without headers", "192.168.1.1:80", "", "", "192.168.1.1"},
		{"unparseable remote", "pipe", "", "", "pipe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				req.Header.Set("X-Real-IP", tt.xri)
			}
			if got := d.ExtractClientIP(req); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}
