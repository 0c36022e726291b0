package security

import (
	"net/http/httptest"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	d := NewDetector()

	tests := []struct {
		name       string
		target     string
		userAgent  string
		suspicious bool
	}{
		{"normal api call", "/api/v1/rules", "Go-http-client/2.0", false},
		{"curl is a legitimate client", "/api/v1/rules", "curl/8.0", false},
		{"path traversal", "/api/v1/../../etc/passwd", "", true},
		{"wordpress probe", "/wp-admin/setup.php", "", true},
		{"probe pattern in query", "/api/v1/rules?file=.git/config", "", true},
		{"scanner user agent", "/api/v1/rules", "sqlmap/1.7", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.target, nil)
			if tt.userAgent != "" {
				r.Header.Set("User-Agent", tt.userAgent)
			}
			if got := d.DetectSuspiciousRequest(r); got != tt.suspicious {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.suspicious)
			}
		})
	}

	if d.GetMetrics().SuspiciousRequests != 4 {
		t.Errorf("SuspiciousRequests = %d, want 4", d.GetMetrics().SuspiciousRequests)
	}
}

func TestExtractClientIP(t *testing.T) {
	d := NewDetector()

	t.Run("direct connection", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.7:12345"
		if got := d.ExtractClientIP(r); got != "203.0.113.7" {
			t.Errorf("ExtractClientIP() = %q, want 203.0.113.7", got)
		}
	})

	t.Run("forwarded header from trusted proxy", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "127.0.0.1:8080"
		r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		if got := d.ExtractClientIP(r); got != "203.0.113.7" {
			t.Errorf("ExtractClientIP() = %q, want 203.0.113.7", got)
		}
	})

	t.Run("forwarded header from untrusted peer ignored", func(t *testing.T) {
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.7:12345"
		r.Header.Set("X-Forwarded-For", "198.51.100.1")
		if got := d.ExtractClientIP(r); got != "203.0.113.7" {
			t.Errorf("ExtractClientIP() = %q, want 203.0.113.7", got)
		}
	})
}
