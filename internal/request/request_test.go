package request

import (
	"net/http"
	"net/url"
	"testing"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		req    *http.Request
		expect string
	}{
		{
			name:   "peer address",
			req:    &http.Request{RemoteAddr: "192.0.2.10:51234"},
			expect: "192.0.2.10",
		},
		{
			name:   "IPv6 peer address",
			req:    &http.Request{RemoteAddr: "[2001:db8::1]:443"},
			expect: "2001:db8::1",
		},
		{
			name: "Forwarded for",
			req: &http.Request{
				RemoteAddr: "10.0.0.1:1000",
				Header:     http.Header{"Forwarded": {`for=192.0.2.60;proto=https;by=203.0.113.43`}},
			},
			expect: "192.0.2.60",
		},
		{
			name: "Forwarded quoted IPv6 with port",
			req: &http.Request{
				RemoteAddr: "10.0.0.1:1000",
				Header:     http.Header{"Forwarded": {`For="[2001:db8:cafe::17]:4711"`}},
			},
			expect: "2001:db8:cafe::17",
		},
		{
			name: "X-Forwarded-For first hop",
			req: &http.Request{
				RemoteAddr: "10.0.0.1:1000",
				Header:     http.Header{"X-Forwarded-For": {"203.0.113.7, 10.0.0.2"}},
			},
			expect: "203.0.113.7",
		},
		{
			name: "X-Real-IP",
			req: &http.Request{
				RemoteAddr: "10.0.0.1:1000",
				Header:     http.Header{"X-Real-Ip": {"198.51.100.4"}},
			},
			expect: "198.51.100.4",
		},
		{
			name: "Forwarded beats X-Forwarded-For",
			req: &http.Request{
				RemoteAddr: "10.0.0.1:1000",
				Header: http.Header{
					"Forwarded":       {"for=192.0.2.1"},
					"X-Forwarded-For": {"192.0.2.2"},
				},
			},
			expect: "192.0.2.1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClientIP(tt.req); got != tt.expect {
				t.Errorf("ClientIP() = %q, want %q", got, tt.expect)
			}
		})
	}
}

func TestLine(t *testing.T) {
	req := &http.Request{
		Method:     "GET",
		RequestURI: "/Cargo.lock?x=1",
		Proto:      "HTTP/2.0",
	}
	if got, want := Line(req), "GET /Cargo.lock?x=1 HTTP/2.0"; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}

	// Client-side requests have no RequestURI; the URL is used instead.
	req = &http.Request{
		Method: "HEAD",
		URL:    &url.URL{Path: "/docs/"},
		Proto:  "HTTP/1.1",
	}
	if got, want := Line(req), "HEAD /docs/ HTTP/1.1"; got != want {
		t.Errorf("Line() = %q, want %q", got, want)
	}
}

func TestPeerIP(t *testing.T) {
	req := &http.Request{
		RemoteAddr: "10.0.0.1:1000",
		Header:     http.Header{"X-Forwarded-For": {"203.0.113.7"}},
	}
	if got := PeerIP(req); got != "10.0.0.1" {
		t.Errorf("PeerIP() = %q, want 10.0.0.1", got)
	}
}
