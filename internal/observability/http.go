package observability

import (
	"net"
	"net/http"
	"strings"
)

// RequestMeta identifies the calling device on audit and log lines.
// The product apps send the request and device ids on every call; the
// IP falls back to the transport peer when no proxy header is present.
type RequestMeta struct {
	RequestID string
	DeviceID  string
	IP        string
}

// MetaFromRequest extracts the client-identifying headers.
func MetaFromRequest(r *http.Request) RequestMeta {
	return RequestMeta{
		RequestID: r.Header.Get("X-Request-Id"),
		DeviceID:  r.Header.Get("X-Device-Id"),
		IP:        clientIP(r),
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		return strings.TrimSpace(parts[0])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
