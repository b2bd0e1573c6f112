package observability

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMetaFromRequestReadsProductHeaders(t *testing.T) {
	req := httptest.NewRequest("GET", "/users/me", nil)
	req.Header.Set("X-Request-Id", "req-1")
	req.Header.Set("X-Device-Id", "device-9")
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	meta := MetaFromRequest(req)
	assert.Equal(t, "req-1", meta.RequestID)
	assert.Equal(t, "device-9", meta.DeviceID)
	assert.Equal(t, "203.0.113.7", meta.IP)
}

func TestMetaFromRequestFallsBackToRemoteAddr(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "198.51.100.4:51234"

	meta := MetaFromRequest(req)
	assert.Equal(t, "198.51.100.4", meta.IP)
	assert.Empty(t, meta.RequestID)
	assert.Empty(t, meta.DeviceID)
}
