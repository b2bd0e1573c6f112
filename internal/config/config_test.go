package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "http://localhost:8083", cfg.APIBaseURL)
	require.Equal(t, "ws://localhost:8083/ws", cfg.WSURL)
	require.Equal(t, ":8083", cfg.HTTPAddr)
	require.Equal(t, 15*time.Second, cfg.RequestTimeout)
	require.Equal(t, "kratos.audit", cfg.AuditExchange)
	require.False(t, cfg.DebugRoutes)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("KRATOS_API_URL", "https://api.example.com")
	t.Setenv("KRATOS_REQUEST_TIMEOUT", "2s")
	t.Setenv("DEBUG_ROUTES", "true")

	cfg := Load()

	require.Equal(t, "https://api.example.com", cfg.APIBaseURL)
	require.Equal(t, 2*time.Second, cfg.RequestTimeout)
	require.True(t, cfg.DebugRoutes)
}
