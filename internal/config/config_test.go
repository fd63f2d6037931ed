package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("DB_DSN", "")
	t.Setenv("WORKER_CONCURRENCY", "500")
	t.Setenv("GROK_API_KEY", `"xai-key"`)

	cfg := Load()
	require.Equal(t, ":8080", cfg.Addr)
	require.Equal(t, "sqlite:lazycook.db", cfg.DBDSN)
	require.Equal(t, 50, cfg.WorkerConcurrency)
	require.Equal(t, "xai-key", cfg.GrokAPIKey)
	require.Equal(t, 24*time.Hour, cfg.JWTTTL)
	require.Equal(t, "sql", cfg.SessionStore)
}

func TestLoad_PortWithHost(t *testing.T) {
	t.Setenv("PORT", "127.0.0.1:9000")
	require.Equal(t, "127.0.0.1:9000", Load().Addr)
}

func TestParseOrigins(t *testing.T) {
	require.Nil(t, ParseOrigins(""))
	require.Nil(t, ParseOrigins(" * "))

	got := ParseOrigins("https://app.lazycook.ai, http://localhost:5173")
	require.Equal(t, []string{
		"https://app.lazycook.ai",
		"http://localhost:5173",
		"http://127.0.0.1:5173",
	}, got)
}
