package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadServerDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadServer("")
	require.NoError(t, err)
	require.Equal(t, "0.0.0.0:2222", cfg.Addr)
	require.Equal(t, "at-least-once", cfg.Semantics)
	require.False(t, cfg.AtMostOnce())
}

func TestLoadClientDefaultsWithoutFile(t *testing.T) {
	cfg, err := LoadClient("")
	require.NoError(t, err)
	require.Equal(t, "127.0.0.1:2222", cfg.ServerAddr)
	require.Equal(t, 3, cfg.Retries)
}

func TestAtMostOnceDetection(t *testing.T) {
	cfg := ServerConfig{Semantics: "at-most-once"}
	require.True(t, cfg.AtMostOnce())
}
