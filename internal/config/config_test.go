package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	require.Equal(t, "info", cfg.LogLevel)
	require.Equal(t, 2000, cfg.CacheMemoryTiles)
	require.Equal(t, "file", cfg.CachePersist)
	require.Len(t, cfg.TileEndpoints, 8)
	require.Equal(t, 16, cfg.MaxInflight)
	require.Equal(t, 2, cfg.PrefetchRadius)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CACHE_MEMORY_TILES", "50")
	t.Setenv("TILE_ENDPOINTS", "http://a.example.com, http://b.example.com")
	t.Setenv("ACCESS_TOKEN", "secret")

	cfg := Load()

	require.Equal(t, "debug", cfg.LogLevel)
	require.Equal(t, 50, cfg.CacheMemoryTiles)
	require.Equal(t, []string{"http://a.example.com", "http://b.example.com"}, cfg.TileEndpoints)
	require.Equal(t, "secret", cfg.AccessToken)
}
