package config

import (
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	LogLevel         string
	CacheDir         string
	CacheMemoryTiles int
	CachePersist     string
	TileEndpoints    []string
	AccessToken      string
	MaxInflight      int
	FailedTTLSeconds int
	PrefetchRadius   int
	StatePath        string
}

// The tile service exposes eight sharded hosts; the fetcher picks one per
// key by (column + row) mod shard count.
var defaultEndpoints = []string{
	"https://t0.tianditu.gov.cn/img_w/wmts",
	"https://t1.tianditu.gov.cn/img_w/wmts",
	"https://t2.tianditu.gov.cn/img_w/wmts",
	"https://t3.tianditu.gov.cn/img_w/wmts",
	"https://t4.tianditu.gov.cn/img_w/wmts",
	"https://t5.tianditu.gov.cn/img_w/wmts",
	"https://t6.tianditu.gov.cn/img_w/wmts",
	"https://t7.tianditu.gov.cn/img_w/wmts",
}

func Load() *Config {
	v := viper.New()
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CACHE_DIR", "./cache/tiles")
	v.SetDefault("CACHE_MEMORY_TILES", 2000)
	v.SetDefault("CACHE_PERSIST", "file")
	v.SetDefault("TILE_ENDPOINTS", strings.Join(defaultEndpoints, ","))
	v.SetDefault("ACCESS_TOKEN", "")
	v.SetDefault("MAX_INFLIGHT", 16)
	v.SetDefault("FAILED_TTL", 0)
	v.SetDefault("PREFETCH_RADIUS", 2)
	v.SetDefault("STATE_PATH", "./cache/session.db")
	v.AutomaticEnv()

	return &Config{
		LogLevel:         v.GetString("LOG_LEVEL"),
		CacheDir:         v.GetString("CACHE_DIR"),
		CacheMemoryTiles: v.GetInt("CACHE_MEMORY_TILES"),
		CachePersist:     v.GetString("CACHE_PERSIST"),
		TileEndpoints:    splitList(v.GetString("TILE_ENDPOINTS")),
		AccessToken:      v.GetString("ACCESS_TOKEN"),
		MaxInflight:      v.GetInt("MAX_INFLIGHT"),
		FailedTTLSeconds: v.GetInt("FAILED_TTL"),
		PrefetchRadius:   v.GetInt("PREFETCH_RADIUS"),
		StatePath:        v.GetString("STATE_PATH"),
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
