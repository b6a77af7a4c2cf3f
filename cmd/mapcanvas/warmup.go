package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapcanvas/internal/cache"
	"mapcanvas/internal/config"
	"mapcanvas/internal/fetch"
	"mapcanvas/internal/logger"
	"mapcanvas/internal/pipeline"
	"mapcanvas/internal/prefetch"
	"mapcanvas/internal/projection"
	"mapcanvas/internal/tile"
)

var (
	warmupLon     float64
	warmupLat     float64
	warmupZoom    int
	warmupRadius  int
	warmupWorkers int
)

var warmupCmd = &cobra.Command{
	Use:   "warmup",
	Short: "Pre-load the disk cache around a location",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		log, err := logger.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		table, err := cache.NewTable(cfg.CacheMemoryTiles, projection.TileSize,
			time.Duration(cfg.FailedTTLSeconds)*time.Second, log)
		if err != nil {
			return err
		}
		store, err := cache.NewStore(cfg.CachePersist, cfg.CacheDir, log)
		if err != nil {
			return err
		}
		fetcher, err := fetch.New(cfg.TileEndpoints, cfg.AccessToken, log)
		if err != nil {
			return err
		}
		loader := pipeline.New(table, store, fetcher, log,
			pipeline.WithMaxInflight(cfg.MaxInflight))

		if warmupZoom < tile.MinZoom || warmupZoom > tile.MaxZoom {
			return fmt.Errorf("zoom must be within [%d,%d]", tile.MinZoom, tile.MaxZoom)
		}

		cx, cy := projection.GeoToTilePixel(orb.Point{warmupLon, warmupLat}, float64(warmupZoom))
		center := tile.Key{
			Zoom:   warmupZoom,
			Column: int(cx) / projection.TileSize,
			Row:    int(cy) / projection.TileSize,
		}
		keys := prefetch.Neighborhood(center, warmupRadius)

		log.Info("Starting tile warmup",
			zap.Stringer("center", center),
			zap.Int("radius", warmupRadius),
			zap.Int("tiles", len(keys)),
			zap.Int("workers", warmupWorkers),
		)

		start := time.Now()
		if err := prefetch.Warm(ctx, loader, keys, warmupWorkers, log); err != nil {
			return err
		}

		log.Info("Tile warmup completed",
			zap.Int("ready_tiles", table.Len()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

func init() {
	warmupCmd.Flags().Float64Var(&warmupLon, "lon", 0, "warmup center longitude")
	warmupCmd.Flags().Float64Var(&warmupLat, "lat", 0, "warmup center latitude")
	warmupCmd.Flags().IntVar(&warmupZoom, "zoom", 4, "warmup zoom level")
	warmupCmd.Flags().IntVar(&warmupRadius, "radius", 3, "neighborhood radius in tiles")
	warmupCmd.Flags().IntVar(&warmupWorkers, "workers", 4, "parallel tile loads")
	rootCmd.AddCommand(warmupCmd)
}
