package main

import (
	"fmt"
	"image/png"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/paulmach/orb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"mapcanvas/internal/cache"
	"mapcanvas/internal/compose"
	"mapcanvas/internal/config"
	"mapcanvas/internal/fetch"
	"mapcanvas/internal/logger"
	"mapcanvas/internal/pipeline"
	"mapcanvas/internal/prefetch"
	"mapcanvas/internal/projection"
	"mapcanvas/internal/state"
	"mapcanvas/internal/view"
)

var (
	renderLon    float64
	renderLat    float64
	renderZoom   float64
	renderWidth  int
	renderHeight int
	renderOut    string
	renderBlank  bool
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Composite one viewport into a PNG file",
	Long: `Render loads every tile the viewport needs (disk cache first, then the
tile service), composites them, and writes the result as a PNG.

The viewport center and zoom default to the values persisted by the previous
run; --lon/--lat/--zoom override them. The resulting viewport is persisted
on exit.`,
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

		sessions, err := state.Open(cfg.StatePath)
		if err != nil {
			return err
		}
		defer sessions.Close()

		vp := view.Viewport{
			Center: orb.Point{renderLon, renderLat},
			Zoom:   renderZoom,
			Width:  renderWidth,
			Height: renderHeight,
		}
		if rec, ok, err := sessions.LoadViewport(); err != nil {
			return err
		} else if ok {
			if !cmd.Flags().Changed("lon") && !cmd.Flags().Changed("lat") {
				vp.Center = orb.Point{rec.Lon, rec.Lat}
			}
			if !cmd.Flags().Changed("zoom") {
				vp.Zoom = rec.Zoom
			}
		}
		ctrl := view.NewController(vp, nil, log)
		vp = ctrl.Viewport()

		opts := []compose.Option{compose.WithRequester(loader)}
		if renderBlank {
			opts = append(opts, compose.WithPlaceholder(compose.PlaceholderBlank))
		}
		compositor := compose.New(log, opts...)
		prefetcher := prefetch.New(loader, cfg.PrefetchRadius, log)

		log.Info("Rendering viewport",
			zap.Float64("lon", vp.Center.Lon()),
			zap.Float64("lat", vp.Center.Lat()),
			zap.Float64("zoom", vp.Zoom),
			zap.Int("width", vp.Width),
			zap.Int("height", vp.Height),
		)

		// First pass enqueues every missing visible tile, plus the
		// prefetch neighborhoods. Then wait for the pipeline to settle
		// and composite the final frame.
		compositor.Render(ctx, vp, table, compose.NewRasterSurface(vp.Width, vp.Height))
		prefetcher.Sweep(ctx, vp.Center, vp.Zoom)
		loader.Wait()

		surface := compose.NewRasterSurface(vp.Width, vp.Height)
		compositor.Render(ctx, vp, table, surface)

		out, err := os.Create(renderOut)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()
		if err := png.Encode(out, surface.Image()); err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}

		if err := sessions.SaveViewport(state.Record{
			Zoom: vp.Zoom,
			Lon:  vp.Center.Lon(),
			Lat:  vp.Center.Lat(),
		}); err != nil {
			log.Warn("Failed to persist viewport", zap.Error(err))
		}

		log.Info("Render complete",
			zap.String("out", renderOut),
			zap.Int("ready_tiles", table.Len()),
		)
		return nil
	},
}

func init() {
	renderCmd.Flags().Float64Var(&renderLon, "lon", 0, "viewport center longitude")
	renderCmd.Flags().Float64Var(&renderLat, "lat", 0, "viewport center latitude")
	renderCmd.Flags().Float64Var(&renderZoom, "zoom", 4, "viewport zoom level")
	renderCmd.Flags().IntVar(&renderWidth, "width", 1280, "viewport width in pixels")
	renderCmd.Flags().IntVar(&renderHeight, "height", 800, "viewport height in pixels")
	renderCmd.Flags().StringVar(&renderOut, "out", "map.png", "output PNG path")
	renderCmd.Flags().BoolVar(&renderBlank, "blank-placeholder", false,
		"fill cells with no drawable tile with a flat placeholder")
	rootCmd.AddCommand(renderCmd)
}
