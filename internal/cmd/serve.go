package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/MeKo-Tech/proctex/internal/server"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve texture previews rendered on demand",
	Long: `Serve textures over HTTP.

  GET /textures/{mode}.png?width=&height=&scale=&seed=&seeds=&cell=&blur=&upscale=
  GET /archive/{key}.png   (with --archive)
  GET /status, /status/stream, /healthz`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "127.0.0.1:8080", "Listen address (host:port)")
	serveCmd.Flags().String("archive", "", "Texture archive to serve under /archive/ (optional)")
	serveCmd.Flags().Int("max-concurrent-renders", runtime.NumCPU(), "Max concurrent texture renders (default: number of CPUs)")
	serveCmd.Flags().Int("max-pixels", 4096*4096, "Largest accepted output size in pixels")
	serveCmd.Flags().Int("cache-entries", 256, "In-memory PNG cache size for deterministic textures")
	serveCmd.Flags().Bool("disable-cache", false, "Always re-render textures")
	serveCmd.Flags().String("cache-control", "no-cache", "Cache-Control header for rendered textures")
	serveCmd.Flags().String("png-compression", "speed", "PNG compression (default, speed, best, none)")

	addEngineFlags(serveCmd)

	mustBind := func(key string, name string) {
		if err := viper.BindPFlag(key, serveCmd.Flags().Lookup(name)); err != nil {
			panic(fmt.Sprintf("failed to bind flag: %v", err))
		}
	}

	mustBind("serve.addr", "addr")
	mustBind("serve.archive", "archive")
	mustBind("serve.max_concurrent_renders", "max-concurrent-renders")
	mustBind("serve.max_pixels", "max-pixels")
	mustBind("serve.cache_entries", "cache-entries")
	mustBind("serve.disable_cache", "disable-cache")
	mustBind("serve.cache_control", "cache-control")
	mustBind("serve.png_compression", "png-compression")

	mustBind("serve.octaves", "octaves")
	mustBind("serve.lacunarity", "lacunarity")
	mustBind("serve.gain", "gain")
	mustBind("serve.workers", "workers")
}

func runServe(cmd *cobra.Command, args []string) error {
	if logger == nil {
		initLogging()
	}

	addr := viper.GetString("serve.addr")
	archivePath := viper.GetString("serve.archive")
	maxConc := viper.GetInt("serve.max_concurrent_renders")
	maxPixels := viper.GetInt("serve.max_pixels")
	cacheEntries := viper.GetInt("serve.cache_entries")
	disableCache := viper.GetBool("serve.disable_cache")
	cacheControl := viper.GetString("serve.cache_control")
	pngCompression := viper.GetString("serve.png_compression")

	eng, err := buildEngine("serve", viper.GetInt("serve.workers"))
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	od, err := server.NewOnDemandTextures(server.OnDemandTexturesConfig{
		Engine:               eng,
		PNGCompression:       pngCompression,
		CacheControl:         cacheControl,
		MaxConcurrentRenders: maxConc,
		MaxPixels:            maxPixels,
		CacheEntries:         cacheEntries,
		DisableCache:         disableCache,
	}, logger)
	if err != nil {
		return err
	}

	var archive *server.ArchiveHandler
	if archivePath != "" {
		archive, err = server.NewArchiveHandler(server.ArchiveConfig{ArchivePath: archivePath}, logger)
		if err != nil {
			return err
		}
		defer archive.Close()
	}

	logger.Info("texture server listening",
		"addr", addr,
		"sampler", eng.Sampler(),
		"archive", archivePath,
		"max_concurrent_renders", maxConc,
	)

	srv := &http.Server{Addr: addr, Handler: server.NewMux(od, archive), ReadHeaderTimeout: 5 * time.Second}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
