package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/MeKo-Tech/proctex/internal/batch"
	"github.com/MeKo-Tech/proctex/internal/store"
	"github.com/MeKo-Tech/proctex/internal/texture"
	"github.com/MeKo-Tech/proctex/internal/voronoi"
	"github.com/MeKo-Tech/proctex/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Render every texture listed in a manifest",
	Long: `Render the textures listed in a YAML, JSON or TOML manifest in parallel,
either as image files in a folder or into a single texture archive.`,
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().String("manifest", "textures.yaml", "Manifest file listing the textures")
	batchCmd.Flags().Int("render-workers", 1, "Goroutines per texture render (tasks already run in parallel)")
	batchCmd.Flags().Bool("progress", true, "Show progress bar")
	batchCmd.Flags().Bool("allow-failures", false, "Exit successfully even if some textures fail")
	batchCmd.Flags().Bool("force", false, "Re-render files that already exist (folder format)")
	batchCmd.Flags().Int64("site-seed", 0, "Fixed random seed for Voronoi sites (0: random per run)")
	batchCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	batchCmd.Flags().String("format", "folder", "Output format: folder or archive")
	batchCmd.Flags().String("output-file", "", "Archive file path for archive format (e.g., textures.db)")

	batchCmd.Flags().Int("octaves", 4, "Fractal octaves (fbm)")
	batchCmd.Flags().Float64("lacunarity", 2.0, "Frequency multiplier per octave (fbm)")
	batchCmd.Flags().Float64("gain", 0.5, "Amplitude multiplier per octave (fbm)")
	batchCmd.Flags().IntP("workers", "w", 0, "Number of parallel tasks (default: number of CPUs)")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"batch.manifest", "manifest"},
		{"batch.render_workers", "render-workers"},
		{"batch.progress", "progress"},
		{"batch.allow_failures", "allow-failures"},
		{"batch.force", "force"},
		{"batch.site_seed", "site-seed"},
		{"batch.png_compression", "png-compression"},
		{"batch.format", "format"},
		{"batch.output_file", "output-file"},
		{"batch.octaves", "octaves"},
		{"batch.lacunarity", "lacunarity"},
		{"batch.gain", "gain"},
		{"batch.workers", "workers"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, batchCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	manifestPath := viper.GetString("batch.manifest")
	workers := viper.GetInt("batch.workers")
	renderWorkers := viper.GetInt("batch.render_workers")
	showProgress := viper.GetBool("batch.progress")
	allowFailures := viper.GetBool("batch.allow_failures")
	force := viper.GetBool("batch.force")
	siteSeed := viper.GetInt64("batch.site_seed")
	pngCompression := viper.GetString("batch.png_compression")
	format := viper.GetString("batch.format")
	outputFile := viper.GetString("batch.output_file")
	outputDir := viper.GetString("output-dir")

	if logger == nil {
		initLogging()
	}

	if format != "folder" && format != "archive" {
		return fmt.Errorf("invalid format %q: must be 'folder' or 'archive'", format)
	}
	if format == "archive" && outputFile == "" {
		return fmt.Errorf("--output-file is required when using --format=archive")
	}

	manifest, err := batch.LoadManifest(manifestPath)
	if err != nil {
		return err
	}
	tasks, err := manifest.Tasks()
	if err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var extra []texture.Option
	if siteSeed != 0 {
		extra = append(extra, texture.WithSource(voronoi.NewSeededSource(siteSeed)))
	}
	// Tasks already run in parallel, so each render gets a small row pool.
	eng, err := buildEngine("batch", renderWorkers, extra...)
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	runner := &batch.Runner{
		Engine:         eng,
		Logger:         logger,
		OutputDir:      outputDir,
		PNGCompression: pngCompression,
		Force:          force,
	}

	var archive *store.Writer
	if format == "archive" {
		name := manifest.Name
		if name == "" {
			name = "proctex"
		}
		archive, err = store.New(outputFile, store.Metadata{
			Name:        name,
			Description: "Procedural textures",
			Format:      "png",
			Sampler:     string(eng.Sampler()),
			Version:     "1.0",
		})
		if err != nil {
			return fmt.Errorf("failed to create archive writer: %w", err)
		}
		runner.Archive = archive
		logger.Info("Archive writer created", "path", outputFile)
	}

	logger.Info("Starting batch render",
		"manifest", manifestPath,
		"textures", len(tasks),
		"workers", workers,
		"format", format,
		"output_dir", outputDir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received interrupt signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	progress := worker.NewProgress(len(tasks), showProgress)
	pool := worker.New(worker.Config{
		Workers:    workers,
		Renderer:   runner,
		OnProgress: progress.Callback(),
	})

	results := pool.Run(ctx, tasks)
	progress.Done()

	if archive != nil {
		if err := archive.Close(); err != nil {
			return fmt.Errorf("failed to finalize archive: %w", err)
		}
	}

	var failedCount int
	for _, r := range results {
		if r.Err != nil {
			failedCount++
			logger.Error("Texture render failed", "name", r.Task.Name, "error", r.Err)
		}
	}

	logger.Info(progress.Summary(), "pixels", progress.Pixels())

	if failedCount > 0 {
		if allowFailures {
			logger.Warn("Some textures failed to render, but continuing due to --allow-failures flag", "failed_count", failedCount)
		} else {
			return fmt.Errorf("%d textures failed to render", failedCount)
		}
	}

	return nil
}
