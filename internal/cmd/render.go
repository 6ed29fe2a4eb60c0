package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/MeKo-Tech/proctex/internal/imageio"
	"github.com/MeKo-Tech/proctex/internal/noise"
	"github.com/MeKo-Tech/proctex/internal/texture"
	"github.com/MeKo-Tech/proctex/internal/voronoi"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render a single texture",
	Long: `Render one procedural texture and write it to disk.

Modes: noise (grayscale simplex), fbm (three-channel fractal noise),
voronoi (random colored cells) and checker (checkerboard).`,
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("mode", "m", "fbm", "Texture mode (noise, fbm, voronoi, checker)")
	renderCmd.Flags().Int("width", 512, "Width in pixels")
	renderCmd.Flags().Int("height", 512, "Height in pixels")
	renderCmd.Flags().Float64("scale", 64, "Noise scale: pixels per noise unit (noise, fbm)")
	renderCmd.Flags().Uint32("seed", 0, "Noise seed (noise, fbm)")
	renderCmd.Flags().Int("seeds", 16, "Number of Voronoi sites (voronoi)")
	renderCmd.Flags().Int64("site-seed", 0, "Fixed random seed for Voronoi sites (0: random per run)")
	renderCmd.Flags().Int("cell", 32, "Cell size in pixels (checker)")

	addEngineFlags(renderCmd)

	renderCmd.Flags().Float32("blur", 0, "Gaussian blur sigma applied after rendering (0: off)")
	renderCmd.Flags().Int("upscale", 0, "Nearest-neighbor upscale factor applied after rendering (0 or 1: off)")
	renderCmd.Flags().String("png-compression", "default", "PNG compression (default, speed, best, none)")
	renderCmd.Flags().StringP("output", "o", "", "Output file (default: <output-dir>/<texture key>.png); the extension picks the format")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"render.mode", "mode"},
		{"render.width", "width"},
		{"render.height", "height"},
		{"render.scale", "scale"},
		{"render.seed", "seed"},
		{"render.seeds", "seeds"},
		{"render.site_seed", "site-seed"},
		{"render.cell", "cell"},
		{"render.octaves", "octaves"},
		{"render.lacunarity", "lacunarity"},
		{"render.gain", "gain"},
		{"render.workers", "workers"},
		{"render.blur", "blur"},
		{"render.upscale", "upscale"},
		{"render.png_compression", "png-compression"},
		{"render.output", "output"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, renderCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

// addEngineFlags registers the flags that shape the texture engine.
func addEngineFlags(c *cobra.Command) {
	c.Flags().Int("octaves", noise.DefaultOctaves.Count, "Fractal octaves (fbm)")
	c.Flags().Float64("lacunarity", noise.DefaultOctaves.Lacunarity, "Frequency multiplier per octave (fbm)")
	c.Flags().Float64("gain", noise.DefaultOctaves.Gain, "Amplitude multiplier per octave (fbm)")
	c.Flags().IntP("workers", "w", 0, "Number of parallel workers (default: number of CPUs)")
}

// buildEngine creates an engine from the <prefix>.* octave keys and the
// global sampler. workers sets the row pool of each render.
func buildEngine(prefix string, workers int, extra ...texture.Option) (*texture.Engine, error) {
	opts := []texture.Option{
		texture.WithSampler(noise.Kind(viper.GetString("sampler"))),
		texture.WithOctaves(noise.Octaves{
			Count:      viper.GetInt(prefix + ".octaves"),
			Lacunarity: viper.GetFloat64(prefix + ".lacunarity"),
			Gain:       viper.GetFloat64(prefix + ".gain"),
		}),
		texture.WithWorkers(workers),
		texture.WithLogger(logger),
	}
	return texture.New(append(opts, extra...)...)
}

func runRender(cmd *cobra.Command, args []string) error {
	modeName := viper.GetString("render.mode")
	width := viper.GetInt("render.width")
	height := viper.GetInt("render.height")
	scale := viper.GetFloat64("render.scale")
	seed := viper.GetUint32("render.seed")
	seeds := viper.GetInt("render.seeds")
	siteSeed := viper.GetInt64("render.site_seed")
	cell := viper.GetInt("render.cell")
	blur := float32(viper.GetFloat64("render.blur"))
	upscale := viper.GetInt("render.upscale")
	pngCompression := viper.GetString("render.png_compression")
	output := viper.GetString("render.output")
	outputDir := viper.GetString("output-dir")

	if logger == nil {
		initLogging()
	}

	mode, err := texture.ParseMode(modeName)
	if err != nil {
		return err
	}
	post := imageio.Postprocess{BlurSigma: blur, Upscale: upscale}
	if err := post.Validate(); err != nil {
		return err
	}
	if _, err := imageio.ParseCompression(pngCompression); err != nil {
		return err
	}

	var extra []texture.Option
	if siteSeed != 0 {
		extra = append(extra, texture.WithSource(voronoi.NewSeededSource(siteSeed)))
	}
	eng, err := buildEngine("render", viper.GetInt("render.workers"), extra...)
	if err != nil {
		return fmt.Errorf("failed to init engine: %w", err)
	}

	req := texture.Request{
		Mode:   mode,
		Width:  width,
		Height: height,
		Scale:  scale,
		Seed:   seed,
		Seeds:  seeds,
		Cell:   cell,
	}
	if output == "" {
		output = filepath.Join(outputDir, req.Key()+".png")
	}

	logger.Info("Starting texture render",
		"mode", mode,
		"size", fmt.Sprintf("%dx%d", width, height),
		"sampler", eng.Sampler(),
		"output", output,
	)

	buf, err := eng.Generate(req)
	if err != nil {
		return fmt.Errorf("failed to render texture: %w", err)
	}
	img := post.Apply(buf.ToImage())

	if err := imageio.WriteFile(output, img, pngCompression); err != nil {
		return err
	}

	logger.Info("Texture rendered", "path", output)
	return nil
}
