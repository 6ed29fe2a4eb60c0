package batch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/proctex/internal/imageio"
	"github.com/MeKo-Tech/proctex/internal/store"
	"github.com/MeKo-Tech/proctex/internal/texture"
	"github.com/MeKo-Tech/proctex/internal/worker"
)

// ArchiveWriter persists rendered textures. *store.Writer implements it.
type ArchiveWriter interface {
	Write(e store.Entry) error
}

// Runner renders tasks and writes them either into OutputDir or, when
// Archive is set, into the archive.
type Runner struct {
	Engine  *texture.Engine
	Archive ArchiveWriter
	Logger  *slog.Logger
	// OutputDir receives <name>.png files in folder mode. A name with an
	// explicit image extension (.jpg, .bmp, ...) is saved in that format.
	OutputDir      string
	PNGCompression string
	// Force re-renders files that already exist in folder mode.
	Force bool
}

var _ worker.Renderer = (*Runner)(nil)

func (r *Runner) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Render renders one task. It returns the written file path, or
// "archive:<name>" in archive mode.
func (r *Runner) Render(ctx context.Context, task worker.Task) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var outPath string
	if r.Archive == nil {
		outPath = r.filePath(task.Name)
		if !r.Force && task.Request.Deterministic() {
			if _, err := os.Stat(outPath); err == nil {
				r.log().Debug("Texture exists, skipping", "name", task.Name, "path", outPath)
				return outPath, nil
			}
		}
	}

	start := time.Now()
	buf, err := r.Engine.Generate(task.Request)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", task.Name, err)
	}
	img := task.Post.Apply(buf.ToImage())

	if r.Archive != nil {
		data, err := imageio.EncodePNG(img, r.PNGCompression)
		if err != nil {
			return "", err
		}
		b := img.Bounds()
		if err := r.Archive.Write(store.Entry{
			Key:    task.Name,
			Mode:   string(task.Request.Mode),
			Width:  b.Dx(),
			Height: b.Dy(),
			Data:   data,
		}); err != nil {
			return "", fmt.Errorf("failed to archive %s: %w", task.Name, err)
		}
		r.log().Debug("Texture archived", "name", task.Name, "bytes", len(data), "ms", time.Since(start).Milliseconds())
		return "archive:" + task.Name, nil
	}

	if err := imageio.WriteFile(outPath, img, r.PNGCompression); err != nil {
		return "", err
	}

	r.log().Debug("Texture written", "name", task.Name, "path", outPath, "ms", time.Since(start).Milliseconds())
	return outPath, nil
}

func (r *Runner) filePath(name string) string {
	if filepath.Ext(name) == "" {
		name += ".png"
	}
	return filepath.Join(r.OutputDir, name)
}
