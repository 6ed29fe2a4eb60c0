// Package batch loads texture manifests and renders them to a folder or an
// archive.
package batch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/MeKo-Tech/proctex/internal/imageio"
	"github.com/MeKo-Tech/proctex/internal/texture"
	"github.com/MeKo-Tech/proctex/internal/worker"
	"github.com/spf13/viper"
)

// ErrInvalidName is returned for texture names that are not plain file
// names, such as "../x" or "a/b".
var ErrInvalidName = errors.New("texture name must not contain path separators")

// Item is one manifest entry.
type Item struct {
	Name   string  `mapstructure:"name"`
	Mode   string  `mapstructure:"mode"`
	Width  int     `mapstructure:"width"`
	Height int     `mapstructure:"height"`
	Scale  float64 `mapstructure:"scale"`
	Seed   uint32  `mapstructure:"seed"`
	Seeds  int     `mapstructure:"seeds"`
	Cell   int     `mapstructure:"cell"`
	Blur   float32 `mapstructure:"blur"`
	// Upscale is an integer enlargement factor applied after rendering.
	Upscale int `mapstructure:"upscale"`
}

// Manifest lists the textures to render.
type Manifest struct {
	Name     string
	Textures []Item
}

// LoadManifest reads a YAML, JSON or TOML manifest of the form
//
//	name: demo
//	textures:
//	  - {name: clouds, mode: fbm, width: 512, height: 512, scale: 8, seed: 7}
//
// The format is taken from the file extension.
func LoadManifest(path string) (*Manifest, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", path, err)
	}

	m := &Manifest{Name: v.GetString("name")}
	if err := v.UnmarshalKey("textures", &m.Textures); err != nil {
		return nil, fmt.Errorf("failed to decode manifest textures: %w", err)
	}
	if len(m.Textures) == 0 {
		return nil, fmt.Errorf("manifest %s lists no textures", path)
	}
	return m, nil
}

// Tasks converts the manifest into worker tasks. Unnamed items are named
// after their request key. Modes, post-processing and name uniqueness are
// checked here; the engine checks the rest at render time.
func (m *Manifest) Tasks() ([]worker.Task, error) {
	tasks := make([]worker.Task, 0, len(m.Textures))
	seen := make(map[string]int, len(m.Textures))

	for i, it := range m.Textures {
		mode, err := texture.ParseMode(it.Mode)
		if err != nil {
			return nil, fmt.Errorf("texture %d: %w", i, err)
		}

		task := worker.Task{
			Name: strings.TrimSpace(it.Name),
			Request: texture.Request{
				Mode:   mode,
				Width:  it.Width,
				Height: it.Height,
				Scale:  it.Scale,
				Seed:   it.Seed,
				Seeds:  it.Seeds,
				Cell:   it.Cell,
			},
			Post: imageio.Postprocess{BlurSigma: it.Blur, Upscale: it.Upscale},
		}
		if task.Name == "" {
			task.Name = task.Request.Key()
		}
		if !validName(task.Name) {
			return nil, fmt.Errorf("texture %d: %w: %q", i, ErrInvalidName, task.Name)
		}
		if err := task.Post.Validate(); err != nil {
			return nil, fmt.Errorf("texture %q: %w", task.Name, err)
		}
		if prev, dup := seen[task.Name]; dup {
			return nil, fmt.Errorf("texture %d reuses name %q from texture %d", i, task.Name, prev)
		}
		seen[task.Name] = i

		tasks = append(tasks, task)
	}
	return tasks, nil
}

// validName reports whether name is a plain file name that stays inside
// the output directory.
func validName(name string) bool {
	return name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}
