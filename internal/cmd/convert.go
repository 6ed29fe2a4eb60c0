package cmd

import (
	"bytes"
	"fmt"
	"image"
	_ "image/png" // PNG decoder for image.DecodeConfig
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/MeKo-Tech/proctex/internal/store"
	"github.com/MeKo-Tech/proctex/internal/texture"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Pack a folder of PNG textures into an archive",
	Long:  `Convert an existing texture folder into a single texture archive.`,
	RunE:  runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	convertCmd.Flags().String("input-dir", "./textures", "Input directory containing PNG textures")
	convertCmd.Flags().StringP("output", "o", "", "Output archive file path (required)")
	convertCmd.Flags().String("name", "proctex", "Archive name")
	convertCmd.Flags().String("description", "Procedural textures", "Archive description")

	bindFlags := []struct {
		key  string
		flag string
	}{
		{"convert.input_dir", "input-dir"},
		{"convert.output", "output"},
		{"convert.name", "name"},
		{"convert.description", "description"},
	}

	for _, bf := range bindFlags {
		if err := viper.BindPFlag(bf.key, convertCmd.Flags().Lookup(bf.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", bf.flag, err))
		}
	}
}

func runConvert(cmd *cobra.Command, args []string) error {
	inputDir := viper.GetString("convert.input_dir")
	outputFile := viper.GetString("convert.output")
	name := viper.GetString("convert.name")
	description := viper.GetString("convert.description")

	if logger == nil {
		initLogging()
	}

	if outputFile == "" {
		return fmt.Errorf("--output is required")
	}
	if _, err := os.Stat(inputDir); os.IsNotExist(err) {
		return fmt.Errorf("input directory does not exist: %s", inputDir)
	}

	logger.Info("Converting texture folder to archive",
		"input_dir", inputDir,
		"output", outputFile,
		"name", name,
	)

	files, err := scanTextureDirectory(inputDir)
	if err != nil {
		return fmt.Errorf("failed to scan texture directory: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no PNG textures found in %s", inputDir)
	}

	writer, err := store.New(outputFile, store.Metadata{
		Name:        name,
		Description: description,
		Format:      "png",
		Version:     "1.0",
	})
	if err != nil {
		return fmt.Errorf("failed to create archive writer: %w", err)
	}

	converted := 0
	for i, path := range files {
		entry, err := readTextureEntry(inputDir, path)
		if err != nil {
			logger.Error("Failed to read texture", "path", path, "error", err)
			continue
		}
		if err := writer.Write(entry); err != nil {
			logger.Error("Failed to write texture", "key", entry.Key, "error", err)
			continue
		}
		converted++

		if (i+1)%100 == 0 {
			logger.Info("Progress", "converted", i+1, "total", len(files))
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}

	logger.Info("Conversion complete", "output", outputFile, "textures", converted)
	return nil
}

// scanTextureDirectory returns every .png below dir, sorted.
func scanTextureDirectory(dir string) ([]string, error) {
	var files []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".png") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// readTextureEntry loads a PNG as an archive entry. The key is the path
// relative to root without extension, using forward slashes; the mode is
// read from a leading "<mode>_" key prefix when present.
func readTextureEntry(root, path string) (store.Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return store.Entry{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return store.Entry{}, fmt.Errorf("not a decodable image: %w", err)
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return store.Entry{}, err
	}
	key := filepath.ToSlash(strings.TrimSuffix(rel, filepath.Ext(rel)))

	mode := "imported"
	if prefix, _, ok := strings.Cut(filepath.Base(key), "_"); ok {
		if m, err := texture.ParseMode(prefix); err == nil {
			mode = string(m)
		}
	}

	return store.Entry{
		Key:    key,
		Mode:   mode,
		Width:  cfg.Width,
		Height: cfg.Height,
		Data:   data,
	}, nil
}
