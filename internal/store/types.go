// Package store provides a sqlite archive of rendered textures.
package store

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// ErrNotFound is returned when a key is not in the archive.
var ErrNotFound = errors.New("texture not found")

// Metadata describes an archive.
type Metadata struct {
	Name        string // Human-readable archive name
	Description string
	Format      string // Encoded image format, normally "png"
	Sampler     string // Noise backend used for noise/fbm entries
	Version     string
}

// ToMap converts Metadata to a map for database insertion.
func (m Metadata) ToMap() map[string]string {
	result := make(map[string]string)

	if m.Name != "" {
		result["name"] = m.Name
	}
	if m.Description != "" {
		result["description"] = m.Description
	}
	if m.Format != "" {
		result["format"] = m.Format
	}
	if m.Sampler != "" {
		result["sampler"] = m.Sampler
	}
	if m.Version != "" {
		result["version"] = m.Version
	}

	return result
}

// Entry is one archived texture.
type Entry struct {
	Key    string
	Mode   string
	Hash   string // xxhash64 of Data, hex
	Data   []byte // encoded image (stored gzip-compressed)
	Width  int
	Height int
}

// ContentHash returns the 16-char hex xxhash64 of data.
func ContentHash(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}
