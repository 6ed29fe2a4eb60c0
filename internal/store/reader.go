package store

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
)

// Reader reads textures from an archive database.
type Reader struct {
	db   *sql.DB
	path string
}

// OpenReader opens a closed archive for reading. The file is treated as
// immutable, so it must not be written while the reader is open.
func OpenReader(path string) (*Reader, error) {
	db, err := sql.Open("sqlite", path+"?mode=ro&immutable=1")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	var count int
	err = db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='textures'").Scan(&count)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to verify schema: %w", err)
	}
	if count == 0 {
		db.Close()
		return nil, fmt.Errorf("database does not contain textures table")
	}

	return &Reader{
		db:   db,
		path: path,
	}, nil
}

// Read returns the entry for key with its data decompressed. The stored
// hash is checked against the decompressed bytes.
func (r *Reader) Read(key string) (Entry, error) {
	var (
		e          Entry
		compressed []byte
	)
	err := r.db.QueryRow(
		"SELECT key, mode, width, height, hash, data FROM textures WHERE key=?", key,
	).Scan(&e.Key, &e.Mode, &e.Width, &e.Height, &e.Hash, &compressed)

	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("failed to query texture: %w", err)
	}

	data, err := gzipDecompress(compressed)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to decompress texture %s: %w", key, err)
	}
	if got := ContentHash(data); got != e.Hash {
		return Entry{}, fmt.Errorf("texture %s is corrupt: hash %s, want %s", key, got, e.Hash)
	}
	e.Data = data
	return e, nil
}

// Keys lists archived keys in ascending order.
func (r *Reader) Keys() ([]string, error) {
	rows, err := r.db.Query("SELECT key FROM textures ORDER BY key")
	if err != nil {
		return nil, fmt.Errorf("failed to query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating keys: %w", err)
	}
	return keys, nil
}

// Metadata reads metadata from the database.
func (r *Reader) Metadata() (Metadata, error) {
	rows, err := r.db.Query("SELECT name, value FROM metadata")
	if err != nil {
		return Metadata{}, fmt.Errorf("failed to query metadata: %w", err)
	}
	defer rows.Close()

	metaMap := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return Metadata{}, fmt.Errorf("failed to scan metadata row: %w", err)
		}
		metaMap[name] = value
	}
	if err := rows.Err(); err != nil {
		return Metadata{}, fmt.Errorf("error iterating metadata: %w", err)
	}

	return Metadata{
		Name:        metaMap["name"],
		Description: metaMap["description"],
		Format:      metaMap["format"],
		Sampler:     metaMap["sampler"],
		Version:     metaMap["version"],
	}, nil
}

// Close closes the database connection.
func (r *Reader) Close() error {
	if err := r.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

func gzipDecompress(data []byte) ([]byte, error) {
	gr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gr.Close()

	return io.ReadAll(gr)
}
