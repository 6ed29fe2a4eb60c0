// Package download fetches a list of image URLs into a directory in
// parallel, skipping anything that fails.
package download

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "proctex-downloader/0.1"

// Downloader fetches URLs concurrently. The zero value is usable.
type Downloader struct {
	Client    *http.Client
	Logger    *slog.Logger
	UserAgent string
	Workers   int
}

func (d *Downloader) log() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

func (d *Downloader) client() *http.Client {
	if d.Client != nil {
		return d.Client
	}
	return &http.Client{Timeout: 60 * time.Second}
}

// Download writes each URL's body into dir and returns the written paths
// sorted. Individual failures are logged and skipped; only failing to
// create dir is returned as an error.
func (d *Downloader) Download(ctx context.Context, urls []string, dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create target dir: %w", err)
	}

	workers := d.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	type job struct {
		url   string
		index int
	}
	jobs := make(chan job)
	names := newNameSet(urls)

	var (
		mu      sync.Mutex
		written []string
		wg      sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				p, err := d.fetch(ctx, j.index, j.url, dir, names)
				if err != nil {
					d.log().Debug("Skipping download", "url", j.url, "error", err)
					continue
				}
				mu.Lock()
				written = append(written, p)
				mu.Unlock()
			}
		}()
	}

feed:
	for i, u := range urls {
		select {
		case jobs <- job{index: i, url: u}:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	sort.Strings(written)
	d.log().Info("Downloaded images", "count", len(written), "requested", len(urls))
	return written, nil
}

func (d *Downloader) fetch(ctx context.Context, index int, rawURL, dir string, names *nameSet) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("invalid request: %w", err)
	}
	ua := d.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := d.client().Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	name, ok := names.claim(index, FileName(index, req.URL, resp.Header.Get("Content-Type")),
		fmt.Sprintf("file_%d%s", index, Extension(req.URL, resp.Header.Get("Content-Type"))))
	if !ok {
		return "", fmt.Errorf("file name %q already used by another URL", name)
	}
	dst := filepath.Join(dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dst)
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(dst)
		return "", fmt.Errorf("failed to close file: %w", err)
	}
	return dst, nil
}

// FileName picks the local name for the index-th URL: the decoded last
// path segment, or file_<index><ext> when the segment is empty.
func FileName(index int, u *url.URL, contentType string) string {
	if segment := segmentName(u); segment != "" {
		return segment
	}
	return fmt.Sprintf("file_%d%s", index, Extension(u, contentType))
}

// segmentName returns the decoded last path segment, or "" when it is
// empty or would leave the target dir.
func segmentName(u *url.URL) string {
	escaped := u.EscapedPath()
	segment := escaped[strings.LastIndex(escaped, "/")+1:]
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	if segment == "." || segment == ".." || strings.ContainsAny(segment, `/\`) {
		return ""
	}
	return segment
}

// nameSet hands out each local file name to one URL. A segment name
// belongs to the first URL in the list that carries it; later URLs with
// the same segment fall back to file_<index><ext>.
type nameSet struct {
	owner map[string]int // read-only after newNameSet
	mu    sync.Mutex
	used  map[string]bool
}

func newNameSet(urls []string) *nameSet {
	s := &nameSet{owner: make(map[string]int), used: make(map[string]bool)}
	for i, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		if name := segmentName(u); name != "" {
			if _, taken := s.owner[name]; !taken {
				s.owner[name] = i
			}
		}
	}
	return s
}

// claim reserves name for index, or fallback when another URL owns name.
// It reports false when the chosen name is already taken.
func (s *nameSet) claim(index int, name, fallback string) (string, bool) {
	if owner, ok := s.owner[name]; ok && owner != index {
		name = fallback
	}
	if owner, ok := s.owner[name]; ok && owner != index {
		return name, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.used[name] {
		return name, false
	}
	s.used[name] = true
	return name, true
}

// Extension returns the URL path extension, falling back to one guessed
// from the content type.
func Extension(u *url.URL, contentType string) string {
	if ext := path.Ext(u.Path); ext != "" && ext != "." {
		return ext
	}
	return ExtensionForContentType(contentType)
}

// ExtensionForContentType maps image media types to file extensions.
// Anything unrecognised becomes .bin.
func ExtensionForContentType(contentType string) string {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.TrimSpace(contentType)
	}
	switch strings.ToLower(mediaType) {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
