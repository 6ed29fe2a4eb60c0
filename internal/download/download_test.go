package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImageServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/img/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img/a.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write([]byte("png-a"))
		case "/img/with space.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpg"))
		case "/img/":
			w.Header().Set("Content-Type", "image/webp; charset=binary")
			w.Write([]byte("webp"))
		default:
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/dup/a.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-dup"))
	})
	mux.HandleFunc("/agent", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(r.UserAgent()))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestDownload_SkipsFailures(t *testing.T) {
	srv := newImageServer(t)
	dir := filepath.Join(t.TempDir(), "out")

	d := &Downloader{Client: srv.Client(), Workers: 3}
	paths, err := d.Download(context.Background(), []string{
		srv.URL + "/img/a.png",
		srv.URL + "/broken",
		srv.URL + "/missing.png",
		"http://127.0.0.1:0/unreachable.png",
		srv.URL + "/img/with%20space.jpg",
		srv.URL + "/img/",
	}, dir)
	require.NoError(t, err)

	want := []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "file_5.webp"),
		filepath.Join(dir, "with space.jpg"),
	}
	sort.Strings(want)
	assert.Equal(t, want, paths)
	assert.True(t, sort.StringsAreSorted(paths))

	data, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-a", string(data))
}

func TestDownload_DuplicateNames(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()

	d := &Downloader{Client: srv.Client(), Workers: 4}
	paths, err := d.Download(context.Background(), []string{
		srv.URL + "/img/a.png",
		srv.URL + "/dup/a.png",
		srv.URL + "/img/a.png?again=1",
	}, dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		filepath.Join(dir, "a.png"),
		filepath.Join(dir, "file_1.png"),
		filepath.Join(dir, "file_2.png"),
	}, paths)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, len(paths))

	data, err := os.ReadFile(filepath.Join(dir, "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-a", string(data))
	data, err = os.ReadFile(filepath.Join(dir, "file_1.png"))
	require.NoError(t, err)
	assert.Equal(t, "png-dup", string(data))
}

func TestNameSet_FallbackCollision(t *testing.T) {
	names := newNameSet([]string{"http://h/file_1.png", "http://h/x/file_1.png"})

	name, ok := names.claim(0, "file_1.png", "file_0.png")
	assert.True(t, ok)
	assert.Equal(t, "file_1.png", name)

	_, ok = names.claim(1, "file_1.png", "file_1.png")
	assert.False(t, ok)
}

func TestDownload_UserAgent(t *testing.T) {
	srv := newImageServer(t)
	dir := t.TempDir()

	paths, err := (&Downloader{Client: srv.Client()}).Download(context.Background(), []string{srv.URL + "/agent"}, dir)
	require.NoError(t, err)
	require.Len(t, paths, 1)

	data, err := os.ReadFile(paths[0])
	require.NoError(t, err)
	assert.Equal(t, DefaultUserAgent, string(data))
}

func TestDownload_Empty(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "created")
	paths, err := (&Downloader{}).Download(context.Background(), nil, dir)
	require.NoError(t, err)
	assert.Empty(t, paths)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestDownload_DirError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := (&Downloader{}).Download(context.Background(), []string{"http://example.invalid/x.png"}, filepath.Join(file, "sub"))
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	tests := []struct {
		raw         string
		contentType string
		want        string
	}{
		{raw: "http://h/a/b.png", want: "b.png"},
		{raw: "http://h/a/b%20c.gif?x=1", want: "b c.gif"},
		{raw: "http://h/", contentType: "image/gif", want: "file_3.gif"},
		{raw: "http://h", contentType: "text/html", want: "file_3.bin"},
		{raw: "http://h/a/", contentType: "image/jpeg", want: "file_3.jpg"},
		{raw: "http://h/a/..%2Fetc", contentType: "image/png", want: "file_3.png"},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			u, err := url.Parse(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, FileName(3, u, tt.contentType))
		})
	}
}

func TestExtensionForContentType(t *testing.T) {
	assert.Equal(t, ".png", ExtensionForContentType("image/png"))
	assert.Equal(t, ".jpg", ExtensionForContentType("image/jpeg"))
	assert.Equal(t, ".gif", ExtensionForContentType("image/gif"))
	assert.Equal(t, ".webp", ExtensionForContentType("image/webp; q=1"))
	assert.Equal(t, ".bin", ExtensionForContentType("application/octet-stream"))
	assert.Equal(t, ".bin", ExtensionForContentType(""))
}
