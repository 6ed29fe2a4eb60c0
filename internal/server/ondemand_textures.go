package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/proctex/internal/imageio"
	"github.com/MeKo-Tech/proctex/internal/store"
	"github.com/MeKo-Tech/proctex/internal/texture"
)

// Query defaults for parameters a preview request leaves out.
const (
	DefaultSize  = 256
	DefaultScale = 4.0
	DefaultSeeds = 16
	DefaultCell  = 16
)

type OnDemandTexturesConfig struct {
	Engine         *texture.Engine
	PNGCompression string
	CacheControl   string
	// MaxConcurrentRenders bounds simultaneous renders (default: 1).
	MaxConcurrentRenders int
	// MaxPixels rejects requests whose output exceeds this many pixels,
	// after upscaling (default: 4096*4096).
	MaxPixels int
	// CacheEntries bounds the in-memory PNG cache for deterministic
	// requests (default: 256). Voronoi is never cached.
	CacheEntries int
	DisableCache bool
}

// OnDemandTextures renders preview textures per request.
type OnDemandTextures struct {
	logger *slog.Logger
	sem    chan struct{}
	locks  sync.Map
	cache  sync.Map // map[string]cachedTexture
	cfg    OnDemandTexturesConfig

	cached         atomic.Int32
	activeRenders  atomic.Int32
	queuedRenders  atomic.Int32
	totalRendered  atomic.Int64
	totalFailed    atomic.Int64
	totalNotMod    atomic.Int64
	cacheHits      atomic.Int64
	currentRenders sync.Map // map[string]time.Time, request key -> start time
}

type cachedTexture struct {
	etag string
	data []byte
}

// TextureStatus reports render counters.
type TextureStatus struct {
	ActiveRenders  int      `json:"active_renders"`
	QueuedRenders  int      `json:"queued_renders"`
	TotalRendered  int64    `json:"total_rendered"`
	TotalFailed    int64    `json:"total_failed"`
	NotModified    int64    `json:"not_modified"`
	CacheHits      int64    `json:"cache_hits"`
	CachedTextures int      `json:"cached_textures"`
	MaxConcurrent  int      `json:"max_concurrent"`
	CurrentRenders []string `json:"current_renders"`
}

func NewOnDemandTextures(cfg OnDemandTexturesConfig, logger *slog.Logger) (*OnDemandTextures, error) {
	if cfg.Engine == nil {
		e, err := texture.New(texture.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		cfg.Engine = e
	}
	if _, err := imageio.ParseCompression(cfg.PNGCompression); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrentRenders <= 0 {
		cfg.MaxConcurrentRenders = 1
	}
	if cfg.MaxPixels <= 0 {
		cfg.MaxPixels = 4096 * 4096
	}
	if cfg.CacheEntries <= 0 {
		cfg.CacheEntries = 256
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-cache"
	}

	return &OnDemandTextures{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentRenders),
	}, nil
}

// Status returns the current render counters.
func (t *OnDemandTextures) Status() TextureStatus {
	current := []string{}
	t.currentRenders.Range(func(key, _ any) bool {
		current = append(current, key.(string))
		return true
	})

	return TextureStatus{
		ActiveRenders:  int(t.activeRenders.Load()),
		QueuedRenders:  int(t.queuedRenders.Load()),
		TotalRendered:  t.totalRendered.Load(),
		TotalFailed:    t.totalFailed.Load(),
		NotModified:    t.totalNotMod.Load(),
		CacheHits:      t.cacheHits.Load(),
		CachedTextures: int(t.cached.Load()),
		MaxConcurrent:  t.cfg.MaxConcurrentRenders,
		CurrentRenders: current,
	}
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (t *OnDemandTextures) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Cache-Control", "no-store")

		if err := json.NewEncoder(w).Encode(t.Status()); err != nil {
			t.log().Error("failed to encode status", "error", err)
			http.Error(w, "failed to encode status", http.StatusInternalServerError)
			return
		}
	})
}

// StatusStreamHandler pushes the status as Server-Sent Events every 250ms
// until the client disconnects.
func (t *OnDemandTextures) StatusStreamHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "SSE not supported", http.StatusInternalServerError)
			return
		}

		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()

		t.sendStatusEvent(w, flusher)
		for {
			select {
			case <-r.Context().Done():
				return
			case <-ticker.C:
				t.sendStatusEvent(w, flusher)
			}
		}
	})
}

func (t *OnDemandTextures) sendStatusEvent(w http.ResponseWriter, flusher http.Flusher) {
	data, err := json.Marshal(t.Status())
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

func (t *OnDemandTextures) Handler() http.Handler {
	return http.HandlerFunc(t.serveTexture)
}

func (t *OnDemandTextures) serveTexture(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, If-None-Match")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	mode, ok := parseTexturePath(r.URL.Path)
	if !ok {
		http.NotFound(w, r)
		return
	}
	req, post, err := parseTextureQuery(mode, r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if pixels, ok := outputPixels(req, post); !ok || pixels > t.cfg.MaxPixels {
		http.Error(w, fmt.Sprintf("texture too large: %dx%d upscaled x%d, limit %d pixels",
			req.Width, req.Height, max(post.Upscale, 1), t.cfg.MaxPixels), http.StatusBadRequest)
		return
	}

	key := previewKey(req, post)
	cacheable := req.Deterministic() && !t.cfg.DisableCache
	if cacheable {
		w.Header().Set("Cache-Control", t.cfg.CacheControl)
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}

	if cacheable {
		if c, ok := t.cache.Load(key); ok {
			t.cacheHits.Add(1)
			t.writePNG(w, r, c.(cachedTexture))
			return
		}

		mu := t.getLock(key)
		mu.Lock()
		defer mu.Unlock()

		if c, ok := t.cache.Load(key); ok {
			t.cacheHits.Add(1)
			t.writePNG(w, r, c.(cachedTexture))
			return
		}
	}

	t.queuedRenders.Add(1)
	select {
	case t.sem <- struct{}{}:
		t.queuedRenders.Add(-1)
		defer func() { <-t.sem }()
	case <-r.Context().Done():
		t.queuedRenders.Add(-1)
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	start := time.Now()
	t.activeRenders.Add(1)
	t.currentRenders.Store(key, start)
	data, err := t.render(req, post)
	t.activeRenders.Add(-1)
	t.currentRenders.Delete(key)

	if err != nil {
		t.totalFailed.Add(1)
		status := http.StatusInternalServerError
		if isValidationError(err) {
			status = http.StatusBadRequest
		} else {
			t.log().Error("failed to render texture", "key", key, "error", err)
		}
		http.Error(w, fmt.Sprintf("failed to render texture %s: %v", key, err), status)
		return
	}
	t.totalRendered.Add(1)
	t.log().Info("texture rendered on-demand", "key", key, "bytes", len(data), "ms", time.Since(start).Milliseconds())

	c := cachedTexture{etag: etagFor(store.ContentHash(data)), data: data}
	if cacheable && int(t.cached.Load()) < t.cfg.CacheEntries {
		if _, loaded := t.cache.LoadOrStore(key, c); !loaded {
			t.cached.Add(1)
		}
	}
	t.writePNG(w, r, c)
}

func (t *OnDemandTextures) render(req texture.Request, post imageio.Postprocess) ([]byte, error) {
	buf, err := t.cfg.Engine.Generate(req)
	if err != nil {
		return nil, err
	}
	return imageio.EncodePNG(post.Apply(buf.ToImage()), t.cfg.PNGCompression)
}

func (t *OnDemandTextures) writePNG(w http.ResponseWriter, r *http.Request, c cachedTexture) {
	w.Header().Set("ETag", c.etag)
	if etagMatches(r.Header.Get("If-None-Match"), c.etag) {
		t.totalNotMod.Add(1)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(c.data)))
	if _, err := w.Write(c.data); err != nil {
		t.log().Error("failed to write response", "error", err)
	}
}

func (t *OnDemandTextures) getLock(key string) *sync.Mutex {
	if v, ok := t.locks.Load(key); ok {
		return v.(*sync.Mutex)
	}
	mu := &sync.Mutex{}
	actual, _ := t.locks.LoadOrStore(key, mu)
	return actual.(*sync.Mutex)
}

func (t *OnDemandTextures) log() *slog.Logger {
	if t.logger != nil {
		return t.logger
	}
	return slog.Default()
}

// parseTexturePath expects /textures/{mode}.png, e.g. /textures/fbm.png.
func parseTexturePath(requestPath string) (texture.Mode, bool) {
	if !strings.HasPrefix(requestPath, "/textures/") {
		return "", false
	}
	base := path.Base(requestPath)
	if !strings.HasSuffix(base, ".png") {
		return "", false
	}
	mode, err := texture.ParseMode(strings.TrimSuffix(base, ".png"))
	if err != nil {
		return "", false
	}
	return mode, true
}

func parseTextureQuery(mode texture.Mode, q url.Values) (texture.Request, imageio.Postprocess, error) {
	req := texture.Request{Mode: mode}
	var post imageio.Postprocess
	var err error

	if req.Width, err = queryInt(q, "width", DefaultSize); err != nil {
		return req, post, err
	}
	if req.Height, err = queryInt(q, "height", DefaultSize); err != nil {
		return req, post, err
	}
	if req.Scale, err = queryFloat(q, "scale", DefaultScale); err != nil {
		return req, post, err
	}
	if req.Seeds, err = queryInt(q, "seeds", DefaultSeeds); err != nil {
		return req, post, err
	}
	if req.Cell, err = queryInt(q, "cell", DefaultCell); err != nil {
		return req, post, err
	}
	if post.Upscale, err = queryInt(q, "upscale", 0); err != nil {
		return req, post, err
	}
	blur, err := queryFloat(q, "blur", 0)
	if err != nil {
		return req, post, err
	}
	post.BlurSigma = float32(blur)

	if s := q.Get("seed"); s != "" {
		seed, err := strconv.ParseUint(s, 10, 32)
		if err != nil {
			return req, post, fmt.Errorf("invalid seed %q: must be an unsigned 32-bit integer", s)
		}
		req.Seed = uint32(seed)
	}

	if err := post.Validate(); err != nil {
		return req, post, err
	}
	return req, post, nil
}

func queryInt(q url.Values, name string, def int) (int, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be an integer", name, s)
	}
	return v, nil
}

func queryFloat(q url.Values, name string, def float64) (float64, error) {
	s := q.Get(name)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a number", name, s)
	}
	return v, nil
}

// outputPixels returns the pixel count of the final image. ok is false
// when any step of the product overflows int.
func outputPixels(req texture.Request, post imageio.Postprocess) (pixels int, ok bool) {
	w, h := max(req.Width, 0), max(req.Height, 0)
	if post.Upscale > 1 {
		if w, ok = mulInt(w, post.Upscale); !ok {
			return 0, false
		}
		if h, ok = mulInt(h, post.Upscale); !ok {
			return 0, false
		}
	}
	return mulInt(w, h)
}

// mulInt multiplies two non-negative ints, reporting overflow.
func mulInt(a, b int) (int, bool) {
	if a != 0 && b > math.MaxInt/a {
		return 0, false
	}
	return a * b, true
}

func previewKey(req texture.Request, post imageio.Postprocess) string {
	key := req.Key()
	if post.BlurSigma > 0 {
		key += "_b" + strconv.FormatFloat(float64(post.BlurSigma), 'g', -1, 32)
	}
	if post.Upscale > 1 {
		key += "_x" + strconv.Itoa(post.Upscale)
	}
	return key
}

func isValidationError(err error) bool {
	return errors.Is(err, texture.ErrInvalidDimensions) ||
		errors.Is(err, texture.ErrInvalidScale) ||
		errors.Is(err, texture.ErrInvalidSeedCount) ||
		errors.Is(err, texture.ErrInvalidCellSize)
}

func etagFor(hash string) string {
	return `"` + hash + `"`
}

// etagMatches reports whether an If-None-Match header lists etag.
func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		if candidate == "*" || candidate == etag {
			return true
		}
	}
	return false
}
