// Package assets fetches glTF models from disk or HTTP, decodes them into
// scene graphs, and loads them in the background.
package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/qmuntal/gltf"
	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/logger"
)

var (
	// ErrEmptyPath is returned when no model path is given.
	ErrEmptyPath = errors.New("empty model path")
	// ErrNoScene is returned for documents with neither a default scene nor any scene.
	ErrNoScene = errors.New("gltf document has no scene")
)

// Source is a parsed glTF document plus the file system its relative URIs
// resolve against.
type Source struct {
	Path string
	Doc  *gltf.Document
	FS   fs.FS
}

// Fetcher reads glTF documents from local paths or http(s) URLs.
// Remote bytes are cached by URL.
type Fetcher struct {
	client *http.Client
	cache  *Cache
}

// NewFetcher creates a fetcher whose HTTP requests time out after timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		cache:  NewCache(),
	}
}

// Cache returns the fetcher's remote byte cache.
func (f *Fetcher) Cache() *Cache {
	return f.cache
}

// IsRemote reports whether path is an http or https URL.
func IsRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// Fetch reads and parses the document at path. Buffers are resolved;
// images are left for Decode.
func (f *Fetcher) Fetch(ctx context.Context, path string) (*Source, error) {
	if path == "" {
		return nil, ErrEmptyPath
	}
	if IsRemote(path) {
		return f.fetchRemote(ctx, path)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Source{Path: path, Doc: doc, FS: os.DirFS(filepath.Dir(path))}, nil
}

func (f *Fetcher) fetchRemote(ctx context.Context, raw string) (*Source, error) {
	base, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing url %s: %w", raw, err)
	}
	data, err := f.get(ctx, raw)
	if err != nil {
		return nil, err
	}

	fsys := &remoteFS{ctx: ctx, fetcher: f, base: base}
	var doc gltf.Document
	if err := gltf.NewDecoderFS(bytes.NewReader(data), fsys).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", raw, err)
	}
	return &Source{Path: raw, Doc: &doc, FS: fsys}, nil
}

// get downloads a URL, going through the cache.
func (f *Fetcher) get(ctx context.Context, rawURL string) ([]byte, error) {
	if data, ok := f.cache.Get(rawURL); ok {
		return data, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building request for %s: %w", rawURL, err)
	}
	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", rawURL, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rawURL, err)
	}

	logger.Debug("fetched",
		zap.String("url", rawURL),
		zap.Int("bytes", len(data)),
		zap.Duration("took", time.Since(start)))

	f.cache.Set(rawURL, data)
	return data, nil
}

// Cache is an in-memory byte cache keyed by URL.
type Cache struct {
	data map[string][]byte
	mu   sync.Mutex

	hits   int
	misses int
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		data: make(map[string][]byte),
	}
}

// Get retrieves an item from cache.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, ok := c.data[key]
	if ok {
		c.hits++
	} else {
		c.misses++
	}
	return data, ok
}

// Set stores an item in cache.
func (c *Cache) Set(key string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = data
}

// Stats returns cache statistics.
func (c *Cache) Stats() (hits, misses int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
