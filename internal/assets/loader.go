package assets

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/glbview/internal/logger"
)

// Result is the outcome of one background load.
type Result struct {
	ID    uint64
	Path  string
	Model *Model
	Err   error
}

// Loader runs Fetch and Decode off the frame thread. Each Load posts exactly
// one Result, which the frame loop picks up with Poll.
type Loader struct {
	fetcher *Fetcher
	results chan Result
	next    atomic.Uint64
}

// NewLoader creates a loader backed by fetcher.
func NewLoader(fetcher *Fetcher) *Loader {
	return &Loader{
		fetcher: fetcher,
		results: make(chan Result, 4),
	}
}

// Load starts loading path in the background and returns the request ID
// that its Result will carry.
func (l *Loader) Load(ctx context.Context, path string) uint64 {
	id := l.next.Add(1)
	go func() {
		m, err := l.LoadSync(ctx, path)
		l.results <- Result{ID: id, Path: path, Model: m, Err: err}
	}()
	return id
}

// LoadSync fetches and decodes path on the calling goroutine.
func (l *Loader) LoadSync(ctx context.Context, path string) (*Model, error) {
	start := time.Now()
	src, err := l.fetcher.Fetch(ctx, path)
	if err != nil {
		return nil, err
	}
	m, err := Decode(src)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	logger.Debug("model loaded", zap.String("path", path), zap.Duration("took", time.Since(start)))
	return m, nil
}

// Poll returns a finished Result if one is ready. It never blocks.
func (l *Loader) Poll() (Result, bool) {
	select {
	case r := <-l.results:
		return r, true
	default:
		return Result{}, false
	}
}
