// Package resources resolves widget asset references to local files.
// Resolved assets are cached on an afero filesystem so a device keeps its
// show after a reboot and never fetches the same ref twice.
package resources

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/castmill/castmill-sub005/internal/logger"
)

// Fetcher retrieves the bytes behind an asset ref on a cache miss. The
// device shell injects one; tests use in-memory fixtures.
type Fetcher interface {
	Fetch(ctx context.Context, ref string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, ref string) (io.ReadCloser, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	return f(ctx, ref)
}

// Manager is the asset cache. Safe for concurrent use; concurrent misses
// for the same ref are collapsed into one fetch.
type Manager struct {
	fs       afero.Fs
	cacheDir string
	fetcher  Fetcher

	mu       sync.Mutex
	inflight map[string]*fetchCall
}

type fetchCall struct {
	done chan struct{}
	path string
	err  error
}

// NewManager creates a resource manager storing cached assets under
// cacheDir on fs. fetcher may be nil, in which case every miss fails.
func NewManager(fs afero.Fs, cacheDir string, fetcher Fetcher) *Manager {
	return &Manager{
		fs:       fs,
		cacheDir: cacheDir,
		fetcher:  fetcher,
		inflight: make(map[string]*fetchCall),
	}
}

// Resolve returns a local path for ref, fetching and caching it first if
// needed. Cache hits never touch the fetcher.
func (m *Manager) Resolve(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		return "", fmt.Errorf("empty asset ref")
	}

	cached := m.cachePath(ref)
	if ok, _ := afero.Exists(m.fs, cached); ok {
		logger.Debug("asset cache hit", "ref", ref)
		return cached, nil
	}

	m.mu.Lock()
	if call, ok := m.inflight[ref]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.path, call.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	call := &fetchCall{done: make(chan struct{})}
	m.inflight[ref] = call
	m.mu.Unlock()

	call.path, call.err = m.fetch(ctx, ref, cached)
	close(call.done)

	m.mu.Lock()
	delete(m.inflight, ref)
	m.mu.Unlock()

	return call.path, call.err
}

// Evict removes a cached asset.
func (m *Manager) Evict(ref string) error {
	err := m.fs.Remove(m.cachePath(ref))
	if err != nil && !isNotExist(err) {
		return fmt.Errorf("failed to evict %s: %w", ref, err)
	}
	return nil
}

// Clear drops the whole cache directory.
func (m *Manager) Clear() error {
	if err := m.fs.RemoveAll(m.cacheDir); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return m.fs.MkdirAll(m.cacheDir, 0o755)
}

func (m *Manager) fetch(ctx context.Context, ref, cached string) (string, error) {
	if m.fetcher == nil {
		return "", fmt.Errorf("no fetcher configured, cannot resolve %s", ref)
	}

	logger.Debug("asset cache miss", "ref", ref)

	body, err := m.fetcher.Fetch(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", ref, err)
	}
	defer body.Close()

	if err := m.fs.MkdirAll(m.cacheDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create cache dir: %w", err)
	}

	// Write through a temp file so a torn fetch never looks like a hit.
	tmp := cached + ".part"
	f, err := m.fs.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create cache file: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		m.fs.Remove(tmp)
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := f.Close(); err != nil {
		m.fs.Remove(tmp)
		return "", fmt.Errorf("failed to close cache file: %w", err)
	}
	if err := m.fs.Rename(tmp, cached); err != nil {
		m.fs.Remove(tmp)
		return "", fmt.Errorf("failed to commit cache file: %w", err)
	}

	return cached, nil
}

func (m *Manager) cachePath(ref string) string {
	sum := sha256.Sum256([]byte(ref))
	name := hex.EncodeToString(sum[:16])
	if ext := path.Ext(ref); ext != "" && len(ext) <= 8 {
		name += ext
	}
	return filepath.Join(m.cacheDir, name)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist)
}
