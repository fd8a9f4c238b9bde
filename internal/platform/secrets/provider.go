// Package secrets provides credential lookup for the external job service.
// The key is fetched once per process lifetime and cached; there is no
// refresh path, matching the deployment model where a restart picks up a
// rotated key.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Provider resolves the external service API key.
type Provider interface {
	APIKey(ctx context.Context) (string, error)
}

// FileProvider reads the API key from a file, typically a mounted secret.
type FileProvider struct {
	path string
}

// NewFileProvider creates a FileProvider reading from the given path.
func NewFileProvider(path string) *FileProvider {
	return &FileProvider{path: path}
}

// APIKey reads and returns the key, trimming surrounding whitespace.
func (p *FileProvider) APIKey(ctx context.Context) (string, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return "", fmt.Errorf("failed to read api key file: %w", err)
	}

	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", fmt.Errorf("api key file is empty")
	}

	return key, nil
}

// CachedProvider wraps another Provider and resolves the key at most once.
// After first population the cached value is read concurrently without
// locking; sync.Once provides the single-assignment guarantee. A failed
// first lookup is cached too: the backing source is local and static, so
// retrying cannot yield a different answer within one process lifetime.
type CachedProvider struct {
	inner Provider

	once sync.Once
	key  string
	err  error
}

// NewCachedProvider creates a CachedProvider over the given Provider.
func NewCachedProvider(inner Provider) *CachedProvider {
	return &CachedProvider{inner: inner}
}

// APIKey returns the cached key, resolving it on first use.
func (p *CachedProvider) APIKey(ctx context.Context) (string, error) {
	p.once.Do(func() {
		p.key, p.err = p.inner.APIKey(ctx)
	})
	return p.key, p.err
}
