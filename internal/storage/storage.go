// Package storage provides the byte stores the loader fetches containers from.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var (
	ErrNotFound = errors.New("storage: not found")
	ErrNotReady = errors.New("storage: not ready")
)

// Storage fetches the raw bytes of name under a logical root such as "models".
// Missing entries are reported with an error wrapping ErrNotFound.
type Storage interface {
	Fetch(ctx context.Context, name, root string) ([]byte, error)
}

// Readier is implemented by stores that need time to come up.
type Readier interface {
	Ready() bool
}

// DefaultPollInterval paces WaitReady.
const DefaultPollInterval = 10 * time.Millisecond

// WaitReady blocks until s reports ready or ctx ends. Stores that do not
// implement Readier are ready immediately.
func WaitReady(ctx context.Context, s Storage, interval time.Duration) error {
	r, ok := s.(Readier)
	if !ok {
		return nil
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	lim := rate.NewLimiter(rate.Every(interval), 1)
	for !r.Ready() {
		res := lim.Reserve()
		timer := time.NewTimer(res.Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Cancel()
			return fmt.Errorf("%w: %w", ErrNotReady, ctx.Err())
		case <-timer.C:
		}
	}
	return nil
}

// Dir serves files from <Base>/<root>/<name>.
type Dir struct {
	Base string
}

// NewDir returns a Dir rooted at base.
func NewDir(base string) *Dir {
	return &Dir{Base: base}
}

// Ready reports whether the base directory exists.
func (d *Dir) Ready() bool {
	info, err := os.Stat(d.Base)
	return err == nil && info.IsDir()
}

// Path returns the file path name resolves to under root.
func (d *Dir) Path(name, root string) (string, error) {
	rel := filepath.Join(root, name)
	if !filepath.IsLocal(rel) {
		return "", fmt.Errorf("storage: %q escapes the storage directory", rel)
	}
	return filepath.Join(d.Base, rel), nil
}

func (d *Dir) Fetch(ctx context.Context, name, root string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := d.Path(name, root)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}

// Memory is an in-process store. It is safe for concurrent use.
type Memory struct {
	mu      sync.Mutex
	entries map[string][]byte
	fetches map[string]int
	ready   bool
}

// NewMemory returns an empty store that is ready.
func NewMemory() *Memory {
	return &Memory{
		entries: make(map[string][]byte),
		fetches: make(map[string]int),
		ready:   true,
	}
}

func memoryKey(name, root string) string {
	return root + "/" + name
}

// Put stores a copy of data.
func (m *Memory) Put(root, name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memoryKey(name, root)] = append([]byte(nil), data...)
}

// Delete removes an entry.
func (m *Memory) Delete(root, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, memoryKey(name, root))
}

// SetReady toggles the value reported by Ready.
func (m *Memory) SetReady(ready bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ready = ready
}

func (m *Memory) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

// Fetches reports how many times name was requested under root, hits and
// misses alike.
func (m *Memory) Fetches(root, name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.fetches[memoryKey(name, root)]
}

func (m *Memory) Fetch(ctx context.Context, name, root string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memoryKey(name, root)
	m.fetches[key]++
	data, ok := m.entries[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return append([]byte(nil), data...), nil
}
