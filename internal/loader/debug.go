package loader

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/samcharles93/caaf/internal/gpu"
	"github.com/samcharles93/caaf/internal/storage"
	"github.com/samcharles93/caaf/pkg/caaf"
	"github.com/zeebo/blake3"
)

// ReadPath loads the container at path, bypassing storage, and returns the
// name it is cached under: the name recorded in the container, or the file
// name when it records none. Raw containers are mapped; enveloped ones are
// decompressed. Dependencies are looked up next to path.
func (l *Loader) ReadPath(ctx context.Context, path string, pass gpu.CopyPass) (string, error) {
	if pass == nil {
		return "", errors.New("loader: nil copy pass")
	}
	data, done, err := l.readFile(path)
	if err != nil {
		return "", err
	}
	defer done()

	doc, err := caaf.Decode(data)
	if err != nil {
		return "", fmt.Errorf("loader: %s: %w", path, err)
	}
	key := doc.Name
	if key == "" {
		key = AssetName(path)
	}
	if _, ok := l.assets[key]; ok {
		return key, nil
	}
	if _, err := l.build(ctx, key, doc, blake3.Sum256(data), pass, l.fromDir(filepath.Dir(path)), nil); err != nil {
		return "", err
	}
	return key, nil
}

// AssetName strips the directory and container suffixes from path.
func AssetName(path string) string {
	base := filepath.Base(path)
	for _, ext := range []string{caaf.ExtModel, caaf.ExtShader, caaf.ExtModelRaw} {
		if trimmed, ok := strings.CutSuffix(base, ext); ok {
			return trimmed
		}
	}
	return base
}

func (l *Loader) readFile(path string) ([]byte, func(), error) {
	if caaf.IsCompressed(path) {
		data, err := caaf.ReadFile(path, l.opts.MemoryLimit)
		if err != nil {
			return nil, noop, fmt.Errorf("loader: %s: %w", path, err)
		}
		return data, noop, nil
	}
	f, err := caaf.OpenFile(path)
	if err != nil {
		return nil, noop, fmt.Errorf("loader: %s: %w", path, err)
	}
	return f.Data, func() {
		if err := f.Close(); err != nil {
			l.log.Warn("unmap failed", "path", path, "err", err)
		}
	}, nil
}

// fromDir resolves dependencies of a ReadPath load, preferring a raw
// container over an enveloped one.
func (l *Loader) fromDir(dir string) source {
	return func(ctx context.Context, name string) ([]byte, func(), error) {
		if err := ctx.Err(); err != nil {
			return nil, noop, err
		}
		if !filepath.IsLocal(name) {
			return nil, noop, fmt.Errorf("loader: dependency %q escapes %s", name, dir)
		}
		for _, ext := range []string{caaf.ExtModelRaw, caaf.ExtModel} {
			path := filepath.Join(dir, name+ext)
			if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return l.readFile(path)
		}
		return nil, noop, fmt.Errorf("%w: %s in %s", storage.ErrNotFound, name, dir)
	}
}

// WritePath encodes the retained source of a cached asset to path. Paths
// ending in the compression suffix are enveloped.
func (l *Loader) WritePath(name, path string) error {
	a, ok := l.assets[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotLoaded, name)
	}
	if a.Source == nil {
		return fmt.Errorf("%w: %s", ErrNoSource, name)
	}
	if err := caaf.WriteFile(path, a.Source); err != nil {
		return fmt.Errorf("loader: write %s: %w", path, err)
	}
	l.log.Debug("asset written", "asset", name, "path", path)
	return nil
}

// Create registers an empty asset for authoring. Its source document is
// populated through Asset.Source and written with WritePath.
func (l *Loader) Create(name, dependency string) (*Asset, error) {
	if name == "" {
		return nil, errors.New("loader: empty asset name")
	}
	if _, ok := l.assets[name]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, name)
	}
	a := &Asset{
		ID:       uuid.New(),
		Name:     name,
		Requires: dependency,
		Source:   &caaf.Document{Name: name, Dependency: dependency},
	}
	if _, ok := l.assets[dependency]; ok {
		a.Dependency = dependency
	}
	l.assets[name] = a
	return a, nil
}
