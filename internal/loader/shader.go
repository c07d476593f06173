package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/samcharles93/caaf/internal/storage"
	"github.com/samcharles93/caaf/pkg/caaf"
)

// LoadShader fetches the shader container name from the shaders root and
// caches its bytecode. Loading a cached shader does nothing.
func (l *Loader) LoadShader(ctx context.Context, name string) error {
	if name == "" {
		return errors.New("loader: empty shader name")
	}
	if _, ok := l.shaders[name]; ok {
		return nil
	}
	if l.opts.Storage == nil {
		return errors.New("loader: no storage configured")
	}
	if err := storage.WaitReady(ctx, l.opts.Storage, l.opts.PollInterval); err != nil {
		return err
	}
	raw, err := l.opts.Storage.Fetch(ctx, name+caaf.ExtShader, l.opts.ShadersRoot)
	if err != nil {
		return err
	}
	code, err := caaf.Decompress(raw, l.opts.MemoryLimit)
	if err != nil {
		return fmt.Errorf("loader: shader %s: %w", name, err)
	}
	l.shaders[name] = code
	l.log.Debug("shader loaded", "shader", name, "bytes", len(code))
	return nil
}

// Shader returns cached shader bytecode.
func (l *Loader) Shader(name string) ([]byte, bool) {
	code, ok := l.shaders[name]
	return code, ok
}

// Shaders returns the cached shader names, sorted.
func (l *Loader) Shaders() []string {
	out := make([]string, 0, len(l.shaders))
	for name := range l.shaders {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}
