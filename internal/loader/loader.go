// Package loader builds assets from containers and resolves the dependencies
// between them.
//
// A Loader owns a cache keyed by asset name. Loading a cached name does
// nothing; loading a new name fetches the container from storage, decodes it,
// registers the asset, loads its dependency through the same path and stages
// its meshes into the caller's copy pass. Uploads are recorded but never
// submitted; the caller submits the pass, possibly after batching several
// loads into it.
//
// A Loader is not safe for concurrent use.
package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samcharles93/caaf/internal/gpu"
	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/internal/storage"
	"github.com/samcharles93/caaf/pkg/caaf"
	"github.com/zeebo/blake3"
)

var (
	ErrDependencyCycle = errors.New("loader: dependency cycle")
	ErrNotLoaded       = errors.New("loader: asset not loaded")
	ErrExists          = errors.New("loader: asset already loaded")
	ErrNoSource        = errors.New("loader: asset has no retained source")
)

const (
	DefaultModelsRoot  = "models"
	DefaultShadersRoot = "shaders"
)

// Options configures a Loader.
type Options struct {
	// Storage serves containers for Load and LoadShader. ReadPath does not
	// use it.
	Storage storage.Storage
	// Backend allocates staging and destination buffers. Required.
	Backend gpu.Backend
	Logger  logger.Logger

	ModelsRoot  string
	ShadersRoot string

	// MemoryLimit bounds a single decompression. Zero selects
	// caaf.DecompressMemoryMax.
	MemoryLimit uint64
	Cycles      CyclePolicy

	// RetainSource keeps a private copy of every decoded document so the
	// asset can be written back with WritePath.
	RetainSource bool

	// PollInterval paces the storage readiness wait.
	PollInterval time.Duration
}

// Loader is the asset cache and the load state machine around it.
type Loader struct {
	opts    Options
	log     logger.Logger
	assets  map[string]*Asset
	shaders map[string][]byte
}

// source returns the uncompressed container for name. done releases any
// mapping behind data and is never nil.
type source func(ctx context.Context, name string) (data []byte, done func(), err error)

func noop() {}

// New creates an empty Loader.
func New(opts Options) (*Loader, error) {
	if opts.Backend == nil {
		return nil, errors.New("loader: backend is required")
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.ModelsRoot == "" {
		opts.ModelsRoot = DefaultModelsRoot
	}
	if opts.ShadersRoot == "" {
		opts.ShadersRoot = DefaultShadersRoot
	}
	if opts.MemoryLimit == 0 {
		opts.MemoryLimit = caaf.DecompressMemoryMax
	}
	if opts.Cycles > CycleReject {
		return nil, fmt.Errorf("loader: invalid cycle policy %d", opts.Cycles)
	}
	return &Loader{
		opts:    opts,
		log:     opts.Logger.With("component", "loader"),
		assets:  make(map[string]*Asset),
		shaders: make(map[string][]byte),
	}, nil
}

// Load makes name available in the cache, loading it and its dependency
// chain from storage if needed. Uploads for new meshes are recorded into pass.
func (l *Loader) Load(ctx context.Context, name string, pass gpu.CopyPass) error {
	if name == "" {
		return errors.New("loader: empty asset name")
	}
	if _, ok := l.assets[name]; ok {
		return nil
	}
	if pass == nil {
		return errors.New("loader: nil copy pass")
	}
	if l.opts.Storage == nil {
		return errors.New("loader: no storage configured")
	}
	if err := storage.WaitReady(ctx, l.opts.Storage, l.opts.PollInterval); err != nil {
		return err
	}
	_, err := l.load(ctx, name, pass, l.fromStorage, nil)
	return err
}

func (l *Loader) fromStorage(ctx context.Context, name string) ([]byte, func(), error) {
	raw, err := l.opts.Storage.Fetch(ctx, name+caaf.ExtModel, l.opts.ModelsRoot)
	if err != nil {
		return nil, noop, err
	}
	data, err := caaf.Decompress(raw, l.opts.MemoryLimit)
	if err != nil {
		return nil, noop, fmt.Errorf("%s: %w", name, err)
	}
	return data, noop, nil
}

// load returns the cached asset for name or builds it from src. chain holds
// the names of the assets currently being built above this call.
func (l *Loader) load(ctx context.Context, name string, pass gpu.CopyPass, src source, chain []string) (*Asset, error) {
	if a, ok := l.assets[name]; ok {
		if a.loading && l.opts.Cycles == CycleReject {
			return nil, fmt.Errorf("%w: %s", ErrDependencyCycle, strings.Join(append(chain, name), " -> "))
		}
		if a.loading {
			l.log.Debug("dependency cycle tolerated", "asset", name, "chain", strings.Join(chain, " -> "))
		}
		return a, nil
	}

	data, done, err := src(ctx, name)
	if err != nil {
		return nil, err
	}
	defer done()

	doc, err := caaf.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("loader: %s: %w", name, err)
	}
	if doc.Name != "" && doc.Name != name {
		l.log.Warn("container name differs from requested name", "asset", name, "container", doc.Name)
	}
	return l.build(ctx, name, doc, blake3.Sum256(data), pass, src, chain)
}

// build registers doc under key, resolves its dependency and stages its
// meshes. The document must already have been decoded, so structural errors
// never reach the cache.
func (l *Loader) build(ctx context.Context, key string, doc *caaf.Document, digest [32]byte, pass gpu.CopyPass, src source, chain []string) (*Asset, error) {
	log := l.log.With("asset", key)
	for _, s := range doc.Skipped {
		log.Warn("unknown section skipped", "section", s.Index, "offset", s.Offset, "tag", s.Tag)
	}

	a := &Asset{
		ID:           uuid.New(),
		Name:         key,
		Requires:     doc.Dependency,
		IsDependency: doc.IsDependency,
		Pipelines:    doc.Pipelines,
		Textures:     cloneTextures(doc.Textures),
		Samplers:     doc.Samplers,
		Skipped:      doc.Skipped,
		Digest:       digest,
		loading:      true,
	}
	if l.opts.RetainSource {
		a.Source = cloneDocument(doc)
	}
	l.assets[key] = a

	if dep := doc.Dependency; dep != "" {
		if _, err := l.load(ctx, dep, pass, src, append(chain, key)); err != nil {
			if errors.Is(err, ErrDependencyCycle) || ctx.Err() != nil {
				delete(l.assets, key)
				return nil, err
			}
			log.Warn("dependency unavailable", "dependency", dep, "err", err)
		} else {
			a.Dependency = dep
		}
	}

	a.Meshes = make([]*Mesh, len(doc.Meshes))
	for i := range doc.Meshes {
		m, err := l.upload(key, i, &doc.Meshes[i], pass)
		if err != nil {
			log.Warn("mesh skipped", "mesh", i, "err", err)
			continue
		}
		a.Meshes[i] = m
	}

	a.loading = false
	log.Debug("asset loaded",
		"id", a.ID,
		"meshes", a.Uploaded(),
		"pipelines", len(a.Pipelines),
		"textures", len(a.Textures),
		"samplers", len(a.Samplers),
		"dependency", a.Dependency,
	)
	return a, nil
}

// Get returns a cached asset.
func (l *Loader) Get(name string) (*Asset, bool) {
	a, ok := l.assets[name]
	return a, ok
}

// Dependency resolves the dependency handle of a.
func (l *Loader) Dependency(a *Asset) (*Asset, bool) {
	if a == nil || a.Dependency == "" {
		return nil, false
	}
	dep, ok := l.assets[a.Dependency]
	return dep, ok
}

// List returns every cached asset sorted by name.
func (l *Loader) List() []*Asset {
	out := make([]*Asset, 0, len(l.assets))
	for _, a := range l.assets {
		out = append(out, a)
	}
	slices.SortFunc(out, func(a, b *Asset) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Len returns the number of cached assets.
func (l *Loader) Len() int { return len(l.assets) }

// Evict drops one asset and releases its buffers. Assets that depend on it
// keep their handle, which no longer resolves until the name is loaded again.
func (l *Loader) Evict(name string) bool {
	a, ok := l.assets[name]
	if !ok {
		return false
	}
	a.release(l.opts.Backend)
	delete(l.assets, name)
	l.log.Debug("asset evicted", "asset", name)
	return true
}

// Clear drops every asset and shader and releases all buffers.
func (l *Loader) Clear() {
	for _, a := range l.assets {
		a.release(l.opts.Backend)
	}
	n := len(l.assets)
	clear(l.assets)
	clear(l.shaders)
	l.log.Debug("cache cleared", "assets", n)
}
