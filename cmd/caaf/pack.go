package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/pkg/caaf"
)

// manifest is the JSON authoring form of a container. Binary payloads are
// named by path, relative to the manifest.
type manifest struct {
	Name         string            `json:"name"`
	Dependency   string            `json:"dependency"`
	IsDependency bool              `json:"is_dependency"`
	Meshes       []meshManifest    `json:"meshes"`
	Pipelines    []caaf.Pipeline   `json:"pipelines"`
	Textures     []textureManifest `json:"textures"`
	Samplers     []caaf.Sampler    `json:"samplers"`
}

type meshManifest struct {
	VertexOffsets []uint32 `json:"vertex_offsets"`
	Vertices      string   `json:"vertices"`
	Indices       string   `json:"indices"`
}

type textureManifest struct {
	caaf.Texture
	Data string `json:"data"`
}

func readManifest(path string) (*caaf.Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}
	if m.Name == "" {
		return nil, fmt.Errorf("manifest %s: name is required", path)
	}

	dir := filepath.Dir(path)
	load := func(rel string) ([]byte, error) {
		if rel == "" {
			return nil, nil
		}
		if !filepath.IsAbs(rel) {
			rel = filepath.Join(dir, rel)
		}
		return os.ReadFile(rel)
	}

	doc := &caaf.Document{
		Name:         m.Name,
		Dependency:   m.Dependency,
		IsDependency: m.IsDependency,
		Pipelines:    m.Pipelines,
		Samplers:     m.Samplers,
	}
	for i, mm := range m.Meshes {
		vertices, err := load(mm.Vertices)
		if err != nil {
			return nil, fmt.Errorf("mesh %d vertices: %w", i, err)
		}
		indices, err := load(mm.Indices)
		if err != nil {
			return nil, fmt.Errorf("mesh %d indices: %w", i, err)
		}
		doc.Meshes = append(doc.Meshes, caaf.Mesh{
			VertexOffsets: mm.VertexOffsets,
			Vertices:      vertices,
			Indices:       indices,
		})
	}
	for i, tm := range m.Textures {
		t := tm.Texture
		data, err := load(tm.Data)
		if err != nil {
			return nil, fmt.Errorf("texture %d data: %w", i, err)
		}
		t.Data = data
		doc.Textures = append(doc.Textures, t)
	}
	return doc, nil
}

// resolvePackOut picks the output path: the explicit flag, or the asset
// name with the enveloped suffix next to the manifest.
func resolvePackOut(manifestPath, outFlag, name string, raw bool) (string, error) {
	outFlag = strings.TrimSpace(outFlag)
	if outFlag != "" {
		outPath := filepath.Clean(outFlag)
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return "", err
		}
		return outPath, nil
	}
	if !filepath.IsLocal(name) {
		return "", fmt.Errorf("asset name %q is not a valid file name", name)
	}
	ext := caaf.ExtModel
	if raw {
		ext = caaf.ExtModelRaw
	}
	return filepath.Join(filepath.Dir(manifestPath), name+ext), nil
}

func packCmd() *cli.Command {
	var (
		outPath string
		raw     bool
	)

	return &cli.Command{
		Name:      "pack",
		Usage:     "Build a container from a JSON manifest",
		ArgsUsage: "MANIFEST",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "out",
				Aliases:     []string{"o"},
				Usage:       "output path (suffix .zst selects the compressed envelope)",
				Destination: &outPath,
			},
			&cli.BoolFlag{
				Name:        "raw",
				Usage:       "write an uncompressed container when --out is not set",
				Destination: &raw,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)

			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("error: MANIFEST is required", 1)
			}
			doc, err := readManifest(path)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			out, err := resolvePackOut(path, outPath, doc.Name, raw)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if err := caaf.WriteFile(out, doc); err != nil {
				if errors.Is(err, caaf.ErrCountMismatch) {
					return cli.Exit(fmt.Sprintf("error: every mesh needs exactly one pipeline: %v", err), 1)
				}
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			log.Info("container written",
				"asset", doc.Name,
				"path", out,
				"meshes", len(doc.Meshes),
				"pipelines", len(doc.Pipelines),
				"textures", len(doc.Textures),
				"samplers", len(doc.Samplers),
			)
			return nil
		},
	}
}
