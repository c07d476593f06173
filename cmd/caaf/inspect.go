package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/pkg/caaf"
)

type sectionInfo struct {
	Index   int    `json:"index"`
	Offset  int    `json:"offset"`
	Kind    string `json:"kind"`
	Entries int    `json:"entries"`
}

type meshInfo struct {
	VertexOffsets []uint32 `json:"vertex_offsets"`
	VertexSize    uint32   `json:"vertex_size"`
	IndexSize     uint32   `json:"index_size"`
}

type pipelineInfo struct {
	VertexShader     string `json:"vertex_shader"`
	FragmentShader   string `json:"fragment_shader"`
	Flags            uint16 `json:"flags"`
	VertexBuffers    int    `json:"vertex_buffers"`
	VertexAttributes int    `json:"vertex_attributes"`
	ColorTargets     int    `json:"color_targets"`
	SamplerBindings  int    `json:"sampler_bindings"`
}

type textureInfo struct {
	Width     uint32 `json:"width"`
	Height    uint32 `json:"height"`
	Depth     uint32 `json:"depth"`
	MipLevels uint16 `json:"mip_levels"`
	Format    uint8  `json:"format"`
	DataSize  int    `json:"data_size"`
}

// inspection is the machine-readable form of inspect output.
type inspection struct {
	Path         string                `json:"path"`
	Compressed   bool                  `json:"compressed"`
	Size         int                   `json:"size"`
	Name         string                `json:"name"`
	Dependency   string                `json:"dependency,omitempty"`
	IsDependency bool                  `json:"is_dependency"`
	Sections     []sectionInfo         `json:"sections"`
	Meshes       []meshInfo            `json:"meshes"`
	Pipelines    []pipelineInfo        `json:"pipelines"`
	Textures     []textureInfo         `json:"textures"`
	Samplers     int                   `json:"samplers"`
	Skipped      []caaf.SkippedSection `json:"skipped,omitempty"`
}

func inspectCmd() *cli.Command {
	var (
		asJSON      bool
		memoryLimit uint64
	)

	return &cli.Command{
		Name:      "inspect",
		Usage:     "Decode a container file and describe its contents",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print JSON instead of text",
				Destination: &asJSON,
			},
			&cli.Uint64Flag{
				Name:        "memory-limit",
				Usage:       "maximum bytes the container may decompress to (0 = default)",
				Destination: &memoryLimit,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.Args().First()
			if path == "" {
				return cli.Exit("error: FILE is required", 1)
			}
			if memoryLimit == 0 {
				memoryLimit = caaf.DecompressMemoryMax
			}
			info, err := inspectFile(path, memoryLimit)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if asJSON {
				out, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(os.Stdout, string(out))
				return err
			}
			printInspection(os.Stdout, info)
			return nil
		},
	}
}

func inspectFile(path string, limit uint64) (*inspection, error) {
	var data []byte
	if caaf.IsCompressed(path) {
		raw, err := caaf.ReadFile(path, limit)
		if err != nil {
			return nil, err
		}
		data = raw
	} else {
		f, err := caaf.OpenFile(path)
		if err != nil {
			return nil, err
		}
		defer func() { _ = f.Close() }()
		data = f.Data
	}

	doc, err := caaf.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	h, err := caaf.ReadHeader(data)
	if err != nil {
		return nil, err
	}

	info := &inspection{
		Path:         path,
		Compressed:   caaf.IsCompressed(path),
		Size:         len(data),
		Name:         doc.Name,
		Dependency:   doc.Dependency,
		IsDependency: doc.IsDependency,
		Samplers:     len(doc.Samplers),
		Skipped:      doc.Skipped,
	}
	for i := range int(h.SectionCount) {
		start, err := caaf.SectionStart(data, i)
		if err != nil {
			return nil, err
		}
		kind := caaf.IdentifySection(data, start)
		s := sectionInfo{Index: i, Offset: start, Kind: kind.String()}
		if kind != caaf.SectionUnknown {
			if n, err := caaf.EntryCount(data, start); err == nil {
				s.Entries = n
			}
		}
		info.Sections = append(info.Sections, s)
	}
	for i := range doc.Meshes {
		m := &doc.Meshes[i]
		info.Meshes = append(info.Meshes, meshInfo{
			VertexOffsets: m.VertexOffsets,
			VertexSize:    m.VertexSize(),
			IndexSize:     m.IndexSize(),
		})
	}
	for _, p := range doc.Pipelines {
		info.Pipelines = append(info.Pipelines, pipelineInfo{
			VertexShader:     p.VertexShader,
			FragmentShader:   p.FragmentShader,
			Flags:            p.Flags,
			VertexBuffers:    len(p.VertexBuffers),
			VertexAttributes: len(p.VertexAttributes),
			ColorTargets:     len(p.ColorTargets),
			SamplerBindings:  len(p.SamplerBindings),
		})
	}
	for _, t := range doc.Textures {
		info.Textures = append(info.Textures, textureInfo{
			Width: t.Width, Height: t.Height, Depth: t.Depth,
			MipLevels: t.MipLevels, Format: t.Format, DataSize: len(t.Data),
		})
	}
	return info, nil
}

func printInspection(w io.Writer, info *inspection) {
	_, _ = fmt.Fprintf(w, "%s (%d bytes uncompressed)\n", info.Path, info.Size)
	_, _ = fmt.Fprintf(w, "  name:          %q\n", info.Name)
	_, _ = fmt.Fprintf(w, "  dependency:    %q\n", info.Dependency)
	_, _ = fmt.Fprintf(w, "  is dependency: %v\n", info.IsDependency)

	_, _ = fmt.Fprintf(w, "\nSections (%d):\n", len(info.Sections))
	for _, s := range info.Sections {
		_, _ = fmt.Fprintf(w, "  [%d] %-9s @0x%06x  entries=%d\n", s.Index, s.Kind, s.Offset, s.Entries)
	}
	for _, s := range info.Skipped {
		_, _ = fmt.Fprintf(w, "  skipped section %d @0x%06x tag %q\n", s.Index, s.Offset, s.Tag)
	}

	_, _ = fmt.Fprintf(w, "\nMeshes (%d):\n", len(info.Meshes))
	for i, m := range info.Meshes {
		_, _ = fmt.Fprintf(w, "  [%d] vertices=%d indices=%d buffers=%d\n", i, m.VertexSize, m.IndexSize, len(m.VertexOffsets))
	}
	_, _ = fmt.Fprintf(w, "\nPipelines (%d):\n", len(info.Pipelines))
	for i, p := range info.Pipelines {
		_, _ = fmt.Fprintf(w, "  [%d] vs=%q fs=%q flags=0x%04x buffers=%d attrs=%d targets=%d samplers=%d\n",
			i, p.VertexShader, p.FragmentShader, p.Flags,
			p.VertexBuffers, p.VertexAttributes, p.ColorTargets, p.SamplerBindings)
	}
	_, _ = fmt.Fprintf(w, "\nTextures (%d):\n", len(info.Textures))
	for i, t := range info.Textures {
		_, _ = fmt.Fprintf(w, "  [%d] %dx%dx%d mips=%d format=%d data=%d\n",
			i, t.Width, t.Height, t.Depth, t.MipLevels, t.Format, t.DataSize)
	}
	_, _ = fmt.Fprintf(w, "\nSamplers: %d\n", info.Samplers)
}
