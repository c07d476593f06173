package api

import (
	"github.com/samcharles93/caaf/internal/loader"
)

// LoadRequest asks the server to load an asset. Exactly one of Name and Path
// is set: Name loads from storage, Path reads a container from disk.
type LoadRequest struct {
	Name string `json:"name,omitempty"`
	Path string `json:"path,omitempty"`
}

type AssetSummary struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Requires     string `json:"requires,omitempty"`
	Dependency   string `json:"dependency,omitempty"`
	IsDependency bool   `json:"is_dependency"`
	Meshes       int    `json:"meshes"`
	Uploaded     int    `json:"uploaded"`
	Pipelines    int    `json:"pipelines"`
	Textures     int    `json:"textures"`
	Samplers     int    `json:"samplers"`
	Digest       string `json:"digest"`
}

type MeshInfo struct {
	Index         int      `json:"index"`
	Uploaded      bool     `json:"uploaded"`
	VertexSize    uint32   `json:"vertex_size,omitempty"`
	IndexSize     uint32   `json:"index_size,omitempty"`
	VertexOffsets []uint32 `json:"vertex_offsets,omitempty"`
}

type PipelineInfo struct {
	Index            int    `json:"index"`
	VertexShader     string `json:"vertex_shader,omitempty"`
	FragmentShader   string `json:"fragment_shader,omitempty"`
	VertexBuffers    int    `json:"vertex_buffers"`
	VertexAttributes int    `json:"vertex_attributes"`
	ColorTargets     int    `json:"color_targets"`
	SamplerBindings  int    `json:"sampler_bindings"`
}

type AssetDetail struct {
	AssetSummary
	Chain        []string       `json:"chain"`
	MeshList     []MeshInfo     `json:"mesh_list"`
	PipelineList []PipelineInfo `json:"pipeline_list"`
	SkippedTags  []string       `json:"skipped_sections,omitempty"`
}

type AssetList struct {
	Object string         `json:"object"`
	Data   []AssetSummary `json:"data"`
}

type ShaderList struct {
	Object string   `json:"object"`
	Data   []string `json:"data"`
}

type DeleteResp struct {
	Name    string `json:"name,omitempty"`
	Deleted bool   `json:"deleted"`
	Count   int    `json:"count,omitempty"`
}

type ErrorBody struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func summarize(a *loader.Asset) AssetSummary {
	return AssetSummary{
		ID:           a.ID.String(),
		Name:         a.Name,
		Requires:     a.Requires,
		Dependency:   a.Dependency,
		IsDependency: a.IsDependency,
		Meshes:       len(a.Meshes),
		Uploaded:     a.Uploaded(),
		Pipelines:    len(a.Pipelines),
		Textures:     len(a.Textures),
		Samplers:     len(a.Samplers),
		Digest:       a.DigestHex(),
	}
}

func detail(l *loader.Loader, a *loader.Asset) AssetDetail {
	out := AssetDetail{
		AssetSummary: summarize(a),
		Chain:        []string{a.Name},
		MeshList:     make([]MeshInfo, len(a.Meshes)),
		PipelineList: make([]PipelineInfo, len(a.Pipelines)),
	}
	seen := map[string]bool{a.Name: true}
	for dep, ok := l.Dependency(a); ok && !seen[dep.Name]; dep, ok = l.Dependency(dep) {
		seen[dep.Name] = true
		out.Chain = append(out.Chain, dep.Name)
	}
	for i, m := range a.Meshes {
		out.MeshList[i] = MeshInfo{Index: i, Uploaded: m != nil}
		if m != nil {
			out.MeshList[i].VertexSize = m.VertexSize
			out.MeshList[i].IndexSize = m.IndexSize
			out.MeshList[i].VertexOffsets = m.VertexOffsets
		}
	}
	for i, p := range a.Pipelines {
		out.PipelineList[i] = PipelineInfo{
			Index:            i,
			VertexShader:     p.VertexShader,
			FragmentShader:   p.FragmentShader,
			VertexBuffers:    len(p.VertexBuffers),
			VertexAttributes: len(p.VertexAttributes),
			ColorTargets:     len(p.ColorTargets),
			SamplerBindings:  len(p.SamplerBindings),
		}
	}
	for _, s := range a.Skipped {
		out.SkippedTags = append(out.SkippedTags, s.Tag)
	}
	return out
}
