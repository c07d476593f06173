package caaf

import (
	"fmt"
)

// Document is the structured form of one container. Decode produces it and
// Encode consumes it. Byte slices returned by Decode alias the input buffer.
type Document struct {
	Name         string
	Dependency   string
	IsDependency bool

	// Meshes and Pipelines are paired by index when both are present.
	Meshes    []Mesh
	Pipelines []Pipeline
	Textures  []Texture
	Samplers  []Sampler

	// Skipped lists sections of unknown type. Encode ignores it.
	Skipped []SkippedSection
}

// SkippedSection records a section Decode could not identify.
type SkippedSection struct {
	Index  int
	Offset int
	Tag    string
}

// Decode validates data as a container and decodes every known section in
// directory order. Section 0 must be the string table and no other section may
// be one. When both mesh and pipeline sections are present their entry counts
// must match. Unknown sections are recorded in Document.Skipped.
func Decode(data []byte) (*Document, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}

	strSec, err := SectionStart(data, 0)
	if err != nil {
		return nil, err
	}
	if IdentifySection(data, strSec) != SectionStrings {
		return nil, ErrMissingStringTable
	}
	strCount, err := EntryCount(data, strSec)
	if err != nil {
		return nil, err
	}
	limit := strCount - 1
	str := func(idx uint16) string {
		return ReadString(data, strSec, int(idx), limit)
	}

	doc := &Document{
		Name:         str(h.NameIndex),
		Dependency:   str(h.DependencyIndex),
		IsDependency: h.IsDependency != 0,
	}

	meshCount, pipelineCount := -1, -1
	for i := 1; i < int(h.SectionCount); i++ {
		start, err := SectionStart(data, i)
		if err != nil {
			return nil, err
		}
		kind := IdentifySection(data, start)

		switch kind {
		case SectionUnknown:
			tag, _ := span(data, start, 4)
			doc.Skipped = append(doc.Skipped, SkippedSection{Index: i, Offset: start, Tag: string(tag)})
			continue
		case SectionStrings:
			return nil, fmt.Errorf("%w: section %d", ErrDuplicateStringTable, i)
		}

		n, err := EntryCount(data, start)
		if err != nil {
			return nil, err
		}

		switch kind {
		case SectionMesh:
			if pipelineCount >= 0 && pipelineCount != n {
				return nil, fmt.Errorf("%w: %d meshes, %d pipelines", ErrCountMismatch, n, pipelineCount)
			}
			if meshCount < 0 {
				meshCount = n
			}
		case SectionPipeline:
			if meshCount >= 0 && meshCount != n {
				return nil, fmt.Errorf("%w: %d meshes, %d pipelines", ErrCountMismatch, meshCount, n)
			}
			if pipelineCount < 0 {
				pipelineCount = n
			}
		}

		for j := 0; j < n; j++ {
			entry, err := EntryPointer(data, start, j)
			if err != nil {
				return nil, err
			}
			if err := doc.decodeEntry(data, kind, entry, str); err != nil {
				return nil, fmt.Errorf("section %d (%s) entry %d: %w", i, kind, j, err)
			}
		}
	}

	if meshCount >= 0 && pipelineCount >= 0 && len(doc.Meshes) != len(doc.Pipelines) {
		return nil, fmt.Errorf("%w: %d meshes, %d pipelines", ErrCountMismatch, len(doc.Meshes), len(doc.Pipelines))
	}

	return doc, nil
}

func (doc *Document) decodeEntry(data []byte, kind SectionKind, entry int, str func(uint16) string) error {
	switch kind {
	case SectionMesh:
		m, err := decodeMesh(data, entry)
		if err != nil {
			return err
		}
		doc.Meshes = append(doc.Meshes, m)
	case SectionPipeline:
		p, err := decodePipeline(data, entry, str)
		if err != nil {
			return err
		}
		doc.Pipelines = append(doc.Pipelines, p)
	case SectionTexture:
		t, err := decodeTexture(data, entry)
		if err != nil {
			return err
		}
		doc.Textures = append(doc.Textures, t)
	case SectionSampler:
		s, err := decodeSampler(data, entry)
		if err != nil {
			return err
		}
		doc.Samplers = append(doc.Samplers, s)
	}
	return nil
}
