package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/caaf/internal/loader"
	"github.com/samcharles93/caaf/internal/logger"
	"github.com/samcharles93/caaf/pkg/caaf"
)

// discoverContainers lists the enveloped model containers directly under dir.
func discoverContainers(dir string) ([]string, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("models directory is empty")
	}
	st, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("models path is not a directory: %s", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), caaf.ExtModel) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

func listCmd() *cli.Command {
	var lf loaderFlags

	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List the model containers in storage",
		Flags:   lf.flags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logger.FromContext(ctx)
			applyLoaderConfig(cmd, configFrom(ctx), &lf)

			root := lf.storage()
			if root == "" {
				return cli.Exit("error: --storage-dir is required unless "+envStorageDir+" is set", 1)
			}
			dir := filepath.Join(root, lf.modelsRoot)
			paths, err := discoverContainers(dir)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			if len(paths) == 0 {
				log.Info("no containers found", "path", dir)
				return nil
			}

			limit := lf.memoryLimit
			if limit == 0 {
				limit = caaf.DecompressMemoryMax
			}
			fmt.Printf("Containers in %s:\n\n", dir)
			for _, p := range paths {
				name := loader.AssetName(p)
				size := "?"
				if info, err := os.Stat(p); err == nil {
					size = formatSize(info.Size())
				}
				doc, err := readDocument(p, limit)
				if err != nil {
					fmt.Printf("  %-32s %9s  (unreadable: %v)\n", name, size, err)
					continue
				}
				note := ""
				if doc.IsDependency {
					note = "  [dependency]"
				}
				if doc.Dependency != "" {
					note += "  requires " + doc.Dependency
				}
				fmt.Printf("  %-32s %9s  meshes=%d%s\n", name, size, len(doc.Meshes), note)
			}
			fmt.Printf("\n%d container(s) found\n", len(paths))
			return nil
		},
	}
}

func readDocument(path string, limit uint64) (*caaf.Document, error) {
	data, err := caaf.ReadFile(path, limit)
	if err != nil {
		return nil, err
	}
	return caaf.Decode(data)
}

func formatSize(bytes int64) string {
	const (
		kb = 1024
		mb = 1024 * kb
		gb = 1024 * mb
	)
	switch {
	case bytes >= gb:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(gb))
	case bytes >= mb:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(mb))
	case bytes >= kb:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(kb))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
