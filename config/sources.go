package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// SourceFiles returns the list of files that contributed configuration entries.
func SourceFiles(cfg *Config) []string {
	if cfg == nil {
		return nil
	}
	files := make(map[string]struct{})
	add := func(path string) {
		path = strings.TrimSpace(path)
		if path == "" {
			return
		}
		if info, err := os.Stat(path); err == nil && info.IsDir() {
			return
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		files[abs] = struct{}{}
	}
	add(cfg.Source)
	for _, catalogue := range cfg.Chargers.Catalogues {
		add(catalogue)
	}
	paths := make([]string, 0, len(files))
	for path := range files {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}
