// Package assets resolves attachment bindings to files under the data
// directory and turns parsed models into attachment payloads.
package assets

import (
	"os"
	"path/filepath"
	"strings"
)

// ModelExt is the only payload format the index picks up.
const ModelExt = ".bmd"

// Index maps lowercase slash-separated paths relative to the data directory
// to filesystem paths. Bare file stems are indexed too; the first file found
// for a stem wins.
type Index struct {
	entries map[string]string // rel path → full path
	stems   map[string]string // stem → full path
}

// BuildIndex scans dataDir recursively.
func BuildIndex(dataDir string) *Index {
	idx := &Index{entries: make(map[string]string), stems: make(map[string]string)}
	filepath.WalkDir(dataDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if !strings.EqualFold(filepath.Ext(path), ModelExt) {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return nil
		}
		idx.entries[unify(rel)] = path
		stem := stemOf(rel)
		if _, exists := idx.stems[stem]; !exists {
			idx.stems[stem] = path
		}
		return nil
	})
	return idx
}

// ResolvePath returns the model file for a binding, or ("", false). The
// binding's own extension is ignored, so "objects/gun.cgf" finds
// "Objects/Gun.bmd". Relative paths win over bare stems.
func (idx *Index) ResolvePath(binding string) (string, bool) {
	key := unify(binding)
	if p, ok := idx.entries[key]; ok {
		return p, true
	}
	if p, ok := idx.entries[strings.TrimSuffix(key, filepath.Ext(key))+ModelExt]; ok {
		return p, true
	}
	p, ok := idx.stems[stemOf(key)]
	return p, ok
}

// Len returns the number of indexed files.
func (idx *Index) Len() int {
	return len(idx.entries)
}

func unify(p string) string {
	return strings.ToLower(strings.ReplaceAll(filepath.ToSlash(p), "\\", "/"))
}

func stemOf(p string) string {
	base := filepath.Base(unify(p))
	return strings.TrimSuffix(base, filepath.Ext(base))
}
