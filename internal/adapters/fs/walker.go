// Package fs provides file system adapters for walking and hashing module trees.
package fs

import (
	"io/fs"
	"iter"
	"path/filepath"
)

// vcsDirs are the metadata directories never considered module content.
var vcsDirs = map[string]struct{}{
	".git": {},
	".svn": {},
}

// Walker provides file walking functionality.
type Walker struct{}

// NewWalker creates a new Walker.
func NewWalker() *Walker {
	return &Walker{}
}

// WalkFiles yields every non-directory entry under root in lexical order,
// skipping VCS metadata directories. Symlinks are yielded, not followed.
// The walk stops at the first error, which is yielded with an empty path.
func (w *Walker) WalkFiles(root string) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if d.IsDir() {
				if _, skip := vcsDirs[d.Name()]; skip && path != root {
					return filepath.SkipDir
				}
				return nil
			}

			if !yield(path, nil) {
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil {
			yield("", err)
		}
	}
}
