// Package photoset turns directories, zip archives and single files into an
// ordered batch of photos for the scanner.
package photoset

import (
	"context"
	"fmt"
	"io/fs"
	"path"

	"github.com/bstardust/trip-backfill/internal/fileinfo"
	"github.com/bstardust/trip-backfill/internal/fshelper"
	"github.com/bstardust/trip-backfill/internal/logger"
)

// Set represents the photos found under a list of roots
type Set struct {
	roots []*fshelper.Root
	files []*PhotoFile
	index map[string]*PhotoFile
}

// PhotoFile represents one photo in the set
type PhotoFile struct {
	// ID is "<root name>/<path inside root>" and unique within the set
	ID   string
	Path string
	Size int64
	root *fshelper.Root
}

// Open resolves paths and indexes every photo below them
func Open(ctx context.Context, paths []string) (*Set, error) {
	roots, err := fshelper.ParsePath(paths)
	if err != nil {
		return nil, err
	}
	s, err := FromRoots(ctx, roots...)
	if err != nil {
		fshelper.CloseAll(roots)
		return nil, err
	}
	return s, nil
}

// FromRoots indexes the photos of already opened roots. Files are ordered
// by root, then lexically within a root. The set takes ownership of roots.
func FromRoots(ctx context.Context, roots ...*fshelper.Root) (*Set, error) {
	s := &Set{
		roots: roots,
		index: make(map[string]*PhotoFile),
	}

	names := make(map[string]int)
	for _, root := range roots {
		prefix := root.Name()
		names[prefix]++
		if n := names[prefix]; n > 1 {
			prefix = fmt.Sprintf("%s~%d", prefix, n)
		}
		if err := s.scanRoot(ctx, root, prefix); err != nil {
			return nil, err
		}
	}

	logger.Debug("Indexed %d photos under %d roots", len(s.files), len(roots))
	return s, nil
}

func (s *Set) scanRoot(ctx context.Context, root *fshelper.Root, prefix string) error {
	if only, ok := root.Single(); ok {
		info, err := fs.Stat(root, only)
		if err != nil {
			return fmt.Errorf("failed to stat %s: %w", only, err)
		}
		s.add(root, prefix, only, info.Size())
		return nil
	}

	return fs.WalkDir(root, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if fileinfo.IsHidden(p) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !fileinfo.IsPhotoFile(p) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			logger.Warn("Failed to get file info for %s: %v", p, err)
			return nil
		}
		s.add(root, prefix, p, info.Size())
		return nil
	})
}

func (s *Set) add(root *fshelper.Root, prefix, p string, size int64) {
	f := &PhotoFile{
		ID:   path.Join(prefix, p),
		Path: p,
		Size: size,
		root: root,
	}
	s.files = append(s.files, f)
	s.index[f.ID] = f
}

// IDs returns every photo ID in batch order
func (s *Set) IDs() []string {
	ids := make([]string, len(s.files))
	for i, f := range s.files {
		ids[i] = f.ID
	}
	return ids
}

// ListFiles returns all photos in batch order
func (s *Set) ListFiles() []*PhotoFile {
	return append([]*PhotoFile(nil), s.files...)
}

// ReadFile reads a photo by ID
func (s *Set) ReadFile(id string) ([]byte, error) {
	f, ok := s.index[id]
	if !ok {
		return nil, fmt.Errorf("unknown photo %s: %w", id, fs.ErrNotExist)
	}
	return fs.ReadFile(f.root, f.Path)
}

// GetSize returns the size of a photo, or 0 if it is unknown
func (s *Set) GetSize(id string) int64 {
	if f, ok := s.index[id]; ok {
		return f.Size
	}
	return 0
}

// TotalSize is the sum of all photo sizes
func (s *Set) TotalSize() int64 {
	var n int64
	for _, f := range s.files {
		n += f.Size
	}
	return n
}

// Close releases the underlying archives
func (s *Set) Close() error {
	return fshelper.CloseAll(s.roots)
}
