package fshelper

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Root is one input location resolved by ParsePath: a directory, a zip
// archive or a single file.
type Root struct {
	fs.FS
	name string
	// file is the only entry to read when the input was a single file
	file   string
	closer io.Closer
}

// NewRoot wraps fsys under name. Used for in-memory trees.
func NewRoot(name string, fsys fs.FS) *Root {
	return &Root{FS: fsys, name: name}
}

// Name returns the name of the filesystem
func (r *Root) Name() string {
	return r.name
}

// Single returns the file name when the root stands for one file
func (r *Root) Single() (string, bool) {
	return r.file, r.file != ""
}

// Close releases the archive behind a zip root
func (r *Root) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

// CloseAll closes every root and joins the errors
func CloseAll(roots []*Root) error {
	var errs []error
	for _, r := range roots {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ParsePath resolves paths, which may be globs, into roots. Directories and
// zip archives become walkable roots; any other file becomes a single-file
// root.
func ParsePath(paths []string) ([]*Root, error) {
	var roots []*Root

	for _, path := range paths {
		matches, err := filepath.Glob(path)
		if err != nil {
			CloseAll(roots)
			return nil, fmt.Errorf("invalid glob pattern %s: %w", path, err)
		}

		if len(matches) == 0 {
			if _, err := os.Stat(path); err != nil {
				CloseAll(roots)
				if os.IsNotExist(err) {
					return nil, fmt.Errorf("path does not exist: %s", path)
				}
				return nil, fmt.Errorf("error accessing path %s: %w", path, err)
			}
			matches = []string{path}
		}

		for _, match := range matches {
			root, err := open(match)
			if err != nil {
				CloseAll(roots)
				return nil, err
			}
			roots = append(roots, root)
		}
	}

	return roots, nil
}

func open(path string) (*Root, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("error accessing path %s: %w", path, err)
	}

	switch {
	case info.IsDir():
		return &Root{FS: os.DirFS(path), name: filepath.Base(filepath.Clean(path))}, nil
	case strings.HasSuffix(strings.ToLower(path), ".zip"):
		return OpenZip(path)
	default:
		dir, file := filepath.Split(path)
		if dir == "" {
			dir = "."
		}
		return &Root{FS: os.DirFS(dir), name: filepath.Base(filepath.Clean(dir)), file: file}, nil
	}
}

// OpenZip opens a zip archive as a root
func OpenZip(path string) (*Root, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("error opening zip file %s: %w", path, err)
	}

	return &Root{
		FS:     rc,
		name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		closer: rc,
	}, nil
}
