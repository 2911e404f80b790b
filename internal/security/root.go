// Package security confines the files the vault reads and writes to one
// directory tree, using os.Root so that symlinks cannot lead outside of it.
package security

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathEscapes  = errors.New("path escapes root")
	ErrAbsolutePath = errors.New("absolute path outside root")
	ErrEmptyPath    = errors.New("empty path not allowed")
)

// Root is a directory that names are resolved against.
// Names are stored slash-separated and relative to the root.
type Root struct {
	root *os.Root
	path string
}

// Open opens dir as a Root.
func Open(dir string) (*Root, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}
	root, err := os.OpenRoot(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to open root: %w", err)
	}
	return &Root{root: root, path: abs}, nil
}

func (r *Root) Close() error {
	return r.root.Close()
}

// Path returns the absolute path of the root directory.
func (r *Root) Path() string {
	return r.path
}

// Normalize turns a user supplied path into a stored name.
// Absolute paths are accepted when they point inside the root.
func (r *Root) Normalize(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}
	if filepath.IsAbs(name) {
		rel, err := filepath.Rel(r.path, name)
		if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return "", fmt.Errorf("%w: %s", ErrAbsolutePath, name)
		}
		name = rel
	}
	clean := filepath.Clean(name)
	if clean == "." {
		return "", ErrEmptyPath
	}
	if !filepath.IsLocal(clean) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	return filepath.ToSlash(clean), nil
}

// Local converts a stored name back to a platform path inside the root,
// rejecting names that could not have come from Normalize.
func (r *Root) Local(name string) (string, error) {
	if name == "" {
		return "", ErrEmptyPath
	}
	p := filepath.FromSlash(name)
	if p == "." || filepath.IsAbs(p) || !filepath.IsLocal(p) || filepath.Clean(p) != p {
		return "", fmt.Errorf("%w: %s", ErrPathEscapes, name)
	}
	return p, nil
}

// Abs returns the absolute platform path of a stored name.
func (r *Root) Abs(name string) (string, error) {
	p, err := r.Local(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(r.path, p), nil
}

// Open opens a stored name for reading.
func (r *Root) Open(name string) (*os.File, error) {
	p, err := r.Local(name)
	if err != nil {
		return nil, err
	}
	return r.root.Open(p)
}

// Stat returns the file info of a stored name.
func (r *Root) Stat(name string) (fs.FileInfo, error) {
	p, err := r.Local(name)
	if err != nil {
		return nil, err
	}
	return r.root.Stat(p)
}

// ReadFile reads the whole content of a stored name.
func (r *Root) ReadFile(name string) ([]byte, error) {
	f, err := r.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Create creates or truncates a stored name for writing, creating missing
// parent directories with dirPerm. Unless overwrite is set an existing file
// makes it fail with fs.ErrExist.
func (r *Root) Create(name string, perm, dirPerm os.FileMode, overwrite bool) (*os.File, error) {
	p, err := r.Local(name)
	if err != nil {
		return nil, err
	}
	if err := r.mkdirAll(filepath.Dir(p), dirPerm); err != nil {
		return nil, err
	}
	flag := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flag |= os.O_EXCL
	}
	return r.root.OpenFile(p, flag, perm)
}

func (r *Root) mkdirAll(dir string, perm os.FileMode) error {
	if dir == "." {
		return nil
	}
	if info, err := r.root.Stat(dir); err == nil {
		if !info.IsDir() {
			return fmt.Errorf("%s: not a directory", dir)
		}
		return nil
	}
	if err := r.mkdirAll(filepath.Dir(dir), perm); err != nil {
		return err
	}
	if err := r.root.Mkdir(dir, perm); err != nil && !errors.Is(err, fs.ErrExist) {
		return err
	}
	return nil
}
