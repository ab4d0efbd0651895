// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/layermake/layermake/internal/logging"
)

const (
	// OpMkdir is the PathError operation for directory creation.
	OpMkdir = "create directory"
	// OpCopy is the PathError operation for copies.
	OpCopy = "copy"
	// OpMove is the PathError operation for moves.
	OpMove = "move"
	// OpRemove is the PathError operation for removals.
	OpRemove = "remove"
)

type (
	// PathError reports a failed staging operation with its source and target.
	PathError struct {
		Op  string
		Src string
		Dst string
		Err error
	}

	// Stager performs the local filesystem work of a bundle: creating the
	// staging tree, copying sources into it and removing scaffolding.
	Stager struct {
		log logging.Logger
	}
)

// Error implements the error interface.
func (e *PathError) Error() string {
	switch {
	case e.Src != "" && e.Dst != "":
		return fmt.Sprintf("%s %s -> %s: %v", e.Op, e.Src, e.Dst, e.Err)
	case e.Src != "":
		return fmt.Sprintf("%s %s: %v", e.Op, e.Src, e.Err)
	default:
		return fmt.Sprintf("%s %s: %v", e.Op, e.Dst, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *PathError) Unwrap() error { return e.Err }

// New creates a Stager.
func New(log logging.Logger) *Stager {
	return &Stager{log: log}
}

// EnsureDir creates path and its parents. An existing directory is not an error.
func (s *Stager) EnsureDir(path string) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return &PathError{Op: OpMkdir, Dst: path, Err: err}
	}
	return nil
}

// Copy copies a file to the file path dst, or a directory tree to the
// directory dst (merging into it if it exists). Parents of dst are created.
// When dst lies inside src, the entry of src holding dst is not copied.
func (s *Stager) Copy(src, dst string) error {
	info, err := os.Lstat(src)
	if err != nil {
		return &PathError{Op: OpCopy, Src: src, Dst: dst, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &PathError{Op: OpCopy, Src: src, Dst: dst, Err: err}
	}

	if info.IsDir() {
		var skip func(string) bool
		if skip, err = holding(dst); err == nil {
			err = copyDir(src, dst, skip)
		}
	} else {
		err = copyEntry(src, dst, info)
	}
	if err != nil {
		return &PathError{Op: OpCopy, Src: src, Dst: dst, Err: err}
	}
	s.log.Debug("copied", "from", src, "to", dst)
	return nil
}

// CopyContents copies the children of srcDir into dstDir. A child that is
// dstDir or one of its ancestors is skipped.
func (s *Stager) CopyContents(srcDir, dstDir string) error {
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		return &PathError{Op: OpCopy, Src: srcDir, Dst: dstDir, Err: err}
	}
	skip, err := holding(dstDir)
	if err != nil {
		return &PathError{Op: OpCopy, Src: srcDir, Dst: dstDir, Err: err}
	}
	if err := s.EnsureDir(dstDir); err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(srcDir, e.Name())
		if skip(from) {
			s.log.Debug("skipped copy into itself", "path", from)
			continue
		}
		if err := s.Copy(from, filepath.Join(dstDir, e.Name())); err != nil {
			return err
		}
	}
	return nil
}

// Move renames src to dst, falling back to copy and remove across devices.
func (s *Stager) Move(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return &PathError{Op: OpMove, Src: src, Dst: dst, Err: err}
	}
	err := os.Rename(src, dst)
	if err == nil {
		s.log.Debug("moved", "from", src, "to", dst)
		return nil
	}
	if !errors.Is(err, syscall.EXDEV) {
		return &PathError{Op: OpMove, Src: src, Dst: dst, Err: err}
	}
	if err := s.Copy(src, dst); err != nil {
		return err
	}
	return s.Remove(src)
}

// Remove deletes path. Directories are removed recursively. A missing path
// is not an error. A permission failure is retried once after making the
// path and its parent writable.
func (s *Stager) Remove(path string) error {
	err := os.RemoveAll(path)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrPermission) {
		return &PathError{Op: OpRemove, Dst: path, Err: err}
	}

	s.log.Debug("retrying removal after chmod", "path", path)
	forceWritable(path)
	if err := os.RemoveAll(path); err != nil {
		return &PathError{Op: OpRemove, Dst: path, Err: err}
	}
	return nil
}

// Clean removes every path in order and reports how many existed and were
// removed. It attempts all paths and joins the failures.
func (s *Stager) Clean(paths []string) (int, error) {
	removed := 0
	var errs []error
	for _, p := range paths {
		if _, err := os.Lstat(p); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := s.Remove(p); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func forceWritable(path string) {
	_ = os.Chmod(filepath.Dir(path), 0o755)
	_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.Type()&fs.ModeSymlink != 0 {
			return nil //nolint:nilerr // best effort before the retry
		}
		mode := fs.FileMode(0o644)
		if d.IsDir() {
			mode = 0o755
		}
		_ = os.Chmod(p, mode)
		return nil
	})
}

// holding returns a predicate reporting whether a path is dst or contains it.
func holding(dst string) (func(string) bool, error) {
	target, err := filepath.Abs(dst)
	if err != nil {
		return nil, err
	}
	return func(p string) bool {
		abs, err := filepath.Abs(p)
		if err != nil {
			return false
		}
		rel, err := filepath.Rel(abs, target)
		return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
	}, nil
}

func copyDir(src, dst string, skip func(string) bool) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, info.Mode().Perm()|0o700); err != nil {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return err
	}
	for _, e := range entries {
		from := filepath.Join(src, e.Name())
		to := filepath.Join(dst, e.Name())
		if skip(from) {
			continue
		}
		if e.IsDir() {
			if err := copyDir(from, to, skip); err != nil {
				return err
			}
			continue
		}
		fi, err := e.Info()
		if err != nil {
			return err
		}
		if err := copyEntry(from, to, fi); err != nil {
			return err
		}
	}
	return nil
}

// copyEntry copies a regular file or recreates a symlink.
func copyEntry(src, dst string, info fs.FileInfo) error {
	if info.Mode()&fs.ModeSymlink != 0 {
		target, err := os.Readlink(src)
		if err != nil {
			return err
		}
		_ = os.Remove(dst)
		return os.Symlink(target, dst)
	}
	return copyFile(src, dst, info.Mode().Perm())
}

func copyFile(src, dst string, perm fs.FileMode) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	_, err = io.Copy(out, in)
	return err
}
