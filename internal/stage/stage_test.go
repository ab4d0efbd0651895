// SPDX-License-Identifier: MPL-2.0

package stage

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/layermake/layermake/internal/logging"
	"github.com/layermake/layermake/internal/testutil"
)

func newStager() *Stager { return New(logging.NewNop()) }

func TestEnsureDir_Idempotent(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "a", "b", "layer")
	s := newStager()
	for range 2 {
		if err := s.EnsureDir(dir); err != nil {
			t.Fatalf("EnsureDir() error = %v", err)
		}
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s", dir)
	}
}

func TestEnsureDir_FileInTheWay(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blocker := filepath.Join(root, "layer")
	testutil.MustWriteFile(t, blocker, "x")

	err := newStager().EnsureDir(filepath.Join(blocker, "python"))
	var pe *PathError
	if !errors.As(err, &pe) || pe.Op != OpMkdir {
		t.Fatalf("expected mkdir PathError, got %v", err)
	}
}

func TestCopy_File(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "build.sh")
	testutil.MustWriteFile(t, src, "#!/bin/sh\necho hi\n")
	if err := os.Chmod(src, 0o755); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(root, "layer", "build.sh")
	if err := newStager().Copy(src, dst); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	data, err := os.ReadFile(dst)
	if err != nil || string(data) != "#!/bin/sh\necho hi\n" {
		t.Fatalf("copied content = %q, %v", data, err)
	}
	if runtime.GOOS != "windows" {
		info, _ := os.Stat(dst)
		if info.Mode().Perm()&0o100 == 0 {
			t.Errorf("mode %v lost the executable bit", info.Mode())
		}
	}
}

func TestCopy_DirectoryTree(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "mylib")
	testutil.MustWriteFile(t, filepath.Join(src, "__init__.py"), "")
	testutil.MustWriteFile(t, filepath.Join(src, "sub", "mod.py"), "x = 1\n")
	if runtime.GOOS != "windows" {
		if err := os.Symlink("mod.py", filepath.Join(src, "sub", "alias.py")); err != nil {
			t.Fatal(err)
		}
	}

	dst := filepath.Join(root, "layer", "python", "mylib")
	if err := newStager().Copy(src, dst); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}

	for _, rel := range []string{"__init__.py", "sub/mod.py"} {
		if !testutil.Exists(filepath.Join(dst, rel)) {
			t.Errorf("missing %s", rel)
		}
	}
	if runtime.GOOS != "windows" {
		target, err := os.Readlink(filepath.Join(dst, "sub", "alias.py"))
		if err != nil || target != "mod.py" {
			t.Errorf("symlink not preserved: %q, %v", target, err)
		}
	}
}

func TestCopy_MissingSource(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	err := newStager().Copy(filepath.Join(root, "nope"), filepath.Join(root, "dst"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected ErrNotExist, got %v", err)
	}
	var pe *PathError
	if !errors.As(err, &pe) || pe.Op != OpCopy || pe.Src == "" || pe.Dst == "" {
		t.Errorf("expected a copy PathError naming both paths, got %#v", err)
	}
}

func TestCopyContents(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "tool")
	testutil.MustWriteFile(t, filepath.Join(src, "Makefile"), "all:\n")
	testutil.MustWriteFile(t, filepath.Join(src, "src", "main.c"), "int main(){}\n")

	dst := filepath.Join(root, "layer")
	if err := newStager().CopyContents(src, dst); err != nil {
		t.Fatalf("CopyContents() error = %v", err)
	}
	if !testutil.Exists(filepath.Join(dst, "Makefile")) || !testutil.Exists(filepath.Join(dst, "src", "main.c")) {
		t.Error("contents were not copied flat into dst")
	}
	if testutil.Exists(filepath.Join(dst, "tool")) {
		t.Error("CopyContents must not nest the source directory")
	}
}

func TestCopyContents_DestinationInsideSource(t *testing.T) {
	t.Parallel()

	proj := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(proj, "build.sh"), "#!/bin/sh\n")
	testutil.MustWriteFile(t, filepath.Join(proj, "lib", "a.c"), "int a;\n")
	dst := filepath.Join(proj, "layer")
	testutil.MustWriteFile(t, filepath.Join(dst, "stale"), "x")

	if err := newStager().CopyContents(proj, dst); err != nil {
		t.Fatalf("CopyContents() error = %v", err)
	}
	if !testutil.Exists(filepath.Join(dst, "build.sh")) || !testutil.Exists(filepath.Join(dst, "lib", "a.c")) {
		t.Error("contents were not copied")
	}
	if testutil.Exists(filepath.Join(dst, "layer")) {
		t.Error("destination was copied into itself")
	}
}

func TestCopy_DestinationNestedInSource(t *testing.T) {
	t.Parallel()

	proj := t.TempDir()
	testutil.MustWriteFile(t, filepath.Join(proj, "setup.py"), "")
	dst := filepath.Join(proj, "layer", "src", "proj")

	if err := newStager().Copy(proj, dst); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if !testutil.Exists(filepath.Join(dst, "setup.py")) {
		t.Error("setup.py was not copied")
	}
	if testutil.Exists(filepath.Join(dst, "layer")) {
		t.Error("the directory holding the destination was copied")
	}
}

func TestMove(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	src := filepath.Join(root, "layer", "package.json")
	testutil.MustWriteFile(t, src, "{}")
	dst := filepath.Join(root, "layer", "nodejs", "package.json")

	if err := newStager().Move(src, dst); err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if testutil.Exists(src) || !testutil.Exists(dst) {
		t.Error("file was not moved")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	s := newStager()

	if err := s.Remove(filepath.Join(root, "missing")); err != nil {
		t.Errorf("removing a missing path should succeed, got %v", err)
	}

	dir := filepath.Join(root, "src")
	testutil.MustWriteFile(t, filepath.Join(dir, "lib", "a.py"), "")
	if err := s.Remove(dir); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if testutil.Exists(dir) {
		t.Error("directory still exists")
	}
}

func TestRemove_ReadOnlyTree(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}
	t.Parallel()

	root := t.TempDir()
	dir := filepath.Join(root, "python")
	locked := filepath.Join(dir, "locked")
	testutil.MustWriteFile(t, filepath.Join(locked, "mod.so"), "bin")
	if err := os.Chmod(locked, 0o500); err != nil {
		t.Fatal(err)
	}

	if err := newStager().Remove(dir); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if testutil.Exists(dir) {
		t.Error("read-only tree should be removed after the chmod retry")
	}
}

func TestClean_CountsExistingPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	a := filepath.Join(root, "src")
	b := filepath.Join(root, "Dockerfile")
	testutil.MustMkdirAll(t, a)
	testutil.MustWriteFile(t, b, "FROM x")

	n, err := newStager().Clean([]string{a, b, filepath.Join(root, "gone")})
	if err != nil {
		t.Fatalf("Clean() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Clean() removed %d, want 2", n)
	}
}

func TestPathError_Message(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  *PathError
		want string
	}{
		{&PathError{Op: OpCopy, Src: "a", Dst: "b", Err: fs.ErrNotExist}, "copy a -> b: file does not exist"},
		{&PathError{Op: OpRemove, Dst: "layer/src", Err: fs.ErrPermission}, "remove layer/src: permission denied"},
		{&PathError{Op: OpCopy, Src: "a", Err: fs.ErrNotExist}, "copy a: file does not exist"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
