// SPDX-License-Identifier: EPL-2.0

package dockerfile

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/renameio/v2"
	"github.com/google/uuid"
)

const (
	// DefaultBaseImage is the image binary layers build on.
	DefaultBaseImage = "amazonlinux:latest"
	// DefaultWorkDir is the container workdir created by the Dockerfile.
	DefaultWorkDir = "/opt"

	// FileName is the name of the written Dockerfile.
	FileName = "Dockerfile"

	dirPrefix = "layermake-"
)

// DefaultPackages are installed in every compiled image.
var DefaultPackages = []string{"gzip"}

type (
	// Spec describes the image to compile.
	Spec struct {
		BaseImage string
		WorkDir   string
		// Packages are extra yum packages. DefaultPackages are always added.
		Packages []string
	}

	// File is a written Dockerfile. Dir is also the build context.
	File struct {
		Dir  string
		Path string
	}
)

// PackageSet returns DefaultPackages plus s.Packages, sorted and without
// duplicates or blanks.
func (s Spec) PackageSet() []string {
	pkgs := make([]string, 0, len(s.Packages)+len(DefaultPackages))
	for _, p := range slices.Concat(s.Packages, DefaultPackages) {
		if p = strings.TrimSpace(p); p != "" {
			pkgs = append(pkgs, p)
		}
	}
	slices.Sort(pkgs)
	return slices.Compact(pkgs)
}

// Compile renders the Dockerfile. The output depends only on s.
func Compile(s Spec) string {
	base := s.BaseImage
	if base == "" {
		base = DefaultBaseImage
	}
	workdir := s.WorkDir
	if workdir == "" {
		workdir = DefaultWorkDir
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", base)
	b.WriteString("ENV OUTPUT_BIN=/opt/bin\n")
	b.WriteString("ENV OUTPUT_LIB=/opt/lib\n")
	b.WriteString("RUN yum -y groupinstall 'Development Tools'\n")
	if pkgs := s.PackageSet(); len(pkgs) > 0 {
		fmt.Fprintf(&b, "RUN yum -y install %s\n", strings.Join(pkgs, " "))
	}
	fmt.Fprintf(&b, "RUN mkdir -p %s\n", workdir)
	b.WriteString("ENTRYPOINT [\"\"]\n")
	return b.String()
}

// Write stores content as Dockerfile inside a new layermake-<uuid> directory
// under parent (os.TempDir() when empty). The caller owns the directory.
func Write(parent, content string) (*File, error) {
	if parent == "" {
		parent = os.TempDir()
	}

	dir := filepath.Join(parent, dirPrefix+uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dockerfile dir: %w", err)
	}

	path := filepath.Join(dir, FileName)
	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		_ = os.RemoveAll(dir)
		return nil, fmt.Errorf("write dockerfile %s: %w", path, err)
	}
	return &File{Dir: dir, Path: path}, nil
}
