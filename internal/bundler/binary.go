// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/layermake/layermake/internal/container"
	"github.com/layermake/layermake/internal/dockerfile"
	"github.com/layermake/layermake/internal/shell"
)

const makeEntryPoint = "make"

// entryPointNames are the conventional build scripts, in priority order.
var entryPointNames = []string{
	"build", "install", "layer", "build-layer",
	"build.sh", "install.sh", "layer.sh", "build-layer.sh",
}

// Binary builds a layer with an arbitrary build script in an image compiled
// from a Dockerfile.
type Binary struct {
	// Dockerfile is a caller-supplied Dockerfile. When empty one is compiled
	// from BaseImage and Packages.
	Dockerfile string
	BaseImage  string
	Packages   []string
	WorkDir    string
	// TempDir is the parent of the compiled Dockerfile's directory.
	// Empty means os.TempDir().
	TempDir string
	// RemoveImage deletes the built image after the bundle.
	RemoveImage bool
}

// Kind returns KindBinary.
func (b *Binary) Kind() Kind { return KindBinary }

// ResolveCommand picks the build command from the artifact: "make install"
// when the directory has a make file, otherwise the first conventional build
// script, or the artifact itself when it is a file.
func (b *Binary) ResolveCommand(st *Stage) (string, error) {
	if st.Artifact == nil {
		return "", noArtifactError(KindBinary)
	}
	if st.Artifact.Kind == ArtifactFile {
		st.log.Debug("container command will run the artifact", "artifact", st.Artifact.Name)
		return runScript(st.Artifact.Name)
	}

	entries, err := os.ReadDir(st.Source)
	if err != nil {
		return "", stagingError("scan build artifact", st.Source, err)
	}
	present := make(map[string]bool, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			present[e.Name()] = true
		}
	}

	if present[makeEntryPoint] {
		st.log.Info("found make file: " + filepath.Join(st.Source, makeEntryPoint))
		return "make install", nil
	}
	for _, name := range entryPointNames {
		if present[name] {
			st.log.Info("found build script: " + filepath.Join(st.Source, name))
			return runScript(name)
		}
	}
	return "", noEntryPointError(st.Source)
}

func runScript(name string) (string, error) {
	script, err := shell.Quote("./" + name)
	if err != nil {
		return "", err
	}
	return "chmod +x " + script + " && " + script, nil
}

// Plan compiles the Dockerfile, or uses the given one, for the pipeline to build.
func (b *Binary) Plan(_ context.Context, st *Stage) (*Plan, error) {
	plan := &Plan{RemoveImage: b.RemoveImage}

	if b.Dockerfile != "" {
		path, err := filepath.Abs(b.Dockerfile)
		if err != nil {
			return plan, stagingError("resolve Dockerfile", b.Dockerfile, err)
		}
		plan.Dockerfile = path
		plan.ContextDir = filepath.Dir(path)
		return plan, nil
	}

	status := st.log.Status("compiling docker file...")
	defer status.Done()

	content := dockerfile.Compile(dockerfile.Spec{
		BaseImage: b.BaseImage,
		WorkDir:   b.WorkDir,
		Packages:  b.Packages,
	})
	st.log.Debug("compiled dockerfile contents:\n" + content)

	f, err := dockerfile.Write(b.TempDir, content)
	if err != nil {
		return plan, stagingError("compile Dockerfile", b.TempDir, err)
	}
	plan.Cleanup = append(plan.Cleanup, f.Dir)
	plan.Dockerfile = f.Path
	plan.ContextDir = f.Dir
	st.log.Success("compiled dockerfile saved to " + f.Path)
	return plan, nil
}

// Finish removes the built image when RemoveImage is set.
func (b *Binary) Finish(ctx context.Context, engine container.Engine, plan *Plan) error {
	if !plan.RemoveImage || plan.Image == "" {
		return nil
	}
	if err := engine.RemoveImage(ctx, container.ImageRef(plan.Image), false); err != nil {
		return err
	}
	return nil
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
