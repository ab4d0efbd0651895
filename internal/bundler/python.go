// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"context"

	"github.com/layermake/layermake/internal/runtimes"
	"github.com/layermake/layermake/internal/shell"
)

// DefaultPythonImage is the image template for python layers.
const DefaultPythonImage = "public.ecr.aws/sam/build-python{runtime}:latest"

// Python lays out a python/ layer. The manifest, when given, is the Config
// artifact; ArtifactDir is a local package or source tree.
type Python struct {
	Runtime       string
	ImageTemplate string
	ArtifactDir   string
	Packages      []string
}

// Kind returns KindPython.
func (p *Python) Kind() Kind { return KindPython }

// Image renders the build image for the runtime.
func (p *Python) Image() string {
	return renderImage(p.ImageTemplate, DefaultPythonImage, runtimes.NormalizePython(p.Runtime))
}

// Plan stages the artifact directory and composes the pip commands.
func (p *Python) Plan(_ context.Context, st *Stage) (*Plan, error) {
	plan := &Plan{Image: p.Image(), Script: shell.NewScript(shell.Sequence)}

	src := st.Path("src")
	plan.Cleanup = append(plan.Cleanup, src)
	if _, err := st.Mkdir("src"); err != nil {
		return plan, err
	}
	pyDir, err := st.Mkdir("python")
	if err != nil {
		return plan, err
	}

	if p.ArtifactDir != "" {
		name, dir, err := absName(p.ArtifactDir)
		if err != nil {
			return plan, stagingError("stage artifact directory", p.ArtifactDir, err)
		}
		if err := st.Copy(dir, st.Path("src", name)); err != nil {
			return plan, err
		}

		if fileExists(dir, "requirements.txt") || fileExists(dir, "setup.py") {
			target, err := shell.Quote("src/" + name + "/.")
			if err != nil {
				return plan, err
			}
			plan.Script.Add("pip install " + target + " -t python")
		}

		if fileExists(dir, "__init__.py") {
			err = st.Copy(dir, st.Path("python", name))
		} else {
			err = st.CopyContents(dir, pyDir)
		}
		if err != nil {
			return plan, err
		}
	}

	if st.Artifact != nil || len(p.Packages) > 0 {
		words := []string{"pip", "install", "-t", "python"}
		if st.Artifact != nil {
			words = append(words, "-r", st.Artifact.Name)
		}
		cmd, err := shell.Command(append(words, p.Packages...)...)
		if err != nil {
			return plan, err
		}
		plan.Script.Add(cmd)
	}

	return plan, nil
}
