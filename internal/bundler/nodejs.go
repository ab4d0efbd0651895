// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/layermake/layermake/internal/runtimes"
	"github.com/layermake/layermake/internal/shell"
)

const (
	// DefaultNodeImage is the image template for nodejs layers.
	DefaultNodeImage = "public.ecr.aws/sam/build-nodejs{runtime}:latest"

	// NodeManifest is the name npm reads the manifest from.
	NodeManifest = "package.json"
)

// Node lays out a nodejs/ layer. The manifest, when given, is the Config
// artifact.
type Node struct {
	Runtime       string
	ImageTemplate string
	ArtifactDir   string
	Packages      []string
}

// Kind returns KindNode.
func (n *Node) Kind() Kind { return KindNode }

// Image renders the build image for the runtime.
func (n *Node) Image() string {
	return renderImage(n.ImageTemplate, DefaultNodeImage, runtimes.NormalizeNode(n.Runtime))
}

// Plan stages the artifact directory and composes the npm commands.
func (n *Node) Plan(_ context.Context, st *Stage) (*Plan, error) {
	plan := &Plan{Image: n.Image(), Script: shell.NewScript(shell.Sequence)}

	nodeDir, err := st.Mkdir("nodejs")
	if err != nil {
		return plan, err
	}

	if n.ArtifactDir != "" {
		name, dir, err := absName(n.ArtifactDir)
		if err != nil {
			return plan, stagingError("stage artifact directory", n.ArtifactDir, err)
		}
		if err := st.Copy(dir, st.Path("nodejs", name)); err != nil {
			return plan, err
		}

		if fileExists(dir, NodeManifest) {
			if err := st.Copy(dir, st.Path("nodejs", "node_modules", name)); err != nil {
				return plan, err
			}
			module, err := shell.Quote("nodejs/node_modules/" + name)
			if err != nil {
				return plan, err
			}
			plan.Script.Add("pushd " + module + "; npm install --prefix ../../; popd")
		} else {
			src := st.Path("src")
			plan.Cleanup = append(plan.Cleanup, src)
			if err := st.CopyContents(dir, src); err != nil {
				return plan, err
			}
		}
	}

	if st.Artifact != nil {
		if err := st.Move(st.Artifact.Path, filepath.Join(nodeDir, NodeManifest)); err != nil {
			return plan, err
		}
	}

	if st.Artifact != nil || len(n.Packages) > 0 {
		var b strings.Builder
		b.WriteString("pushd nodejs; ")
		if st.Artifact != nil {
			b.WriteString("npm install; ")
		}
		if len(n.Packages) > 0 {
			cmd, err := shell.Command(append([]string{"npm", "install", "--save"}, n.Packages...)...)
			if err != nil {
				return plan, err
			}
			b.WriteString(cmd + "; ")
		}
		b.WriteString("popd")
		plan.Script.Add(b.String())
	}

	return plan, nil
}
