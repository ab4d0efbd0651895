// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/runtimes"

	"github.com/spf13/cobra"
)

// newNodeCommand creates `layermake nodejs`.
func newNodeCommand(app *App) *cobra.Command {
	var (
		lf       layerFlags
		runtime  string
		manifest string
		image    string
		dir      string
	)

	cmd := &cobra.Command{
		Use:     "nodejs [packages...]",
		Aliases: []string{"node"},
		Short:   "Bundle a Node.js layer",
		Long: `Bundle a Node.js layer.

Packages, a package.json manifest and a local module directory are installed
into nodejs/node_modules inside a SAM build image matching the runtime.`,
		Example: `  layermake nodejs -r 16 -n deps lodash axios
  layermake nodejs -r 18.x -m package.json -n deps
  layermake nodejs -r 16 --dir ./my-module --no-publish`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runLayer(cmd, &lf, func(s *session) (*layerJob, error) {
				rt, err := app.selectRuntime(runtime, "Node.js runtime", runtimes.Node)
				if err != nil {
					return nil, err
				}

				packages := args
				if len(packages) == 0 && manifest == "" && dir == "" {
					if packages, err = app.askPackages("npm packages (space separated)"); err != nil {
						return nil, err
					}
				}

				name := runtimes.NodeName(rt)
				return &layerJob{
					bundle: bundler.Config{
						Kind:       bundler.KindNode,
						WorkDir:    s.cfg.WorkDir,
						StagingDir: s.cfg.StagingDir,
						Image:      image,
						Artifact:   manifest,
					},
					variant: &bundler.Node{
						Runtime:       rt,
						ImageTemplate: s.cfg.Images.Nodejs,
						ArtifactDir:   dir,
						Packages:      packages,
					},
					layerType: name,
					runtimes:  []string{name},
				}, nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&runtime, "runtime", "r", "", "node runtime, e.g. 16 or 18.x (prompted when omitted)")
	f.StringVarP(&manifest, "manifest", "m", "", "package.json to install")
	f.StringVar(&image, "container", "", "build image (default from images.nodejs)")
	f.StringVar(&dir, "dir", "", "local module directory to include")
	addLayerFlags(cmd, &lf)

	return cmd
}
