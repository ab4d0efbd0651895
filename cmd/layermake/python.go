// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/runtimes"

	"github.com/spf13/cobra"
)

// newPythonCommand creates `layermake python`.
func newPythonCommand(app *App) *cobra.Command {
	var (
		lf       layerFlags
		runtime  string
		manifest string
		image    string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "python [packages...]",
		Short: "Bundle a Python layer",
		Long: `Bundle a Python layer.

Packages, a requirements manifest and a local source directory are installed
into python/ inside a SAM build image matching the runtime. When no runtime is
given you are asked to pick one; when nothing to install is given you are
asked for a package list.`,
		Example: `  layermake python -r 3.9 -n deps requests boto3
  layermake python -r 3.8 -m requirements.txt --no-publish
  layermake python -r 3.9 --dir ./mylib -n mylib`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runLayer(cmd, &lf, func(s *session) (*layerJob, error) {
				rt, err := app.selectRuntime(runtime, "Python runtime", runtimes.Python)
				if err != nil {
					return nil, err
				}

				packages := args
				if len(packages) == 0 && manifest == "" && dir == "" {
					if packages, err = app.askPackages("Python packages (space separated)"); err != nil {
						return nil, err
					}
				}

				name := runtimes.PythonName(rt)
				return &layerJob{
					bundle: bundler.Config{
						Kind:       bundler.KindPython,
						WorkDir:    s.cfg.WorkDir,
						StagingDir: s.cfg.StagingDir,
						Image:      image,
						Artifact:   manifest,
					},
					variant: &bundler.Python{
						Runtime:       rt,
						ImageTemplate: s.cfg.Images.Python,
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
	f.StringVarP(&runtime, "runtime", "r", "", "python runtime, e.g. 3.9 (prompted when omitted)")
	f.StringVarP(&manifest, "manifest", "m", "", "requirements file to install")
	f.StringVar(&image, "container", "", "build image (default from images.python)")
	f.StringVar(&dir, "dir", "", "local package or source directory to include")
	addLayerFlags(cmd, &lf)

	return cmd
}
