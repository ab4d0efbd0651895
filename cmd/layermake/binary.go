// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/issue"
	"github.com/layermake/layermake/internal/runtimes"

	"github.com/spf13/cobra"
)

// newBinaryCommand creates `layermake binary`.
func newBinaryCommand(app *App) *cobra.Command {
	var (
		lf          layerFlags
		dockerfile  string
		workDir     string
		command     string
		baseImage   string
		packages    []string
		compatible  []string
		removeImage bool
	)

	cmd := &cobra.Command{
		Use:   "binary <artifact>",
		Short: "Bundle a layer built by your own script",
		Long: `Bundle a layer built by your own script.

The artifact is a build script or a directory holding one. In a directory,
a make file runs "make install"; otherwise the first of build, install,
layer, build-layer (with or without .sh) is executed. The image is built
from --dockerfile, or from an Amazon Linux Dockerfile with the development
tools and the --package list installed. OUTPUT_BIN and OUTPUT_LIB point at
/opt/bin and /opt/lib.`,
		Example: `  layermake binary -n tools ./build.sh
  layermake binary -n ffmpeg -p nasm -p cmake -r provided.al2 ./ffmpeg
  layermake binary --dockerfile ./Dockerfile --rm-image --no-publish ./src`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runLayer(cmd, &lf, func(s *session) (*layerJob, error) {
				rts, err := runtimes.ValidateBinary(compatible)
				if err != nil {
					return nil, issue.NewErrorContext().
						WithOperation("check compatible runtimes").
						WithSuggestion(`Use "all" or Lambda runtime identifiers such as provided.al2`).
						WithIssue(issue.InvalidRuntimeId).
						Wrap(err).
						BuildError()
				}

				wd := s.cfg.WorkDir
				if cmd.Flags().Changed("workdir") {
					wd = workDir
				}
				base := s.cfg.Images.BinaryBase
				if cmd.Flags().Changed("base-image") {
					base = baseImage
				}

				return &layerJob{
					bundle: bundler.Config{
						Kind:       bundler.KindBinary,
						WorkDir:    wd,
						StagingDir: s.cfg.StagingDir,
						Command:    command,
						Artifact:   args[0],
					},
					variant: &bundler.Binary{
						Dockerfile:  dockerfile,
						BaseImage:   base,
						Packages:    packages,
						WorkDir:     wd,
						RemoveImage: removeImage,
					},
					layerType: "binary",
					runtimes:  rts,
				}, nil
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&dockerfile, "dockerfile", "", "Dockerfile for the build image (default: generated)")
	f.StringVarP(&workDir, "workdir", "w", "", "container working directory (default from config, /opt)")
	f.StringVarP(&command, "command", "c", "", "command to run instead of the detected build script")
	f.StringVar(&baseImage, "base-image", "", "base image of the generated Dockerfile (default from images.binary_base)")
	f.StringArrayVarP(&packages, "package", "p", nil, "yum package to install in the generated image, repeatable")
	f.StringArrayVarP(&compatible, "runtime", "r", []string{runtimes.All}, `compatible runtime, repeatable, or "all"`)
	f.BoolVar(&removeImage, "rm-image", false, "remove the built image afterwards")
	addLayerFlags(cmd, &lf)

	return cmd
}
