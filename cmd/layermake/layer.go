// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"

	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/issue"
	"github.com/layermake/layermake/internal/publish"
	"github.com/layermake/layermake/internal/runtimes"

	"github.com/spf13/cobra"
)

type (
	// layerFlags are shared by every bundling subcommand.
	layerFlags struct {
		name          string
		description   string
		licenseText   string
		licenseFile   string
		architectures []string
		profile       string
		region        string
		noPublish     bool
		noZip         bool
		output        string
		mountDir      string
	}

	// layerJob is what a subcommand hands to runLayer.
	layerJob struct {
		bundle  bundler.Config
		variant bundler.Variant
		// layerType names the layer in the default description.
		layerType string
		// runtimes are the compatible runtimes sent on publish.
		runtimes []string
	}
)

func addLayerFlags(cmd *cobra.Command, lf *layerFlags) {
	f := cmd.Flags()
	f.StringVarP(&lf.name, "name", "n", "", "layer name (required unless --no-publish)")
	f.StringVarP(&lf.description, "description", "d", "", "layer description")
	f.StringVar(&lf.licenseText, "license-text", "", "layer license text")
	f.StringVar(&lf.licenseFile, "license-file", "", "file whose contents become the layer license")
	f.StringSliceVarP(&lf.architectures, "arch", "a", nil, "compatible architecture, repeatable: x86_64 or arm64 (default x86_64)")
	f.StringVar(&lf.profile, "profile", "", "AWS shared config profile")
	f.StringVar(&lf.region, "region", "", "AWS region")
	f.BoolVar(&lf.noPublish, "no-publish", false, "build the layer without publishing it")
	f.BoolVar(&lf.noZip, "no-zip", false, "keep the staged directory instead of zipping it (implies no publish)")
	f.StringVarP(&lf.output, "output", "o", "", "local output directory (default from staging_dir)")
	f.StringVar(&lf.mountDir, "mount-dir", "", "container directory the output directory is mounted on (default workdir)")
	cmd.MarkFlagsMutuallyExclusive("license-text", "license-file")
}

// publishOptions merges the layer flags over the publish section of the
// config. Config values only apply to flags left unset.
func (lf *layerFlags) publishOptions(cmd *cobra.Command, s *session, compatible []string) publish.Options {
	opts := publish.Options{
		Name:          lf.name,
		Description:   lf.description,
		LicenseText:   lf.licenseText,
		LicenseFile:   lf.licenseFile,
		Architectures: s.cfg.Publish.Architectures,
		Runtimes:      compatible,
		Profile:       s.cfg.Publish.Profile,
		Region:        s.cfg.Publish.Region,
		Skip:          lf.noPublish,
	}

	flags := cmd.Flags()
	if flags.Changed("arch") {
		opts.Architectures = lf.architectures
	}
	if flags.Changed("profile") {
		opts.Profile = lf.profile
	}
	if flags.Changed("region") {
		opts.Region = lf.region
	}
	return opts
}

// runLayer is the body shared by the bundling subcommands: load config, let
// the subcommand describe the job, bundle it and publish the output.
func (a *App) runLayer(cmd *cobra.Command, lf *layerFlags, describe func(*session) (*layerJob, error)) error {
	s, err := a.start(cmd)
	if err != nil {
		return err
	}

	job, err := describe(s)
	if err != nil {
		return err
	}
	job.bundle.NoZip = lf.noZip
	job.bundle.OutputDir = lf.mountDir
	if cmd.Flags().Changed("output") {
		job.bundle.StagingDir = lf.output
	}

	opts := lf.publishOptions(cmd, s, job.runtimes)
	if err := opts.Validate(); err != nil && !lf.noZip {
		return publishFlagError(err)
	}

	engine, err := a.engine(s)
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("select container engine").
			WithResource(string(s.cfg.ContainerEngine)).
			WithSuggestion("Install docker or podman and make sure its daemon is running").
			WithSuggestion("Pick the engine with --engine or container_engine in the config file").
			WithIssue(issue.ContainerEngineNotFoundId).
			Wrap(err).
			BuildError()
	}

	b, err := bundler.New(job.bundle, job.variant, engine, s.log)
	if err != nil {
		return err
	}
	out, err := b.Bundle(cmd.Context())
	if err != nil {
		return err
	}

	res, err := a.Publishers(opts, s.log).Publish(cmd.Context(), out, job.layerType)
	if err != nil {
		return err
	}

	if res.Skipped {
		fmt.Fprintln(a.stdout, out.Path)
	} else {
		fmt.Fprintln(a.stdout, res.ARN)
	}
	return nil
}

// selectRuntime returns flagValue, or asks the user to pick from catalog.
func (a *App) selectRuntime(flagValue, label string, catalog []string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	rt, err := a.Prompter.SelectRuntime(label, catalog)
	if err != nil {
		return "", selectionError(err)
	}
	return rt, nil
}

// askPackages prompts for packages when nothing else was given to bundle.
func (a *App) askPackages(label string) ([]string, error) {
	pkgs, err := a.Prompter.Packages(label)
	if err != nil {
		return nil, selectionError(err)
	}
	if len(pkgs) == 0 {
		return nil, issue.NewErrorContext().
			WithOperation("read packages").
			WithSuggestion("Pass packages as arguments, or use --manifest or --dir").
			WithIssue(issue.NothingToBundleId).
			Wrap(bundler.ErrNothingToBundle).
			BuildError()
	}
	return pkgs, nil
}

func selectionError(err error) error {
	if errors.Is(err, runtimes.ErrNoSelection) {
		return &ExitError{Code: ExitNoSelection, Err: err}
	}
	return err
}

func publishFlagError(err error) error {
	ctx := issue.NewErrorContext().WithOperation("check publish flags")
	switch {
	case errors.Is(err, publish.ErrNoLayerName):
		ctx = ctx.WithSuggestion("Name the layer with --name").
			WithSuggestion("Use --no-publish to only build it")
	case errors.Is(err, publish.ErrInvalidArchitecture):
		ctx = ctx.WithSuggestion("Use --arch x86_64 or --arch arm64")
	case errors.Is(err, publish.ErrLicenseFile):
		ctx = ctx.WithSuggestion("Check the --license-file path, or pass --license-text")
	}
	return ctx.WithIssue(issue.PublishFailedId).Wrap(err).BuildError()
}
