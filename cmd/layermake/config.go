// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"slices"

	"github.com/layermake/layermake/internal/config"
	"github.com/layermake/layermake/internal/issue"

	"github.com/spf13/cobra"
)

// newConfigCommand creates the `layermake config` command tree.
func newConfigCommand(app *App) *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage layermake configuration",
		Long: `Manage layermake configuration.

Configuration is read from the first of:
  - the file given with --config
  - Linux: ~/.config/layermake/config.cue
    macOS: ~/Library/Application Support/layermake/config.cue
    Windows: %APPDATA%\layermake\config.cue
  - ./layermake.cue

LAYERMAKE_* environment variables override file values, for example
LAYERMAKE_CONTAINER_ENGINE=podman or LAYERMAKE_PUBLISH_REGION=eu-west-1.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	var format string
	show := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			f := config.Format(format)
			if !slices.Contains(config.Formats(), f) {
				return fmt.Errorf("%w %q (valid: cue, toml, yaml)", config.ErrUnknownFormat, format)
			}
			cfg, err := app.Config.Load(cmd.Context(), app.loadOptions())
			if err != nil {
				return err
			}
			out, err := config.Render(cfg, f)
			if err != nil {
				return err
			}
			_, err = app.stdout.Write(out)
			return err
		},
	}
	show.Flags().StringVar(&format, "format", string(config.FormatCUE), "output format: cue, toml or yaml")
	cfgCmd.AddCommand(show)

	var force bool
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.flags.configPath
			if path == "" {
				var err error
				if path, err = config.DefaultConfigPath(); err != nil {
					return err
				}
			}
			if err := config.WriteDefault(path, force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return issue.NewErrorContext().
						WithOperation("write default configuration").
						WithResource(path).
						WithSuggestion("Use --force to overwrite it").
						WithIssue(issue.ConfigLoadFailedId).
						Wrap(err).
						BuildError()
				}
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", SuccessStyle.Render("Created"), path)
			return nil
		},
	}
	initCmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	cfgCmd.AddCommand(initCmd)

	cfgCmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Show the configuration file in use",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := app.Config.Source(app.loadOptions())
			if err != nil {
				return err
			}
			if path != "" {
				fmt.Fprintln(app.stdout, path)
				return nil
			}
			def, err := config.DefaultConfigPath()
			if err != nil {
				return err
			}
			fmt.Fprintf(app.stdout, "%s %s\n", def, SubtitleStyle.Render("(not found, using defaults)"))
			return nil
		},
	})

	return cfgCmd
}
