// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/config"
	"github.com/layermake/layermake/internal/container"
	"github.com/layermake/layermake/internal/logging"
	"github.com/layermake/layermake/internal/publish"
	"github.com/layermake/layermake/internal/runtimes"

	"github.com/spf13/cobra"
)

type (
	// App wires CLI services and shared dependencies. It is the composition root for
	// the CLI layer: all Cobra command handlers receive an App reference.
	App struct {
		Config     config.Provider
		Engines    EngineFactory
		Publishers PublisherFactory
		Prompter   runtimes.Prompter
		stdout     io.Writer
		stderr     io.Writer
		flags      globalFlags
	}

	// Dependencies defines the injection points for building an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Config     config.Provider
		Engines    EngineFactory
		Publishers PublisherFactory
		Prompter   runtimes.Prompter
		Stdout     io.Writer
		Stderr     io.Writer
	}

	// EngineFactory returns the container engine to bundle with.
	EngineFactory func(preferred container.EngineType, log logging.Logger) (container.Engine, error)

	// PublisherFactory returns the publisher for one invocation.
	PublisherFactory func(opts publish.Options, log logging.Logger) LayerPublisher

	// LayerPublisher publishes a bundle output.
	LayerPublisher interface {
		Publish(ctx context.Context, out *bundler.Output, layerType string) (*publish.Result, error)
	}

	// globalFlags are the persistent root flags.
	globalFlags struct {
		verbose    bool
		quiet      bool
		configPath string
		engine     string
	}

	// session is the per-invocation state shared by a command's steps.
	session struct {
		cfg *config.Config
		log logging.Logger
	}
)

// NewApp builds an App, filling nil dependencies with production defaults.
func NewApp(deps Dependencies) (*App, error) {
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Config == nil {
		deps.Config = config.NewProvider()
	}
	if deps.Engines == nil {
		deps.Engines = defaultEngine
	}
	if deps.Publishers == nil {
		deps.Publishers = func(opts publish.Options, log logging.Logger) LayerPublisher {
			return publish.New(opts, log)
		}
	}
	if deps.Prompter == nil {
		deps.Prompter = &runtimes.Terminal{Stdin: os.Stdin, Stdout: os.Stdout}
	}

	return &App{
		Config:     deps.Config,
		Engines:    deps.Engines,
		Publishers: deps.Publishers,
		Prompter:   deps.Prompter,
		stdout:     deps.Stdout,
		stderr:     deps.Stderr,
	}, nil
}

func defaultEngine(preferred container.EngineType, log logging.Logger) (container.Engine, error) {
	return container.NewEngine(preferred, container.WithLogger(log))
}

// loadOptions returns the config lookup options implied by --config.
func (a *App) loadOptions() config.LoadOptions {
	return config.LoadOptions{ConfigFilePath: a.flags.configPath}
}

// start loads the configuration and builds the logger. Flags that were set
// explicitly win over the config file.
func (a *App) start(cmd *cobra.Command) (*session, error) {
	cfg, err := a.Config.Load(cmd.Context(), a.loadOptions())
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") || flags.Changed("quiet") {
		cfg.UI.Verbose = a.flags.verbose
		cfg.UI.Quiet = a.flags.quiet
	}
	if flags.Changed("engine") {
		cfg.ContainerEngine = config.ContainerEngine(a.flags.engine)
	}

	log := logging.NewConsole(a.stderr, logging.Options{Verbose: cfg.UI.Verbose, Quiet: cfg.UI.Quiet})
	return &session{cfg: cfg, log: log}, nil
}

// engine returns the container engine selected by config or --engine.
func (a *App) engine(s *session) (container.Engine, error) {
	return a.Engines(container.EngineType(s.cfg.ContainerEngine), s.log)
}
