// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"slices"
)

const (
	// ContainerEngineDocker selects docker.
	ContainerEngineDocker ContainerEngine = "docker"
	// ContainerEnginePodman selects podman.
	ContainerEnginePodman ContainerEngine = "podman"
)

// ErrInvalidConfig is the sentinel wrapped by InvalidConfigError.
var ErrInvalidConfig = errors.New("invalid configuration")

type (
	// ContainerEngine names the container CLI.
	ContainerEngine string

	// Config is the layermake configuration.
	Config struct {
		ContainerEngine ContainerEngine `json:"container_engine" mapstructure:"container_engine" toml:"container_engine" yaml:"container_engine"`
		StagingDir      string          `json:"staging_dir" mapstructure:"staging_dir" toml:"staging_dir" yaml:"staging_dir"`
		WorkDir         string          `json:"workdir" mapstructure:"workdir" toml:"workdir" yaml:"workdir"`
		Images          ImagesConfig    `json:"images" mapstructure:"images" toml:"images" yaml:"images"`
		Publish         PublishConfig   `json:"publish" mapstructure:"publish" toml:"publish" yaml:"publish"`
		UI              UIConfig        `json:"ui" mapstructure:"ui" toml:"ui" yaml:"ui"`
	}

	// ImagesConfig holds the build images. Python and Nodejs are templates
	// containing {runtime}.
	ImagesConfig struct {
		Python     string `json:"python" mapstructure:"python" toml:"python" yaml:"python"`
		Nodejs     string `json:"nodejs" mapstructure:"nodejs" toml:"nodejs" yaml:"nodejs"`
		BinaryBase string `json:"binary_base" mapstructure:"binary_base" toml:"binary_base" yaml:"binary_base"`
	}

	// PublishConfig holds defaults for the publish flags.
	PublishConfig struct {
		Profile       string   `json:"profile" mapstructure:"profile" toml:"profile" yaml:"profile"`
		Region        string   `json:"region" mapstructure:"region" toml:"region" yaml:"region"`
		Architectures []string `json:"architectures" mapstructure:"architectures" toml:"architectures" yaml:"architectures"`
	}

	// UIConfig holds output settings.
	UIConfig struct {
		Verbose bool `json:"verbose" mapstructure:"verbose" toml:"verbose" yaml:"verbose"`
		Quiet   bool `json:"quiet" mapstructure:"quiet" toml:"quiet" yaml:"quiet"`
	}

	// InvalidConfigError lists every problem found in a Config.
	InvalidConfigError struct {
		FieldErrors []error
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		ContainerEngine: ContainerEngineDocker,
		StagingDir:      "layer",
		WorkDir:         "/opt",
		Images: ImagesConfig{
			Python:     "public.ecr.aws/sam/build-python{runtime}:latest",
			Nodejs:     "public.ecr.aws/sam/build-nodejs{runtime}:latest",
			BinaryBase: "amazonlinux:latest",
		},
		Publish: PublishConfig{
			Architectures: []string{"x86_64"},
		},
	}
}

// String returns the engine name.
func (ce ContainerEngine) String() string { return string(ce) }

// Validate checks values that viper can set from the environment without
// going through the CUE schema.
func (c *Config) Validate() error {
	var errs []error
	if c.ContainerEngine != ContainerEngineDocker && c.ContainerEngine != ContainerEnginePodman {
		errs = append(errs, fmt.Errorf("container_engine: %q is not docker or podman", c.ContainerEngine))
	}
	if c.StagingDir == "" {
		errs = append(errs, errors.New("staging_dir: must not be empty"))
	}
	for _, a := range c.Publish.Architectures {
		if !slices.Contains([]string{"x86_64", "arm64"}, a) {
			errs = append(errs, fmt.Errorf("publish.architectures: %q is not x86_64 or arm64", a))
		}
	}
	if c.UI.Verbose && c.UI.Quiet {
		errs = append(errs, errors.New("ui: verbose and quiet are mutually exclusive"))
	}
	if len(errs) > 0 {
		return &InvalidConfigError{FieldErrors: errs}
	}
	return nil
}

// Error implements the error interface.
func (e *InvalidConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %v", errors.Join(e.FieldErrors...))
}

// Unwrap returns ErrInvalidConfig.
func (e *InvalidConfigError) Unwrap() error { return ErrInvalidConfig }
