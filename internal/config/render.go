// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"github.com/google/renameio/v2"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// FormatCUE renders the configuration as CUE.
	FormatCUE Format = "cue"
	// FormatTOML renders the configuration as TOML.
	FormatTOML Format = "toml"
	// FormatYAML renders the configuration as YAML.
	FormatYAML Format = "yaml"
)

var (
	// ErrUnknownFormat is returned by Render for an unsupported Format.
	ErrUnknownFormat = errors.New("unknown config format")

	// ErrConfigExists is returned by WriteDefault when the target exists.
	ErrConfigExists = errors.New("config file already exists")
)

// Format is an output format for Render.
type Format string

// Formats lists the formats accepted by Render.
func Formats() []Format { return []Format{FormatCUE, FormatTOML, FormatYAML} }

// Render encodes cfg in the given format.
func Render(cfg *Config, f Format) ([]byte, error) {
	switch f {
	case FormatCUE:
		s, err := GenerateCUE(cfg)
		return []byte(s), err
	case FormatTOML:
		return toml.Marshal(cfg)
	case FormatYAML:
		return yaml.Marshal(cfg)
	default:
		return nil, fmt.Errorf("%w %q (valid: cue, toml, yaml)", ErrUnknownFormat, f)
	}
}

// GenerateCUE renders cfg as a formatted CUE document that loads back to the
// same configuration.
func GenerateCUE(cfg *Config) (string, error) {
	v := cuecontext.New().Encode(cfg)
	if v.Err() != nil {
		return "", fmt.Errorf("encode config: %w", v.Err())
	}
	out, err := format.Node(v.Syntax())
	if err != nil {
		return "", fmt.Errorf("format config: %w", err)
	}
	return "// layermake configuration\n\n" + string(out) + "\n", nil
}

// WriteDefault writes the default configuration to path atomically. An
// existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force && fileExists(path) {
		return fmt.Errorf("%w: %s", ErrConfigExists, path)
	}

	content, err := GenerateCUE(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := renameio.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
