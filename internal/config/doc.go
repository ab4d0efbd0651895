// SPDX-License-Identifier: MPL-2.0

// Package config loads layermake settings with Viper, using CUE as the file
// format.
//
// The file is config.cue in the layermake config directory
// ($XDG_CONFIG_HOME/layermake on Linux, ~/Library/Application Support/layermake
// on macOS, %APPDATA%\layermake on Windows), or ./layermake.cue, or the path
// given with --config. It is validated against the embedded #Config schema
// before being merged over the defaults. LAYERMAKE_* environment variables
// override both.
package config
