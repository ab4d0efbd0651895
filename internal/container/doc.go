// SPDX-License-Identifier: MPL-2.0

// Package container drives the docker and podman CLIs. Both engines share
// BaseCLIEngine, which renders arguments and runs the binary through
// proc.Runner so container output is streamed to the logger line by line.
package container
