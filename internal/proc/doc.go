// SPDX-License-Identifier: MPL-2.0

// Package proc runs external processes for layermake: the container engine
// CLI and nothing else. Output is streamed to the logger as it is produced and
// exit codes are mapped to typed errors.
package proc
