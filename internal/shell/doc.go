// SPDX-License-Identifier: MPL-2.0

// Package shell builds the bash command lines run inside build containers.
// Commands are kept as fragments until the last moment so callers and tests
// can inspect them before they are joined.
package shell
