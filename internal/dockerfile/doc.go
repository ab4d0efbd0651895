// SPDX-License-Identifier: MPL-2.0

// Package dockerfile renders the Dockerfile used by binary layers and writes
// it into a private build context directory.
package dockerfile
