// SPDX-License-Identifier: MPL-2.0

// Package stage manages the local staging directory that is mounted into the
// build container.
package stage
