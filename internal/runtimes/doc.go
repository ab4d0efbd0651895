// SPDX-License-Identifier: MPL-2.0

// Package runtimes holds the Lambda runtime catalogs and the interactive
// runtime and package prompts.
package runtimes
