// SPDX-License-Identifier: MPL-2.0

// Package cmd contains the layermake CLI commands.
//
// Every command is built by a factory that receives the App composition root,
// so tests can swap the container engine, the Lambda publisher and the
// interactive prompter without touching global state.
package cmd
