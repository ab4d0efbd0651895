// SPDX-License-Identifier: MPL-2.0

// Package logging provides the console logger used across layermake.
//
// Components receive a Logger explicitly. Console writes styled records with
// charmbracelet/log and shows a spinner for long steps; Nop discards
// everything and is what tests pass in.
package logging
