// SPDX-License-Identifier: MPL-2.0

// Package testutil holds helpers shared by layermake's package tests: process
// mocking through the TestHelperProcess pattern, a recording logger, and
// environment and filesystem helpers that fail the test on error.
package testutil
