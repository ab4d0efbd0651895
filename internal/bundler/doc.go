// SPDX-License-Identifier: MPL-2.0

// Package bundler builds Lambda layer archives.
//
// A Bundler owns a local staging directory that is mounted into a throwaway
// build container. The python, nodejs and binary variants lay out the staging
// directory and describe the container work as a Plan; Bundle runs every plan
// through the same pipeline:
//
//	plan -> [build image] -> run container (+ zip) -> finish -> cleanup
//
// Cleanup always runs, including when an earlier step fails.
package bundler
