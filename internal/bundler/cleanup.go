// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"path/filepath"
	"slices"
)

type (
	// Cleaner removes paths and reports how many it removed.
	// *stage.Stager is the production implementation.
	Cleaner interface {
		Clean(paths []string) (int, error)
	}

	// CleanupSet is an ordered, duplicate-free list of paths to remove once
	// a bundle finishes.
	CleanupSet struct {
		paths []string
		seen  map[string]struct{}
	}
)

// Add appends paths that are not already in the set. Blank paths are ignored.
func (c *CleanupSet) Add(paths ...string) {
	if c.seen == nil {
		c.seen = make(map[string]struct{})
	}
	for _, p := range paths {
		if p == "" {
			continue
		}
		p = filepath.Clean(p)
		if _, ok := c.seen[p]; ok {
			continue
		}
		c.seen[p] = struct{}{}
		c.paths = append(c.paths, p)
	}
}

// Paths returns the registered paths in insertion order.
func (c *CleanupSet) Paths() []string {
	return slices.Clone(c.paths)
}

// Len returns the number of registered paths.
func (c *CleanupSet) Len() int {
	return len(c.paths)
}

// drain returns the registered paths and empties the set.
func (c *CleanupSet) drain() []string {
	paths := c.paths
	c.paths = nil
	c.seen = nil
	return paths
}
