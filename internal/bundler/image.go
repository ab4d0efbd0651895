// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"path/filepath"
	"strings"
)

// RuntimePlaceholder is replaced by the runtime version in image templates.
const RuntimePlaceholder = "{runtime}"

func renderImage(template, fallback, runtime string) string {
	if template == "" {
		template = fallback
	}
	return strings.ReplaceAll(template, RuntimePlaceholder, runtime)
}

// absName returns the base name and absolute path of p.
func absName(p string) (name, abs string, err error) {
	abs, err = filepath.Abs(p)
	if err != nil {
		return "", "", err
	}
	return filepath.Base(abs), abs, nil
}
