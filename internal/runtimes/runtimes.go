// SPDX-License-Identifier: MPL-2.0

package runtimes

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// All selects every binary runtime.
const All = "all"

var (
	// Node lists the nodejs runtime versions offered for selection.
	Node = []string{"4.3", "6.10", "8.10", "10.x", "12.x", "14.x", "16.x"}

	// Python lists the python runtime versions offered for selection.
	Python = []string{"3.6", "3.7", "3.8", "3.9"}

	// Binary lists the Lambda runtime identifiers a binary layer may declare.
	Binary = []string{
		"nodejs", "nodejs4.3", "nodejs6.10", "nodejs8.10",
		"nodejs10.x", "nodejs12.x", "nodejs14.x", "nodejs16.x",
		"java8", "java8.al2", "java11", "python2.7",
		"python3.6", "python3.7", "python3.8", "python3.9",
		"dotnetcore1.0", "dotnetcore2.0", "dotnetcore2.1", "dotnetcore3.1",
		"dotnet6", "nodejs4.3-edge", "go1.x", "ruby2.5",
		"ruby2.7", "provided", "provided.al2", "nodejs18.x",
	}

	// ErrUnknownRuntime is the sentinel wrapped by UnknownRuntimeError.
	ErrUnknownRuntime = errors.New("unknown runtime")
)

// UnknownRuntimeError reports a runtime outside a catalog.
type UnknownRuntimeError struct {
	Runtime string
	Valid   []string
}

// Error implements the error interface.
func (e *UnknownRuntimeError) Error() string {
	return fmt.Sprintf("unknown runtime %q (valid: %s)", e.Runtime, strings.Join(e.Valid, ", "))
}

// Unwrap returns ErrUnknownRuntime.
func (e *UnknownRuntimeError) Unwrap() error { return ErrUnknownRuntime }

// NormalizeNode strips a "nodejs" prefix and appends ".x" to a version
// without a dot: "16" and "nodejs16" give "16.x", "8.10" is unchanged.
func NormalizeNode(runtime string) string {
	r := strings.TrimPrefix(strings.TrimSpace(runtime), "nodejs")
	if r != "" && !strings.Contains(r, ".") {
		r += ".x"
	}
	return r
}

// NormalizePython strips a "python" prefix.
func NormalizePython(runtime string) string {
	return strings.TrimPrefix(strings.TrimSpace(runtime), "python")
}

// NodeName returns the Lambda runtime identifier, e.g. "nodejs16.x".
func NodeName(runtime string) string {
	return "nodejs" + NormalizeNode(runtime)
}

// PythonName returns the Lambda runtime identifier, e.g. "python3.8".
func PythonName(runtime string) string {
	return "python" + NormalizePython(runtime)
}

// ValidateBinary checks runtimes against the Binary catalog. It returns nil
// for "all", meaning the layer declares no runtime restriction.
func ValidateBinary(runtimes []string) ([]string, error) {
	if len(runtimes) == 0 || slices.Contains(runtimes, All) {
		return nil, nil
	}
	var out []string
	for _, r := range runtimes {
		if !slices.Contains(Binary, r) {
			return nil, &UnknownRuntimeError{Runtime: r, Valid: append(slices.Clone(Binary), All)}
		}
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out, nil
}
