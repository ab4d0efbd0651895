// SPDX-License-Identifier: MPL-2.0

package bundler

import (
	"errors"
	"fmt"

	"github.com/layermake/layermake/internal/issue"
)

var (
	// ErrNoBuildEntryPoint is returned when a binary artifact directory has
	// no recognized build script.
	ErrNoBuildEntryPoint = errors.New("no build entry point found")

	// ErrNoArtifact is returned when a variant requires a build artifact and
	// none was given.
	ErrNoArtifact = errors.New("no build artifact given")

	// ErrNothingToBundle is returned when there is no command to run.
	ErrNothingToBundle = errors.New("nothing to bundle")

	// ErrKindMismatch is returned when Config.Kind disagrees with the variant.
	ErrKindMismatch = errors.New("config kind does not match variant")
)

func noEntryPointError(dir string) error {
	return issue.NewErrorContext().
		WithOperation("find build entry point").
		WithResource(dir).
		WithSuggestion("Add a 'make' file or one of: " + joinNames(entryPointNames)).
		WithSuggestion("Or pass the command to run with --command").
		WithIssue(issue.NoBuildEntryPointId).
		Wrap(ErrNoBuildEntryPoint).
		BuildError()
}

func noArtifactError(kind Kind) error {
	return issue.NewErrorContext().
		WithOperation(fmt.Sprintf("prepare %s layer", kind)).
		WithSuggestion("Pass a build script or a directory containing one").
		WithIssue(issue.NoBuildArtifactId).
		Wrap(ErrNoArtifact).
		BuildError()
}

func stagingError(operation, resource string, err error) error {
	return issue.NewErrorContext().
		WithOperation(operation).
		WithResource(resource).
		WithSuggestion("Check that the path exists and is readable").
		WithSuggestion("Check that the staging directory is writable").
		WithIssue(issue.StagingFailedId).
		Wrap(err).
		BuildError()
}
