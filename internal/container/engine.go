// SPDX-License-Identifier: EPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// EngineTypePodman selects the podman CLI.
	EngineTypePodman EngineType = "podman"
	// EngineTypeDocker selects the docker CLI.
	EngineTypeDocker EngineType = "docker"

	// SELinuxLabelNone means no SELinux label is applied to volume mounts.
	SELinuxLabelNone SELinuxLabel = ""
	// SELinuxLabelShared allows sharing the volume between containers.
	SELinuxLabelShared SELinuxLabel = "z"
	// SELinuxLabelPrivate restricts the volume to a single container.
	SELinuxLabelPrivate SELinuxLabel = "Z"
)

var (
	// ErrInvalidEngineType is the sentinel wrapped by InvalidEngineTypeError.
	ErrInvalidEngineType = errors.New("invalid container engine type")

	// ErrInvalidVolumeMount is the sentinel wrapped by InvalidVolumeMountError.
	ErrInvalidVolumeMount = errors.New("invalid volume mount")
)

type (
	// Engine drives a container engine CLI.
	Engine interface {
		// Name returns the engine name ("docker" or "podman").
		Name() string
		// Available reports whether the CLI is installed and its daemon answers.
		Available() bool
		// Version returns the engine version.
		Version(ctx context.Context) (string, error)
		// Build builds an image and returns its reference: the tag when one
		// was requested, otherwise the image id printed by a quiet build.
		Build(ctx context.Context, opts BuildOptions) (ImageRef, error)
		// Run runs a container to completion, streaming its output to the
		// logger. A non-zero exit is reported in RunResult, not as an error.
		Run(ctx context.Context, opts RunOptions) (*RunResult, error)
		// CopyFrom copies src out of a container to the host path dst.
		CopyFrom(ctx context.Context, id ContainerID, src, dst string) error
		// Remove removes a container.
		Remove(ctx context.Context, id ContainerID, force bool) error
		// ImageExists reports whether an image is present locally.
		ImageExists(ctx context.Context, image ImageRef) (bool, error)
		// RemoveImage removes an image.
		RemoveImage(ctx context.Context, image ImageRef, force bool) error
	}

	// EngineType names a supported engine.
	EngineType string

	// InvalidEngineTypeError is returned for an unknown EngineType.
	InvalidEngineTypeError struct {
		Value EngineType
	}

	// ImageRef is an image name, tag or id.
	ImageRef string

	// ContainerID is a container name or id.
	ContainerID string

	// SELinuxLabel is an SELinux volume relabeling option.
	SELinuxLabel string

	// VolumeMount binds a host path into the container.
	VolumeMount struct {
		HostPath      string
		ContainerPath string
		ReadOnly      bool
		SELinux       SELinuxLabel
	}

	// InvalidVolumeMountError is returned when a VolumeMount is incomplete.
	InvalidVolumeMountError struct {
		Value  VolumeMount
		Reason string
	}

	// BuildOptions configures an image build.
	BuildOptions struct {
		// ContextDir is the build context.
		ContextDir string
		// Dockerfile is the Dockerfile path. Empty means ContextDir/Dockerfile.
		Dockerfile string
		// Tag names the image. Empty leaves the image untagged.
		Tag       ImageRef
		BuildArgs map[string]string
		NoCache   bool
	}

	// RunOptions configures a container run.
	RunOptions struct {
		Image   ImageRef
		Command []string
		WorkDir string
		Env     map[string]string
		Volumes []VolumeMount
		// Remove deletes the container when it exits (--rm).
		Remove bool
		Name   ContainerID
		// OutputPrefix is prepended to each streamed output line.
		// Empty means "<engine> run>\t".
		OutputPrefix string
	}

	// RunResult is the outcome of a container run.
	RunResult struct {
		ContainerID ContainerID
		ExitCode    int
	}

	// ErrEngineNotAvailable is returned when no usable engine was found.
	ErrEngineNotAvailable struct {
		Engine string
		Reason string
	}
)

// Validate returns an error unless t is docker or podman.
func (t EngineType) Validate() error {
	switch t {
	case EngineTypeDocker, EngineTypePodman:
		return nil
	default:
		return &InvalidEngineTypeError{Value: t}
	}
}

// String returns the engine type name.
func (t EngineType) String() string { return string(t) }

// Error implements the error interface.
func (e *InvalidEngineTypeError) Error() string {
	return fmt.Sprintf("invalid container engine %q (valid: docker, podman)", e.Value)
}

// Unwrap returns ErrInvalidEngineType.
func (e *InvalidEngineTypeError) Unwrap() error { return ErrInvalidEngineType }

// String returns the image reference.
func (r ImageRef) String() string { return string(r) }

// String returns the container id.
func (c ContainerID) String() string { return string(c) }

// Validate checks that both sides of the mount are set and the label is known.
func (v VolumeMount) Validate() error {
	switch {
	case strings.TrimSpace(v.HostPath) == "":
		return &InvalidVolumeMountError{Value: v, Reason: "host path is empty"}
	case strings.TrimSpace(v.ContainerPath) == "":
		return &InvalidVolumeMountError{Value: v, Reason: "container path is empty"}
	}
	switch v.SELinux {
	case SELinuxLabelNone, SELinuxLabelShared, SELinuxLabelPrivate:
		return nil
	default:
		return &InvalidVolumeMountError{Value: v, Reason: fmt.Sprintf("unknown SELinux label %q", v.SELinux)}
	}
}

// String renders "host:container[:options]" as accepted by -v.
func (v VolumeMount) String() string {
	s := v.HostPath + ":" + v.ContainerPath
	var opts []string
	if v.ReadOnly {
		opts = append(opts, "ro")
	}
	if v.SELinux != SELinuxLabelNone {
		opts = append(opts, string(v.SELinux))
	}
	if len(opts) > 0 {
		s += ":" + strings.Join(opts, ",")
	}
	return s
}

// Error implements the error interface.
func (e *InvalidVolumeMountError) Error() string {
	return fmt.Sprintf("invalid volume mount %s: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidVolumeMount.
func (e *InvalidVolumeMountError) Unwrap() error { return ErrInvalidVolumeMount }

// Error implements the error interface.
func (e *ErrEngineNotAvailable) Error() string {
	return fmt.Sprintf("container engine '%s' is not available: %s", e.Engine, e.Reason)
}

// NewEngine returns the preferred engine, falling back to the other one when
// the preferred engine is not available. opts apply to both candidates.
func NewEngine(preferred EngineType, opts ...BaseCLIEngineOption) (Engine, error) {
	if err := preferred.Validate(); err != nil {
		return nil, err
	}

	docker := NewDockerEngine(opts...)
	podman := NewPodmanEngine(opts...)

	candidates := []Engine{docker, podman}
	fallback := "podman"
	if preferred == EngineTypePodman {
		candidates = []Engine{podman, docker}
		fallback = "docker"
	}

	for _, e := range candidates {
		if e.Available() {
			return e, nil
		}
	}
	return nil, &ErrEngineNotAvailable{
		Engine: preferred.String(),
		Reason: fmt.Sprintf("%s is not installed or not accessible, and %s fallback is also not available", preferred, fallback),
	}
}

// AutoDetectEngine returns docker when it is available, otherwise podman.
func AutoDetectEngine(opts ...BaseCLIEngineOption) (Engine, error) {
	if docker := NewDockerEngine(opts...); docker.Available() {
		return docker, nil
	}
	if podman := NewPodmanEngine(opts...); podman.Available() {
		return podman, nil
	}
	return nil, &ErrEngineNotAvailable{
		Engine: "any",
		Reason: "no container engine (docker or podman) is available on this system",
	}
}
