// SPDX-License-Identifier: MPL-2.0

package container

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/layermake/layermake/internal/issue"
	"github.com/layermake/layermake/internal/logging"
	"github.com/layermake/layermake/internal/proc"
)

type (
	// VolumeFormatFunc adjusts a volume mount before it is rendered.
	// Podman uses it to add SELinux labels.
	VolumeFormatFunc func(VolumeMount) VolumeMount

	// RunArgsTransformer rewrites run arguments after they are built.
	RunArgsTransformer func(args []string) []string

	// BaseCLIEngineOption configures a BaseCLIEngine.
	BaseCLIEngineOption func(*BaseCLIEngine)

	// BaseCLIEngine implements the parts of Engine that are identical for
	// every CLI engine. DockerEngine and PodmanEngine embed it.
	BaseCLIEngine struct {
		name               string
		binaryPath         string
		binaryPathSet      bool
		execCommand        proc.ExecCommandFunc
		log                logging.Logger
		volumeFormatter    VolumeFormatFunc
		runArgsTransformer RunArgsTransformer
		runner             *proc.Runner
	}
)

// WithName sets the engine name used in messages.
func WithName(name string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.name = name
	}
}

// WithBinaryPath skips PATH lookup and uses path as the engine binary.
func WithBinaryPath(path string) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.binaryPath = path
		e.binaryPathSet = true
	}
}

// WithExecCommand overrides process creation, for tests.
func WithExecCommand(fn proc.ExecCommandFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.execCommand = fn
	}
}

// WithLogger sets the logger that receives streamed engine output.
func WithLogger(log logging.Logger) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.log = log
	}
}

// WithVolumeFormatter sets the volume formatter.
func WithVolumeFormatter(fn VolumeFormatFunc) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.volumeFormatter = fn
	}
}

// WithRunArgsTransformer sets the run args transformer.
func WithRunArgsTransformer(fn RunArgsTransformer) BaseCLIEngineOption {
	return func(e *BaseCLIEngine) {
		e.runArgsTransformer = fn
	}
}

// NewBaseCLIEngine creates a base engine for the binary at binaryPath.
func NewBaseCLIEngine(binaryPath string, opts ...BaseCLIEngineOption) *BaseCLIEngine {
	e := &BaseCLIEngine{
		binaryPath: binaryPath,
		log:        logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var runnerOpts []proc.Option
	if e.execCommand != nil {
		runnerOpts = append(runnerOpts, proc.WithExecCommand(e.execCommand))
	}
	e.runner = proc.NewRunner(e.log, runnerOpts...)
	return e
}

// BinaryPath returns the engine binary path. Empty means not installed.
func (e *BaseCLIEngine) BinaryPath() string {
	return e.binaryPath
}

// BuildArgs renders the arguments of a quiet "build".
func (e *BaseCLIEngine) BuildArgs(opts BuildOptions) []string {
	args := []string{"build", "--quiet"}

	if opts.Dockerfile != "" {
		args = append(args, "-f", opts.Dockerfile)
	}
	if opts.Tag != "" {
		args = append(args, "-t", string(opts.Tag))
	}
	for _, k := range slices.Sorted(maps.Keys(opts.BuildArgs)) {
		args = append(args, "--build-arg", k+"="+opts.BuildArgs[k])
	}
	if opts.NoCache {
		args = append(args, "--no-cache")
	}

	return append(args, opts.ContextDir)
}

// RunArgs renders the arguments of "run".
func (e *BaseCLIEngine) RunArgs(opts RunOptions) []string {
	args := []string{"run"}

	if opts.Remove {
		args = append(args, "--rm")
	}
	if opts.Name != "" {
		args = append(args, "--name", string(opts.Name))
	}
	if opts.WorkDir != "" {
		args = append(args, "-w", opts.WorkDir)
	}
	for _, k := range slices.Sorted(maps.Keys(opts.Env)) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}
	for _, v := range opts.Volumes {
		if e.volumeFormatter != nil {
			v = e.volumeFormatter(v)
		}
		args = append(args, "-v", v.String())
	}

	args = append(args, string(opts.Image))
	args = append(args, opts.Command...)

	if e.runArgsTransformer != nil {
		args = e.runArgsTransformer(args)
	}
	return args
}

// RemoveArgs renders the arguments of "rm".
func (e *BaseCLIEngine) RemoveArgs(id ContainerID, force bool) []string {
	args := []string{"rm"}
	if force {
		args = append(args, "-f")
	}
	return append(args, string(id))
}

// RemoveImageArgs renders the arguments of "rmi".
func (e *BaseCLIEngine) RemoveImageArgs(image ImageRef, force bool) []string {
	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	return append(args, string(image))
}

// CopyFromArgs renders the arguments of "cp" out of a container.
func (e *BaseCLIEngine) CopyFromArgs(id ContainerID, src, dst string) []string {
	return []string{"cp", string(id) + ":" + src, dst}
}

func (e *BaseCLIEngine) command(args []string) proc.Command {
	return proc.Command{Name: e.binaryPath, Args: args}
}

// Build runs a quiet build and returns the tag, or the printed image id.
func (e *BaseCLIEngine) Build(ctx context.Context, opts BuildOptions) (ImageRef, error) {
	cmd := e.command(e.BuildArgs(opts))
	cmd.Prefix = e.name + " build>\t"
	cmd.Capture = true

	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return "", buildContainerError(e.name, opts, err)
	}
	if opts.Tag != "" {
		return opts.Tag, nil
	}

	ref := lastLine(res.Stdout)
	if ref == "" {
		return "", buildContainerError(e.name, opts, errors.New("build printed no image id"))
	}
	return ImageRef(ref), nil
}

// Run runs a container and streams its output.
func (e *BaseCLIEngine) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	for _, v := range opts.Volumes {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}

	cmd := e.command(e.RunArgs(opts))
	cmd.Prefix = opts.OutputPrefix
	if cmd.Prefix == "" {
		cmd.Prefix = e.name + " run>\t"
	}

	res, err := e.runner.Run(ctx, cmd)
	var exitErr *proc.ExitCodeError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, runContainerError(e.name, opts, err)
	}
	return &RunResult{ContainerID: opts.Name, ExitCode: res.ExitCode}, nil
}

// CopyFrom copies a path out of a container.
func (e *BaseCLIEngine) CopyFrom(ctx context.Context, id ContainerID, src, dst string) error {
	if _, err := e.runner.Run(ctx, e.command(e.CopyFromArgs(id, src, dst))); err != nil {
		return fmt.Errorf("%s cp %s:%s: %w", e.name, id, src, err)
	}
	return nil
}

// Remove removes a container.
func (e *BaseCLIEngine) Remove(ctx context.Context, id ContainerID, force bool) error {
	if _, err := e.runner.Run(ctx, e.command(e.RemoveArgs(id, force))); err != nil {
		return fmt.Errorf("%s rm %s: %w", e.name, id, err)
	}
	return nil
}

// RemoveImage removes an image.
func (e *BaseCLIEngine) RemoveImage(ctx context.Context, image ImageRef, force bool) error {
	if _, err := e.runner.Run(ctx, e.command(e.RemoveImageArgs(image, force))); err != nil {
		return fmt.Errorf("%s rmi %s: %w", e.name, image, err)
	}
	return nil
}

// ImageExists inspects image; exit code 1 means it is absent.
func (e *BaseCLIEngine) ImageExists(ctx context.Context, image ImageRef) (bool, error) {
	res, err := e.runner.Run(ctx, proc.Command{
		Name:          e.binaryPath,
		Args:          []string{"image", "inspect", string(image)},
		ExpectedCodes: []int{0, 1},
	})
	if err != nil {
		return false, fmt.Errorf("%s image inspect %s: %w", e.name, image, err)
	}
	return res.ExitCode == 0, nil
}

// RunCommandWithOutput runs the engine with args and returns captured stdout.
func (e *BaseCLIEngine) RunCommandWithOutput(ctx context.Context, args ...string) (string, error) {
	cmd := e.command(args)
	cmd.Capture = true
	res, err := e.runner.Run(ctx, cmd)
	if err != nil {
		return "", fmt.Errorf("%s %s failed: %w", e.name, strings.Join(args, " "), err)
	}
	return res.Stdout, nil
}

// available probes the daemon with a version query.
func (e *BaseCLIEngine) available(format string) bool {
	if e.binaryPath == "" {
		return false
	}
	_, err := e.RunCommandWithOutput(context.Background(), "version", "--format", format)
	return err == nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func buildContainerError(engine string, opts BuildOptions, cause error) error {
	resource := opts.Dockerfile
	if resource == "" {
		resource = opts.ContextDir
	}
	return issue.NewErrorContext().
		WithOperation("build container image").
		WithResource(resource).
		WithSuggestion(fmt.Sprintf("Check that %s is running", engine)).
		WithSuggestion("Re-run with --verbose to see the build output").
		WithIssue(issue.ImageBuildFailedId).
		Wrap(cause).
		BuildError()
}

func runContainerError(engine string, opts RunOptions, cause error) error {
	return issue.NewErrorContext().
		WithOperation("run container").
		WithResource(string(opts.Image)).
		WithSuggestion(fmt.Sprintf("Check that %s is running and the image can be pulled", engine)).
		WithIssue(issue.ContainerEngineNotFoundId).
		Wrap(cause).
		BuildError()
}
