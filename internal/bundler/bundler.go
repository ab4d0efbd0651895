// SPDX-License-Identifier: EPL-2.0

package bundler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/layermake/layermake/internal/container"
	"github.com/layermake/layermake/internal/issue"
	"github.com/layermake/layermake/internal/logging"
	"github.com/layermake/layermake/internal/proc"
	"github.com/layermake/layermake/internal/shell"
	"github.com/layermake/layermake/internal/stage"
)

const (
	// KindPython bundles pip packages under python/.
	KindPython Kind = "python"
	// KindNode bundles npm packages under nodejs/.
	KindNode Kind = "nodejs"
	// KindBinary builds arbitrary binaries with a build script.
	KindBinary Kind = "binary"

	// ArtifactFile is a single-file build artifact.
	ArtifactFile ArtifactKind = "file"
	// ArtifactDir is a directory build artifact.
	ArtifactDir ArtifactKind = "dir"

	// DefaultWorkDir is the container working directory.
	DefaultWorkDir = "/opt"
	// DefaultStagingDir is the local staging directory.
	DefaultStagingDir = "layer"

	// ArchiveName is the zip produced inside the staging directory.
	ArchiveName = "layer.zip"

	zipCommand = "zip -r " + ArchiveName + " *"
)

type (
	// Kind is the layer flavor.
	Kind string

	// ArtifactKind tells file and directory artifacts apart.
	ArtifactKind string

	// Config holds the parameters shared by every variant.
	Config struct {
		Kind Kind
		// WorkDir is the container working directory. Default /opt.
		WorkDir string
		// StagingDir is the local directory mounted into the container.
		// Default ./layer.
		StagingDir string
		// Image overrides the variant's container image.
		Image string
		// Command replaces the variant's container command.
		Command string
		// Artifact is an optional file or directory copied into staging.
		Artifact string
		// OutputDir is where staging is mounted. Default WorkDir.
		OutputDir string
		// NoZip keeps the staged directory instead of producing layer.zip.
		NoZip bool
	}

	// Artifact is a build artifact after staging.
	Artifact struct {
		// Path is the staged location.
		Path string
		// Name is the base name of the original path.
		Name string
		Kind ArtifactKind
	}

	// Stage is the staging area handed to variants.
	Stage struct {
		// Root is the absolute staging directory.
		Root string
		// Source is the absolute path of the original artifact, if any.
		Source string
		// Artifact is the staged artifact, or nil.
		Artifact *Artifact

		stager *stage.Stager
		log    logging.Logger
	}

	// Plan is what a variant needs from the pipeline.
	Plan struct {
		// Image runs the container. Ignored when Dockerfile is set.
		Image string
		// Dockerfile is built first and the result becomes the image.
		Dockerfile string
		// ContextDir is the build context for Dockerfile.
		ContextDir string
		// Script is the in-container command.
		Script *shell.Script
		// Cleanup lists scaffolding to remove after the bundle.
		Cleanup []string
		// RemoveImage asks the finisher to delete the built image.
		RemoveImage bool
	}

	// Variant lays out staging and plans the container work for one Kind.
	// Plan returns whatever it has accumulated together with an error so
	// that partial scaffolding is still cleaned up.
	Variant interface {
		Kind() Kind
		Plan(ctx context.Context, st *Stage) (*Plan, error)
	}

	// CommandResolver is implemented by variants that derive the container
	// command from the artifact. It runs during New when Config.Command is
	// empty.
	CommandResolver interface {
		ResolveCommand(st *Stage) (string, error)
	}

	// Finisher is implemented by variants with work after the container run.
	Finisher interface {
		Finish(ctx context.Context, engine container.Engine, plan *Plan) error
	}

	// Output is the bundle result.
	Output struct {
		// Path is layer.zip, or the staging directory when Zipped is false.
		Path   string
		Zipped bool
		Kind   Kind
	}

	// Option configures a Bundler.
	Option func(*Bundler)

	// Bundler runs one variant through the bundle pipeline.
	Bundler struct {
		cfg     Config
		variant Variant
		engine  container.Engine
		log     logging.Logger
		cleaner Cleaner
		stage   *Stage
		command string
		cleanup CleanupSet
	}
)

// WithCleaner replaces the path remover used after the bundle.
func WithCleaner(c Cleaner) Option {
	return func(b *Bundler) {
		b.cleaner = c
	}
}

// New prepares the staging directory and stages cfg.Artifact.
func New(cfg Config, variant Variant, engine container.Engine, log logging.Logger, opts ...Option) (*Bundler, error) {
	if log == nil {
		log = logging.NewNop()
	}
	cfg = withDefaults(cfg)
	if cfg.Kind == "" {
		cfg.Kind = variant.Kind()
	}
	if cfg.Kind != variant.Kind() {
		return nil, fmt.Errorf("%w: %s != %s", ErrKindMismatch, cfg.Kind, variant.Kind())
	}

	stager := stage.New(log)
	b := &Bundler{
		cfg:     cfg,
		variant: variant,
		engine:  engine,
		log:     log,
		cleaner: stager,
	}
	for _, opt := range opts {
		opt(b)
	}

	st, err := prepareStage(cfg, stager, log)
	if err != nil {
		return nil, err
	}
	b.stage = st

	b.command = strings.TrimSpace(cfg.Command)
	if resolver, ok := variant.(CommandResolver); ok && b.command == "" {
		status := log.Status("searching for build command...")
		b.command, err = resolver.ResolveCommand(st)
		status.Done()
		if err != nil {
			return nil, err
		}
		log.Debug("container command resolved", "command", b.command)
	}
	return b, nil
}

func withDefaults(cfg Config) Config {
	if cfg.WorkDir == "" {
		cfg.WorkDir = DefaultWorkDir
	}
	if cfg.StagingDir == "" {
		cfg.StagingDir = DefaultStagingDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = cfg.WorkDir
	}
	return cfg
}

// prepareStage creates the staging root and copies the artifact into it.
func prepareStage(cfg Config, stager *stage.Stager, log logging.Logger) (*Stage, error) {
	root, err := filepath.Abs(cfg.StagingDir)
	if err != nil {
		return nil, stagingError("resolve staging directory", cfg.StagingDir, err)
	}
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		log.Info("creating layer output dir " + cfg.StagingDir)
	}
	if err := stager.EnsureDir(root); err != nil {
		return nil, stagingError("create layer output directory", root, err)
	}

	st := &Stage{Root: root, stager: stager, log: log}
	if cfg.Artifact == "" {
		return st, nil
	}

	src, err := filepath.Abs(cfg.Artifact)
	if err != nil {
		return nil, stagingError("resolve build artifact", cfg.Artifact, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return nil, stagingError("stage build artifact", cfg.Artifact, err)
	}
	st.Source = src
	name := filepath.Base(src)

	if info.IsDir() {
		if src != root {
			if err := stager.CopyContents(src, root); err != nil {
				return nil, stagingError("stage build artifact", cfg.Artifact, err)
			}
		}
		st.Artifact = &Artifact{Path: root, Name: name, Kind: ArtifactDir}
		return st, nil
	}

	staged := filepath.Join(root, name)
	if filepath.Dir(src) != root {
		if err := stager.Copy(src, staged); err != nil {
			return nil, stagingError("stage build artifact", cfg.Artifact, err)
		}
	}
	st.Artifact = &Artifact{Path: staged, Name: name, Kind: ArtifactFile}
	return st, nil
}

// Stage returns the staging area.
func (b *Bundler) Stage() *Stage {
	return b.stage
}

// Command returns the explicit or resolved container command, if any.
func (b *Bundler) Command() string {
	return b.command
}

// AddCleanupPath registers p for removal when the bundle finishes.
func (b *Bundler) AddCleanupPath(p string) {
	b.cleanup.Add(p)
}

// Bundle runs the pipeline. Registered cleanup paths are removed before it
// returns, whether or not the bundle succeeded.
func (b *Bundler) Bundle(ctx context.Context) (out *Output, err error) {
	defer func() {
		if cerr := b.runCleanup(); cerr != nil && err == nil {
			out, err = nil, cerr
		}
	}()

	plan, err := b.variant.Plan(ctx, b.stage)
	if plan != nil {
		b.cleanup.Add(plan.Cleanup...)
	}
	if err != nil {
		return nil, err
	}

	command, err := b.compose(plan)
	if err != nil {
		return nil, err
	}

	image := plan.Image
	if b.cfg.Image != "" {
		image = b.cfg.Image
	}
	if plan.Dockerfile != "" {
		if image, err = b.buildImage(ctx, plan); err != nil {
			return nil, err
		}
		plan.Image = image
	}

	if err := b.run(ctx, image, command); err != nil {
		return nil, err
	}

	if f, ok := b.variant.(Finisher); ok {
		if err := f.Finish(ctx, b.engine, plan); err != nil {
			return nil, err
		}
	}

	if b.cfg.NoZip {
		return &Output{Path: b.stage.Root, Zipped: false, Kind: b.cfg.Kind}, nil
	}

	entries, err := os.ReadDir(b.stage.Root)
	if err != nil {
		return nil, stagingError("read layer output directory", b.stage.Root, err)
	}
	for _, e := range entries {
		if e.Name() != ArchiveName {
			b.cleanup.Add(filepath.Join(b.stage.Root, e.Name()))
		}
	}
	return &Output{Path: filepath.Join(b.stage.Root, ArchiveName), Zipped: true, Kind: b.cfg.Kind}, nil
}

// compose renders the bash command run in the container.
func (b *Bundler) compose(plan *Plan) (string, error) {
	script := plan.Script
	if b.command != "" {
		script = shell.NewScript(shell.AndThen, b.command)
	}

	steps := shell.NewScript(shell.AndThen)
	if !script.Empty() {
		steps.Add(script.String())
	}
	if !b.cfg.NoZip {
		steps.Add(zipCommand)
	}
	if steps.Empty() {
		return "", issue.NewErrorContext().
			WithOperation("compose container command").
			WithSuggestion("Pass packages, a manifest or an artifact directory").
			WithIssue(issue.NothingToBundleId).
			Wrap(ErrNothingToBundle).
			BuildError()
	}

	command := steps.String()
	if b.cfg.OutputDir != b.cfg.WorkDir {
		dir, err := shell.Quote(b.cfg.OutputDir)
		if err != nil {
			return "", err
		}
		command = "mkdir -p " + dir + " && " + command
	}
	if err := shell.Validate(command); err != nil {
		return "", err
	}
	return command, nil
}

func (b *Bundler) buildImage(ctx context.Context, plan *Plan) (string, error) {
	status := b.log.Status("building container with Dockerfile: " + plan.Dockerfile + "...")
	defer status.Done()

	ref, err := b.engine.Build(ctx, container.BuildOptions{
		ContextDir: plan.ContextDir,
		Dockerfile: plan.Dockerfile,
	})
	if err != nil {
		return "", err
	}
	b.log.Success("container built successfully: " + ref.String())
	return ref.String(), nil
}

func (b *Bundler) run(ctx context.Context, image, command string) error {
	status := b.log.Status(fmt.Sprintf("bundling layer with %s...", b.engine.Name()))
	defer status.Done()

	b.log.Info(fmt.Sprintf("starting bundling task with %s container %s", b.engine.Name(), image))
	b.log.Debug("container command", "command", command)

	res, err := b.engine.Run(ctx, container.RunOptions{
		Image:   container.ImageRef(image),
		Command: []string{"/bin/bash", "-c", command},
		WorkDir: b.cfg.WorkDir,
		Volumes: []container.VolumeMount{{HostPath: b.stage.Root, ContainerPath: b.cfg.OutputDir}},
		Remove:  true,
	})
	if err == nil && res.ExitCode != 0 {
		err = &proc.ExitCodeError{Command: "/bin/bash -c " + command, Code: res.ExitCode}
	}
	if err != nil {
		return issue.NewErrorContext().
			WithOperation(fmt.Sprintf("bundle layer with %s container", b.engine.Name())).
			WithResource(image).
			WithSuggestion("Re-run with --verbose to see the container output").
			WithSuggestion("Check that the packages and build script are valid for this runtime").
			WithIssue(issue.ContainerRunFailedId).
			Wrap(err).
			BuildError()
	}
	b.log.Success("bundling complete!")
	return nil
}

func (b *Bundler) runCleanup() error {
	paths := b.cleanup.drain()
	status := b.log.Status("cleaning up...")
	n, err := b.cleaner.Clean(paths)
	status.Done()
	b.log.Success(fmt.Sprintf("cleaned up %d file paths", n))
	if err != nil {
		return issue.NewErrorContext().
			WithOperation("clean up staging directory").
			WithResource(b.stage.Root).
			WithSuggestion("Remove the leftover files manually").
			WithIssue(issue.PermissionDeniedId).
			Wrap(err).
			BuildError()
	}
	return nil
}

// Path joins elem onto the staging root.
func (st *Stage) Path(elem ...string) string {
	return filepath.Join(append([]string{st.Root}, elem...)...)
}

// Mkdir creates a directory inside staging.
func (st *Stage) Mkdir(elem ...string) (string, error) {
	p := st.Path(elem...)
	if err := st.stager.EnsureDir(p); err != nil {
		return "", stagingError("create directory", p, err)
	}
	return p, nil
}

// Copy copies src to dst inside staging.
func (st *Stage) Copy(src, dst string) error {
	if err := st.stager.Copy(src, dst); err != nil {
		return stagingError("copy", src, err)
	}
	return nil
}

// CopyContents copies the children of srcDir into dstDir.
func (st *Stage) CopyContents(srcDir, dstDir string) error {
	if err := st.stager.CopyContents(srcDir, dstDir); err != nil {
		return stagingError("copy", srcDir, err)
	}
	return nil
}

// Move moves src to dst.
func (st *Stage) Move(src, dst string) error {
	if err := st.stager.Move(src, dst); err != nil {
		return stagingError("move", src, err)
	}
	return nil
}

func fileExists(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
