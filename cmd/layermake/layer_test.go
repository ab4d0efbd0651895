// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/container"
	"github.com/layermake/layermake/internal/issue"
	"github.com/layermake/layermake/internal/publish"
	"github.com/layermake/layermake/internal/runtimes"
	"github.com/layermake/layermake/internal/testutil"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

func TestPython_BundlesAndPublishes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	h.mustRun("python", "-r", "3.9", "-n", "deps", "requests", "boto3")

	run := h.engine.runs
	if len(run) != 1 || run[0].Image != "public.ecr.aws/sam/build-python3.9:latest" {
		t.Fatalf("unexpected container runs: %+v", run)
	}
	want := "pip install -t python requests boto3 && zip -r layer.zip *"
	if got := h.engine.command(t); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}

	in := h.lambda.input(t)
	if aws.ToString(in.LayerName) != "deps" {
		t.Errorf("LayerName = %q", aws.ToString(in.LayerName))
	}
	if got := aws.ToString(in.Description); got != "my python3.9 layer built with layermake" {
		t.Errorf("Description = %q", got)
	}
	if !slices.Equal(in.CompatibleRuntimes, []types.Runtime{"python3.9"}) {
		t.Errorf("CompatibleRuntimes = %v", in.CompatibleRuntimes)
	}
	if !slices.Equal(in.CompatibleArchitectures, []types.Architecture{types.ArchitectureX8664}) {
		t.Errorf("CompatibleArchitectures = %v", in.CompatibleArchitectures)
	}

	if got := strings.TrimSpace(h.stdout.String()); got != testLayerARN {
		t.Errorf("stdout = %q, want the layer ARN", got)
	}
	if testutil.Exists(filepath.Join(h.staging, "python")) || testutil.Exists(filepath.Join(h.staging, "src")) {
		t.Error("staging should only keep layer.zip")
	}
}

func TestPython_PromptsForMissingInput(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.prompter.runtime = "3.8"
	h.prompter.packages = []string{"numpy"}

	h.mustRun("python", "--no-publish")

	if !slices.Equal(h.prompter.asked, []string{"Python runtime", "Python packages (space separated)"}) {
		t.Errorf("prompts = %q", h.prompter.asked)
	}
	if h.engine.runs[0].Image != "public.ecr.aws/sam/build-python3.8:latest" {
		t.Errorf("image = %q", h.engine.runs[0].Image)
	}
	if !strings.Contains(h.engine.command(t), "pip install -t python numpy") {
		t.Errorf("command = %q", h.engine.command(t))
	}
	if len(h.lambda.inputs) != 0 {
		t.Error("--no-publish must not publish")
	}
	if got := strings.TrimSpace(h.stdout.String()); got != filepath.Join(h.staging, bundler.ArchiveName) {
		t.Errorf("stdout = %q, want the archive path", got)
	}
}

func TestPython_AbortedSelection(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.prompter.runtimeErr = fmt.Errorf("%w: ^C", runtimes.ErrNoSelection)

	err := h.run("python", "-n", "deps", "requests")

	var exitErr *ExitError
	if !errors.As(err, &exitErr) || exitErr.Code != ExitNoSelection {
		t.Fatalf("expected ExitError with code %d, got %v", ExitNoSelection, err)
	}
	if exitCode(err) != ExitNoSelection {
		t.Errorf("exitCode() = %d", exitCode(err))
	}
	if len(h.engineAsked) != 0 {
		t.Error("no engine should be selected after an aborted prompt")
	}
}

func TestPython_EmptyPackageAnswer(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	err := h.run("python", "-r", "3.9", "--no-publish")
	if !errors.Is(err, bundler.ErrNothingToBundle) {
		t.Fatalf("expected ErrNothingToBundle, got %v", err)
	}
	if exitCode(err) != ExitFailure {
		t.Errorf("exitCode() = %d, want %d", exitCode(err), ExitFailure)
	}
}

func TestPython_ArtifactDir(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.file("mylib/__init__.py", "")
	h.file("mylib/setup.py", "")

	h.mustRun("python", "-r", "3.9", "--dir", filepath.Join(h.dir, "mylib"), "--no-publish")

	want := "pip install src/mylib/. -t python && zip -r layer.zip *"
	if got := h.engine.command(t); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestNodejs_Manifest(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	manifest := h.file("package.json", `{"dependencies": {}}`)

	h.mustRun("nodejs", "-r", "16", "-m", manifest, "-n", "node-deps", "--description", "shared deps")

	if h.engine.runs[0].Image != "public.ecr.aws/sam/build-nodejs16.x:latest" {
		t.Errorf("image = %q", h.engine.runs[0].Image)
	}
	want := "pushd nodejs; npm install; popd && zip -r layer.zip *"
	if got := h.engine.command(t); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}

	in := h.lambda.input(t)
	if aws.ToString(in.Description) != "shared deps" {
		t.Errorf("Description = %q", aws.ToString(in.Description))
	}
	if !slices.Equal(in.CompatibleRuntimes, []types.Runtime{"nodejs16.x"}) {
		t.Errorf("CompatibleRuntimes = %v", in.CompatibleRuntimes)
	}
}

func TestNodejs_ExplicitContainerAndMountDir(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	h.mustRun("node", "-r", "18.x", "--container", "node:18", "--mount-dir", "/out", "--no-publish", "lodash")

	run := h.engine.runs[0]
	if run.Image != "node:18" {
		t.Errorf("image = %q", run.Image)
	}
	if run.Volumes[0].HostPath != h.staging || run.Volumes[0].ContainerPath != "/out" || run.WorkDir != "/opt" {
		t.Errorf("volume %+v workdir %q", run.Volumes[0], run.WorkDir)
	}
	want := "mkdir -p /out && pushd nodejs; npm install --save lodash; popd && zip -r layer.zip *"
	if got := h.engine.command(t); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
}

func TestLayer_OutputFlagSetsLocalDir(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	out := filepath.Join(h.dir, "mylayer")

	h.mustRun("python", "-r", "3.9", "-o", out, "--no-publish", "requests")

	run := h.engine.runs[0]
	if run.Volumes[0].HostPath != out || run.Volumes[0].ContainerPath != "/opt" {
		t.Errorf("volume = %+v, want %s mounted on /opt", run.Volumes[0], out)
	}
	if got := strings.TrimSpace(h.stdout.String()); got != filepath.Join(out, bundler.ArchiveName) {
		t.Errorf("stdout = %q", got)
	}
	if testutil.Exists(h.staging) {
		t.Errorf("configured staging dir %s should be unused", h.staging)
	}
}

func TestBinary_BuildsImageAndPublishes(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	script := h.file("build.sh", "#!/bin/bash\n")

	h.mustRun("binary", "-n", "tools", "-p", "cmake",
		"-r", "provided.al2", "-r", "provided.al2", "--rm-image", script)

	if len(h.engine.builds) != 1 {
		t.Fatalf("expected one image build, got %d", len(h.engine.builds))
	}
	if filepath.Base(h.engine.builds[0].Dockerfile) != "Dockerfile" {
		t.Errorf("Dockerfile = %q", h.engine.builds[0].Dockerfile)
	}
	if testutil.Exists(h.engine.builds[0].ContextDir) {
		t.Error("generated Dockerfile directory should be cleaned up")
	}
	if h.engine.runs[0].Image != "sha256:feedface" {
		t.Errorf("run image = %q", h.engine.runs[0].Image)
	}
	want := "chmod +x ./build.sh && ./build.sh && zip -r layer.zip *"
	if got := h.engine.command(t); got != want {
		t.Errorf("command = %q, want %q", got, want)
	}
	if !slices.Equal(h.engine.removed, []container.ImageRef{"sha256:feedface"}) {
		t.Errorf("removed images = %v", h.engine.removed)
	}

	in := h.lambda.input(t)
	if aws.ToString(in.Description) != "my binary layer built with layermake" {
		t.Errorf("Description = %q", aws.ToString(in.Description))
	}
	if !slices.Equal(in.CompatibleRuntimes, []types.Runtime{"provided.al2"}) {
		t.Errorf("CompatibleRuntimes = %v", in.CompatibleRuntimes)
	}
}

func TestBinary_AllRuntimesSendsNone(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	script := h.file("build.sh", "")

	h.mustRun("binary", "-n", "tools", "-c", "make -C /opt/src", script)

	if got := h.engine.command(t); got != "make -C /opt/src && zip -r layer.zip *" {
		t.Errorf("command = %q", got)
	}
	if len(h.lambda.input(t).CompatibleRuntimes) != 0 {
		t.Errorf("all runtimes should send none, got %v", h.lambda.input(t).CompatibleRuntimes)
	}
	if len(h.engine.removed) != 0 {
		t.Error("the image is kept without --rm-image")
	}
}

func TestBinary_InvalidRuntime(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	script := h.file("build.sh", "")

	err := h.run("binary", "-n", "tools", "-r", "cobol", script)
	if !errors.Is(err, runtimes.ErrUnknownRuntime) {
		t.Fatalf("expected ErrUnknownRuntime, got %v", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.InvalidRuntimeId {
		t.Errorf("expected an InvalidRuntimeId actionable error, got %v", err)
	}
	if len(h.engine.runs) != 0 {
		t.Error("container must not run")
	}
}

func TestBinary_DirectoryWithoutEntryPoint(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.file("src/README.md", "")

	err := h.run("binary", "--no-publish", filepath.Join(h.dir, "src"))
	if !errors.Is(err, bundler.ErrNoBuildEntryPoint) {
		t.Fatalf("expected ErrNoBuildEntryPoint, got %v", err)
	}
}

func TestLayer_NameRequiredToPublish(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	err := h.run("python", "-r", "3.9", "requests")
	if !errors.Is(err, publish.ErrNoLayerName) {
		t.Fatalf("expected ErrNoLayerName, got %v", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || len(ae.Suggestions) == 0 {
		t.Errorf("expected suggestions, got %v", err)
	}
	if len(h.engineAsked) != 0 {
		t.Error("flags must be checked before the engine is selected")
	}
}

func TestLayer_InvalidArchitecture(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	err := h.run("python", "-r", "3.9", "-n", "deps", "-a", "sparc", "requests")
	if !errors.Is(err, publish.ErrInvalidArchitecture) {
		t.Fatalf("expected ErrInvalidArchitecture, got %v", err)
	}
}

func TestLayer_NoZipKeepsStagingAndSkipsPublish(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	h.mustRun("python", "-r", "3.9", "--no-zip", "requests")

	if got := h.engine.command(t); got != "pip install -t python requests" {
		t.Errorf("command = %q", got)
	}
	if got := strings.TrimSpace(h.stdout.String()); got != h.staging {
		t.Errorf("stdout = %q, want %q", got, h.staging)
	}
	if !testutil.Exists(filepath.Join(h.staging, "python")) {
		t.Error("no-zip should keep the layer tree")
	}
	if testutil.Exists(filepath.Join(h.staging, "src")) {
		t.Error("scaffolding should still be removed")
	}
	if len(h.lambda.inputs) != 0 {
		t.Error("an unzipped layer must not be published")
	}
}

func TestLayer_PublishSettings(t *testing.T) {
	t.Parallel()

	cfg := `publish: {
	profile: "ci"
	region: "eu-west-1"
	architectures: ["arm64"]
}
`
	tests := []struct {
		name    string
		args    []string
		profile string
		region  string
		arch    []string
	}{
		{"from config", nil, "ci", "eu-west-1", []string{"arm64"}},
		{"flags win", []string{"--region", "us-east-1", "-a", "x86_64", "-a", "arm64"}, "ci", "us-east-1", []string{"x86_64", "arm64"}},
		{"profile flag", []string{"--profile", "prod"}, "prod", "eu-west-1", []string{"arm64"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, cfg)

			args := append([]string{"python", "-r", "3.9", "-n", "deps", "requests"}, tt.args...)
			h.mustRun(args...)

			opts := h.publishOpts()
			if opts.Profile != tt.profile || opts.Region != tt.region || !slices.Equal(opts.Architectures, tt.arch) {
				t.Errorf("publish options = %+v", opts)
			}
		})
	}
}

func TestLayer_LicenseFile(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	license := h.file("LICENSE", "MIT")

	h.mustRun("python", "-r", "3.9", "-n", "deps", "--license-file", license, "requests")

	if got := aws.ToString(h.lambda.input(t).LicenseInfo); got != "MIT" {
		t.Errorf("LicenseInfo = %q", got)
	}
}

func TestLayer_MissingLicenseFileFailsBeforeBuild(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	err := h.run("python", "-r", "3.9", "-n", "deps", "--license-file", filepath.Join(h.dir, "NOPE"), "requests")
	if !errors.Is(err, publish.ErrLicenseFile) {
		t.Fatalf("expected ErrLicenseFile, got %v", err)
	}
	if len(h.engine.runs) != 0 || len(h.engineAsked) != 0 {
		t.Error("container work started before the license file was checked")
	}
}

func TestLayer_EngineSelection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		config string
		args   []string
		want   container.EngineType
	}{
		{"default", "", nil, container.EngineTypeDocker},
		{"config", `container_engine: "podman"`, nil, container.EngineTypePodman},
		{"flag wins", `container_engine: "podman"`, []string{"--engine", "docker"}, container.EngineTypeDocker},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t, tt.config)

			args := append(tt.args, "python", "-r", "3.9", "--no-publish", "requests")
			h.mustRun(args...)

			if !slices.Equal(h.engineAsked, []container.EngineType{tt.want}) {
				t.Errorf("engine asked = %v, want %s", h.engineAsked, tt.want)
			}
		})
	}
}

func TestLayer_EngineUnavailable(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")
	h.engineErr = errEngineDown

	err := h.run("python", "-r", "3.9", "--no-publish", "requests")
	if !errors.Is(err, errEngineDown) {
		t.Fatalf("expected the engine error, got %v", err)
	}
	var ae *issue.ActionableError
	if !errors.As(err, &ae) || ae.Issue != issue.ContainerEngineNotFoundId {
		t.Errorf("expected ContainerEngineNotFoundId, got %v", err)
	}
}

func TestLayer_VerboseAndQuietConflict(t *testing.T) {
	t.Parallel()
	h := newHarness(t, "")

	if err := h.run("-v", "-q", "python", "-r", "3.9", "--no-publish", "requests"); err == nil {
		t.Fatal("expected an error for --verbose with --quiet")
	}
	if len(h.engine.runs) != 0 {
		t.Error("container must not run")
	}
}
