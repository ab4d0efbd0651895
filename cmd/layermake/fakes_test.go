// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/layermake/layermake/internal/bundler"
	"github.com/layermake/layermake/internal/config"
	"github.com/layermake/layermake/internal/container"
	"github.com/layermake/layermake/internal/logging"
	"github.com/layermake/layermake/internal/publish"
	"github.com/layermake/layermake/internal/testutil"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
)

const testLayerARN = "arn:aws:lambda:us-east-1:123456789012:layer:deps:3"

type (
	fakeEngine struct {
		runs    []container.RunOptions
		builds  []container.BuildOptions
		removed []container.ImageRef
	}

	fakeLambda struct {
		inputs []*lambda.PublishLayerVersionInput
	}

	fakePrompter struct {
		runtime    string
		runtimeErr error
		packages   []string
		pkgErr     error
		asked      []string
	}

	harness struct {
		t        *testing.T
		app      *App
		engine   *fakeEngine
		lambda   *fakeLambda
		prompter *fakePrompter
		stdout   *bytes.Buffer
		stderr   *bytes.Buffer
		dir      string
		cfgPath  string
		staging  string

		engineErr      error
		engineAsked    []container.EngineType
		publishOptions []publish.Options
	}
)

func (f *fakeEngine) Name() string {
	return "docker"
}

func (f *fakeEngine) Available() bool {
	return true
}

func (f *fakeEngine) Version(context.Context) (string, error) {
	return "27.0.0", nil
}

func (f *fakeEngine) Remove(context.Context, container.ContainerID, bool) error {
	return nil
}

func (f *fakeEngine) ImageExists(context.Context, container.ImageRef) (bool, error) {
	return true, nil
}

func (f *fakeEngine) CopyFrom(context.Context, container.ContainerID, string, string) error {
	return nil
}

func (f *fakeEngine) Build(_ context.Context, opts container.BuildOptions) (container.ImageRef, error) {
	f.builds = append(f.builds, opts)
	return "sha256:feedface", nil
}

// Run writes layer.zip into the mounted staging directory when the command
// ends with the zip step.
func (f *fakeEngine) Run(_ context.Context, opts container.RunOptions) (*container.RunResult, error) {
	f.runs = append(f.runs, opts)
	if strings.HasSuffix(opts.Command[len(opts.Command)-1], "zip -r layer.zip *") {
		if err := os.WriteFile(filepath.Join(opts.Volumes[0].HostPath, bundler.ArchiveName), []byte("PK\x03\x04"), 0o644); err != nil {
			return nil, err
		}
	}
	return &container.RunResult{}, nil
}

func (f *fakeEngine) RemoveImage(_ context.Context, image container.ImageRef, _ bool) error {
	f.removed = append(f.removed, image)
	return nil
}

func (f *fakeEngine) command(t *testing.T) string {
	t.Helper()
	if len(f.runs) != 1 {
		t.Fatalf("expected one container run, got %d", len(f.runs))
	}
	return f.runs[0].Command[2]
}

func (f *fakeLambda) PublishLayerVersion(_ context.Context, in *lambda.PublishLayerVersionInput, _ ...func(*lambda.Options)) (*lambda.PublishLayerVersionOutput, error) {
	f.inputs = append(f.inputs, in)
	return &lambda.PublishLayerVersionOutput{Version: 3, LayerVersionArn: aws.String(testLayerARN)}, nil
}

func (f *fakeLambda) input(t *testing.T) *lambda.PublishLayerVersionInput {
	t.Helper()
	if len(f.inputs) != 1 {
		t.Fatalf("expected one publish call, got %d", len(f.inputs))
	}
	return f.inputs[0]
}

func (p *fakePrompter) SelectRuntime(label string, _ []string) (string, error) {
	p.asked = append(p.asked, label)
	return p.runtime, p.runtimeErr
}

func (p *fakePrompter) Packages(label string) ([]string, error) {
	p.asked = append(p.asked, label)
	return p.packages, p.pkgErr
}

// newHarness builds an App around fakes and writes a config file that keeps
// staging inside a temp dir. extraConfig is appended to that file.
func newHarness(t *testing.T, extraConfig string) *harness {
	t.Helper()

	dir := t.TempDir()
	h := &harness{
		t:        t,
		engine:   &fakeEngine{},
		lambda:   &fakeLambda{},
		prompter: &fakePrompter{},
		stdout:   &bytes.Buffer{},
		stderr:   &bytes.Buffer{},
		dir:      dir,
		cfgPath:  filepath.Join(dir, "layermake.cue"),
		staging:  filepath.Join(dir, "layer"),
	}
	testutil.MustWriteFile(t, h.cfgPath, fmt.Sprintf("staging_dir: %q\n%s", h.staging, extraConfig))

	app, err := NewApp(Dependencies{
		Config: config.NewProvider(),
		Engines: func(preferred container.EngineType, _ logging.Logger) (container.Engine, error) {
			h.engineAsked = append(h.engineAsked, preferred)
			if h.engineErr != nil {
				return nil, h.engineErr
			}
			return h.engine, nil
		},
		Publishers: func(opts publish.Options, log logging.Logger) LayerPublisher {
			h.publishOptions = append(h.publishOptions, opts)
			return publish.NewWithClient(opts, h.lambda, log)
		},
		Prompter: h.prompter,
		Stdout:   h.stdout,
		Stderr:   h.stderr,
	})
	if err != nil {
		t.Fatalf("NewApp() error = %v", err)
	}
	h.app = app
	return h
}

func (h *harness) run(args ...string) error {
	h.t.Helper()
	root := NewRootCommand(h.app)
	root.SetArgs(append([]string{"--config", h.cfgPath}, args...))
	root.SetOut(h.stdout)
	root.SetErr(h.stderr)
	return root.ExecuteContext(h.t.Context())
}

func (h *harness) mustRun(args ...string) {
	h.t.Helper()
	if err := h.run(args...); err != nil {
		h.t.Fatalf("run %q: %v\nstderr:\n%s", args, err, h.stderr)
	}
}

// file writes content under the harness dir and returns its path.
func (h *harness) file(name, content string) string {
	h.t.Helper()
	p := filepath.Join(h.dir, name)
	testutil.MustWriteFile(h.t, p, content)
	return p
}

func (h *harness) publishOpts() publish.Options {
	h.t.Helper()
	if len(h.publishOptions) != 1 {
		h.t.Fatalf("expected one publisher, got %d", len(h.publishOptions))
	}
	return h.publishOptions[0]
}

var errEngineDown = errors.New("docker daemon not reachable")
